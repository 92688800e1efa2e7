// Package shutdown coordinates graceful shutdown of the orggraph server.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// State represents the current shutdown state.
type State string

const (
	// StateRunning indicates the server is running normally.
	StateRunning State = "running"
	// StateDraining indicates the server reports unhealthy and is stopping its components.
	StateDraining State = "draining"
	// StateComplete indicates shutdown is complete.
	StateComplete State = "complete"
)

// Hook stops one component. Hooks run in reverse registration order.
type Hook func(ctx context.Context) error

// Status represents the current shutdown status.
type Status struct {
	State             State      `json:"state"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	AcceptingRequests bool       `json:"accepting_requests"`
	Components        int        `json:"components"`
}

// Config holds configuration for the shutdown manager.
type Config struct {
	// Timeout is the maximum time for all hooks together.
	Timeout time.Duration

	// DrainTimeout is how long health checks report draining before hooks run,
	// giving load balancers time to stop routing traffic here.
	DrainTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		DrainTimeout: 5 * time.Second,
	}
}

type namedHook struct {
	name string
	fn   Hook
}

// Manager runs registered shutdown hooks once.
type Manager struct {
	config       Config
	logger       zerolog.Logger
	mu           sync.RWMutex
	hooks        []namedHook
	state        State
	startedAt    *time.Time
	accepting    atomic.Bool
	doneCh       chan struct{}
	shutdownOnce sync.Once
	shutdownErr  error
}

// NewManager creates a new shutdown manager.
func NewManager(config Config, logger zerolog.Logger) *Manager {
	m := &Manager{
		config: config,
		logger: logger.With().Str("component", "shutdown_manager").Logger(),
		state:  StateRunning,
		doneCh: make(chan struct{}),
	}
	m.accepting.Store(true)
	return m
}

// Register adds a hook. Components registered later are stopped first.
func (m *Manager) Register(name string, fn Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, namedHook{name: name, fn: fn})
}

// GetStatus returns the current shutdown status. AcceptingRequests turns
// false as soon as shutdown starts.
func (m *Manager) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Status{
		State:             m.state,
		StartedAt:         m.startedAt,
		AcceptingRequests: m.accepting.Load(),
		Components:        len(m.hooks),
	}
}

// Shutdown drains, then runs every hook, and returns their joined errors.
// Later calls return the result of the first.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownOnce.Do(func() {
		m.shutdownErr = m.doShutdown(ctx)
	})
	return m.shutdownErr
}

func (m *Manager) doShutdown(ctx context.Context) error {
	m.logger.Info().
		Dur("timeout", m.config.Timeout).
		Dur("drain_timeout", m.config.DrainTimeout).
		Msg("initiating graceful shutdown")

	now := time.Now()
	m.mu.Lock()
	m.startedAt = &now
	m.state = StateDraining
	hooks := append([]namedHook(nil), m.hooks...)
	m.mu.Unlock()

	m.accepting.Store(false)
	defer close(m.doneCh)

	// Phase 1: report draining so traffic moves elsewhere
	if m.config.DrainTimeout > 0 {
		drainCtx, drainCancel := context.WithTimeout(ctx, m.config.DrainTimeout)
		<-drainCtx.Done()
		drainCancel()
	}

	// Phase 2: stop components, newest first
	hookCtx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		start := time.Now()
		if err := h.fn(hookCtx); err != nil {
			m.logger.Error().Err(err).Str("hook", h.name).Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			continue
		}
		m.logger.Debug().Str("hook", h.name).Dur("duration", time.Since(start)).Msg("component stopped")
	}

	m.mu.Lock()
	m.state = StateComplete
	m.mu.Unlock()

	m.logger.Info().
		Dur("duration", time.Since(now)).
		Int("failed", len(errs)).
		Msg("graceful shutdown complete")

	return errors.Join(errs...)
}

// Done returns a channel that is closed when shutdown is complete.
func (m *Manager) Done() <-chan struct{} {
	return m.doneCh
}
