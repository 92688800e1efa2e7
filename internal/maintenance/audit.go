// Package maintenance runs scheduled read-only checks over the organization graph.
package maintenance

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultAuditSchedule runs the supervision audit once an hour.
const DefaultAuditSchedule = "@every 1h"

// AuditStore defines the interface for supervision audit data access.
type AuditStore interface {
	FindSupervisionCycles(ctx context.Context) ([]string, error)
}

// CycleGauge receives the number of users found on supervision cycles.
type CycleGauge interface {
	SetSupervisionCycles(n int)
}

// SupervisionAudit periodically reports users whose supervision chain loops
// back to themselves. It never modifies the graph.
type SupervisionAudit struct {
	store    AuditStore
	gauge    CycleGauge
	schedule string
	timeout  time.Duration
	cron     *cron.Cron
	logger   zerolog.Logger
	mu       sync.Mutex
	running  bool
}

// NewSupervisionAudit creates a new audit scheduler. gauge may be nil.
func NewSupervisionAudit(store AuditStore, gauge CycleGauge, schedule string, logger zerolog.Logger) *SupervisionAudit {
	if schedule == "" {
		schedule = DefaultAuditSchedule
	}
	return &SupervisionAudit{
		store:    store,
		gauge:    gauge,
		schedule: schedule,
		timeout:  5 * time.Minute,
		cron:     cron.New(),
		logger:   logger.With().Str("component", "supervision_audit").Logger(),
	}
}

// Start begins running the audit on its schedule.
func (a *SupervisionAudit) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return errors.New("supervision audit already running")
	}

	_, err := a.cron.AddFunc(a.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		_, _ = a.RunNow(ctx)
	})
	if err != nil {
		return err
	}

	a.cron.Start()
	a.running = true

	a.logger.Info().Str("schedule", a.schedule).Msg("supervision audit started")
	return nil
}

// Stop stops the scheduler. The returned context is done once a running audit finishes.
func (a *SupervisionAudit) Stop() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	a.running = false
	a.logger.Info().Msg("stopping supervision audit")
	return a.cron.Stop()
}

// RunNow performs one audit and returns the IDs of users on a cycle.
func (a *SupervisionAudit) RunNow(ctx context.Context) ([]string, error) {
	a.logger.Debug().Msg("starting supervision audit")

	ids, err := a.store.FindSupervisionCycles(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("supervision audit failed")
		return nil, err
	}

	for _, id := range ids {
		a.logger.Warn().Str("user_id", id).Msg("user is on a supervision cycle")
	}
	if a.gauge != nil {
		a.gauge.SetSupervisionCycles(len(ids))
	}

	a.logger.Info().Int("cycles", len(ids)).Msg("supervision audit completed")
	return ids, nil
}
