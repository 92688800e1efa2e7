package shutdown

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func fastConfig() Config {
	return Config{
		Timeout:      time.Second,
		DrainTimeout: 10 * time.Millisecond,
	}
}

func TestManager_NewManager(t *testing.T) {
	m := NewManager(DefaultConfig(), zerolog.Nop())

	status := m.GetStatus()
	if !status.AcceptingRequests {
		t.Error("expected manager to accept requests initially")
	}
	if status.State != StateRunning {
		t.Errorf("expected state to be running, got %s", status.State)
	}
}

func TestManager_GetStatus(t *testing.T) {
	m := NewManager(DefaultConfig(), zerolog.Nop())
	m.Register("http", func(context.Context) error { return nil })
	m.Register("store", func(context.Context) error { return nil })

	status := m.GetStatus()
	if status.State != StateRunning {
		t.Errorf("expected state running, got %s", status.State)
	}
	if !status.AcceptingRequests {
		t.Error("expected accepting requests to be true")
	}
	if status.Components != 2 {
		t.Errorf("expected 2 components, got %d", status.Components)
	}
	if status.StartedAt != nil {
		t.Error("expected no start time before shutdown")
	}
}

func TestManager_HooksRunInReverseOrder(t *testing.T) {
	m := NewManager(fastConfig(), zerolog.Nop())

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"store", "audit", "http"} {
		m.Register(name, func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		})
	}

	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"http", "audit", "store"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}

	status := m.GetStatus()
	if status.State != StateComplete {
		t.Errorf("expected state complete, got %s", status.State)
	}
	if status.AcceptingRequests {
		t.Error("expected not accepting requests after shutdown")
	}
	if status.StartedAt == nil {
		t.Error("expected start time to be recorded")
	}
}

func TestManager_HookErrorsAreJoined(t *testing.T) {
	m := NewManager(fastConfig(), zerolog.Nop())
	errStore := errors.New("close failed")
	ran := false

	m.Register("store", func(context.Context) error { return errStore })
	m.Register("http", func(context.Context) error {
		ran = true
		return nil
	})

	err := m.Shutdown(context.Background())
	if !errors.Is(err, errStore) {
		t.Fatalf("expected store error, got %v", err)
	}
	if !ran {
		t.Error("expected remaining hooks to run after a failure")
	}
}

func TestManager_ShutdownOnce(t *testing.T) {
	m := NewManager(fastConfig(), zerolog.Nop())
	calls := 0
	m.Register("http", func(context.Context) error {
		calls++
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Shutdown(context.Background())
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Errorf("expected hook to run once, ran %d times", calls)
	}
}

func TestManager_HooksSeeTimeout(t *testing.T) {
	m := NewManager(Config{Timeout: 20 * time.Millisecond}, zerolog.Nop())
	m.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	err := m.Shutdown(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestManager_Done(t *testing.T) {
	m := NewManager(fastConfig(), zerolog.Nop())

	select {
	case <-m.Done():
		t.Fatal("expected done channel to be open before shutdown")
	default:
	}

	go func() { _ = m.Shutdown(context.Background()) }()

	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for shutdown")
	}
}

func TestManager_StatusWhileDraining(t *testing.T) {
	m := NewManager(Config{Timeout: time.Second, DrainTimeout: time.Second}, zerolog.Nop())
	m.Register("http", func(context.Context) error { return nil })

	go func() { _ = m.Shutdown(context.Background()) }()

	deadline := time.After(2 * time.Second)
	for m.GetStatus().AcceptingRequests {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for drain to start")
		case <-time.After(time.Millisecond):
		}
	}

	status := m.GetStatus()
	if status.State != StateDraining {
		t.Errorf("expected state draining, got %s", status.State)
	}
	if status.StartedAt == nil {
		t.Error("expected start time while draining")
	}
	<-m.Done()
}
