package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/garyjia/ope-approval/internal/domain/event"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func (m *mockLogger) HasInfo(msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, info := range m.infos {
		if info == msg {
			return true
		}
	}
	return false
}

func submitted() *event.Event {
	return event.NewEvent(event.TypeBatchSubmitted, "E1", "batch-1", "Jan 2025", nil)
}

func noop(context.Context, *event.Event) error { return nil }

func TestDispatch(t *testing.T) {
	t.Run("runs handlers in order", func(t *testing.T) {
		d := NewDispatcher()
		var order []string

		d.Subscribe("first", func(ctx context.Context, evt *event.Event) error {
			order = append(order, "first")
			return nil
		}, event.TypeBatchSubmitted)
		d.Subscribe("second", func(ctx context.Context, evt *event.Event) error {
			order = append(order, "second")
			return nil
		}, event.TypeBatchSubmitted)

		if err := d.Dispatch(context.Background(), submitted()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(order) != 2 || order[0] != "first" || order[1] != "second" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("stops at first error", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		sentinel := errors.New("projection write failed")
		called := false

		d.Subscribe("failing", func(ctx context.Context, evt *event.Event) error {
			return sentinel
		}, event.TypeBatchSubmitted)
		d.Subscribe("after", func(ctx context.Context, evt *event.Event) error {
			called = true
			return nil
		}, event.TypeBatchSubmitted)

		err := d.Dispatch(context.Background(), submitted())
		if !errors.Is(err, sentinel) {
			t.Fatalf("expected wrapped sentinel, got %v", err)
		}
		if called {
			t.Error("handler after a failure should not run")
		}
		if logger.ErrorCount() != 1 {
			t.Errorf("expected 1 logged error, got %d", logger.ErrorCount())
		}
	})

	t.Run("recovers from panic", func(t *testing.T) {
		d := NewDispatcher()
		d.Subscribe("panicky", func(ctx context.Context, evt *event.Event) error {
			panic("boom")
		}, event.TypeBatchSubmitted)

		err := d.Dispatch(context.Background(), submitted())
		if err == nil {
			t.Fatal("expected error from panicking handler")
		}
	})

	t.Run("passes caller context to handlers", func(t *testing.T) {
		type key struct{}
		d := NewDispatcher()
		var seen interface{}
		d.Subscribe("ctx", func(ctx context.Context, evt *event.Event) error {
			seen = ctx.Value(key{})
			return nil
		}, event.TypeBatchSubmitted)

		ctx := context.WithValue(context.Background(), key{}, "tx")
		if err := d.Dispatch(ctx, submitted()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen != "tx" {
			t.Errorf("handler saw %v, want tx", seen)
		}
	})

	t.Run("no handlers is not an error", func(t *testing.T) {
		d := NewDispatcher()
		if err := d.Dispatch(context.Background(), submitted()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestSubscribe_SeveralTypes(t *testing.T) {
	d := NewDispatcher()
	count := 0

	d.Subscribe("projector", func(ctx context.Context, evt *event.Event) error {
		count++
		return nil
	}, event.TypeLevelApproved, event.TypeBatchRejected)

	_ = d.Dispatch(context.Background(), event.NewEvent(event.TypeLevelApproved, "E1", "b", "Jan 2025", nil))
	_ = d.Dispatch(context.Background(), event.NewEvent(event.TypeBatchRejected, "E1", "b", "Jan 2025", nil))
	_ = d.Dispatch(context.Background(), submitted())

	if count != 2 {
		t.Errorf("expected 2 calls, got %d", count)
	}
	if hs := d.Handlers(event.TypeBatchRejected); len(hs) != 1 || hs[0] != "projector" {
		t.Errorf("unexpected handlers %v", hs)
	}
	if hs := d.Handlers(event.TypeBatchSubmitted); len(hs) != 0 {
		t.Errorf("expected no handlers, got %v", hs)
	}
}

func TestClose(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))
	d.Subscribe("h", noop, event.TypeBatchSubmitted)

	if err := d.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if !logger.HasInfo("Dispatcher closed") {
		t.Error("expected close to be logged")
	}
	if err := d.Close(); err == nil {
		t.Error("second Close should fail")
	}
	if err := d.Dispatch(context.Background(), submitted()); !errors.Is(err, ErrClosed) {
		t.Errorf("Dispatch after Close = %v, want ErrClosed", err)
	}
}

func TestConcurrentSubscribe(t *testing.T) {
	d := NewDispatcher()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			d.Subscribe(fmt.Sprintf("handler-%d", id), noop, event.TypeBatchSubmitted)
		}(i)
	}
	wg.Wait()

	if got := len(d.Handlers(event.TypeBatchSubmitted)); got != 20 {
		t.Errorf("expected 20 handlers, got %d", got)
	}
}
