package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestGoRestartRetriesFailingLoop(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(ctx)
	var runs atomic.Int32
	release := make(chan struct{})
	s.GoRestart("watch", func(context.Context) error {
		if runs.Add(1) >= 3 {
			select {
			case <-release:
			default:
				close(release)
			}
		}
		return errors.New("watcher broke")
	}, WithRestartBackoff(time.Millisecond, 5*time.Millisecond))

	select {
	case <-release:
	case <-time.After(5 * time.Second):
		t.Fatalf("loop restarted %d times, want at least 3", runs.Load())
	}

	cancel()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	if err := s.Wait(waitCtx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestGoRestartStopsOnCleanExit(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(ctx)
	var runs atomic.Int32
	s.GoRestart("watch", func(context.Context) error {
		runs.Add(1)
		return nil
	}, WithRestartBackoff(time.Millisecond, 5*time.Millisecond))

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	if err := s.Wait(waitCtx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got := runs.Load(); got != 1 {
		t.Fatalf("runs = %d, want 1 (clean exit must not restart)", got)
	}
}

func TestGoRestartRestartsAfterPanic(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(ctx)
	var runs atomic.Int32
	recovered := make(chan struct{})
	s.GoRestart("watch", func(context.Context) error {
		if runs.Add(1) == 1 {
			panic("boom")
		}
		close(recovered)
		return context.Canceled
	}, WithRestartBackoff(time.Millisecond, 5*time.Millisecond))

	select {
	case <-recovered:
	case <-time.After(5 * time.Second):
		t.Fatal("loop was not restarted after panic")
	}
}
