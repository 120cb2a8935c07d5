package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	logx "dunswatch/pkg/logx"
)

func TestWorkerExitsWhenStopChannelCloses(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop())

	stop := make(chan struct{})
	queue := make(chan task)
	done := make(chan struct{})
	go func() {
		// The worker holds its channels as arguments, so it must exit
		// on the captured stop channel even after Stop has reset the
		// Service fields.
		s.worker(context.Background(), stop, queue)
		close(done)
	}()

	close(stop)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit after stop channel closed")
	}
}

func TestStartStopStartAgain(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop())
	ctx := context.Background()

	s.Start(ctx)
	if _, err := s.Add("job", "*/5 * * * *", time.Minute, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Add: %v", err)
	}
	s.Stop(ctx)

	// Definitions survive a stop; the next start re-registers them.
	s.Start(ctx)
	s.Stop(ctx)
}

func TestExecOneRecordsHistory(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, HistorySize: 3}, logx.Nop())

	for i := 0; i < 5; i++ {
		i := i
		s.execOne(context.Background(), task{
			id:   fmt.Sprintf("job:%d", i),
			name: "watch.cycle",
			run: func(context.Context) error {
				if i == 4 {
					return errors.New("scrape: storefront down")
				}
				return nil
			},
		})
	}

	got := s.History()
	if len(got) != 3 {
		t.Fatalf("history len = %d, want ring of 3", len(got))
	}
	if got[len(got)-1].Error == "" {
		t.Fatal("last entry should carry the run error")
	}
	if got[0].ID != "job:2" {
		t.Fatalf("oldest retained = %s, want job:2", got[0].ID)
	}
}
