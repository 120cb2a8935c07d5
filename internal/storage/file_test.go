package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "dunswatch/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	st, err := Open(Config{}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if st != nil {
		t.Fatal("expected nil store for empty driver")
	}

	st, err = Open(Config{Driver: "none"}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("Open(none) = %v, %v", st, err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestFileSeenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store")
	ctx := context.Background()

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := st.MarkSeen(ctx, []int64{1, 2, 3}); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	// Duplicate marks are idempotent.
	if err := st.MarkSeen(ctx, []int64{2, 4}); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}

	seen, err := st.SeenIDs(ctx)
	if err != nil {
		t.Fatalf("SeenIDs: %v", err)
	}
	if len(seen) != 4 {
		t.Fatalf("len(seen) = %d, want 4", len(seen))
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Journal replay after reopen.
	st2, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()
	seen, err = st2.SeenIDs(ctx)
	if err != nil {
		t.Fatalf("SeenIDs: %v", err)
	}
	for _, id := range []int64{1, 2, 3, 4} {
		if _, ok := seen[id]; !ok {
			t.Fatalf("id %d lost after reopen", id)
		}
	}
}

func TestFileAppendRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	e := RunEntry{
		At:       time.Now(),
		RunID:    "run-1",
		Products: 120,
		New:      3,
		Inserted: 3,
		Notified: 2,
		TookMS:   1500,
	}
	if err := st.AppendRun(context.Background(), e); err != nil {
		t.Fatalf("AppendRun: %v", err)
	}
}
