package storage

import (
	"context"
	"errors"
	"strings"

	logx "dunswatch/pkg/logx"
)

// Store is the minimal persistence API used by the run orchestrator.
type Store interface {
	AppendRun(ctx context.Context, e RunEntry) error
	// MarkSeen records product ids permanently; announcing is one-shot.
	MarkSeen(ctx context.Context, ids []int64) error
	// SeenIDs returns the full set of recorded ids.
	SeenIDs(ctx context.Context) (map[int64]struct{}, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
