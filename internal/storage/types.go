package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl + snapshot)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// RunEntry records one scrape cycle.
// Keep it compact and schema-stable.
type RunEntry struct {
	At       time.Time
	RunID    string
	Products int // total scraped (after dedupe)
	New      int // not known before this run
	Inserted int // written to the backend
	Notified int // chats that received the alert
	Skipped  bool
	Error    string
	TookMS   int64
}
