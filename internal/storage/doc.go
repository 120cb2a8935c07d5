package storage

// Package storage provides a minimal local persistence layer.
//
// It currently supports:
//   - Run audit appends (one record per scrape cycle)
//   - Seen product ids (so restarts and backend outages don't cause
//     re-announcements)
