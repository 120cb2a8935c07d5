package watch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"dunswatch/internal/scrape"
	"dunswatch/internal/storage"
	logx "dunswatch/pkg/logx"
)

// Scraper yields the current storefront product list.
type Scraper interface {
	FetchAll(ctx context.Context) ([]scrape.Product, error)
}

// Backend is the hosted database holding products and subscribers.
type Backend interface {
	ProductIDs(ctx context.Context) ([]int64, error)
	ChatIDs(ctx context.Context) ([]int64, error)
	InsertProducts(ctx context.Context, products []scrape.Product) error
}

// Broadcaster fans the alert text out to chats.
type Broadcaster interface {
	Broadcast(ctx context.Context, chatIDs []int64, text string) (sent, failed int)
}

// Formatter builds the alert message for a batch of new products.
type Formatter func(baseURL string, products []scrape.Product) string

type Config struct {
	BaseURL string
}

// Runner executes one watch cycle: scrape, diff against known ids,
// persist, alert. One Runner call corresponds to one scheduled trigger.
type Runner struct {
	log     logx.Logger
	scraper Scraper
	backend Backend
	alerts  Broadcaster
	format  Formatter

	// store is the optional local seen cache; nil when storage is disabled.
	store storage.Store

	mu      sync.Mutex
	baseURL string
	// announced holds ids already broadcast by this process. It backs
	// the one-shot guarantee even when storage is disabled and the
	// backend insert failed, so a later cycle cannot re-alert them.
	announced map[int64]struct{}

	running atomic.Bool
	skips   atomic.Uint64
}

func NewRunner(cfg Config, scraper Scraper, backend Backend, alerts Broadcaster, format Formatter, store storage.Store, log logx.Logger) *Runner {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Runner{
		log:       log,
		scraper:   scraper,
		backend:   backend,
		alerts:    alerts,
		format:    format,
		store:     store,
		announced: map[int64]struct{}{},
	}
	r.Apply(cfg)
	return r
}

// Apply updates run settings at runtime.
func (r *Runner) Apply(cfg Config) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = scrape.DefaultBaseURL
	}
	r.mu.Lock()
	r.baseURL = base
	r.mu.Unlock()
}

// Skips reports how many triggers were dropped because a run was still
// in flight.
func (r *Runner) Skips() uint64 { return r.skips.Load() }

// TryRun executes one cycle unless the previous one is still running,
// in which case the trigger is skipped (not queued).
func (r *Runner) TryRun(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		n := r.skips.Add(1)
		r.log.Warn("previous run still in flight; skipping trigger", logx.Int64("skips", int64(n)))
		r.appendRun(storage.RunEntry{At: time.Now(), Skipped: true})
		return nil
	}
	defer r.running.Store(false)
	return r.Run(ctx)
}

// Run executes exactly one watch cycle.
func (r *Runner) Run(ctx context.Context) error {
	start := time.Now()
	runID := shortRunID()
	log := r.log.With(logx.String("run", runID))

	entry := storage.RunEntry{At: start, RunID: runID}
	defer func() {
		entry.TookMS = time.Since(start).Milliseconds()
		r.appendRun(entry)
	}()

	log.Debug("run started")

	products, err := r.scraper.FetchAll(ctx)
	if err != nil {
		entry.Error = err.Error()
		return fmt.Errorf("scrape: %w", err)
	}
	entry.Products = len(products)

	known, err := r.knownIDs(ctx, log)
	if err != nil {
		entry.Error = err.Error()
		return err
	}

	var fresh []scrape.Product
	for _, p := range products {
		if _, ok := known[p.ID]; ok {
			continue
		}
		fresh = append(fresh, p)
	}
	entry.New = len(fresh)

	if len(fresh) == 0 {
		log.Debug("no new products", logx.Int("products", len(products)))
		return nil
	}
	log.Info("new products found", logx.Int("count", len(fresh)), logx.Int("products", len(products)))

	var errs []error

	if err := r.backend.InsertProducts(ctx, fresh); err != nil {
		log.Error("backend insert failed", logx.Err(err))
		errs = append(errs, fmt.Errorf("insert: %w", err))
	} else {
		entry.Inserted = len(fresh)
	}

	// Record locally even when the backend insert failed: the alert
	// below is one-shot, so the ids must not look new again next run.
	if r.store != nil {
		ids := make([]int64, 0, len(fresh))
		for _, p := range fresh {
			ids = append(ids, p.ID)
		}
		if err := r.store.MarkSeen(ctx, ids); err != nil {
			log.Warn("seen cache write failed", logx.Err(err))
		}
	}

	chats, err := r.backend.ChatIDs(ctx)
	if err != nil {
		log.Error("chat list unavailable; broadcast aborted", logx.Err(err))
		errs = append(errs, fmt.Errorf("chats: %w", err))
	} else if len(chats) > 0 {
		r.mu.Lock()
		base := r.baseURL
		r.mu.Unlock()

		text := r.format(base, fresh)
		sent, failed := r.alerts.Broadcast(ctx, chats, text)
		r.markAnnounced(fresh)
		entry.Notified = sent
		if failed > 0 {
			log.Warn("broadcast finished with failures", logx.Int("sent", sent), logx.Int("failed", failed))
		} else {
			log.Info("broadcast finished", logx.Int("sent", sent))
		}
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		entry.Error = err.Error()
		return err
	}
	return nil
}

func (r *Runner) markAnnounced(products []scrape.Product) {
	r.mu.Lock()
	for _, p := range products {
		r.announced[p.ID] = struct{}{}
	}
	r.mu.Unlock()
}

// knownIDs returns every product id that must not be announced again:
// the backend's products table, the local seen cache, and the ids this
// process already broadcast. When
// the backend is unreachable, a non-empty local cache keeps the run
// alive; with no local state at all the run fails instead of
// re-announcing the whole storefront.
func (r *Runner) knownIDs(ctx context.Context, log logx.Logger) (map[int64]struct{}, error) {
	known := map[int64]struct{}{}

	r.mu.Lock()
	for id := range r.announced {
		known[id] = struct{}{}
	}
	r.mu.Unlock()

	if r.store != nil {
		seen, err := r.store.SeenIDs(ctx)
		if err != nil && !errors.Is(err, storage.ErrDisabled) {
			log.Warn("seen cache read failed", logx.Err(err))
		}
		for id := range seen {
			known[id] = struct{}{}
		}
	}

	ids, err := r.backend.ProductIDs(ctx)
	if err != nil {
		if len(known) == 0 {
			return nil, fmt.Errorf("known ids: %w", err)
		}
		log.Warn("backend ids unavailable; using local seen cache", logx.Int("cached", len(known)), logx.Err(err))
		return known, nil
	}
	for _, id := range ids {
		known[id] = struct{}{}
	}
	return known, nil
}

func (r *Runner) appendRun(e storage.RunEntry) {
	if r.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.store.AppendRun(ctx, e); err != nil && !errors.Is(err, storage.ErrDisabled) {
		r.log.Debug("run audit append failed", logx.Err(err))
	}
}

func shortRunID() string {
	id := uuid.NewString()
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}
