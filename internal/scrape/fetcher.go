package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	logx "dunswatch/pkg/logx"
)

type Config struct {
	BaseURL     string
	Collections []Collection

	// Concurrency bounds parallel page fetches. RatePerSec caps the
	// request rate across all workers (be polite to the storefront).
	Concurrency int
	RatePerSec  int

	RequestTimeout time.Duration
	UserAgent      string
}

const (
	defaultConcurrency    = 4
	defaultRatePerSec     = 4
	defaultRequestTimeout = 15 * time.Second
	defaultUserAgent      = "dunswatch/1.0"
)

// Fetcher downloads and parses collection pages.
type Fetcher struct {
	log  logx.Logger
	http *http.Client

	mu          sync.Mutex
	base        *url.URL
	collections []Collection
	concurrency int
	timeout     time.Duration
	ua          string
	limiter     *rate.Limiter
}

func New(cfg Config, log logx.Logger) (*Fetcher, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	f := &Fetcher{
		log: log,
		// Timeout is enforced per request via context so a config
		// reload can change it without swapping the client.
		http: &http.Client{},
	}
	if err := f.Apply(cfg); err != nil {
		return nil, err
	}
	return f, nil
}

// Apply updates fetch settings. Safe to call concurrently with FetchAll;
// in-flight runs keep the settings they started with.
func (f *Fetcher) Apply(cfg Config) error {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("scrape base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("scrape base url %q: scheme and host required", raw)
	}

	cols := cfg.Collections
	if len(cols) == 0 {
		cols = DefaultCollections()
	}

	conc := cfg.Concurrency
	if conc <= 0 {
		conc = defaultConcurrency
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = defaultRatePerSec
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	ua := strings.TrimSpace(cfg.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}

	f.mu.Lock()
	f.base = base
	f.collections = append([]Collection(nil), cols...)
	f.concurrency = conc
	f.timeout = timeout
	f.ua = ua
	f.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	f.mu.Unlock()
	return nil
}

type snapshot struct {
	base        *url.URL
	collections []Collection
	concurrency int
	timeout     time.Duration
	ua          string
	limiter     *rate.Limiter
}

func (f *Fetcher) snapshot() snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return snapshot{
		base:        f.base,
		collections: f.collections,
		concurrency: f.concurrency,
		timeout:     f.timeout,
		ua:          f.ua,
		limiter:     f.limiter,
	}
}

// FetchAll scrapes every configured collection and returns the deduped
// product list in collection order.
//
// A collection that fails to fetch or parse is logged and skipped; the
// call only errors when every collection failed (the storefront is
// effectively unreachable).
func (f *Fetcher) FetchAll(ctx context.Context) ([]Product, error) {
	snap := f.snapshot()
	if len(snap.collections) == 0 {
		return nil, nil
	}

	type result struct {
		products []Product
		err      error
	}
	results := make([]result, len(snap.collections))

	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := snap.concurrency
	if workers > len(snap.collections) {
		workers = len(snap.collections)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				ps, err := f.fetchCollection(ctx, snap, snap.collections[i])
				results[i] = result{products: ps, err: err}
			}
		}()
	}
feed:
	for i := range snap.collections {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var merged []Product
	failed := 0
	for i, res := range results {
		col := snap.collections[i]
		if res.err != nil {
			failed++
			f.log.Warn("collection fetch failed", logx.String("collection", col.Name), logx.String("href", col.Href), logx.Err(res.err))
			continue
		}
		merged = append(merged, res.products...)
	}
	if failed == len(snap.collections) {
		return nil, fmt.Errorf("all %d collections failed", failed)
	}

	out := Dedupe(merged)
	f.log.Debug("scrape complete",
		logx.Int("collections", len(snap.collections)),
		logx.Int("failed", failed),
		logx.Int("products", len(out)),
	)
	return out, nil
}

func (f *Fetcher) fetchCollection(ctx context.Context, snap snapshot, col Collection) ([]Product, error) {
	if snap.limiter != nil {
		if err := snap.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	ref, err := url.Parse(col.Href)
	if err != nil {
		return nil, fmt.Errorf("href %q: %w", col.Href, err)
	}
	u := snap.base.ResolveReference(ref)

	reqCtx := ctx
	var cancel context.CancelFunc
	if snap.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, snap.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", snap.ua)
	req.Header.Set("Accept", "text/html")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("GET %s: unexpected status %d", u, resp.StatusCode)
	}

	products, skipped, err := ParseProducts(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	if skipped > 0 {
		f.log.Warn("skipped malformed product tags", logx.String("collection", col.Name), logx.Int("skipped", skipped))
	}
	for i := range products {
		products[i].Collection = col.Name
	}
	return products, nil
}
