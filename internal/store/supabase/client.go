package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"dunswatch/internal/scrape"
	logx "dunswatch/pkg/logx"
)

// Config points the client at a Supabase project. URL is the project
// base (https://<ref>.supabase.co); Key is the service or anon key and
// is sent both as apikey and bearer token, which is what PostgREST
// expects.
type Config struct {
	URL string
	Key string

	ProductsTable string // default: "products"
	ChatsTable    string // default: "chats"

	Timeout time.Duration // per request; default 10s
}

const (
	defaultProductsTable = "products"
	defaultChatsTable    = "chats"
	defaultTimeout       = 10 * time.Second
)

// Client talks to Supabase's PostgREST endpoint.
type Client struct {
	log  logx.Logger
	http *http.Client

	mu       sync.Mutex
	base     *url.URL
	key      string
	products string
	chats    string
	timeout  time.Duration
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Client{log: log, http: &http.Client{}}
	if err := c.Apply(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// Apply updates connection settings. Safe to call concurrently with requests.
func (c *Client) Apply(cfg Config) error {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return fmt.Errorf("supabase url is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("supabase url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("supabase url %q: scheme and host required", raw)
	}
	key := strings.TrimSpace(cfg.Key)
	if key == "" {
		return fmt.Errorf("supabase key is required")
	}

	products := strings.TrimSpace(cfg.ProductsTable)
	if products == "" {
		products = defaultProductsTable
	}
	chats := strings.TrimSpace(cfg.ChatsTable)
	if chats == "" {
		chats = defaultChatsTable
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c.mu.Lock()
	c.base = base
	c.key = key
	c.products = products
	c.chats = chats
	c.timeout = timeout
	c.mu.Unlock()
	return nil
}

// productRow is the insert payload. The table stores the nested blobs
// (variants, options, images) as text columns, so they are stringified
// here rather than sent as JSON.
type productRow struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Handle    string `json:"handle,omitempty"`
	URL       string `json:"url,omitempty"`
	Vendor    string `json:"vendor,omitempty"`
	Available bool   `json:"available"`
	PriceMin  string `json:"price_min,omitempty"`
	PriceMax  string `json:"price_max,omitempty"`
	Options   string `json:"options_with_values,omitempty"`
	Variants  string `json:"variants,omitempty"`
	Images    string `json:"images,omitempty"`
}

func rowFromProduct(p scrape.Product) productRow {
	row := productRow{
		ID:        p.ID,
		Title:     p.Title,
		Handle:    p.Handle,
		URL:       p.URL,
		Vendor:    p.Vendor,
		Available: p.Available,
		PriceMin:  p.PriceMin.String(),
		PriceMax:  p.PriceMax.String(),
		Variants:  string(p.Variants),
		Images:    string(p.Images),
	}
	if len(p.Options) > 0 {
		if b, err := json.Marshal(p.Options); err == nil {
			row.Options = string(b)
		}
	}
	return row
}

// InsertProducts appends new products. An empty slice is a no-op.
func (c *Client) InsertProducts(ctx context.Context, products []scrape.Product) error {
	if len(products) == 0 {
		return nil
	}
	rows := make([]productRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, rowFromProduct(p))
	}

	c.mu.Lock()
	table := c.products
	c.mu.Unlock()

	body, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal products: %w", err)
	}
	if err := c.do(ctx, http.MethodPost, table, "", bytes.NewReader(body), nil); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

// ProductIDs returns every id already stored in the products table.
func (c *Client) ProductIDs(ctx context.Context) ([]int64, error) {
	c.mu.Lock()
	table := c.products
	c.mu.Unlock()
	return c.selectIDs(ctx, table)
}

// ChatIDs returns every registered alert subscriber chat id.
func (c *Client) ChatIDs(ctx context.Context) ([]int64, error) {
	c.mu.Lock()
	table := c.chats
	c.mu.Unlock()
	return c.selectIDs(ctx, table)
}

func (c *Client) selectIDs(ctx context.Context, table string) ([]int64, error) {
	var rows []struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodGet, table, "select=id", nil, &rows); err != nil {
		return nil, fmt.Errorf("select %s.id: %w", table, err)
	}
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// restError is PostgREST's error envelope.
type restError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (c *Client) do(ctx context.Context, method, table, query string, body *bytes.Reader, out any) error {
	c.mu.Lock()
	base := c.base
	key := c.key
	timeout := c.timeout
	c.mu.Unlock()

	u := *base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/rest/v1/" + table
	u.RawQuery = query

	reqCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(reqCtx, method, u.String(), body)
	} else {
		req, err = http.NewRequestWithContext(reqCtx, method, u.String(), nil)
	}
	if err != nil {
		return err
	}
	req.Header.Set("apikey", key)
	req.Header.Set("Authorization", "Bearer "+key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		// We never read inserted rows back.
		req.Header.Set("Prefer", "return=minimal")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var re restError
		_ = json.NewDecoder(resp.Body).Decode(&re)
		if re.Message != "" {
			return fmt.Errorf("postgrest: %s (code=%s http=%d)", re.Message, re.Code, resp.StatusCode)
		}
		return fmt.Errorf("postgrest: http=%d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
