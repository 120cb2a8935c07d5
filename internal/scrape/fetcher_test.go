package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	logx "dunswatch/pkg/logx"
)

func productPage(ids ...int64) string {
	page := "<html><body>"
	for _, id := range ids {
		page += fmt.Sprintf(
			`<script type="application/json" class="bc-sf-filter-product-script">{"id": %d, "title": "p%d"}</script>`,
			id, id,
		)
	}
	return page + "</body></html>"
}

func TestFetchAllMergesAndDedupes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collections/a":
			fmt.Fprint(w, productPage(1, 2))
		case "/collections/b":
			fmt.Fprint(w, productPage(2, 3))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f, err := New(Config{
		BaseURL: srv.URL,
		Collections: []Collection{
			{Name: "A", Href: "/collections/a"},
			{Name: "B", Href: "/collections/b"},
		},
		Concurrency: 2,
		RatePerSec:  100,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	products, err := f.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(products) != 3 {
		t.Fatalf("len = %d, want 3: %+v", len(products), products)
	}
	if products[0].ID != 1 || products[1].ID != 2 || products[2].ID != 3 {
		t.Fatalf("unexpected order: %+v", products)
	}
	if products[1].Collection != "A" {
		t.Fatalf("product 2 first seen in A, got %q", products[1].Collection)
	}
}

func TestFetchAllPartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/collections/bad" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, productPage(7))
	}))
	defer srv.Close()

	f, err := New(Config{
		BaseURL: srv.URL,
		Collections: []Collection{
			{Name: "Bad", Href: "/collections/bad"},
			{Name: "Good", Href: "/collections/good"},
		},
		RatePerSec: 100,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	products, err := f.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("partial failure should not error: %v", err)
	}
	if len(products) != 1 || products[0].ID != 7 {
		t.Fatalf("products = %+v", products)
	}
}

func TestFetchAllTotalFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f, err := New(Config{
		BaseURL:     srv.URL,
		Collections: []Collection{{Name: "A", Href: "/a"}, {Name: "B", Href: "/b"}},
		RatePerSec:  100,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := f.FetchAll(context.Background()); err == nil {
		t.Fatal("expected error when every collection fails")
	}
}

func TestFetchAllSendsUserAgent(t *testing.T) {
	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		fmt.Fprint(w, productPage(1))
	}))
	defer srv.Close()

	f, err := New(Config{
		BaseURL:     srv.URL,
		Collections: []Collection{{Name: "A", Href: "/a"}},
		RatePerSec:  100,
		UserAgent:   "dunswatch-test/0.1",
	}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := f.FetchAll(context.Background()); err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if ua, _ := gotUA.Load().(string); ua != "dunswatch-test/0.1" {
		t.Fatalf("user agent = %q", ua)
	}
}

func TestFetchAllHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	f, err := New(Config{
		BaseURL:     srv.URL,
		Collections: []Collection{{Name: "A", Href: "/a"}},
		RatePerSec:  100,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := f.FetchAll(ctx); err == nil {
		t.Fatal("expected context error")
	}
}
