package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"dunswatch/internal/scrape"
	logx "dunswatch/pkg/logx"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{URL: srv.URL, Key: "test-key"}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, srv
}

func TestProductIDs(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/products" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("select"); got != "id" {
			t.Errorf("select = %q", got)
		}
		if got := r.Header.Get("apikey"); got != "test-key" {
			t.Errorf("apikey = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		fmt.Fprint(w, `[{"id":1},{"id":2},{"id":3}]`)
	}))

	ids, err := c.ProductIDs(context.Background())
	if err != nil {
		t.Fatalf("ProductIDs: %v", err)
	}
	if diff := cmp.Diff([]int64{1, 2, 3}, ids); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestChatIDsCustomTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/subscribers" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `[{"id":-100123}]`)
	}))
	defer srv.Close()

	c, err := New(Config{URL: srv.URL, Key: "k", ChatsTable: "subscribers"}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ids, err := c.ChatIDs(context.Background())
	if err != nil {
		t.Fatalf("ChatIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != -100123 {
		t.Fatalf("ids = %v", ids)
	}
}

func TestInsertProducts(t *testing.T) {
	var rows []map[string]any
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.Header.Get("Prefer"); got != "return=minimal" {
			t.Errorf("prefer = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))

	products := []scrape.Product{{
		ID:       101,
		Title:    "Radish Suit",
		URL:      "/products/radish-suit",
		PriceMin: "29.00",
		Options:  []scrape.Option{{Name: "Size", Values: []string{"86/92"}}},
		Variants: json.RawMessage(`[{"id":9}]`),
	}}
	if err := c.InsertProducts(context.Background(), products); err != nil {
		t.Fatalf("InsertProducts: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	row := rows[0]
	if row["id"] != float64(101) || row["title"] != "Radish Suit" {
		t.Fatalf("row = %+v", row)
	}
	// Nested blobs are stringified for the text columns.
	if row["variants"] != `[{"id":9}]` {
		t.Fatalf("variants = %v", row["variants"])
	}
	if _, ok := row["options_with_values"].(string); !ok {
		t.Fatalf("options_with_values should be a string, got %T", row["options_with_values"])
	}
}

func TestInsertProductsEmptyIsNoop(t *testing.T) {
	called := false
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	if err := c.InsertProducts(context.Background(), nil); err != nil {
		t.Fatalf("InsertProducts: %v", err)
	}
	if called {
		t.Fatal("no request expected for empty insert")
	}
}

func TestErrorEnvelope(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"code":"23505","message":"duplicate key value violates unique constraint"}`)
	}))

	err := c.InsertProducts(context.Background(), []scrape.Product{{ID: 1, Title: "x"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if want := "duplicate key"; !strings.Contains(err.Error(), want) {
		t.Fatalf("error %q should mention %q", err, want)
	}
}
