package scrape

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// The storefront runs the Boost "Search & Filter" app, which embeds one
// JSON blob per product in the page markup.
const (
	productScriptType  = "application/json"
	productScriptClass = "bc-sf-filter-product-script"
)

// ParseProducts extracts product JSON blobs from a collection page.
//
// Malformed product tags are counted in skipped rather than failing the
// whole page; a page with no product tags at all yields (nil, 0, nil).
func ParseProducts(r io.Reader) (products []Product, skipped int, err error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, 0, fmt.Errorf("parse html: %w", err)
	}

	for _, n := range findProductScripts(doc) {
		raw := strings.TrimSpace(textContent(n))
		if raw == "" {
			skipped++
			continue
		}
		var p Product
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			skipped++
			continue
		}
		if p.ID == 0 {
			skipped++
			continue
		}
		products = append(products, p)
	}
	return products, skipped, nil
}

func findProductScripts(doc *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" && isProductScript(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func isProductScript(n *html.Node) bool {
	var typ, class string
	for _, a := range n.Attr {
		switch a.Key {
		case "type":
			typ = a.Val
		case "class":
			class = a.Val
		}
	}
	if !strings.EqualFold(strings.TrimSpace(typ), productScriptType) {
		return false
	}
	for _, c := range strings.Fields(class) {
		if c == productScriptClass {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// Dedupe removes repeated product ids, keeping first occurrence order.
// The storefront lists the same product under multiple collections.
func Dedupe(in []Product) []Product {
	seen := make(map[int64]struct{}, len(in))
	out := make([]Product, 0, len(in))
	for _, p := range in {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}
