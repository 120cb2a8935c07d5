package scrape

import "encoding/json"

// Product is one entry from the storefront's embedded filter-product
// JSON. The storefront emits one script tag per product on every
// collection page, so the same product can appear under several
// collections; ID is the dedupe key.
type Product struct {
	ID        int64       `json:"id"`
	Title     string      `json:"title"`
	Handle    string      `json:"handle,omitempty"`
	URL       string      `json:"url,omitempty"`
	Vendor    string      `json:"vendor,omitempty"`
	Available bool        `json:"available,omitempty"`
	PriceMin  json.Number `json:"price_min,omitempty"`
	PriceMax  json.Number `json:"price_max,omitempty"`

	Options []Option `json:"options_with_values,omitempty"`

	// Variants and Images are kept opaque; the backend stores them as
	// text and nothing downstream inspects their structure.
	Variants json.RawMessage `json:"variants,omitempty"`
	Images   json.RawMessage `json:"images,omitempty"`

	// Collection records which configured collection the product was
	// first seen under. Not part of the storefront JSON.
	Collection string `json:"-"`
}

type Option struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// OptionValues flattens all option values in declaration order
// ("90/100, 110/120, Red, Blue").
func (p Product) OptionValues() []string {
	var out []string
	for _, opt := range p.Options {
		for _, v := range opt.Values {
			out = append(out, v)
		}
	}
	return out
}

// Collection is one storefront menu entry to scrape.
type Collection struct {
	Name string
	Href string
}
