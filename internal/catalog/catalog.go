// Package catalog resolves product ids to titles, prices, and images.
// The session engine treats it as an external collaborator behind the
// Lookup interface; the built-in static catalog stands in for a real
// product service.
package catalog

import (
	"strings"

	"ucp-merchant/internal/model"
)

// Product describes a catalog entry. Prices are major units keyed by
// currency code; UnitPrice converts to minor units.
type Product struct {
	ID       string             `json:"id"`
	Title    string             `json:"title"`
	Category string             `json:"category"`
	ABV      float64            `json:"abv,omitempty"`
	Volume   string             `json:"volume,omitempty"`
	Price    map[string]float64 `json:"price"`
	ImageURL string             `json:"image_url,omitempty"`
}

// UnitPrice returns the product's unit price in minor units for the given
// currency. Resolution order: requested currency, USD for JPY price lists
// (JPY carries no local price), then GBP as the canonical fallback. A
// product with no usable price resolves to zero.
func (p *Product) UnitPrice(currency string) int64 {
	key := currency
	if key == "JPY" {
		key = "USD"
	}
	if major, ok := p.Price[key]; ok {
		return model.PriceToMinorUnits(major)
	}
	if major, ok := p.Price["GBP"]; ok {
		return model.PriceToMinorUnits(major)
	}
	return 0
}

// Lookup resolves product ids. Implementations must be safe for
// concurrent use.
type Lookup interface {
	// Product returns the product for id, or false if unknown.
	Product(id string) (*Product, bool)
}

// Static is an in-memory catalog built once at startup.
type Static struct {
	byID  map[string]*Product
	order []string
}

// NewStatic builds a catalog from the given products. Later duplicates
// of an id replace earlier ones.
func NewStatic(products []Product) *Static {
	s := &Static{byID: make(map[string]*Product, len(products))}
	for i := range products {
		p := products[i]
		if _, exists := s.byID[p.ID]; !exists {
			s.order = append(s.order, p.ID)
		}
		s.byID[p.ID] = &p
	}
	return s
}

// Product implements Lookup.
func (s *Static) Product(id string) (*Product, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// All returns every product in insertion order.
func (s *Static) All() []Product {
	out := make([]Product, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.byID[id])
	}
	return out
}

// Search filters products by a free-text query and/or category.
// Used by the MCP discovery tools; the checkout engine never searches.
func (s *Static) Search(query, category string) []Product {
	query = strings.ToLower(strings.TrimSpace(query))
	var out []Product
	for _, id := range s.order {
		p := s.byID[id]
		if category != "" && p.Category != category {
			continue
		}
		if query != "" && !matchesQuery(p, query) {
			continue
		}
		out = append(out, *p)
	}
	return out
}

func matchesQuery(p *Product, query string) bool {
	return strings.Contains(strings.ToLower(p.Title), query) ||
		strings.Contains(strings.ToLower(p.Category), query) ||
		strings.Contains(strings.ToLower(p.ID), query)
}

var _ Lookup = (*Static)(nil)
