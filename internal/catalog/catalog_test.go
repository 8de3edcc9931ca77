package catalog

import "testing"

func TestUnitPrice(t *testing.T) {
	p := &Product{
		ID:    "glenmor-12",
		Price: map[string]float64{"GBP": 42.50, "USD": 54.00, "EUR": 49.00},
	}

	tests := []struct {
		currency string
		want     int64
	}{
		{"GBP", 4250},
		{"USD", 5400},
		{"EUR", 4900},
		{"JPY", 5400},  // JPY orders price from the USD list
		{"AUD", 4250},  // unknown currency falls back to GBP
	}

	for _, tt := range tests {
		if got := p.UnitPrice(tt.currency); got != tt.want {
			t.Errorf("UnitPrice(%s) = %d, want %d", tt.currency, got, tt.want)
		}
	}
}

func TestUnitPriceNoUsablePrice(t *testing.T) {
	p := &Product{ID: "mystery", Price: map[string]float64{"CHF": 10}}
	if got := p.UnitPrice("USD"); got != 0 {
		t.Errorf("UnitPrice(USD) = %d, want 0", got)
	}
}

func TestStaticLookup(t *testing.T) {
	s := NewStatic(DemoProducts())

	p, ok := s.Product("glenmor-12")
	if !ok {
		t.Fatal("Product(glenmor-12) not found")
	}
	if p.Title == "" {
		t.Error("product title is empty")
	}

	if _, ok := s.Product("nope"); ok {
		t.Error("Product(nope) found, want missing")
	}

	if got := len(s.All()); got != len(DemoProducts()) {
		t.Errorf("All() returned %d products, want %d", got, len(DemoProducts()))
	}
}

func TestStaticSearch(t *testing.T) {
	s := NewStatic([]Product{
		{ID: "a-gin", Title: "Northlight Gin", Category: "gin"},
		{ID: "b-whisky", Title: "Glenmor 12", Category: "whisky"},
		{ID: "c-whisky", Title: "Kilbrae Reserve", Category: "whisky"},
	})

	tests := []struct {
		name     string
		query    string
		category string
		want     int
	}{
		{"all", "", "", 3},
		{"by category", "", "whisky", 2},
		{"by title", "glenmor", "", 1},
		{"query and category", "kilbrae", "whisky", 1},
		{"no match", "rum", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(s.Search(tt.query, tt.category)); got != tt.want {
				t.Errorf("Search(%q, %q) returned %d, want %d", tt.query, tt.category, got, tt.want)
			}
		})
	}
}
