package catalog

// DemoProducts is the built-in catalog used when no product file is
// configured. Prices are major units per currency.
func DemoProducts() []Product {
	return []Product{
		{
			ID:       "glenmor-12",
			Title:    "Glenmor 12 Year Single Malt",
			Category: "scotch",
			ABV:      40.0,
			Volume:   "70cl",
			Price:    map[string]float64{"GBP": 42.50, "USD": 54.00, "EUR": 49.00},
			ImageURL: "/images/glenmor-12.png",
		},
		{
			ID:       "glenmor-18",
			Title:    "Glenmor 18 Year Single Malt",
			Category: "scotch",
			ABV:      43.0,
			Volume:   "70cl",
			Price:    map[string]float64{"GBP": 115.00, "USD": 145.00, "EUR": 132.00},
			ImageURL: "/images/glenmor-18.png",
		},
		{
			ID:       "kilbrae-reserve",
			Title:    "Kilbrae Reserve Irish Whiskey",
			Category: "irish-whiskey",
			ABV:      40.0,
			Volume:   "70cl",
			Price:    map[string]float64{"GBP": 34.00, "USD": 43.00, "EUR": 39.00},
			ImageURL: "/images/kilbrae-reserve.png",
		},
		{
			ID:       "northlight-gin",
			Title:    "Northlight Botanical Gin",
			Category: "gin",
			ABV:      42.0,
			Volume:   "70cl",
			Price:    map[string]float64{"GBP": 29.50, "USD": 37.00, "EUR": 34.00},
			ImageURL: "/images/northlight-gin.png",
		},
		{
			ID:       "vela-anejo",
			Title:    "Vela Añejo Tequila",
			Category: "tequila",
			ABV:      38.0,
			Volume:   "70cl",
			Price:    map[string]float64{"GBP": 48.00, "USD": 60.00, "EUR": 55.00},
			ImageURL: "/images/vela-anejo.png",
		},
	}
}
