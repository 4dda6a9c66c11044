package model

// Product is one catalog entry. Values handed to callers are copies;
// a Product is immutable once indexed and is replaced via delete+re-add.
type Product struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	ImagePath string         `json:"image_path"`
	Category  *string        `json:"category,omitempty"`
	Price     *float64       `json:"price,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the product.
func (p Product) Clone() Product {
	out := p
	if p.Category != nil {
		c := *p.Category
		out.Category = &c
	}
	if p.Price != nil {
		v := *p.Price
		out.Price = &v
	}
	if p.Metadata != nil {
		out.Metadata = make(map[string]any, len(p.Metadata))
		for k, v := range p.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// SearchResult pairs a product with its client-facing similarity in [0,1].
type SearchResult struct {
	Product    Product `json:"product"`
	Similarity float32 `json:"similarity_score"`
}

// Position selects which end of the ordered catalog a new product enters.
//
// Interactive additions go to the front so "most recent first" listings show
// them immediately; bulk ingestion appends to the back.
type Position int

const (
	// PositionBack appends the product to the end of the ordered catalog.
	PositionBack Position = iota

	// PositionFront inserts the product at the start of the ordered catalog.
	PositionFront
)

func (p Position) String() string {
	switch p {
	case PositionBack:
		return "back"
	case PositionFront:
		return "front"
	default:
		return "unknown"
	}
}

// CatalogPage is one page of an ordered catalog listing.
type CatalogPage struct {
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalItems int       `json:"total_items"`
	TotalPages int       `json:"total_pages"`
	Items      []Product `json:"items"`
}

// CatalogStats summarizes the live catalog and its configuration.
type CatalogStats struct {
	TotalProducts       int      `json:"total_products"`
	Model               string   `json:"model"`
	FeatureDim          int      `json:"feature_dim"`
	SearchMinSimilarity float32  `json:"search_min_similarity"`
	ResultsPageSize     int      `json:"results_page_size"`
	SupportedFormats    []string `json:"supported_formats"`
	CatalogPageSize     int      `json:"catalog_default_page_size"`
	CatalogMaxPageSize  int      `json:"catalog_max_page_size"`
}

// StartupReport describes how the catalog was brought online.
type StartupReport struct {
	UsedCache   bool    `json:"used_cache"`
	Duration    float64 `json:"duration_seconds"`
	CatalogSize int     `json:"catalog_size"`
}
