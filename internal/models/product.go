package models

import (
	"strings"
	"time"
)

type ProductCategory string

const (
	CategoryHardware  ProductCategory = "hardware"
	CategorySoftware  ProductCategory = "software"
	CategoryAccessory ProductCategory = "accessory"
)

// Product is a hardware or bundled product in the catalog.
type Product struct {
	ID             string            `json:"id,omitempty"`
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	Category       ProductCategory   `json:"category"`
	Price          float64           `json:"price"`
	Currency       string            `json:"currency,omitempty"`
	ImageURL       string            `json:"imageUrl,omitempty"`
	Features       []string          `json:"features,omitempty"`
	Specifications map[string]string `json:"specifications,omitempty"`
	InStock        bool              `json:"inStock"`
	Featured       bool              `json:"featured"`
	CreatedAt      *time.Time        `json:"createdAt,omitempty"`
	UpdatedAt      *time.Time        `json:"updatedAt,omitempty"`
}

func (p Product) GetID() string { return p.ID }

// ProductFilter narrows a product listing. Zero value matches everything.
type ProductFilter struct {
	Category     ProductCategory
	FeaturedOnly bool
	InStockOnly  bool
	Search       string
}

func (f ProductFilter) Match(p Product) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.FeaturedOnly && !p.Featured {
		return false
	}
	if f.InStockOnly && !p.InStock {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(strings.ToLower(p.Description), needle) {
			return false
		}
	}
	return true
}

const ProductSchema = `{
  "type": "object",
  "required": ["name", "category", "price"],
  "properties": {
    "name":     {"type": "string", "minLength": 1, "maxLength": 200},
    "category": {"type": "string", "enum": ["hardware", "software", "accessory"]},
    "price":    {"type": "number", "minimum": 0},
    "currency": {"type": "string", "pattern": "^[A-Z]{3}$"},
    "imageUrl": {"type": "string"},
    "features": {"type": ["array", "null"], "items": {"type": "string"}}
  }
}`
