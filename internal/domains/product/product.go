// Package product holds the catalog of hardware and bundled products.
package product

import (
	"storefront/internal/common/validation"
	"storefront/internal/models"
	"storefront/internal/store"
)

var schema = validation.MustCompile("product", models.ProductSchema)

// Context is the product catalog store. Fetch, Save and Delete come from
// the embedded store.
type Context struct {
	*store.Store[models.Product]
}

func New(backend store.Backend[models.Product], opts store.Options) *Context {
	if opts.Name == "" {
		opts.Name = "products"
	}
	if opts.Schema == nil {
		opts.Schema = schema
	}
	return &Context{Store: store.New[models.Product](backend, opts)}
}

func (c *Context) Featured() []models.Product {
	return c.Filtered(models.ProductFilter{FeaturedOnly: true})
}

func (c *Context) ByCategory(category models.ProductCategory) []models.Product {
	return c.Filtered(models.ProductFilter{Category: category})
}

func (c *Context) Filtered(filter models.ProductFilter) []models.Product {
	return c.Filter(filter.Match)
}
