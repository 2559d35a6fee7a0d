package software

import (
	"storefront/internal/common/validation"
	"storefront/internal/models"
	"storefront/internal/store"
)

var schema = validation.MustCompile("software", models.SoftwareProductSchema)

type Context struct {
	*store.Store[models.SoftwareProduct]
}

func New(backend store.Backend[models.SoftwareProduct], opts store.Options) *Context {
	if opts.Name == "" {
		opts.Name = "software"
	}
	if opts.Schema == nil {
		opts.Schema = schema
	}
	return &Context{Store: store.New[models.SoftwareProduct](backend, opts)}
}

func (c *Context) Featured() []models.SoftwareProduct {
	return c.Filter(func(s models.SoftwareProduct) bool { return s.Featured })
}

func (c *Context) ByPlatform(platform string) []models.SoftwareProduct {
	return c.Filter(func(s models.SoftwareProduct) bool { return s.SupportsPlatform(platform) })
}
