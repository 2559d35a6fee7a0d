// Package blog holds blog posts, drafts included. Readers use Published.
package blog

import (
	"sort"

	"storefront/internal/common/validation"
	"storefront/internal/models"
	"storefront/internal/store"
)

var schema = validation.MustCompile("blog", models.BlogPostSchema)

type Context struct {
	*store.Store[models.BlogPost]
}

func New(backend store.Backend[models.BlogPost], opts store.Options) *Context {
	if opts.Name == "" {
		opts.Name = "blog"
	}
	if opts.Schema == nil {
		opts.Schema = schema
	}
	return &Context{Store: store.New[models.BlogPost](backend, opts)}
}

// Published returns published posts, newest first. Posts without a
// publication date sort last.
func (c *Context) Published() []models.BlogPost {
	posts := c.Filter(models.BlogPost.IsPublished)
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i].PublishedAt, posts[j].PublishedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.After(*b)
	})
	return posts
}

func (c *Context) BySlug(slug string) (models.BlogPost, bool) {
	matches := c.Filter(func(p models.BlogPost) bool { return p.Slug == slug })
	if len(matches) == 0 {
		return models.BlogPost{}, false
	}
	return matches[0], true
}

func (c *Context) ByTag(tag string) []models.BlogPost {
	return c.Filter(func(p models.BlogPost) bool { return p.HasTag(tag) })
}
