// Package user is the admin user directory.
package user

import (
	"context"
	"sync"

	"storefront/internal/common/errors"
	"storefront/internal/common/validation"
	"storefront/internal/models"
	"storefront/internal/store"
)

var schema = validation.MustCompile("user", models.UserSchema)

type Context struct {
	*store.Store[models.User]

	mu     sync.RWMutex
	viewer *models.User
}

func New(backend store.Backend[models.User], viewer *models.User, opts store.Options) *Context {
	if opts.Name == "" {
		opts.Name = "users"
	}
	if opts.Schema == nil {
		opts.Schema = schema
	}
	return &Context{Store: store.New[models.User](backend, opts), viewer: viewer}
}

func (c *Context) isAdmin() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.viewer != nil && c.viewer.IsAdmin()
}

// BindUser changes the viewer without fetching.
func (c *Context) BindUser(viewer *models.User) {
	c.mu.Lock()
	c.viewer = viewer
	c.mu.Unlock()
	if !c.isAdmin() {
		c.Reset()
	}
}

func (c *Context) SetUser(ctx context.Context, viewer *models.User) error {
	c.BindUser(viewer)
	return c.Fetch(ctx)
}

// Fetch lists all users. Non-admin viewers get an empty directory and no
// request is made.
func (c *Context) Fetch(ctx context.Context) error {
	if !c.isAdmin() {
		c.Reset()
		return nil
	}
	return c.Store.Fetch(ctx)
}

func (c *Context) Save(ctx context.Context, u models.User) (models.User, error) {
	if !c.isAdmin() {
		return models.User{}, errors.NewForbiddenError("save user")
	}
	return c.Store.Save(ctx, u)
}

func (c *Context) Delete(ctx context.Context, id string) error {
	if !c.isAdmin() {
		return errors.NewForbiddenError("delete user")
	}
	return c.Store.Delete(ctx, id)
}

func (c *Context) Admins() []models.User {
	return c.Filter(models.User.IsAdmin)
}
