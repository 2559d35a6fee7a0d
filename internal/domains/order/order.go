// Package order holds the orders visible to the current user: every order
// for admins, their own orders for customers, none when signed out.
package order

import (
	"context"
	"net/url"
	"sync"

	"storefront/internal/common/errors"
	"storefront/internal/common/validation"
	"storefront/internal/models"
	"storefront/internal/store"
)

var schema = validation.MustCompile("order", models.OrderSchema)

// Backend is the order resource plus its status endpoint.
type Backend interface {
	store.Backend[models.Order]
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (models.Order, error)
}

type Context struct {
	*store.Store[models.Order]
	backend Backend

	mu   sync.RWMutex
	user *models.User
}

func New(backend Backend, user *models.User, opts store.Options) *Context {
	if opts.Name == "" {
		opts.Name = "orders"
	}
	if opts.Schema == nil {
		opts.Schema = schema
	}
	return &Context{
		Store:   store.New[models.Order](backend, opts),
		backend: backend,
		user:    user,
	}
}

func (c *Context) User() *models.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// BindUser changes the viewer without fetching. Orders of the previous
// viewer are dropped unless the viewer is unchanged.
func (c *Context) BindUser(user *models.User) {
	c.mu.Lock()
	prev := c.user
	c.user = user
	c.mu.Unlock()
	if !sameViewer(prev, user) {
		c.Reset()
	}
}

// SetUser changes the viewer and refetches, aborting any fetch made for
// the previous viewer.
func (c *Context) SetUser(ctx context.Context, user *models.User) error {
	c.BindUser(user)
	return c.Fetch(ctx)
}

// Fetch lists the viewer's orders. Without a viewer the store is cleared
// and no request is made.
func (c *Context) Fetch(ctx context.Context) error {
	user := c.User()
	switch {
	case user == nil:
		c.Reset()
		return nil
	case user.IsAdmin():
		return c.FetchWith(ctx, nil)
	default:
		return c.FetchWith(ctx, url.Values{"userId": {user.ID}})
	}
}

// PlaceOrder creates a pending order for the viewer with a recomputed
// total.
func (c *Context) PlaceOrder(ctx context.Context, order models.Order) (models.Order, error) {
	user := c.User()
	if user == nil {
		return models.Order{}, errors.NewNotAuthenticatedError()
	}
	order.ID = ""
	if order.UserID == "" || !user.IsAdmin() {
		order.UserID = user.ID
	}
	if order.Status == "" {
		order.Status = models.OrderPending
	}
	order.RecalculateTotal()
	return c.Save(ctx, order)
}

// UpdateStatus moves an order through its lifecycle with
// PATCH /orders/{id}/status and replaces the local copy.
func (c *Context) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (models.Order, error) {
	if !models.ValidOrderStatus(status) {
		return models.Order{}, errors.NewValidationError("unknown order status: " + string(status))
	}
	if current, ok := c.Find(id); ok && !models.CanTransition(current.Status, status) {
		return models.Order{}, errors.NewInvalidTransitionError(string(current.Status), string(status))
	}

	updated, err := c.backend.UpdateStatus(ctx, id, status)
	if err != nil {
		if errors.IsCanceled(err) {
			return models.Order{}, err
		}
		c.SetError(err)
		return models.Order{}, errors.Normalize(err)
	}

	if current, ok := c.Find(id); ok && len(updated.Items) == 0 {
		// The endpoint may answer with a partial order.
		current.Status = updated.Status
		if updated.UpdatedAt != nil {
			current.UpdatedAt = updated.UpdatedAt
		}
		updated = current
	}
	c.Put(updated)
	return updated, nil
}

func (c *Context) ByStatus(status models.OrderStatus) []models.Order {
	return c.Filter(func(o models.Order) bool { return o.Status == status })
}

func sameViewer(a, b *models.User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID && a.Role == b.Role
}
