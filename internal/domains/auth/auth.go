// Package auth holds the signed-in user and keeps the persisted bearer
// token in step with it.
package auth

import (
	"context"
	"strings"
	"sync"

	tokens "storefront/internal/common/auth"
	"storefront/internal/common/errors"
	"storefront/internal/common/logger"
	"storefront/internal/common/validation"
	"storefront/internal/models"
)

var (
	credentialsSchema  = validation.MustCompile("credentials", models.CredentialsSchema)
	registrationSchema = validation.MustCompile("registration", models.RegistrationSchema)
)

// Backend is the session API.
type Backend interface {
	Login(ctx context.Context, creds models.Credentials) (models.AuthResponse, error)
	Register(ctx context.Context, reg models.Registration) (models.AuthResponse, error)
	Me(ctx context.Context) (models.User, error)
	Logout(ctx context.Context) error
}

type Context struct {
	backend Backend
	tokens  tokens.TokenStore
	logger  logger.Logger

	mu      sync.Mutex
	user    *models.User
	loading bool
	err     *errors.ApiError
	closed  bool
	subs    []chan *models.User
}

func New(backend Backend, store tokens.TokenStore, log logger.Logger) *Context {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Context{
		backend: backend,
		tokens:  store,
		logger:  log.With(map[string]interface{}{"resource": "auth"}),
	}
}

// ==========================
// Session operations
// ==========================

func (c *Context) Login(ctx context.Context, creds models.Credentials) (*models.User, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if result := credentialsSchema.Validate(creds); !result.Valid {
		return nil, errors.NewValidationError(strings.Join(result.GetErrorMessages(), "; "))
	}

	c.setLoading(true)
	resp, err := c.backend.Login(ctx, creds)
	return c.establish(ctx, "login", resp, err)
}

func (c *Context) Register(ctx context.Context, reg models.Registration) (*models.User, error) {
	reg.Email = strings.TrimSpace(reg.Email)
	if result := registrationSchema.Validate(reg); !result.Valid {
		return nil, errors.NewValidationError(strings.Join(result.GetErrorMessages(), "; "))
	}

	c.setLoading(true)
	resp, err := c.backend.Register(ctx, reg)
	return c.establish(ctx, "register", resp, err)
}

// establish persists the token before publishing the user so requests made
// by subscribers are already authenticated.
func (c *Context) establish(ctx context.Context, op string, resp models.AuthResponse, err error) (*models.User, error) {
	if err != nil {
		c.setLoading(false)
		if errors.IsCanceled(err) {
			return nil, err
		}
		return nil, c.fail(op, err)
	}

	if resp.Token == "" {
		c.setLoading(false)
		return nil, c.fail(op, errors.NewApiError(0, "authentication response carried no token", nil))
	}

	if err := c.tokens.Set(ctx, resp.Token); err != nil {
		c.setLoading(false)
		return nil, err
	}

	user := resp.User
	c.setUser(&user, nil)
	c.logger.Info("Signed in", map[string]interface{}{
		"operation": op,
		"user_id":   user.ID,
		"role":      user.Role,
	})
	return &user, nil
}

// Logout tells the server best-effort, then always drops the token and the
// user.
func (c *Context) Logout(ctx context.Context) error {
	if err := c.backend.Logout(ctx); err != nil && !errors.IsCanceled(err) {
		c.logger.Warn("Server logout failed", map[string]interface{}{"error": err})
	}

	clearErr := c.tokens.Clear(ctx)
	c.setUser(nil, nil)
	return clearErr
}

// Restore resumes the session of a persisted token. A token the server
// answers with 401 is cleared and leaves the user signed out without an
// error. Any other failure, 403 included, keeps the token.
func (c *Context) Restore(ctx context.Context) error {
	token, err := c.tokens.Get(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		c.setUser(nil, nil)
		return nil
	}

	c.setLoading(true)
	me, err := c.backend.Me(ctx)
	switch {
	case err == nil:
		c.setUser(&me, nil)
		return nil
	case errors.IsCanceled(err):
		c.setLoading(false)
		return err
	case errors.IsUnauthorized(err):
		c.logger.Info("Stored token rejected, signing out", nil)
		if clearErr := c.tokens.Clear(ctx); clearErr != nil {
			c.logger.Warn("Failed to clear token", map[string]interface{}{"error": clearErr})
		}
		c.setUser(nil, nil)
		return nil
	default:
		c.setLoading(false)
		return c.fail("restore", err)
	}
}

// ==========================
// State
// ==========================

// CurrentUser returns a copy of the signed-in user, or nil.
func (c *Context) CurrentUser() *models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyUser(c.user)
}

func (c *Context) IsAuthenticated() bool {
	return c.CurrentUser() != nil
}

func (c *Context) IsAdmin() bool {
	u := c.CurrentUser()
	return u != nil && u.IsAdmin()
}

func (c *Context) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *Context) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		return nil
	}
	return c.err
}

// Subscribe returns a channel receiving the current user and then every
// change of user. Slow readers only see the latest value. Close closes it.
func (c *Context) Subscribe() <-chan *models.User {
	ch := make(chan *models.User, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch
	}
	ch <- copyUser(c.user)
	c.subs = append(c.subs, ch)
	return ch
}

func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, ch := range c.subs {
		close(ch)
	}
	c.subs = nil
}

func (c *Context) setLoading(loading bool) {
	c.mu.Lock()
	c.loading = loading
	c.mu.Unlock()
}

func (c *Context) setUser(user *models.User, apiErr *errors.ApiError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = copyUser(user)
	c.err = apiErr
	c.loading = false
	if c.closed {
		return
	}
	for _, ch := range c.subs {
		publish(ch, copyUser(user))
	}
}

func (c *Context) fail(op string, err error) *errors.ApiError {
	apiErr := errors.Normalize(err)
	c.mu.Lock()
	c.err = apiErr
	c.mu.Unlock()
	c.logger.Error("Auth operation failed", map[string]interface{}{
		"operation": op,
		"status":    apiErr.Status,
		"error":     apiErr.Message,
	})
	return apiErr
}

func publish(ch chan *models.User, user *models.User) {
	select {
	case ch <- user:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- user:
	default:
	}
}

func copyUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}
