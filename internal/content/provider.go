// Package content composes the per-domain stores into one facade. The auth
// domain is built first; the domains that depend on the current user are
// re-bound whenever it changes.
package content

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"storefront/internal/api"
	tokens "storefront/internal/common/auth"
	"storefront/internal/common/errors"
	"storefront/internal/common/logger"
	"storefront/internal/domains/auth"
	"storefront/internal/domains/blog"
	"storefront/internal/domains/career"
	"storefront/internal/domains/order"
	"storefront/internal/domains/product"
	"storefront/internal/domains/software"
	"storefront/internal/domains/user"
	"storefront/internal/models"
	"storefront/internal/store"
)

type Domain string

const (
	Products Domain = "products"
	Software Domain = "software"
	Blog     Domain = "blog"
	Careers  Domain = "careers"
	Orders   Domain = "orders"
	Users    Domain = "users"
)

// Domains lists every fetchable domain in load order.
var Domains = []Domain{Products, Software, Blog, Careers, Orders, Users}

type Options struct {
	// Lazy defers each domain's first fetch until Ensure is called for it.
	Lazy bool
	// Store is the base configuration handed to every domain store.
	Store  store.Options
	Logger logger.Logger
}

type Provider struct {
	opts   Options
	logger logger.Logger

	auth     *auth.Context
	products *product.Context
	software *software.Context
	blog     *blog.Context
	careers  *career.Context
	orders   *order.Context
	users    *user.Context

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// syncMu serializes user re-binds, refetches included.
	syncMu sync.Mutex

	mu     sync.Mutex
	loaded map[Domain]bool
	// inflight counts running fetches per domain; bindGen changes on every
	// user re-bind.
	inflight map[Domain]int
	bindGen  uint64
	bound    *models.User
	closed   bool
}

// New wires the domains over services. The auth watcher starts immediately
// and runs until Close.
func New(services *api.Services, tokenStore tokens.TokenStore, opts Options) *Provider {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if opts.Store.Logger == nil {
		opts.Store.Logger = log
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Provider{
		opts:   opts,
		logger: log,
		ctx:    ctx,
		cancel: cancel,
		loaded:   map[Domain]bool{},
		inflight: map[Domain]int{},
	}

	p.auth = auth.New(services.Auth, tokenStore, log)
	current := p.auth.CurrentUser()
	p.bound = current

	p.products = product.New(services.Products, named(opts.Store, string(Products)))
	p.software = software.New(services.Software, named(opts.Store, string(Software)))
	p.blog = blog.New(services.Blog, named(opts.Store, string(Blog)))
	p.careers = career.New(services.Careers.Jobs, services.Careers.Applications, current, opts.Store)
	p.orders = order.New(services.Orders, current, private(opts.Store, string(Orders)))
	p.users = user.New(services.Users, current, private(opts.Store, string(Users)))

	updates := p.auth.Subscribe()
	p.wg.Add(1)
	go p.watchAuth(updates)

	return p
}

func named(opts store.Options, name string) store.Options {
	opts.Name = name
	return opts
}

// private is named for stores holding one viewer's data; their lists stay
// out of the shared snapshot cache.
func private(opts store.Options, name string) store.Options {
	opts = named(opts, name)
	opts.Snapshots = nil
	return opts
}

// ==========================
// Accessors
// ==========================

func (p *Provider) Auth() *auth.Context         { return p.auth }
func (p *Provider) Products() *product.Context  { return p.products }
func (p *Provider) Software() *software.Context { return p.software }
func (p *Provider) Blog() *blog.Context         { return p.blog }
func (p *Provider) Careers() *career.Context    { return p.careers }
func (p *Provider) Orders() *order.Context      { return p.orders }
func (p *Provider) Users() *user.Context        { return p.users }

func (p *Provider) Lazy() bool { return p.opts.Lazy }

// ==========================
// Loading
// ==========================

// Load restores the session and, unless lazy, fetches every domain
// concurrently. A failing domain records its error and does not stop the
// others; only cancellation aborts Load.
func (p *Provider) Load(ctx context.Context) error {
	if p.isClosed() {
		return errors.ErrClosed
	}

	if err := p.auth.Restore(ctx); err != nil {
		if errors.IsCanceled(err) {
			return err
		}
		p.logger.Warn("Session restore failed", map[string]interface{}{"error": err})
	}
	p.syncUser(ctx, false)

	if p.opts.Lazy {
		return nil
	}

	p.hydrate(ctx, Domains...)

	g, gctx := errgroup.WithContext(ctx)
	for _, d := range Domains {
		g.Go(func() error {
			return p.fetch(gctx, d)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: load", errors.ErrCanceled)
	}
	return nil
}

// Ensure fetches d once. Later calls are no-ops until Refresh.
func (p *Provider) Ensure(ctx context.Context, d Domain) error {
	if p.isClosed() {
		return errors.ErrClosed
	}
	p.mu.Lock()
	done := p.loaded[d]
	p.mu.Unlock()
	if done {
		return nil
	}

	p.hydrate(ctx, d)
	if err := p.fetch(ctx, d); err != nil {
		return err
	}
	return p.domainErr(d)
}

// Refresh refetches d regardless of earlier loads.
func (p *Provider) Refresh(ctx context.Context, d Domain) error {
	p.mu.Lock()
	delete(p.loaded, d)
	p.mu.Unlock()
	return p.Ensure(ctx, d)
}

// fetch runs one domain fetch. Domain failures stay in the domain's state;
// only cancellation is returned. A fetch overtaken by a user re-bind does
// not mark the domain loaded.
func (p *Provider) fetch(ctx context.Context, d Domain) error {
	p.mu.Lock()
	gen := p.bindGen
	p.inflight[d]++
	p.mu.Unlock()

	err := p.fetchDomain(ctx, d)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inflight[d]--

	switch {
	case errors.IsCanceled(err):
		return err
	case err != nil:
		p.logger.Warn("Domain fetch failed", map[string]interface{}{
			"domain": string(d),
			"error":  err,
		})
		return nil
	case ctx.Err() != nil:
		return nil
	case userScoped(d) && gen != p.bindGen:
		return nil
	}
	p.loaded[d] = true
	return nil
}

func userScoped(d Domain) bool {
	return d == Orders || d == Users || d == Careers
}

func (p *Provider) fetchDomain(ctx context.Context, d Domain) error {
	switch d {
	case Products:
		return p.products.Fetch(ctx)
	case Software:
		return p.software.Fetch(ctx)
	case Blog:
		return p.blog.Fetch(ctx)
	case Careers:
		return p.careers.Fetch(ctx)
	case Orders:
		return p.orders.Fetch(ctx)
	case Users:
		return p.users.Fetch(ctx)
	}
	return fmt.Errorf("unknown domain %q", d)
}

// hydrate seeds the public catalog domains from snapshots.
func (p *Provider) hydrate(ctx context.Context, domains ...Domain) {
	if p.opts.Store.Snapshots == nil {
		return
	}
	for _, d := range domains {
		var err error
		switch d {
		case Products:
			_, err = p.products.Hydrate(ctx)
		case Software:
			_, err = p.software.Hydrate(ctx)
		case Blog:
			_, err = p.blog.Hydrate(ctx)
		case Careers:
			_, err = p.careers.Jobs().Hydrate(ctx)
		}
		if err != nil {
			p.logger.Debug("Snapshot hydrate skipped", map[string]interface{}{
				"domain": string(d),
				"error":  err,
			})
		}
	}
}

// ==========================
// Current user
// ==========================

func (p *Provider) watchAuth(updates <-chan *models.User) {
	defer p.wg.Done()
	for range updates {
		p.syncUser(p.ctx, true)
	}
}

// syncUser re-binds the user-dependent domains when the signed-in user
// changed since the last bind. With refetch, domains that were loaded or
// loading fetch again for the new user.
func (p *Provider) syncUser(ctx context.Context, refetch bool) {
	p.syncMu.Lock()
	defer p.syncMu.Unlock()

	current := p.auth.CurrentUser()

	p.mu.Lock()
	if p.closed || sameUser(p.bound, current) {
		p.mu.Unlock()
		return
	}
	p.bound = current
	p.bindGen++
	// Domains loaded or loading for the previous user are fetched again.
	stale := map[Domain]bool{}
	for _, d := range []Domain{Orders, Users, Careers} {
		stale[d] = p.loaded[d] || p.inflight[d] > 0
		delete(p.loaded, d)
	}
	p.mu.Unlock()

	p.logger.Debug("Current user changed", map[string]interface{}{
		"authenticated": current != nil,
	})

	p.orders.BindUser(current)
	p.users.BindUser(current)
	p.careers.BindUser(current)

	if !refetch {
		return
	}

	for _, d := range []Domain{Orders, Users, Careers} {
		if stale[d] {
			if err := p.fetch(ctx, d); err != nil && !errors.IsCanceled(err) {
				p.logger.Warn("Refetch after user change failed", map[string]interface{}{
					"domain": string(d),
					"error":  err,
				})
			}
		}
	}
}

func sameUser(a, b *models.User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID && a.Role == b.Role
}

// ==========================
// Aggregate state
// ==========================

type DomainSummary struct {
	Count   int    `json:"count"`
	Loading bool   `json:"loading"`
	Loaded  bool   `json:"loaded"`
	Error   string `json:"error,omitempty"`
}

type Summary struct {
	User    *models.User             `json:"user,omitempty"`
	Lazy    bool                     `json:"lazy"`
	Domains map[Domain]DomainSummary `json:"domains"`
}

func (p *Provider) Summary() Summary {
	p.mu.Lock()
	loaded := make(map[Domain]bool, len(p.loaded))
	for d, v := range p.loaded {
		loaded[d] = v
	}
	p.mu.Unlock()

	s := Summary{
		User:    p.auth.CurrentUser(),
		Lazy:    p.opts.Lazy,
		Domains: make(map[Domain]DomainSummary, len(Domains)),
	}
	for _, d := range Domains {
		ds := DomainSummary{
			Count:   p.count(d),
			Loading: p.domainLoading(d),
			Loaded:  loaded[d],
		}
		if err := p.domainErr(d); err != nil {
			ds.Error = err.Error()
		}
		s.Domains[d] = ds
	}
	return s
}

// Loading reports whether the session or any domain is loading.
func (p *Provider) Loading() bool {
	if p.auth.Loading() {
		return true
	}
	for _, d := range Domains {
		if p.domainLoading(d) {
			return true
		}
	}
	return false
}

// Errors returns the current error of every failing domain.
func (p *Provider) Errors() map[Domain]error {
	out := map[Domain]error{}
	for _, d := range Domains {
		if err := p.domainErr(d); err != nil {
			out[d] = err
		}
	}
	return out
}

func (p *Provider) count(d Domain) int {
	switch d {
	case Products:
		return p.products.Len()
	case Software:
		return p.software.Len()
	case Blog:
		return p.blog.Len()
	case Careers:
		return p.careers.Jobs().Len()
	case Orders:
		return p.orders.Len()
	case Users:
		return p.users.Len()
	}
	return 0
}

func (p *Provider) domainLoading(d Domain) bool {
	switch d {
	case Products:
		return p.products.Loading()
	case Software:
		return p.software.Loading()
	case Blog:
		return p.blog.Loading()
	case Careers:
		return p.careers.Loading()
	case Orders:
		return p.orders.Loading()
	case Users:
		return p.users.Loading()
	}
	return false
}

func (p *Provider) domainErr(d Domain) error {
	switch d {
	case Products:
		return p.products.Err()
	case Software:
		return p.software.Err()
	case Blog:
		return p.blog.Err()
	case Careers:
		return p.careers.Err()
	case Orders:
		return p.orders.Err()
	case Users:
		return p.users.Err()
	}
	return nil
}

// ==========================
// Lifecycle
// ==========================

func (p *Provider) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close aborts every in-flight request, stops the auth watcher and closes
// all domains.
func (p *Provider) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.products.Close()
	p.software.Close()
	p.blog.Close()
	p.careers.Close()
	p.orders.Close()
	p.users.Close()
	p.auth.Close()
	p.wg.Wait()
}
