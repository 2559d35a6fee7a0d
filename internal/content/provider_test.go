package content

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/api"
	tokens "storefront/internal/common/auth"
	"storefront/internal/common/cache"
	"storefront/internal/common/errors"
	httpclient "storefront/internal/common/http"
	"storefront/internal/common/logger"
	"storefront/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

// platform is a fake backend serving every resource the provider touches.
type platform struct {
	mu       sync.Mutex
	hits     map[string]int
	failing  map[string]int // path -> status
	users    map[string]models.User
	orders   []models.Order
	products []models.Product

	// hold parks matching requests until release is closed.
	hold    func(r *http.Request) bool
	held    chan struct{}
	release chan struct{}
}

func newPlatform() *platform {
	return &platform{
		hits:    map[string]int{},
		failing: map[string]int{},
		users: map[string]models.User{
			"admin-token": {ID: "u-admin", Name: "Ada", Email: "ada@example.com", Role: models.RoleAdmin},
			"alice-token": {ID: "alice", Name: "Alice", Email: "alice@example.com", Role: models.RoleCustomer},
		},
		orders: []models.Order{
			{ID: "o1", UserID: "alice", Status: models.OrderPending},
			{ID: "o2", UserID: "bob", Status: models.OrderShipped},
			{ID: "o3", UserID: "alice", Status: models.OrderDelivered},
		},
		products: []models.Product{
			{ID: "p1", Name: "Router", Category: models.CategoryHardware, Price: 99, Featured: true},
			{ID: "p2", Name: "Cable", Category: models.CategoryAccessory, Price: 5},
		},
	}
}

func (p *platform) count(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits[key]
}

func (p *platform) fail(path string, status int) {
	p.mu.Lock()
	p.failing[path] = status
	p.mu.Unlock()
}

func (p *platform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api")

	p.mu.Lock()
	p.hits[r.Method+" "+path]++
	status, failing := p.failing[path]
	hold := p.hold
	p.mu.Unlock()

	if hold != nil && hold(r) {
		p.held <- struct{}{}
		<-p.release
	}

	if failing {
		writeJSON(w, status, map[string]string{"message": "backend unavailable"})
		return
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	viewer, signedIn := p.users[token]

	switch r.Method + " " + path {
	case "GET /auth/me":
		if !signedIn {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token expired"})
			return
		}
		writeJSON(w, http.StatusOK, viewer)
	case "POST /auth/login":
		var creds models.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		for tok, u := range p.users {
			if u.Email == creds.Email {
				writeJSON(w, http.StatusOK, models.AuthResponse{Token: tok, User: u})
				return
			}
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
	case "POST /auth/logout":
		w.WriteHeader(http.StatusNoContent)
	case "GET /products":
		writeJSON(w, http.StatusOK, p.products)
	case "GET /software":
		writeJSON(w, http.StatusOK, []models.SoftwareProduct{{ID: "s1", Name: "Suite", Version: "1.0", LicenseType: models.LicenseFree}})
	case "GET /blog":
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"data": []models.BlogPost{{ID: "b1", Slug: "hello", Status: models.PostStatusPublished}},
		})
	case "GET /jobs":
		writeJSON(w, http.StatusOK, []models.JobOpening{{ID: "j1", Title: "SRE", Active: true}})
	case "GET /applications":
		writeJSON(w, http.StatusOK, []models.JobApplication{{ID: "a1", JobID: "j1"}})
	case "GET /users":
		users := []models.User{}
		for _, u := range p.users {
			users = append(users, u)
		}
		writeJSON(w, http.StatusOK, users)
	case "GET /orders":
		userID := r.URL.Query().Get("userId")
		orders := []models.Order{}
		for _, o := range p.orders {
			if userID == "" || o.UserID == userID {
				orders = append(orders, o)
			}
		}
		writeJSON(w, http.StatusOK, orders)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no route " + path})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (p *platform) holdRequests(match func(r *http.Request) bool) {
	p.mu.Lock()
	p.hold = match
	p.held = make(chan struct{}, 1)
	p.release = make(chan struct{})
	p.mu.Unlock()
}

func createTestProvider(t *testing.T, token string, lazy bool) (*Provider, *platform) {
	return createTestProviderWithOptions(t, token, Options{Lazy: lazy})
}

func createTestProviderWithOptions(t *testing.T, token string, opts Options) (*Provider, *platform) {
	backend := newPlatform()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	store := tokens.NewMemoryTokenStore()
	require.NoError(t, store.Set(context.Background(), token))

	log := logger.NewTestLogger(t)
	client := httpclient.NewClient(httpclient.Options{
		BaseURL: srv.URL + "/api",
		Timeout: 2 * time.Second,
		Tokens:  store,
		Logger:  log,
	})

	opts.Logger = log
	p := New(api.New(client), store, opts)
	t.Cleanup(p.Close)
	return p, backend
}

// ==========================
// Eager Loading
// ==========================

func TestProvider_LoadSignedOut(t *testing.T) {
	p, backend := createTestProvider(t, "", false)

	require.NoError(t, p.Load(context.Background()))

	assert.False(t, p.Auth().IsAuthenticated())
	assert.Len(t, p.Products().Items(), 2)
	assert.Len(t, p.Software().Items(), 1)
	assert.Len(t, p.Blog().Published(), 1)
	assert.Len(t, p.Careers().ActiveJobs(), 1)
	assert.Empty(t, p.Orders().Items())
	assert.Empty(t, p.Users().Items())

	assert.Equal(t, 0, backend.count("GET /auth/me"))
	assert.Equal(t, 0, backend.count("GET /orders"))
	assert.Equal(t, 0, backend.count("GET /users"))
	assert.Equal(t, 0, backend.count("GET /applications"))
	assert.False(t, p.Loading())
	assert.Empty(t, p.Errors())
}

func TestProvider_LoadAsAdmin(t *testing.T) {
	p, backend := createTestProvider(t, "admin-token", false)

	require.NoError(t, p.Load(context.Background()))

	require.True(t, p.Auth().IsAdmin())
	assert.Equal(t, 1, backend.count("GET /auth/me"))
	assert.Len(t, p.Orders().Items(), 3)
	assert.Len(t, p.Users().Items(), 2)
	assert.Len(t, p.Careers().Applications().Items(), 1)
}

func TestProvider_LoadAsCustomer(t *testing.T) {
	p, _ := createTestProvider(t, "alice-token", false)

	require.NoError(t, p.Load(context.Background()))

	assert.Equal(t, "alice", p.Auth().CurrentUser().ID)
	assert.Len(t, p.Orders().Items(), 2)
	assert.Empty(t, p.Users().Items())
	assert.Empty(t, p.Careers().Applications().Items())
}

func TestProvider_ExpiredTokenIsCleared(t *testing.T) {
	p, backend := createTestProvider(t, "stale-token", false)

	require.NoError(t, p.Load(context.Background()))
	assert.False(t, p.Auth().IsAuthenticated())
	assert.Equal(t, 1, backend.count("GET /auth/me"))
	assert.Empty(t, p.Orders().Items())
}

func TestProvider_DomainFailureIsIsolated(t *testing.T) {
	p, backend := createTestProvider(t, "", false)
	backend.fail("/blog", http.StatusInternalServerError)

	require.NoError(t, p.Load(context.Background()))

	errs := p.Errors()
	require.Contains(t, errs, Blog)
	assert.Equal(t, http.StatusInternalServerError, errors.StatusOf(errs[Blog]))
	assert.Len(t, errs, 1)
	assert.Len(t, p.Products().Items(), 2)

	summary := p.Summary()
	assert.Equal(t, "api error 500: backend unavailable", summary.Domains[Blog].Error)
	assert.False(t, summary.Domains[Blog].Loaded)
	assert.True(t, summary.Domains[Products].Loaded)
	assert.Equal(t, 2, summary.Domains[Products].Count)
}

func TestProvider_LoadCanceled(t *testing.T) {
	p, _ := createTestProvider(t, "", false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Load(ctx)
	assert.True(t, errors.IsCanceled(err))
	assert.Empty(t, p.Products().Items())
}

// ==========================
// Lazy Loading
// ==========================

func TestProvider_LazyEnsure(t *testing.T) {
	p, backend := createTestProvider(t, "alice-token", true)

	require.NoError(t, p.Load(context.Background()))
	assert.True(t, p.Lazy())
	assert.Equal(t, 1, backend.count("GET /auth/me"))
	assert.Equal(t, 0, backend.count("GET /products"))
	assert.Equal(t, 0, backend.count("GET /orders"))

	require.NoError(t, p.Ensure(context.Background(), Products))
	require.NoError(t, p.Ensure(context.Background(), Products))
	assert.Equal(t, 1, backend.count("GET /products"))
	assert.Len(t, p.Products().Featured(), 1)

	require.NoError(t, p.Refresh(context.Background(), Products))
	assert.Equal(t, 2, backend.count("GET /products"))

	require.NoError(t, p.Ensure(context.Background(), Orders))
	assert.Len(t, p.Orders().Items(), 2)
}

func TestProvider_LazyEnsureReportsDomainError(t *testing.T) {
	p, backend := createTestProvider(t, "", true)
	backend.fail("/software", http.StatusBadGateway)

	err := p.Ensure(context.Background(), Software)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, errors.StatusOf(err))

	backend.mu.Lock()
	delete(backend.failing, "/software")
	backend.mu.Unlock()

	require.NoError(t, p.Ensure(context.Background(), Software))
	assert.Len(t, p.Software().Items(), 1)
}

// ==========================
// Current-user dependency
// ==========================

func TestProvider_LoginRebindsUserDomains(t *testing.T) {
	p, backend := createTestProvider(t, "", false)
	require.NoError(t, p.Load(context.Background()))
	require.Empty(t, p.Orders().Items())

	_, err := p.Auth().Login(context.Background(), models.Credentials{Email: "alice@example.com", Password: "pw"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return p.Orders().Len() == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "alice", p.Orders().User().ID)
	assert.Equal(t, 0, backend.count("GET /users"))

	require.NoError(t, p.Auth().Logout(context.Background()))
	require.Eventually(t, func() bool {
		return p.Orders().Len() == 0 && p.Orders().User() == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestProvider_LazyLoginOnlyRefetchesLoadedDomains(t *testing.T) {
	p, backend := createTestProvider(t, "", true)
	require.NoError(t, p.Load(context.Background()))
	require.NoError(t, p.Ensure(context.Background(), Orders))
	assert.Equal(t, 0, backend.count("GET /orders"), "signed-out orders make no request")

	_, err := p.Auth().Login(context.Background(), models.Credentials{Email: "ada@example.com", Password: "pw"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return p.Orders().Len() == 3
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, backend.count("GET /users"))
}

func TestProvider_UserChangeDuringFetchRefetches(t *testing.T) {
	p, backend := createTestProvider(t, "alice-token", true)
	require.NoError(t, p.Load(context.Background()))

	backend.holdRequests(func(r *http.Request) bool {
		return r.URL.Path == "/api/orders" && r.URL.Query().Get("userId") == "alice"
	})
	t.Cleanup(func() { close(backend.release) })

	done := make(chan error, 1)
	go func() { done <- p.Ensure(context.Background(), Orders) }()

	select {
	case <-backend.held:
	case <-time.After(2 * time.Second):
		t.Fatal("orders request for alice never arrived")
	}

	_, err := p.Auth().Login(context.Background(), models.Credentials{Email: "ada@example.com", Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, <-done)

	require.Eventually(t, func() bool {
		return p.Orders().Len() == 3 && p.Summary().Domains[Orders].Loaded
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "u-admin", p.Orders().User().ID)
}

// ==========================
// Snapshots
// ==========================

func TestProvider_SnapshotsSkipViewerData(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	opts := Options{}
	opts.Store.Snapshots = cache.NewSnapshots(rdb, "shop:", time.Minute)
	p, _ := createTestProviderWithOptions(t, "admin-token", opts)

	require.NoError(t, p.Load(context.Background()))
	require.Len(t, p.Orders().Items(), 3)
	require.Len(t, p.Users().Items(), 2)

	for _, key := range []string{"products", "software", "blog", "jobs"} {
		assert.True(t, mr.Exists("shop:snapshot:"+key), key)
	}
	for _, key := range []string{"orders", "users", "applications"} {
		assert.False(t, mr.Exists("shop:snapshot:"+key), key)
	}
}

// ==========================
// Lifecycle
// ==========================

func TestProvider_Close(t *testing.T) {
	p, _ := createTestProvider(t, "", false)
	require.NoError(t, p.Load(context.Background()))

	p.Close()
	p.Close()

	assert.ErrorIs(t, p.Load(context.Background()), errors.ErrClosed)
	assert.ErrorIs(t, p.Ensure(context.Background(), Blog), errors.ErrClosed)
	assert.ErrorIs(t, p.Products().Fetch(context.Background()), errors.ErrClosed)
}

func TestProvider_SummaryJSON(t *testing.T) {
	p, _ := createTestProvider(t, "admin-token", false)
	require.NoError(t, p.Load(context.Background()))

	data, err := json.Marshal(p.Summary())
	require.NoError(t, err)

	var decoded struct {
		User    models.User              `json:"user"`
		Domains map[string]DomainSummary `json:"domains"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "u-admin", decoded.User.ID)
	assert.Len(t, decoded.Domains, len(Domains))
	assert.Equal(t, 3, decoded.Domains["orders"].Count)
}
