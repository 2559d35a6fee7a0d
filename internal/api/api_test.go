package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/common/errors"
	httpclient "storefront/internal/common/http"
	"storefront/internal/common/logger"
	"storefront/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// fakeBackend answers every request with the next canned response and
// records what it received.
type fakeBackend struct {
	t         *testing.T
	requests  []recordedRequest
	responses []cannedResponse
}

type cannedResponse struct {
	status int
	body   string
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.requests = append(f.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.EscapedPath(),
		Query:  r.URL.RawQuery,
		Body:   string(body),
	})

	if len(f.responses) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	_, _ = io.WriteString(w, resp.body)
}

func (f *fakeBackend) last() recordedRequest {
	require.NotEmpty(f.t, f.requests)
	return f.requests[len(f.requests)-1]
}

func createTestServices(t *testing.T, responses ...cannedResponse) (*Services, *fakeBackend) {
	backend := &fakeBackend{t: t, responses: responses}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	client := httpclient.NewClient(httpclient.Options{
		BaseURL: srv.URL + "/api",
		Timeout: 2 * time.Second,
		Logger:  logger.NewTestLogger(t),
	})
	return New(client), backend
}

func ok(body string) cannedResponse { return cannedResponse{status: http.StatusOK, body: body} }

// ==========================
// Generic Resource
// ==========================

func TestResource_CRUDRoutes(t *testing.T) {
	svc, backend := createTestServices(t,
		ok(`[{"id":"p1","name":"Router","category":"hardware","price":99}]`),
		ok(`{"id":"p1","name":"Router","category":"hardware","price":99}`),
		cannedResponse{status: http.StatusCreated, body: `{"id":"p2","name":"Switch","category":"hardware","price":49}`},
		ok(`{"id":"p2","name":"Switch Pro","category":"hardware","price":59}`),
	)
	ctx := context.Background()

	list, err := svc.Products.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, recordedRequest{Method: "GET", Path: "/api/products"}, backend.last())

	got, err := svc.Products.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Router", got.Name)
	assert.Equal(t, "/api/products/p1", backend.last().Path)

	created, err := svc.Products.Create(ctx, models.Product{Name: "Switch", Category: models.CategoryHardware, Price: 49})
	require.NoError(t, err)
	assert.Equal(t, "p2", created.ID)
	assert.Equal(t, "POST", backend.last().Method)
	assert.Equal(t, "/api/products", backend.last().Path)

	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(backend.last().Body), &sent))
	assert.NotContains(t, sent, "id")

	updated, err := svc.Products.Update(ctx, "p2", models.Product{ID: "p2", Name: "Switch Pro", Price: 59})
	require.NoError(t, err)
	assert.Equal(t, "Switch Pro", updated.Name)
	assert.Equal(t, "PUT", backend.last().Method)
	assert.Equal(t, "/api/products/p2", backend.last().Path)

	require.NoError(t, svc.Products.Delete(ctx, "p2"))
	assert.Equal(t, recordedRequest{Method: "DELETE", Path: "/api/products/p2"}, backend.last())
}

func TestResource_ListEnvelopes(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected int
	}{
		{name: "bare array", body: `[{"id":"1"},{"id":"2"}]`, expected: 2},
		{name: "data envelope", body: `{"data":[{"id":"1"}],"total":1}`, expected: 1},
		{name: "items envelope", body: `{"items":[{"id":"1"},{"id":"2"},{"id":"3"}]}`, expected: 3},
		{name: "empty object", body: `{}`, expected: 0},
		{name: "null", body: `null`, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := createTestServices(t, ok(tt.body))
			users, err := svc.Users.List(context.Background(), nil)
			require.NoError(t, err)
			assert.NotNil(t, users)
			assert.Len(t, users, tt.expected)
		})
	}
}

func TestResource_ListInvalidBody(t *testing.T) {
	svc, _ := createTestServices(t, ok(`"nope"`))
	_, err := svc.Blog.List(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, "invalid list response", errors.Normalize(err).Message)
}

func TestResource_EmptyCreateResponseKeepsInput(t *testing.T) {
	svc, _ := createTestServices(t, cannedResponse{status: http.StatusCreated})
	post := models.BlogPost{Title: "Hello", Slug: "hello"}
	got, err := svc.Blog.Create(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, post.Title, got.Title)
}

func TestResource_WritesLeaveInputUntouched(t *testing.T) {
	reply := `{"id":"p1","name":"Router","category":"hardware","features":["server-side"],"specifications":{"ports":"8","poe":"yes"}}`

	tests := []struct {
		name  string
		write func(svc *Services, p models.Product) (models.Product, error)
	}{
		{name: "create", write: func(svc *Services, p models.Product) (models.Product, error) {
			return svc.Products.Create(context.Background(), p)
		}},
		{name: "update", write: func(svc *Services, p models.Product) (models.Product, error) {
			return svc.Products.Update(context.Background(), "p1", p)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := createTestServices(t, ok(reply))

			features := make([]string, 1, 4)
			features[0] = "wifi"
			input := models.Product{
				ID:             "p1",
				Name:           "Router",
				Category:       models.CategoryHardware,
				Features:       features,
				Specifications: map[string]string{"ports": "4"},
			}

			got, err := tt.write(svc, input)
			require.NoError(t, err)
			assert.Equal(t, []string{"server-side"}, got.Features)
			assert.Equal(t, map[string]string{"ports": "8", "poe": "yes"}, got.Specifications)

			assert.Equal(t, []string{"wifi"}, input.Features)
			assert.Equal(t, map[string]string{"ports": "4"}, input.Specifications)
		})
	}
}

func TestResource_WriteInvalidBody(t *testing.T) {
	svc, _ := createTestServices(t, ok(`[1,2]`))
	_, err := svc.Products.Update(context.Background(), "p1", models.Product{Name: "Router"})
	require.Error(t, err)
	assert.Equal(t, "invalid response body", errors.Normalize(err).Message)
}

func TestResource_IDIsEscaped(t *testing.T) {
	svc, backend := createTestServices(t, ok(`{"id":"a/b"}`))
	_, err := svc.Software.Get(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, "/api/software/a%2Fb", backend.last().Path)
}

func TestResource_ErrorsPassThrough(t *testing.T) {
	svc, _ := createTestServices(t, cannedResponse{status: http.StatusNotFound, body: `{"message":"no such job"}`})
	_, err := svc.Careers.Jobs.Get(context.Background(), "j404")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, "no such job", errors.Normalize(err).Message)
}

// ==========================
// Domain Endpoints
// ==========================

func TestOrdersAPI(t *testing.T) {
	svc, backend := createTestServices(t,
		ok(`{"id":"o1","userId":"u1","status":"shipped","items":[],"total":10}`),
		ok(`[{"id":"o1","userId":"u1","status":"shipped","items":[],"total":10}]`),
	)

	order, err := svc.Orders.UpdateStatus(context.Background(), "o1", models.OrderShipped)
	require.NoError(t, err)
	assert.Equal(t, models.OrderShipped, order.Status)
	assert.Equal(t, "u1", order.UserID)

	req := backend.last()
	assert.Equal(t, "PATCH", req.Method)
	assert.Equal(t, "/api/orders/o1/status", req.Path)
	assert.JSONEq(t, `{"status":"shipped"}`, req.Body)

	orders, err := svc.Orders.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, "userId=u1", backend.last().Query)
}

func TestOrdersAPI_UpdateStatusEmptyResponse(t *testing.T) {
	svc, _ := createTestServices(t, cannedResponse{status: http.StatusNoContent})
	order, err := svc.Orders.UpdateStatus(context.Background(), "o7", models.OrderCancelled)
	require.NoError(t, err)
	assert.Equal(t, "o7", order.ID)
	assert.Equal(t, models.OrderCancelled, order.Status)
}

func TestCareersAPI(t *testing.T) {
	svc, backend := createTestServices(t,
		ok(`[{"id":"a1","jobId":"j1","name":"Ada","email":"ada@example.com"}]`),
		cannedResponse{status: http.StatusCreated, body: `{"id":"a2","jobId":"j1","name":"Bob","email":"bob@example.com","status":"submitted"}`},
	)

	apps, err := svc.Careers.ApplicationsForJob(context.Background(), "j1")
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "/api/applications", backend.last().Path)
	assert.Equal(t, "jobId=j1", backend.last().Query)

	created, err := svc.Careers.Applications.Create(context.Background(), models.JobApplication{JobID: "j1", Name: "Bob", Email: "bob@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "a2", created.ID)
	assert.Equal(t, "jobs", svc.Careers.Jobs.Name())
}

func TestAuthAPI(t *testing.T) {
	svc, backend := createTestServices(t,
		ok(`{"token":"t-1","user":{"id":"u1","name":"Ada","email":"ada@example.com","role":"admin"}}`),
		cannedResponse{status: http.StatusCreated, body: `{"token":"t-2","user":{"id":"u2","name":"Bob","email":"bob@example.com","role":"customer"}}`},
		ok(`{"id":"u1","name":"Ada","email":"ada@example.com","role":"admin"}`),
	)
	ctx := context.Background()

	resp, err := svc.Auth.Login(ctx, models.Credentials{Email: "ada@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "t-1", resp.Token)
	assert.True(t, resp.User.IsAdmin())
	assert.Equal(t, "/api/auth/login", backend.last().Path)

	resp, err = svc.Auth.Register(ctx, models.Registration{Name: "Bob", Email: "bob@example.com", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, "t-2", resp.Token)
	assert.Equal(t, "/api/auth/register", backend.last().Path)

	me, err := svc.Auth.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", me.ID)
	assert.Equal(t, recordedRequest{Method: "GET", Path: "/api/auth/me"}, backend.last())

	require.NoError(t, svc.Auth.Logout(ctx))
	assert.Equal(t, recordedRequest{Method: "POST", Path: "/api/auth/logout"}, backend.last())
}
