package api

import (
	"context"
	"net/http"
	"net/url"

	"storefront/internal/models"
)

// Resource names on the platform backend.
const (
	ProductsResource     = "products"
	SoftwareResource     = "software"
	BlogResource         = "blog"
	JobsResource         = "jobs"
	ApplicationsResource = "applications"
	OrdersResource       = "orders"
	UsersResource        = "users"
)

// OrdersAPI adds the status endpoint to the order collection.
type OrdersAPI struct {
	*Resource[models.Order]
}

func NewOrdersAPI(client Doer) *OrdersAPI {
	return &OrdersAPI{Resource: NewResource[models.Order](client, OrdersResource)}
}

// UpdateStatus calls PATCH /orders/{id}/status with {"status": status}.
func (o *OrdersAPI) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (models.Order, error) {
	body := map[string]models.OrderStatus{"status": status}
	out := models.Order{ID: id, Status: status}
	if err := o.client.Do(ctx, http.MethodPatch, o.itemPath(id)+"/status", nil, body, &out); err != nil {
		return models.Order{}, err
	}
	return out, nil
}

func (o *OrdersAPI) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	return o.List(ctx, url.Values{"userId": {userID}})
}

// CareersAPI groups job openings and the applications submitted to them.
type CareersAPI struct {
	Jobs         *Resource[models.JobOpening]
	Applications *Resource[models.JobApplication]
}

func NewCareersAPI(client Doer) *CareersAPI {
	return &CareersAPI{
		Jobs:         NewResource[models.JobOpening](client, JobsResource),
		Applications: NewResource[models.JobApplication](client, ApplicationsResource),
	}
}

func (c *CareersAPI) ApplicationsForJob(ctx context.Context, jobID string) ([]models.JobApplication, error) {
	return c.Applications.List(ctx, url.Values{"jobId": {jobID}})
}

// AuthAPI covers the session endpoints under /auth.
type AuthAPI struct {
	client Doer
}

func NewAuthAPI(client Doer) *AuthAPI {
	return &AuthAPI{client: client}
}

func (a *AuthAPI) Login(ctx context.Context, creds models.Credentials) (models.AuthResponse, error) {
	var out models.AuthResponse
	err := a.client.Do(ctx, http.MethodPost, "/auth/login", nil, creds, &out)
	return out, err
}

func (a *AuthAPI) Register(ctx context.Context, reg models.Registration) (models.AuthResponse, error) {
	var out models.AuthResponse
	err := a.client.Do(ctx, http.MethodPost, "/auth/register", nil, reg, &out)
	return out, err
}

// Me returns the user the current bearer token belongs to.
func (a *AuthAPI) Me(ctx context.Context) (models.User, error) {
	var out models.User
	err := a.client.Do(ctx, http.MethodGet, "/auth/me", nil, nil, &out)
	return out, err
}

func (a *AuthAPI) Logout(ctx context.Context) error {
	return a.client.Do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
}

// Services bundles one client per backend resource.
type Services struct {
	Products *Resource[models.Product]
	Software *Resource[models.SoftwareProduct]
	Blog     *Resource[models.BlogPost]
	Careers  *CareersAPI
	Orders   *OrdersAPI
	Users    *Resource[models.User]
	Auth     *AuthAPI
}

func New(client Doer) *Services {
	return &Services{
		Products: NewResource[models.Product](client, ProductsResource),
		Software: NewResource[models.SoftwareProduct](client, SoftwareResource),
		Blog:     NewResource[models.BlogPost](client, BlogResource),
		Careers:  NewCareersAPI(client),
		Orders:   NewOrdersAPI(client),
		Users:    NewResource[models.User](client, UsersResource),
		Auth:     NewAuthAPI(client),
	}
}
