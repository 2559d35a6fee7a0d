// Package career holds job openings and the applications submitted to them.
// Applications are only listed for admins.
package career

import (
	"context"
	"sync"

	"storefront/internal/common/errors"
	"storefront/internal/common/validation"
	"storefront/internal/models"
	"storefront/internal/store"
)

var (
	jobSchema         = validation.MustCompile("job", models.JobOpeningSchema)
	applicationSchema = validation.MustCompile("application", models.JobApplicationSchema)
)

type Context struct {
	jobs         *store.Store[models.JobOpening]
	applications *store.Store[models.JobApplication]

	mu   sync.RWMutex
	user *models.User
}

func New(jobs store.Backend[models.JobOpening], applications store.Backend[models.JobApplication], user *models.User, opts store.Options) *Context {
	jobOpts := opts
	jobOpts.Name = "jobs"
	jobOpts.Schema = jobSchema

	appOpts := opts
	appOpts.Name = "applications"
	appOpts.Schema = applicationSchema
	// Applications are per viewer and never go to the shared snapshot cache.
	appOpts.Snapshots = nil

	return &Context{
		jobs:         store.New[models.JobOpening](jobs, jobOpts),
		applications: store.New[models.JobApplication](applications, appOpts),
		user:         user,
	}
}

func (c *Context) Jobs() *store.Store[models.JobOpening]             { return c.jobs }
func (c *Context) Applications() *store.Store[models.JobApplication] { return c.applications }

func (c *Context) isAdmin() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user != nil && c.user.IsAdmin()
}

// BindUser changes the viewer without fetching. Losing admin rights drops
// the loaded applications.
func (c *Context) BindUser(user *models.User) {
	c.mu.Lock()
	c.user = user
	c.mu.Unlock()
	if !c.isAdmin() {
		c.applications.Reset()
	}
}

// SetUser changes the viewer and refreshes the applications list.
func (c *Context) SetUser(ctx context.Context, user *models.User) error {
	c.BindUser(user)
	return c.FetchApplications(ctx)
}

// Fetch loads the openings and, for admins, the applications.
func (c *Context) Fetch(ctx context.Context) error {
	if err := c.FetchJobs(ctx); err != nil {
		return err
	}
	return c.FetchApplications(ctx)
}

func (c *Context) FetchJobs(ctx context.Context) error {
	return c.jobs.Fetch(ctx)
}

// FetchApplications lists every application. Non-admins get an empty list
// and no request is made.
func (c *Context) FetchApplications(ctx context.Context) error {
	if !c.isAdmin() {
		c.applications.Reset()
		return nil
	}
	return c.applications.Fetch(ctx)
}

func (c *Context) SaveJob(ctx context.Context, job models.JobOpening) (models.JobOpening, error) {
	if !c.isAdmin() {
		return models.JobOpening{}, errors.NewForbiddenError("save job")
	}
	return c.jobs.Save(ctx, job)
}

func (c *Context) DeleteJob(ctx context.Context, id string) error {
	if !c.isAdmin() {
		return errors.NewForbiddenError("delete job")
	}
	return c.jobs.Delete(ctx, id)
}

// Apply submits an application for an opening. Anyone may apply.
func (c *Context) Apply(ctx context.Context, application models.JobApplication) (models.JobApplication, error) {
	application.ID = ""
	if application.Status == "" {
		application.Status = models.ApplicationSubmitted
	}
	return c.applications.Save(ctx, application)
}

func (c *Context) ActiveJobs() []models.JobOpening {
	return c.jobs.Filter(func(j models.JobOpening) bool { return j.Active })
}

func (c *Context) ApplicationsFor(jobID string) []models.JobApplication {
	return c.applications.Filter(func(a models.JobApplication) bool { return a.JobID == jobID })
}

func (c *Context) Loading() bool {
	return c.jobs.Loading() || c.applications.Loading()
}

// Err returns the openings error, falling back to the applications error.
func (c *Context) Err() error {
	if err := c.jobs.Err(); err != nil {
		return err
	}
	return c.applications.Err()
}

func (c *Context) Close() {
	c.jobs.Close()
	c.applications.Close()
}
