package software

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/common/errors"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/store/storetest"
)

func TestContext(t *testing.T) {
	backend := storetest.New(
		models.SoftwareProduct{ID: "s1", Name: "Monitor", Version: "2.1", LicenseType: models.LicenseSubscription, Platforms: []string{"linux", "windows"}, Featured: true},
		models.SoftwareProduct{ID: "s2", Name: "CLI Tools", Version: "0.9", LicenseType: models.LicenseOpenSource, Platforms: []string{"linux", "macos"}},
	)
	c := New(backend, store.Options{})
	defer c.Close()

	require.NoError(t, c.Fetch(context.Background()))

	assert.Equal(t, "software", c.Name())
	require.Len(t, c.Featured(), 1)
	assert.Equal(t, "s1", c.Featured()[0].ID)
	assert.Len(t, c.ByPlatform("linux"), 2)
	assert.Len(t, c.ByPlatform("macos"), 1)
	assert.Empty(t, c.ByPlatform("plan9"))
}

func TestContext_FetchFailureRecordsError(t *testing.T) {
	backend := storetest.New[models.SoftwareProduct]()
	backend.ListErr = errors.NewApiError(500, "db down", nil)

	c := New(backend, store.Options{})
	defer c.Close()

	err := c.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, 500, errors.StatusOf(c.Err()))
	assert.Empty(t, c.Items())
}
