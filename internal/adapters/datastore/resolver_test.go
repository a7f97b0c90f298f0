package datastore_test

import (
	"context"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/SscSPs/sledge/internal/adapters/datastore"
	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/SscSPs/sledge/internal/core/ports/repositories"
	"github.com/SscSPs/sledge/internal/platform/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := datastore.ParseAddress(raw)
	require.NoError(t, err)
	return u
}

func TestResolver_UnknownScheme(t *testing.T) {
	ctx := context.Background()
	address := mustParse(t, "mongodb://localhost/books")

	_, err := datastore.GetCurrentDatastore(ctx, nil, address)
	assert.ErrorIs(t, err, apperrors.ErrUnknownScheme)
	_, err = datastore.CreateDatastore(ctx, nil, address, repositories.NewContents(domain.MustCurrency("USD")))
	assert.ErrorIs(t, err, apperrors.ErrUnknownScheme)
	_, err = datastore.Exists(ctx, nil, address)
	assert.ErrorIs(t, err, apperrors.ErrUnknownScheme)
}

func TestResolver_Lifecycle(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, raw := range []string{
		"fstore://" + filepath.ToSlash(filepath.Join(dir, "fs-books")),
		"sqlite://" + filepath.ToSlash(filepath.Join(dir, "books.db")),
	} {
		t.Run(raw, func(t *testing.T) {
			address := mustParse(t, raw)

			_, err := datastore.GetCurrentDatastore(ctx, nil, address)
			assert.ErrorIs(t, err, apperrors.ErrStoreDoesNotExist)

			store, err := datastore.CreateDatastore(ctx, nil, address, repositories.NewContents(domain.MustCurrency("GBP")).Personal())
			require.NoError(t, err)
			assert.Equal(t, address.Scheme, store.Scheme())
			require.NoError(t, datastore.Disconnect(ctx, store))
			require.NoError(t, datastore.Disconnect(ctx, store))

			ok, err := datastore.Exists(ctx, nil, address)
			require.NoError(t, err)
			assert.True(t, ok)

			_, err = datastore.CreateDatastore(ctx, nil, address, repositories.NewContents(domain.MustCurrency("GBP")))
			assert.ErrorIs(t, err, apperrors.ErrStoreExists)

			again, err := datastore.GetCurrentDatastore(ctx, nil, address)
			require.NoError(t, err)
			defer datastore.Disconnect(ctx, again)
			assert.Equal(t, "GBP", again.Settings().DefaultCommodity.Code())
		})
	}
}

func TestResolver_UsesConfiguredConnection(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Configuration{
		Version: config.FileVersion,
		Store: config.StoreConfig{
			Connection: "fstore://" + filepath.ToSlash(filepath.Join(t.TempDir(), "books")),
			IOTimeout:  config.DefaultIOTimeout,
			PageSize:   10,
		},
	}

	store, err := datastore.CreateDatastore(ctx, cfg, nil, repositories.NewContents(domain.MustCurrency("USD")))
	require.NoError(t, err)
	defer datastore.Disconnect(ctx, store)
	assert.Equal(t, "fstore", store.Scheme())

	_, err = datastore.GetCurrentDatastore(ctx, &config.Configuration{}, nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestDisconnect_NilHandle(t *testing.T) {
	assert.NoError(t, datastore.Disconnect(context.Background(), nil))
}
