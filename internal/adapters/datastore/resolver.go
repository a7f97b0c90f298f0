// Package datastore resolves a connection address to the backend that serves its scheme.
package datastore

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/SscSPs/sledge/internal/adapters/fstore"
	"github.com/SscSPs/sledge/internal/adapters/sqlstore"
	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/SscSPs/sledge/internal/core/ports/repositories"
	"github.com/SscSPs/sledge/internal/platform/config"
	"github.com/SscSPs/sledge/internal/platform/logging"
)

// Schemes lists every supported connection scheme.
var Schemes = []string{fstore.Scheme, sqlstore.SQLiteScheme, sqlstore.PostgresScheme, sqlstore.PostgresqlScheme}

type backend int

const (
	unknownBackend backend = iota
	fileBackend
	sqlBackend
)

func backendFor(address *url.URL) backend {
	if address.Scheme == fstore.Scheme {
		return fileBackend
	}
	if _, ok := sqlstore.DialectFor(address.Scheme); ok {
		return sqlBackend
	}
	return unknownBackend
}

// resolve picks the store settings and the address: an explicit address wins over the
// configured connection.
func resolve(cfg *config.Configuration, address *url.URL) (config.StoreConfig, *url.URL, error) {
	storeCfg := config.StoreConfig{IOTimeout: config.DefaultIOTimeout, PageSize: config.DefaultPageSize}
	if cfg != nil {
		storeCfg = cfg.Store
	}
	if address == nil {
		var err error
		if address, err = storeCfg.Address(); err != nil {
			return storeCfg, nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
	}
	if backendFor(address) == unknownBackend {
		return storeCfg, nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownScheme, address.Scheme)
	}
	return storeCfg, address, nil
}

// ParseAddress parses and expands a connection string.
func ParseAddress(raw string) (*url.URL, error) {
	u, err := config.StoreConfig{Connection: raw}.Address()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	return u, nil
}

// Exists reports whether an initialized store lives at address.
func Exists(ctx context.Context, cfg *config.Configuration, address *url.URL) (bool, error) {
	storeCfg, address, err := resolve(cfg, address)
	if err != nil {
		return false, err
	}
	switch backendFor(address) {
	case fileBackend:
		return fstore.Exists(ctx, address)
	default:
		return sqlstore.Exists(ctx, storeCfg, address)
	}
}

// GetCurrentDatastore connects to the existing store at address, or at the configured
// connection when address is nil.
func GetCurrentDatastore(ctx context.Context, cfg *config.Configuration, address *url.URL) (repositories.DataStore, error) {
	storeCfg, address, err := resolve(cfg, address)
	if err != nil {
		return nil, err
	}
	logger := logging.FromContext(ctx).With(slog.String("address", address.Redacted()))

	var store repositories.DataStore
	switch backendFor(address) {
	case fileBackend:
		store, err = fstore.Connect(ctx, storeCfg, address)
	default:
		store, err = sqlstore.Connect(ctx, storeCfg, address)
	}
	if err != nil {
		logger.Error("Failed to connect to data store", slog.String("error", err.Error()))
		return nil, err
	}
	logger.Info("Connected to data store", slog.String("scheme", store.Scheme()))
	return store, nil
}

// CreateDatastore initializes a store at address with initial and returns a connected handle.
func CreateDatastore(ctx context.Context, cfg *config.Configuration, address *url.URL, initial repositories.CreateDatastoreContents) (repositories.DataStore, error) {
	storeCfg, address, err := resolve(cfg, address)
	if err != nil {
		return nil, err
	}
	var store repositories.DataStore
	switch backendFor(address) {
	case fileBackend:
		store, err = fstore.Create(ctx, storeCfg, address, initial)
	default:
		store, err = sqlstore.Create(ctx, storeCfg, address, initial)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Disconnect releases handle. A nil handle or a second call is a no-op.
func Disconnect(ctx context.Context, handle repositories.DataStore) error {
	if handle == nil {
		return nil
	}
	return handle.Disconnect(ctx)
}
