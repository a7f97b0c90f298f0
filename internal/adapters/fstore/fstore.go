// Package fstore is the filesystem data store backend, addressed as fstore:///abs/path.
//
// Layout under the root directory:
//
//	settings.json     store settings
//	permissions.json  role table
//	journals/         one JSON document per journal
//	ledgers/          one JSON document per ledger
package fstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/SscSPs/sledge/internal/adapters/entitystore"
	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/SscSPs/sledge/internal/core/ports/repositories"
	"github.com/SscSPs/sledge/internal/platform/config"
	"github.com/SscSPs/sledge/internal/platform/logging"
	"github.com/SscSPs/sledge/internal/utils/concurrency"
)

const Scheme = "fstore"

const (
	settingsFile    = "settings.json"
	permissionsFile = "permissions.json"
	journalsDir     = "journals"
	ledgersDir      = "ledgers"
)

const dirMode = 0o750

// Store is a connected filesystem data store.
type Store struct {
	root        string
	address     string
	tracker     *concurrency.Tracker
	settings    domain.Settings
	permissions domain.Permissions
	ledgers     *entitystore.Store[domain.LedgerKind, domain.Ledger]
	journals    *entitystore.Store[domain.JournalName, domain.Journal]
}

var _ repositories.DataStore = (*Store)(nil)

// RootPath extracts the store directory from an fstore address.
func RootPath(address *url.URL) (string, error) {
	if address.Scheme != Scheme {
		return "", fmt.Errorf("%w: %q is not an %s address", apperrors.ErrUnknownScheme, address.Scheme, Scheme)
	}
	if address.Host != "" && address.Host != "localhost" {
		return "", fmt.Errorf("%w: %s addresses cannot name a remote host", apperrors.ErrValidation, Scheme)
	}
	p := config.ExpandString(address.Path)
	if !filepath.IsAbs(p) {
		return "", fmt.Errorf("%w: %s path %q is not absolute", apperrors.ErrValidation, Scheme, p)
	}
	return filepath.Clean(p), nil
}

// Exists reports whether root holds an initialized store: the settings file and both entity
// directories.
func Exists(_ context.Context, address *url.URL) (bool, error) {
	root, err := RootPath(address)
	if err != nil {
		return false, err
	}
	return exists(root)
}

func exists(root string) (bool, error) {
	if ok, err := isFile(filepath.Join(root, settingsFile)); err != nil || !ok {
		return false, err
	}
	for _, dir := range []string{journalsDir, ledgersDir} {
		p := filepath.Join(root, dir)
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		if err != nil {
			return false, apperrors.NewIOError("stat", p, err)
		}
		if !info.IsDir() {
			return false, nil
		}
	}
	return true, nil
}

func isFile(p string) (bool, error) {
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.NewIOError("stat", p, err)
	}
	return info.Mode().IsRegular(), nil
}

// Connect opens an existing store.
func Connect(ctx context.Context, cfg config.StoreConfig, address *url.URL) (*Store, error) {
	logger := logging.FromContext(ctx)
	root, err := RootPath(address)
	if err != nil {
		return nil, err
	}
	ok, err := exists(root)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrStoreDoesNotExist, address.Redacted())
	}

	s := open(root, address, cfg)
	s.settings = readDocument(ctx, filepath.Join(root, settingsFile), domain.DefaultSettings)
	s.permissions = readDocument(ctx, filepath.Join(root, permissionsFile), domain.DefaultPermissions)
	logger.Debug("Connected to data store", slog.String("scheme", Scheme), slog.String("path", root))
	return s, nil
}

// Create initializes a new store at address with the given contents and connects to it.
func Create(ctx context.Context, cfg config.StoreConfig, address *url.URL, contents repositories.CreateDatastoreContents) (*Store, error) {
	logger := logging.FromContext(ctx)
	root, err := RootPath(address)
	if err != nil {
		return nil, err
	}
	ok, err := exists(root)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrStoreExists, address.Redacted())
	}
	if err := contents.Validate(); err != nil {
		return nil, err
	}

	s, err := create(ctx, root, address, cfg, contents)
	if err != nil {
		logger.Error("Failed to create data store", slog.String("path", root), slog.String("error", err.Error()))
		return nil, err
	}
	logger.Info("Created data store",
		slog.String("path", root),
		slog.Int("ledgers", len(contents.Ledgers)),
		slog.Int("journals", len(contents.Journals)))
	return s, nil
}

// create writes the store under root. On failure every directory it made is removed again, so a
// retry starts from the same state.
func create(ctx context.Context, root string, address *url.URL, cfg config.StoreConfig, contents repositories.CreateDatastoreContents) (_ *Store, err error) {
	var made []string
	defer func() {
		if err == nil {
			return
		}
		for i := len(made) - 1; i >= 0; i-- {
			if rerr := os.RemoveAll(made[i]); rerr != nil {
				logging.FromContext(ctx).Warn("Failed to remove partial store", slog.String("path", made[i]), slog.String("error", rerr.Error()))
			}
		}
	}()
	for _, dir := range []string{root, filepath.Join(root, journalsDir), filepath.Join(root, ledgersDir)} {
		if _, serr := os.Stat(dir); errors.Is(serr, fs.ErrNotExist) {
			made = append(made, dir)
		}
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return nil, apperrors.NewIOError("mkdir", dir, err)
		}
	}

	s := open(root, address, cfg)
	s.settings = contents.Settings()
	s.permissions = contents.Permissions()
	fail := func(err error) (*Store, error) {
		// writes that outlived their bound must finish before the tree is removed
		_, _ = s.tracker.Close(context.WithoutCancel(ctx))
		return nil, err
	}

	for _, l := range contents.Ledgers {
		if _, err := s.ledgers.Create(ctx, l); err != nil {
			return fail(err)
		}
	}
	for _, j := range contents.Journals {
		if _, err := s.journals.Create(ctx, j); err != nil {
			return fail(err)
		}
	}
	// settings last: the store only exists once its settings file does
	if err := writeDocument(ctx, filepath.Join(root, permissionsFile), s.permissions); err != nil {
		return fail(err)
	}
	if err := writeDocument(ctx, filepath.Join(root, settingsFile), s.settings); err != nil {
		return fail(err)
	}
	return s, nil
}

func open(root string, address *url.URL, cfg config.StoreConfig) *Store {
	tracker := &concurrency.Tracker{}
	return &Store{
		root:    root,
		address: address.Redacted(),
		tracker: tracker,
		ledgers: entitystore.New[domain.LedgerKind, domain.Ledger](
			&dirDriver{dir: filepath.Join(root, ledgersDir), index: entitystore.IndexOf[domain.LedgerKind, domain.Ledger]()},
			tracker,
			entitystore.Options[domain.LedgerKind]{
				Kind:      "ledger",
				IOTimeout: cfg.IOTimeout,
				PageSize:  cfg.PageSize,
				NewID:     domain.NewOtherLedgerKind,
			}),
		journals: entitystore.New[domain.JournalName, domain.Journal](
			&dirDriver{dir: filepath.Join(root, journalsDir), index: entitystore.IndexOf[domain.JournalName, domain.Journal]()},
			tracker,
			entitystore.Options[domain.JournalName]{
				Kind:      "journal",
				IOTimeout: cfg.IOTimeout,
				PageSize:  cfg.PageSize,
				NewID:     domain.NewJournalName,
			}),
	}
}

// readDocument decodes the JSON document at p. A missing or malformed document falls back to
// the default with a warning; it never prevents connecting.
func readDocument[T interface{ Validate() error }](ctx context.Context, p string, fallback func() T) T {
	logger := logging.FromContext(ctx)
	body, err := os.ReadFile(p)
	if err != nil {
		logger.Warn("Store document unreadable, using defaults", slog.String("path", p), slog.String("error", err.Error()))
		return fallback()
	}
	var doc T
	if err := json.Unmarshal(body, &doc); err != nil {
		logger.Warn("Store document malformed, using defaults", slog.String("path", p), slog.String("error", err.Error()))
		return fallback()
	}
	if err := doc.Validate(); err != nil {
		logger.Warn("Store document invalid, using defaults", slog.String("path", p), slog.String("error", err.Error()))
		return fallback()
	}
	return doc
}

func writeDocument(ctx context.Context, p string, doc any) error {
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", apperrors.ErrSerialization, p, err)
	}
	return writeAtomic(ctx, p, body)
}

func (s *Store) Scheme() string                      { return Scheme }
func (s *Store) Address() string                     { return s.address }
func (s *Store) Root() string                        { return s.root }
func (s *Store) Ledgers() repositories.LedgerStore   { return s.ledgers }
func (s *Store) Journals() repositories.JournalStore { return s.journals }
func (s *Store) Settings() domain.Settings           { return s.settings }
func (s *Store) Permissions() domain.Permissions     { return s.permissions }

// Disconnect waits for in-flight operations. Further operations fail with ErrStoreClosed.
func (s *Store) Disconnect(ctx context.Context) error {
	closed, err := s.tracker.Close(ctx)
	if closed {
		logging.FromContext(ctx).Debug("Disconnected from data store", slog.String("path", s.root))
	}
	return err
}
