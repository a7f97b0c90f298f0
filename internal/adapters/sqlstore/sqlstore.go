// Package sqlstore is the relational data store backend for sqlite:// and postgres:// addresses.
// Settings and permissions live in the store_meta table, every entity kind in the entities
// table.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/SscSPs/sledge/internal/adapters/entitystore"
	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/SscSPs/sledge/internal/core/ports/repositories"
	"github.com/SscSPs/sledge/internal/platform/config"
	"github.com/SscSPs/sledge/internal/platform/logging"
	"github.com/SscSPs/sledge/internal/utils/concurrency"
	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
)

//go:embed migrations
var migrations embed.FS

const (
	settingsKey    = "settings"
	permissionsKey = "permissions"
)

// Store is a connected relational data store.
type Store struct {
	scheme      string
	address     string
	db          *sql.DB
	stmts       *statements
	tracker     *concurrency.Tracker
	settings    domain.Settings
	permissions domain.Permissions
	ledgers     *entitystore.Store[domain.LedgerKind, domain.Ledger]
	journals    *entitystore.Store[domain.JournalName, domain.Journal]
}

var _ repositories.DataStore = (*Store)(nil)

// connector opens *sql.DB handles for one address. The schema migration gets its own handle
// because closing a migrate instance closes its database.
type connector struct {
	dialect        Dialect
	address        *url.URL
	readOnly       bool
	statementCache int
	// path is the database file of a sqlite store
	path           string
	open           func() (*sql.DB, error)
	// missing reports, without connecting, that the store certainly does not exist
	missing        func() bool
}

func newConnector(address *url.URL, create bool) (*connector, error) {
	dialect, ok := DialectFor(address.Scheme)
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownScheme, address.Scheme)
	}

	switch dialect {
	case SQLite:
		opts, err := ParseSQLiteOptions(address)
		if err != nil {
			return nil, err
		}
		if !create {
			opts.Create = false
		}
		driverName := sqliteDriver(opts)
		dsn := opts.DSN()
		return &connector{
			dialect:        SQLite,
			address:        address,
			readOnly:       opts.ReadOnly,
			statementCache: opts.StatementCache,
			path:           opts.Path,
			open:           func() (*sql.DB, error) { return sql.Open(driverName, dsn) },
			missing: func() bool {
				_, err := os.Stat(opts.Path)
				return errors.Is(err, fs.ErrNotExist)
			},
		}, nil

	case Postgres:
		opts, err := ParsePostgresOptions(address)
		if err != nil {
			return nil, err
		}
		cfg, err := pgx.ParseConfig(opts.ConnString)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		cfg.StatementCacheCapacity = opts.StatementCache
		if opts.StatementCache == 0 {
			cfg.DefaultQueryExecMode = pgx.QueryExecModeDescribeExec
		}
		if opts.ReadOnly {
			cfg.RuntimeParams["default_transaction_read_only"] = "on"
		}
		return &connector{
			dialect:        Postgres,
			address:        address,
			readOnly:       opts.ReadOnly,
			statementCache: 0, // pgx caches statements per connection
			open:           func() (*sql.DB, error) { return stdlib.OpenDB(*cfg), nil },
			missing:        func() bool { return false },
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownScheme, address.Scheme)
	}
}

var (
	sqliteDriversMu sync.Mutex
	sqliteDrivers   = map[string]bool{}
)

// sqliteDriver returns a go-sqlite3 driver registered to set the page size and then the journal
// mode on every connection. The page size only applies while the database is still empty, so
// it has to come before anything that writes the header.
func sqliteDriver(opts SQLiteOptions) string {
	name := fmt.Sprintf("sqlite3_sledge_%d_%s_%t", opts.PageSize, opts.JournalMode, opts.ReadOnly)
	sqliteDriversMu.Lock()
	defer sqliteDriversMu.Unlock()
	if sqliteDrivers[name] {
		return name
	}
	pragmas := []string{fmt.Sprintf("PRAGMA page_size = %d", opts.PageSize)}
	if !opts.ReadOnly {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA journal_mode = %s", strings.ToUpper(opts.JournalMode)))
	}
	sql.Register(name, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			for _, p := range pragmas {
				if _, err := conn.Exec(p, nil); err != nil {
					return err
				}
			}
			return nil
		},
	})
	sqliteDrivers[name] = true
	return name
}

func (c *connector) connect(ctx context.Context) (*sql.DB, error) {
	db, err := c.open()
	if err != nil {
		return nil, apperrors.NewIOError("open", c.address.Redacted(), err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, apperrors.NewIOError("connect", c.address.Redacted(), err)
	}
	return db, nil
}

// migrateSchema applies every pending migration for the dialect.
func (c *connector) migrateSchema(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	db, err := c.connect(ctx)
	if err != nil {
		return err
	}

	var driver database.Driver
	switch c.dialect {
	case SQLite:
		driver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	case Postgres:
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	}
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("creating %s migration driver: %w", c.dialect, err)
	}
	source, err := iofs.New(migrations, "migrations/"+c.dialect.String())
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("reading embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, c.dialect.String(), driver)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("creating migrate instance: %w", err)
	}

	err = m.Up()
	sourceErr, dbErr := m.Close()
	switch {
	case err != nil && !errors.Is(err, migrate.ErrNoChange):
		return fmt.Errorf("applying migrations: %w", err)
	case sourceErr != nil:
		return fmt.Errorf("migration source: %w", sourceErr)
	case dbErr != nil:
		return fmt.Errorf("migration database: %w", dbErr)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Debug("No new migrations to apply", slog.String("dialect", c.dialect.String()))
	} else {
		logger.Info("Store migrations applied", slog.String("dialect", c.dialect.String()))
	}
	return nil
}

const (
	sqliteTables   = `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('store_meta', 'entities')`
	postgresTables = `SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name IN ('store_meta', 'entities')`
	countSettings  = `SELECT COUNT(*) FROM store_meta WHERE key = 'settings'`
	selectDocument = `SELECT value FROM store_meta WHERE key = $1`
	upsertDocument = `INSERT INTO store_meta (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`
	clearEntities  = `DELETE FROM entities`
	clearDocuments = `DELETE FROM store_meta`
)

// initialized reports whether db holds the schema and a settings document.
func initialized(ctx context.Context, db *sql.DB, dialect Dialect) (bool, error) {
	q := sqliteTables
	if dialect == Postgres {
		q = postgresTables
	}
	var tables int
	if err := db.QueryRowContext(ctx, q).Scan(&tables); err != nil {
		return false, err
	}
	if tables < 2 {
		return false, nil
	}
	var settings int
	if err := db.QueryRowContext(ctx, countSettings).Scan(&settings); err != nil {
		return false, err
	}
	return settings > 0, nil
}

// Exists reports whether address holds an initialized store.
func Exists(ctx context.Context, cfg config.StoreConfig, address *url.URL) (bool, error) {
	c, err := newConnector(address, false)
	if err != nil {
		return false, err
	}
	if c.missing() {
		return false, nil
	}
	var ok bool
	err = concurrency.Bounded(ctx, cfg.IOTimeout, "exists", func(ctx context.Context) error {
		db, err := c.connect(ctx)
		if err != nil {
			return err
		}
		defer db.Close()
		ok, err = initialized(ctx, db, c.dialect)
		return apperrors.NewIOError("inspect", address.Redacted(), err)
	})
	return ok, err
}

// Connect opens an existing store, applying pending schema migrations unless it is read-only.
func Connect(ctx context.Context, cfg config.StoreConfig, address *url.URL) (*Store, error) {
	ok, err := Exists(ctx, cfg, address)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrStoreDoesNotExist, address.Redacted())
	}
	c, err := newConnector(address, false)
	if err != nil {
		return nil, err
	}

	s, err := concurrency.BoundedResult(ctx, cfg.IOTimeout, "connect", func(ctx context.Context) (*Store, error) {
		if !c.readOnly {
			if err := c.migrateSchema(ctx); err != nil {
				return nil, err
			}
		}
		opened, err := open(ctx, c, cfg)
		if err != nil {
			return nil, err
		}
		opened.settings = readDocument(ctx, opened, settingsKey, domain.DefaultSettings)
		opened.permissions = readDocument(ctx, opened, permissionsKey, domain.DefaultPermissions)
		return opened, nil
	}, disconnectLate)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Debug("Connected to data store", slog.String("scheme", c.address.Scheme), slog.String("address", s.address))
	return s, nil
}

// Create initializes the schema and contents at address and connects to it.
func Create(ctx context.Context, cfg config.StoreConfig, address *url.URL, contents repositories.CreateDatastoreContents) (*Store, error) {
	logger := logging.FromContext(ctx)
	ok, err := Exists(ctx, cfg, address)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrStoreExists, address.Redacted())
	}
	if err := contents.Validate(); err != nil {
		return nil, err
	}
	c, err := newConnector(address, true)
	if err != nil {
		return nil, err
	}
	if c.readOnly {
		return nil, fmt.Errorf("%w: cannot create a store through a read-only address", apperrors.ErrValidation)
	}

	s, err := create(ctx, c, cfg, contents)
	if err != nil {
		logger.Error("Failed to create data store", slog.String("address", address.Redacted()), slog.String("error", err.Error()))
		return nil, err
	}
	logger.Info("Created data store",
		slog.String("address", s.address),
		slog.Int("ledgers", len(contents.Ledgers)),
		slog.Int("journals", len(contents.Journals)))
	return s, nil
}

func create(ctx context.Context, c *connector, cfg config.StoreConfig, contents repositories.CreateDatastoreContents) (*Store, error) {
	if c.path != "" {
		dir := filepath.Dir(c.path)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, apperrors.NewIOError("mkdir", dir, err)
		}
	}

	s, err := concurrency.BoundedResult(ctx, cfg.IOTimeout, "create", func(ctx context.Context) (*Store, error) {
		if err := c.migrateSchema(ctx); err != nil {
			return nil, err
		}
		return open(ctx, c, cfg)
	}, disconnectLate)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*Store, error) {
		bg := context.WithoutCancel(ctx)
		// writes that outlived their bound finish before the rows are removed
		_, _ = s.tracker.Close(bg)
		s.clear(bg)
		_ = s.release()
		return nil, err
	}

	s.settings = contents.Settings()
	s.permissions = contents.Permissions()
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
	// settings last: the store only exists once its settings row does
	leave, err := s.tracker.Enter()
	if err != nil {
		return fail(err)
	}
	err = concurrency.Bounded(ctx, cfg.IOTimeout, "create", func(ctx context.Context) error {
		defer leave()
		if err := s.writeDocument(ctx, permissionsKey, s.permissions); err != nil {
			return err
		}
		return s.writeDocument(ctx, settingsKey, s.settings)
	})
	if err != nil {
		return fail(err)
	}
	return s, nil
}

// disconnectLate closes a store that was opened after its caller gave up waiting.
func disconnectLate(s *Store) {
	_ = s.Disconnect(context.Background())
}

// clear removes whatever a failed create wrote.
func (s *Store) clear(ctx context.Context) {
	for _, q := range []string{clearEntities, clearDocuments} {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			logging.FromContext(ctx).Warn("Failed to clear partial store", slog.String("address", s.address), slog.String("error", err.Error()))
		}
	}
}

func open(ctx context.Context, c *connector, cfg config.StoreConfig) (*Store, error) {
	db, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	stmts, err := newStatements(db, c.dialect, c.statementCache)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	tracker := &concurrency.Tracker{}
	address := c.address.Redacted()
	return &Store{
		scheme:  c.address.Scheme,
		address: address,
		db:      db,
		stmts:   stmts,
		tracker: tracker,
		ledgers: entitystore.New[domain.LedgerKind, domain.Ledger](
			&tableDriver{stmts: stmts, kind: "ledger", address: address},
			tracker,
			entitystore.Options[domain.LedgerKind]{
				Kind:      "ledger",
				IOTimeout: cfg.IOTimeout,
				PageSize:  cfg.PageSize,
				NewID:     domain.NewOtherLedgerKind,
			}),
		journals: entitystore.New[domain.JournalName, domain.Journal](
			&tableDriver{stmts: stmts, kind: "journal", address: address},
			tracker,
			entitystore.Options[domain.JournalName]{
				Kind:      "journal",
				IOTimeout: cfg.IOTimeout,
				PageSize:  cfg.PageSize,
				NewID:     domain.NewJournalName,
			}),
	}, nil
}

// readDocument loads a store_meta document. A missing or malformed document falls back to the
// default with a warning.
func readDocument[T interface{ Validate() error }](ctx context.Context, s *Store, key string, fallback func() T) T {
	var (
		doc   T
		value string
	)
	err := s.db.QueryRowContext(ctx, s.stmts.rebind(selectDocument), key).Scan(&value)
	if err == nil {
		err = json.Unmarshal([]byte(value), &doc)
	}
	if err == nil {
		err = doc.Validate()
	}
	if err != nil {
		logging.FromContext(ctx).Warn("Store document unusable, using defaults", slog.String("key", key), slog.String("error", err.Error()))
		return fallback()
	}
	return doc
}

func (s *Store) writeDocument(ctx context.Context, key string, doc any) error {
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", apperrors.ErrSerialization, key, err)
	}
	_, err = s.stmts.exec(ctx, nil, upsertDocument, key, string(body))
	return apperrors.NewIOError("write "+key, s.address, err)
}

func (s *Store) Scheme() string                      { return s.scheme }
func (s *Store) Address() string                     { return s.address }
func (s *Store) Ledgers() repositories.LedgerStore   { return s.ledgers }
func (s *Store) Journals() repositories.JournalStore { return s.journals }
func (s *Store) Settings() domain.Settings           { return s.settings }
func (s *Store) Permissions() domain.Permissions     { return s.permissions }

// Disconnect waits for in-flight operations, then closes cached statements and the pool.
func (s *Store) Disconnect(ctx context.Context) error {
	closed, err := s.tracker.Close(ctx)
	if !closed {
		return nil
	}
	if rerr := s.release(); rerr != nil && err == nil {
		err = rerr
	}
	logging.FromContext(ctx).Debug("Disconnected from data store", slog.String("address", s.address))
	return err
}

func (s *Store) release() error {
	s.stmts.close()
	if err := s.db.Close(); err != nil {
		return apperrors.NewIOError("close", s.address, err)
	}
	return nil
}
