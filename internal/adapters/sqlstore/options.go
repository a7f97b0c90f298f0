package sqlstore

import (
	"fmt"
	"net/url"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/SscSPs/sledge/internal/platform/config"
)

const (
	SQLiteScheme     = "sqlite"
	PostgresScheme   = "postgres"
	PostgresqlScheme = "postgresql"
)

// Dialect is the SQL flavour a store speaks.
type Dialect int

const (
	SQLite Dialect = iota + 1
	Postgres
)

func (d Dialect) String() string {
	switch d {
	case SQLite:
		return "sqlite"
	case Postgres:
		return "postgres"
	default:
		return "unknown"
	}
}

// DialectFor maps a connection scheme to its dialect.
func DialectFor(scheme string) (Dialect, bool) {
	switch scheme {
	case SQLiteScheme:
		return SQLite, true
	case PostgresScheme, PostgresqlScheme:
		return Postgres, true
	default:
		return 0, false
	}
}

const DefaultStatementCache = 64

// SQLiteOptions are the query parameters of a sqlite:// address.
type SQLiteOptions struct {
	Path           string
	AutoVacuum     string
	BusyTimeout    int
	Create         bool
	ForeignKeys    bool
	JournalMode    string
	LockingMode    string
	PageSize       int
	ReadOnly       bool
	Synchronous    string
	StatementCache int
}

func DefaultSQLiteOptions() SQLiteOptions {
	return SQLiteOptions{
		AutoVacuum:     "none",
		BusyTimeout:    5000,
		Create:         true,
		ForeignKeys:    true,
		JournalMode:    "wal",
		LockingMode:    "normal",
		PageSize:       4096,
		ReadOnly:       false,
		Synchronous:    "normal",
		StatementCache: DefaultStatementCache,
	}
}

// ParseSQLiteOptions reads sqlite:///abs/path/file.db?<options>. Unknown options are rejected.
func ParseSQLiteOptions(address *url.URL) (SQLiteOptions, error) {
	opts := DefaultSQLiteOptions()
	if address.Scheme != SQLiteScheme {
		return opts, fmt.Errorf("%w: %q is not a %s address", apperrors.ErrUnknownScheme, address.Scheme, SQLiteScheme)
	}
	opts.Path = filepath.Clean(config.ExpandString(address.Path))
	if address.Path == "" || !filepath.IsAbs(opts.Path) {
		return opts, invalidOption("path", address.Path, "must be absolute")
	}

	var err error
	for key, values := range address.Query() {
		v := strings.ToLower(values[len(values)-1])
		switch key {
		case "auto_vacuum":
			opts.AutoVacuum, err = oneOf(key, v, "none", "full", "incremental")
		case "busy_timeout":
			opts.BusyTimeout, err = nonNegative(key, v)
		case "create":
			opts.Create, err = boolean(key, v)
		case "foreign_keys":
			opts.ForeignKeys, err = boolean(key, v)
		case "journal_mode":
			opts.JournalMode, err = oneOf(key, v, "delete", "truncate", "persist", "memory", "wal", "off")
		case "locking_mode":
			opts.LockingMode, err = oneOf(key, v, "normal", "exclusive")
		case "page_size":
			opts.PageSize, err = nonNegative(key, v)
			if err == nil && (opts.PageSize < 512 || opts.PageSize > 65536 || opts.PageSize&(opts.PageSize-1) != 0) {
				err = invalidOption(key, v, "must be a power of two between 512 and 65536")
			}
		case "read_only":
			opts.ReadOnly, err = boolean(key, v)
		case "synchronous":
			opts.Synchronous, err = oneOf(key, v, "off", "normal", "full", "extra")
		case "statement_cache":
			opts.StatementCache, err = nonNegative(key, v)
		default:
			err = invalidOption(key, v, "unknown option")
		}
		if err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// DSN renders the options for the go-sqlite3 driver. The journal mode and page size are set by
// the connect hook of the registered driver instead.
func (o SQLiteOptions) DSN() string {
	mode := "rw"
	switch {
	case o.ReadOnly:
		mode = "ro"
	case o.Create:
		mode = "rwc"
	}
	q := url.Values{}
	q.Set("mode", mode)
	q.Set("_auto_vacuum", o.AutoVacuum)
	q.Set("_busy_timeout", strconv.Itoa(o.BusyTimeout))
	q.Set("_foreign_keys", strconv.FormatBool(o.ForeignKeys))
	q.Set("_locking_mode", strings.ToUpper(o.LockingMode))
	q.Set("_synchronous", strings.ToUpper(o.Synchronous))
	// every transaction here writes, so take the write lock up front
	q.Set("_txlock", "immediate")
	return "file:" + o.Path + "?" + q.Encode()
}

// PostgresOptions are the store options of a postgres:// address. Remaining query parameters
// are passed to pgx untouched.
type PostgresOptions struct {
	ConnString     string
	ReadOnly       bool
	StatementCache int
}

func ParsePostgresOptions(address *url.URL) (PostgresOptions, error) {
	opts := PostgresOptions{StatementCache: DefaultStatementCache}
	if _, ok := DialectFor(address.Scheme); !ok || address.Scheme == SQLiteScheme {
		return opts, fmt.Errorf("%w: %q is not a %s address", apperrors.ErrUnknownScheme, address.Scheme, PostgresScheme)
	}

	q := address.Query()
	var err error
	if v := q.Get("statement_cache"); v != "" {
		if opts.StatementCache, err = nonNegative("statement_cache", v); err != nil {
			return opts, err
		}
	}
	if v := q.Get("read_only"); v != "" {
		if opts.ReadOnly, err = boolean("read_only", strings.ToLower(v)); err != nil {
			return opts, err
		}
	}
	q.Del("statement_cache")
	q.Del("read_only")

	u := *address
	u.RawQuery = q.Encode()
	opts.ConnString = u.String()
	return opts, nil
}

func invalidOption(key, value, reason string) error {
	return fmt.Errorf("%w: store option %s=%q: %s", apperrors.ErrValidation, key, value, reason)
}

func oneOf(key, v string, allowed ...string) (string, error) {
	if !slices.Contains(allowed, v) {
		return "", invalidOption(key, v, "expected one of "+strings.Join(allowed, ", "))
	}
	return v, nil
}

func nonNegative(key, v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, invalidOption(key, v, "expected a non-negative integer")
	}
	return n, nil
}

func boolean(key, v string) (bool, error) {
	switch v {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, invalidOption(key, v, "expected a boolean")
}
