package sqlstore

import (
	"context"
	"database/sql"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// statements runs queries for one database, preparing each query text once and keeping up to
// capacity prepared statements. With no cache queries go straight to the database, which is
// how the pgx connection uses its own statement cache.
type statements struct {
	db      *sql.DB
	dialect Dialect
	mu      sync.Mutex
	cache   *lru.Cache[string, *sql.Stmt]
}

func newStatements(db *sql.DB, dialect Dialect, capacity int) (*statements, error) {
	s := &statements{db: db, dialect: dialect}
	if capacity > 0 {
		cache, err := lru.NewWithEvict(capacity, func(_ string, stmt *sql.Stmt) {
			// Close waits for queries still running on stmt
			_ = stmt.Close()
		})
		if err != nil {
			return nil, err
		}
		s.cache = cache
	}
	return s, nil
}

// rebind turns $n placeholders into the dialect's form.
func (s *statements) rebind(q string) string {
	if s.dialect == SQLite {
		// sqlite numbers parameters as ?n
		out := []byte(q)
		for i, c := range out {
			if c == '$' {
				out[i] = '?'
			}
		}
		return string(out)
	}
	return q
}

func (s *statements) prepared(ctx context.Context, q string) (*sql.Stmt, error) {
	if s.cache == nil {
		return nil, nil
	}
	if stmt, ok := s.cache.Get(q); ok {
		return stmt, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if stmt, ok := s.cache.Get(q); ok {
		return stmt, nil
	}
	stmt, err := s.db.PrepareContext(ctx, q)
	if err != nil {
		return nil, err
	}
	s.cache.Add(q, stmt)
	return stmt, nil
}

func (s *statements) query(ctx context.Context, tx *sql.Tx, q string, args ...any) (*sql.Rows, error) {
	q = s.rebind(q)
	stmt, err := s.prepared(ctx, q)
	if err != nil {
		return nil, err
	}
	switch {
	case stmt != nil && tx != nil:
		return tx.StmtContext(ctx, stmt).QueryContext(ctx, args...)
	case stmt != nil:
		return stmt.QueryContext(ctx, args...)
	case tx != nil:
		return tx.QueryContext(ctx, q, args...)
	default:
		return s.db.QueryContext(ctx, q, args...)
	}
}

func (s *statements) exec(ctx context.Context, tx *sql.Tx, q string, args ...any) (sql.Result, error) {
	q = s.rebind(q)
	stmt, err := s.prepared(ctx, q)
	if err != nil {
		return nil, err
	}
	switch {
	case stmt != nil && tx != nil:
		return tx.StmtContext(ctx, stmt).ExecContext(ctx, args...)
	case stmt != nil:
		return stmt.ExecContext(ctx, args...)
	case tx != nil:
		return tx.ExecContext(ctx, q, args...)
	default:
		return s.db.ExecContext(ctx, q, args...)
	}
}

// inTx runs fn in a transaction, committing when fn succeeds.
func (s *statements) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// close releases every cached statement.
func (s *statements) close() {
	if s.cache != nil {
		s.cache.Purge()
	}
}
