package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/SscSPs/sledge/internal/adapters/entitystore"
	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/SscSPs/sledge/internal/utils/pagination"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// tableDriver stores one entity kind as rows of the entities table.
type tableDriver struct {
	stmts   *statements
	kind    string
	address string
}

var _ entitystore.Driver = (*tableDriver)(nil)

const (
	selectBody = `SELECT body FROM entities WHERE kind = $1 AND id = $2`
	insertRow  = `INSERT INTO entities (kind, id, created, body) VALUES ($1, $2, $3, $4)`
	updateBody = `UPDATE entities SET body = $3 WHERE kind = $1 AND id = $2`
	deleteRow  = `DELETE FROM entities WHERE kind = $1 AND id = $2`
	scanFirst  = `SELECT id, created, body FROM entities WHERE kind = $1 ORDER BY created, id LIMIT $2`
	scanAfter  = `SELECT id, created, body FROM entities
		WHERE kind = $1 AND (created > $2 OR (created = $2 AND id > $3))
		ORDER BY created, id LIMIT $4`
)

func (d *tableDriver) ioError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return apperrors.NewIOError(op, d.address, err)
}

// lockedBody reads the body of id inside tx, holding a row lock where the dialect has them.
func (d *tableDriver) lockedBody(ctx context.Context, tx *sql.Tx, id string) ([]byte, bool, error) {
	q := selectBody
	if d.stmts.dialect == Postgres {
		q += " FOR UPDATE"
	}
	return d.body(ctx, tx, q, id)
}

func (d *tableDriver) body(ctx context.Context, tx *sql.Tx, q, id string) ([]byte, bool, error) {
	rows, err := d.stmts.query(ctx, tx, q, d.kind, id)
	if err != nil {
		return nil, false, d.ioError("select", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, false, d.ioError("select", rows.Err())
	}
	var body string
	if err := rows.Scan(&body); err != nil {
		return nil, false, d.ioError("select", err)
	}
	return []byte(body), true, nil
}

func (d *tableDriver) Get(ctx context.Context, id string) (entitystore.Row, bool, error) {
	body, ok, err := d.body(ctx, nil, selectBody, id)
	if err != nil || !ok {
		return entitystore.Row{}, false, err
	}
	return entitystore.Row{ID: id, Body: body}, true, nil
}

// Insert runs in a transaction bound to ctx, so a row whose deadline passes before the commit
// is rolled back.
func (d *tableDriver) Insert(ctx context.Context, row entitystore.Row) error {
	return d.stmts.inTx(ctx, func(tx *sql.Tx) error {
		_, err := d.stmts.exec(ctx, tx, insertRow, d.kind, row.ID, pagination.FormatCreated(row.Created), string(row.Body))
		if isUniqueViolation(err) {
			return apperrors.ErrDuplicate
		}
		return d.ioError("insert", err)
	})
}

func (d *tableDriver) Replace(ctx context.Context, id string, apply func(prev entitystore.Row) (entitystore.Row, error)) error {
	return d.stmts.inTx(ctx, func(tx *sql.Tx) error {
		body, ok, err := d.lockedBody(ctx, tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.ErrNotFound
		}
		next, err := apply(entitystore.Row{ID: id, Body: body})
		if err != nil {
			return err
		}
		_, err = d.stmts.exec(ctx, tx, updateBody, d.kind, id, string(next.Body))
		return d.ioError("update", err)
	})
}

func (d *tableDriver) Remove(ctx context.Context, id string, check func(prev entitystore.Row) error) error {
	return d.stmts.inTx(ctx, func(tx *sql.Tx) error {
		body, ok, err := d.lockedBody(ctx, tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.ErrNotFound
		}
		if err := check(entitystore.Row{ID: id, Body: body}); err != nil {
			return err
		}
		_, err = d.stmts.exec(ctx, tx, deleteRow, d.kind, id)
		return d.ioError("delete", err)
	})
}

func (d *tableDriver) Scan(ctx context.Context, after *pagination.Cursor, limit int) ([]entitystore.Row, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if after == nil {
		rows, err = d.stmts.query(ctx, nil, scanFirst, d.kind, limit)
	} else {
		rows, err = d.stmts.query(ctx, nil, scanAfter, d.kind, pagination.FormatCreated(after.Created), after.ID, limit)
	}
	if err != nil {
		return nil, d.ioError("list", err)
	}
	defer rows.Close()

	out := make([]entitystore.Row, 0, limit)
	for rows.Next() {
		var id, created, body string
		if err := rows.Scan(&id, &created, &body); err != nil {
			return nil, d.ioError("list", err)
		}
		t, err := time.Parse(pagination.CreatedFormat, created)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %q has creation time %q", apperrors.ErrSerialization, d.kind, id, created)
		}
		out = append(out, entitystore.Row{ID: id, Created: t, Body: []byte(body)})
	}
	return out, d.ioError("list", rows.Err())
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
