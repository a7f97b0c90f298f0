// Package entitystore implements the entity-store contract once, on top of a small row-level
// Driver that each physical backend provides.
package entitystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/SscSPs/sledge/internal/core/ports/repositories"
	"github.com/SscSPs/sledge/internal/platform/logging"
	"github.com/SscSPs/sledge/internal/utils/concurrency"
	"github.com/SscSPs/sledge/internal/utils/pagination"
)

// DefaultPageSize is used when Options.PageSize is not positive.
const DefaultPageSize = 100

// Row is one stored entity.
type Row struct {
	ID      string
	Created time.Time
	Body    []byte
}

// Driver is the physical storage for one entity kind.
type Driver interface {
	// Get returns the row stored under id; a missing row is (Row{}, false, nil).
	Get(ctx context.Context, id string) (Row, bool, error)

	// Insert stores a new row, failing with apperrors.ErrDuplicate when id is taken.
	Insert(ctx context.Context, row Row) error

	// Replace loads the row under id, passes it to apply and atomically stores the result.
	// It fails with apperrors.ErrNotFound when id is absent.
	Replace(ctx context.Context, id string, apply func(prev Row) (Row, error)) error

	// Remove deletes the row under id once check accepts it.
	// It fails with apperrors.ErrNotFound when id is absent.
	Remove(ctx context.Context, id string, check func(prev Row) error) error

	// Scan returns up to limit rows ordered by (created, id), strictly after the cursor.
	Scan(ctx context.Context, after *pagination.Cursor, limit int) ([]Row, error)
}

// Indexer extracts the identifier and creation time from a stored body.
type Indexer func(body []byte) (id string, created time.Time, err error)

// IndexOf returns the Indexer for entities of type E.
func IndexOf[I repositories.Identifier, E repositories.Entity[I]]() Indexer {
	return func(body []byte) (string, time.Time, error) {
		var e E
		if err := json.Unmarshal(body, &e); err != nil {
			return "", time.Time{}, err
		}
		return e.Identifier().String(), e.Created().UTC(), nil
	}
}

// Options configure a Store.
type Options[I repositories.Identifier] struct {
	// Kind names the entity kind in logs and errors, e.g. "journal".
	Kind      string
	IOTimeout time.Duration
	PageSize  int
	// NewID generates identifiers for entities created without one.
	NewID func() I
	// Now is the clock used for read-only and immutability checks.
	Now func() time.Time
}

// Store implements repositories.EntityStore over a Driver.
type Store[I repositories.Identifier, E repositories.Record[I, E]] struct {
	driver  Driver
	locks   *concurrency.KeyedMutex
	tracker *concurrency.Tracker
	opts    Options[I]
}

// New creates a Store. The tracker is shared with the owning data store handle so that
// disconnecting it drains operations on every entity kind.
func New[I repositories.Identifier, E repositories.Record[I, E]](driver Driver, tracker *concurrency.Tracker, opts Options[I]) *Store[I, E] {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Now == nil {
		opts.Now = domain.Now
	}
	if tracker == nil {
		tracker = &concurrency.Tracker{}
	}
	return &Store[I, E]{
		driver:  driver,
		locks:   concurrency.NewKeyedMutex(),
		tracker: tracker,
		opts:    opts,
	}
}

// run executes fn under the in-flight tracker and the I/O bound. When key is not empty fn also
// holds the per-identifier lock. The tracker slot is held until fn returns, also when the bound
// fires first, so a disconnect never releases resources under a running driver call.
func (s *Store[I, E]) run(ctx context.Context, op, key string, fn func(ctx context.Context) error) error {
	leave, err := s.tracker.Enter()
	if err != nil {
		return err
	}

	return concurrency.Bounded(ctx, s.opts.IOTimeout, s.opts.Kind+" "+op, func(ctx context.Context) error {
		defer leave()
		if key != "" {
			unlock := s.locks.Lock(key)
			defer unlock()
		}
		return fn(ctx)
	})
}

func (s *Store[I, E]) decode(id string, body []byte) (E, error) {
	var e E
	if err := json.Unmarshal(body, &e); err != nil {
		return e, fmt.Errorf("%w: %s %q: %v", apperrors.ErrSerialization, s.opts.Kind, id, err)
	}
	return e, nil
}

func (s *Store[I, E]) encode(e E) ([]byte, error) {
	body, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q: %v", apperrors.ErrSerialization, s.opts.Kind, e.Identifier().String(), err)
	}
	return body, nil
}

func (s *Store[I, E]) Create(ctx context.Context, e E) (I, error) {
	id := e.Identifier()
	var zero I
	if id == zero {
		if s.opts.NewID == nil {
			return zero, fmt.Errorf("%w: %s has no identifier", apperrors.ErrValidation, s.opts.Kind)
		}
		id = s.opts.NewID()
		e = e.WithIdentifier(id)
	}
	if err := s.insert(ctx, e); err != nil {
		return zero, err
	}
	return id, nil
}

func (s *Store[I, E]) CreateWithID(ctx context.Context, e E, id I) error {
	return s.insert(ctx, e.WithIdentifier(id))
}

func (s *Store[I, E]) insert(ctx context.Context, e E) error {
	logger := logging.FromContext(ctx)
	id := e.Identifier().String()

	if err := e.Validate(); err != nil {
		logger.Debug("Rejected invalid entity", slog.String("kind", s.opts.Kind), slog.String("id", id), slog.String("error", err.Error()))
		return err
	}
	body, err := s.encode(e)
	if err != nil {
		return err
	}

	err = s.run(ctx, "create", id, func(ctx context.Context) error {
		return s.driver.Insert(ctx, Row{ID: id, Created: e.Created().UTC(), Body: body})
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			return fmt.Errorf("%s %q: %w", s.opts.Kind, id, err)
		}
		return err
	}
	logger.Debug("Created entity", slog.String("kind", s.opts.Kind), slog.String("id", id))
	return nil
}

func (s *Store[I, E]) GetByID(ctx context.Context, id I) (E, bool, error) {
	var (
		out   E
		found bool
	)
	key := id.String()
	err := s.run(ctx, "get", "", func(ctx context.Context) error {
		row, ok, err := s.driver.Get(ctx, key)
		if err != nil || !ok {
			return err
		}
		e, err := s.decode(key, row.Body)
		if err != nil {
			return err
		}
		out, found = e, true
		return nil
	})
	if err != nil {
		var zero E
		return zero, false, err
	}
	return out, found, nil
}

func (s *Store[I, E]) Update(ctx context.Context, e E) error {
	logger := logging.FromContext(ctx)
	id := e.Identifier().String()

	body, err := s.encode(e)
	if err != nil {
		return err
	}
	err = s.run(ctx, "update", id, func(ctx context.Context) error {
		return s.driver.Replace(ctx, id, func(prev Row) (Row, error) {
			if err := e.Validate(); err != nil {
				return Row{}, err
			}
			old, err := s.decode(id, prev.Body)
			if err != nil {
				return Row{}, err
			}
			if err := e.CheckReplace(old, s.opts.Now()); err != nil {
				return Row{}, err
			}
			return Row{ID: id, Created: old.Created().UTC(), Body: body}, nil
		})
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%s %q: %w", s.opts.Kind, id, err)
		}
		logger.Debug("Update rejected", slog.String("kind", s.opts.Kind), slog.String("id", id), slog.String("error", err.Error()))
		return err
	}
	logger.Debug("Updated entity", slog.String("kind", s.opts.Kind), slog.String("id", id))
	return nil
}

func (s *Store[I, E]) Delete(ctx context.Context, id I) error {
	key := id.String()
	err := s.run(ctx, "delete", key, func(ctx context.Context) error {
		return s.driver.Remove(ctx, key, func(prev Row) error {
			old, err := s.decode(key, prev.Body)
			if err != nil {
				return err
			}
			return old.CheckDelete(s.opts.Now())
		})
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%s %q: %w", s.opts.Kind, key, err)
		}
		return err
	}
	logging.FromContext(ctx).Debug("Deleted entity", slog.String("kind", s.opts.Kind), slog.String("id", key))
	return nil
}

func (s *Store[I, E]) List(ctx context.Context, pageToken string) (repositories.Page[E], error) {
	cursor, err := pagination.DecodeCursor(pageToken)
	if err != nil {
		return repositories.Page[E]{}, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	page := repositories.Page[E]{Items: []E{}, NextToken: pageToken}
	err = s.run(ctx, "list", "", func(ctx context.Context) error {
		rows, err := s.driver.Scan(ctx, cursor, s.opts.PageSize)
		if err != nil {
			return err
		}
		for _, row := range rows {
			e, err := s.decode(row.ID, row.Body)
			if err != nil {
				return err
			}
			page.Items = append(page.Items, e)
		}
		if n := len(rows); n > 0 {
			last := rows[n-1]
			page.NextToken = pagination.EncodeCursor(pagination.Cursor{Created: last.Created, ID: last.ID})
		}
		return nil
	})
	if err != nil {
		return repositories.Page[E]{}, err
	}
	return page, nil
}
