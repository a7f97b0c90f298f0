package repositories

import (
	"context"
	"iter"
	"time"
)

// Identifier is the constraint for entity identifiers: comparable and printable, so a
// backend can use the text form as a file name or key.
type Identifier interface {
	comparable
	String() string
}

// Entity is anything stored under an identifier.
type Entity[I Identifier] interface {
	Identifier() I
	Label() string
	Created() time.Time
}

// Record is an entity that knows its own invariants. Stores call Validate on every create and
// update, CheckReplace before overwriting and CheckDelete before removing.
type Record[I Identifier, E any] interface {
	Entity[I]
	Validate() error
	CheckReplace(prev E, now time.Time) error
	CheckDelete(now time.Time) error
	WithIdentifier(id I) E
}

// Page is one slice of a listing ordered by (creation time, identifier).
type Page[E any] struct {
	Items []E
	// NextToken resumes the listing after the last item. When the listing is exhausted it
	// equals the token that was passed in.
	NextToken string
}

// EntityReader defines read operations over one kind of entity.
type EntityReader[I Identifier, E Entity[I]] interface {
	// List returns the page that follows pageToken. An empty token starts from the beginning.
	List(ctx context.Context, pageToken string) (Page[E], error)

	// GetByID returns the entity stored under id. A missing id is (zero, false, nil).
	GetByID(ctx context.Context, id I) (E, bool, error)
}

// EntityWriter defines write operations over one kind of entity.
type EntityWriter[I Identifier, E Entity[I]] interface {
	// Create stores e, assigning a fresh identifier when e has the zero identifier.
	Create(ctx context.Context, e E) (I, error)

	// CreateWithID stores e under id; the stored entity carries id.
	CreateWithID(ctx context.Context, e E, id I) error

	// Update atomically replaces the stored version of e.
	Update(ctx context.Context, e E) error

	// Delete removes the entity stored under id.
	Delete(ctx context.Context, id I) error
}

// EntityStore combines the read and write operations of one entity kind.
type EntityStore[I Identifier, E Entity[I]] interface {
	EntityReader[I, E]
	EntityWriter[I, E]
}

// All iterates every entity of store in listing order. Each call restarts from the beginning.
// Iteration stops after the first error.
func All[I Identifier, E Entity[I]](ctx context.Context, store EntityStore[I, E]) iter.Seq2[E, error] {
	return func(yield func(E, error) bool) {
		token := ""
		for {
			page, err := store.List(ctx, token)
			if err != nil {
				var zero E
				yield(zero, err)
				return
			}
			if len(page.Items) == 0 {
				return
			}
			for _, e := range page.Items {
				if !yield(e, nil) {
					return
				}
			}
			if page.NextToken == token {
				return
			}
			token = page.NextToken
		}
	}
}
