package entitystore

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/SscSPs/sledge/internal/utils/pagination"
)

// SortRows orders rows by (created, id).
func SortRows(rows []Row) {
	slices.SortFunc(rows, func(a, b Row) int {
		if c := a.Created.Compare(b.Created); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// PageAfter returns up to limit rows of the sorted slice that follow the cursor.
func PageAfter(sorted []Row, after *pagination.Cursor, limit int) []Row {
	start := 0
	if after != nil {
		start = len(sorted)
		for i, r := range sorted {
			if after.After(r.Created, r.ID) {
				start = i
				break
			}
		}
	}
	end := len(sorted)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return slices.Clone(sorted[start:end])
}

// MemoryDriver keeps rows in memory. It backs tests and ephemeral stores.
type MemoryDriver struct {
	mu   sync.RWMutex
	rows map[string]Row
}

func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{rows: make(map[string]Row)}
}

func (m *MemoryDriver) Get(_ context.Context, id string) (Row, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.rows[id]
	return row, ok, nil
}

func (m *MemoryDriver) Insert(ctx context.Context, row Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rows[row.ID]; exists {
		return apperrors.ErrDuplicate
	}
	m.rows[row.ID] = row
	return nil
}

func (m *MemoryDriver) Replace(ctx context.Context, id string, apply func(prev Row) (Row, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.rows[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	next, err := apply(prev)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.rows[id] = next
	return nil
}

func (m *MemoryDriver) Remove(ctx context.Context, id string, check func(prev Row) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.rows[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if err := check(prev); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	delete(m.rows, id)
	return nil
}

func (m *MemoryDriver) Scan(_ context.Context, after *pagination.Cursor, limit int) ([]Row, error) {
	m.mu.RLock()
	rows := make([]Row, 0, len(m.rows))
	for _, r := range m.rows {
		rows = append(rows, r)
	}
	m.mu.RUnlock()
	SortRows(rows)
	return PageAfter(rows, after, limit), nil
}
