package entitystore_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SscSPs/sledge/internal/adapters/entitystore"
	"github.com/SscSPs/sledge/internal/adapters/entitystore/storetest"
	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/SscSPs/sledge/internal/core/ports/repositories"
	"github.com/SscSPs/sledge/internal/utils/concurrency"
	"github.com/SscSPs/sledge/internal/utils/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func newMemoryJournals(tracker *concurrency.Tracker) repositories.JournalStore {
	return entitystore.New[domain.JournalName, domain.Journal](entitystore.NewMemoryDriver(), tracker, entitystore.Options[domain.JournalName]{
		Kind:      "journal",
		IOTimeout: time.Second,
		PageSize:  storetest.PageSize,
		NewID:     domain.NewJournalName,
	})
}

func TestMemoryJournalStore(t *testing.T) {
	suite.Run(t, &storetest.JournalStoreSuite{
		NewStore: func() repositories.JournalStore { return newMemoryJournals(nil) },
	})
}

func TestMemoryLedgerStore(t *testing.T) {
	suite.Run(t, &storetest.LedgerStoreSuite{
		NewStore: func() repositories.LedgerStore {
			return entitystore.New[domain.LedgerKind, domain.Ledger](entitystore.NewMemoryDriver(), nil, entitystore.Options[domain.LedgerKind]{
				Kind:     "ledger",
				PageSize: storetest.PageSize,
				NewID:    domain.NewOtherLedgerKind,
			})
		},
	})
}

func TestStore_ClosedTrackerRejectsOperations(t *testing.T) {
	tracker := &concurrency.Tracker{}
	store := newMemoryJournals(tracker)
	_, err := tracker.Close(context.Background())
	require.NoError(t, err)

	_, _, err = store.GetByID(context.Background(), "main")
	assert.ErrorIs(t, err, apperrors.ErrStoreClosed)
}

// slowDriver delays inserts past the I/O bound of the stores under test.
type slowDriver struct {
	*entitystore.MemoryDriver
	finished *atomic.Bool
}

func (d slowDriver) Insert(ctx context.Context, row entitystore.Row) error {
	time.Sleep(100 * time.Millisecond)
	err := d.MemoryDriver.Insert(ctx, row)
	if d.finished != nil {
		d.finished.Store(true)
	}
	return err
}

func TestStore_IOTimeout(t *testing.T) {
	store := entitystore.New[domain.JournalName, domain.Journal](slowDriver{MemoryDriver: entitystore.NewMemoryDriver()}, nil, entitystore.Options[domain.JournalName]{
		Kind:      "journal",
		IOTimeout: 5 * time.Millisecond,
	})
	_, err := store.Create(context.Background(), domain.NewJournal("main", domain.MustCurrency("USD")))
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
}

func TestStore_CloseWaitsForTimedOutWrite(t *testing.T) {
	ctx := context.Background()
	tracker := &concurrency.Tracker{}
	memory := entitystore.NewMemoryDriver()
	var finished atomic.Bool
	store := entitystore.New[domain.JournalName, domain.Journal](slowDriver{MemoryDriver: memory, finished: &finished}, tracker, entitystore.Options[domain.JournalName]{
		Kind:      "journal",
		IOTimeout: 10 * time.Millisecond,
	})

	_, err := store.Create(ctx, domain.NewJournal("main", domain.MustCurrency("USD")))
	require.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.False(t, finished.Load())

	_, err = tracker.Close(ctx)
	require.NoError(t, err)
	assert.True(t, finished.Load(), "close drains the write that outlived its bound")

	_, found, err := memory.Get(ctx, "main")
	require.NoError(t, err)
	assert.False(t, found, "a write past its deadline is not committed")
}

func TestStore_ListLedgersByKind(t *testing.T) {
	ctx := context.Background()
	store := entitystore.New[domain.LedgerKind, domain.Ledger](entitystore.NewMemoryDriver(), nil, entitystore.Options[domain.LedgerKind]{
		Kind:  "ledger",
		NewID: domain.NewOtherLedgerKind,
	})

	kind, err := store.Create(ctx, domain.NewLedger(domain.LedgerKind{}, domain.MustCurrency("EUR"), "misc"))
	require.NoError(t, err)
	assert.Equal(t, "other:", kind.String()[:6], "a ledger without a kind gets a generated Other kind")

	require.NoError(t, store.CreateWithID(ctx, domain.NewLedger(domain.LedgerKind{}, domain.MustCurrency("EUR"), "gl"), domain.GeneralLedger()))
	got, found, err := store.GetByID(ctx, domain.GeneralLedger())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "gl", got.Description)
}

func TestPageAfter(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []entitystore.Row{
		{ID: "b", Created: base},
		{ID: "a", Created: base.Add(time.Second)},
		{ID: "a", Created: base},
	}
	entitystore.SortRows(rows)
	assert.Equal(t, []string{"a", "b", "a"}, []string{rows[0].ID, rows[1].ID, rows[2].ID})

	page := entitystore.PageAfter(rows, &pagination.Cursor{Created: base, ID: "a"}, 1)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].ID)

	assert.Empty(t, entitystore.PageAfter(rows, &pagination.Cursor{Created: base.Add(time.Hour)}, 10))
	assert.Len(t, entitystore.PageAfter(rows, nil, 0), 3)
}
