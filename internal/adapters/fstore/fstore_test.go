package fstore_test

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SscSPs/sledge/internal/adapters/entitystore/storetest"
	"github.com/SscSPs/sledge/internal/adapters/fstore"
	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/SscSPs/sledge/internal/core/ports/repositories"
	"github.com/SscSPs/sledge/internal/platform/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var storeConfig = config.StoreConfig{IOTimeout: 5 * time.Second, PageSize: storetest.PageSize}

func address(t *testing.T, dir string) *url.URL {
	t.Helper()
	u, err := url.Parse("fstore://" + filepath.ToSlash(dir))
	require.NoError(t, err)
	return u
}

func newStore(t *testing.T, contents repositories.CreateDatastoreContents) (*fstore.Store, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "books")
	s, err := fstore.Create(context.Background(), storeConfig, address(t, dir), contents)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Disconnect(context.Background()) })
	return s, dir
}

func TestJournalStore(t *testing.T) {
	suite.Run(t, &storetest.JournalStoreSuite{
		NewStore: func() repositories.JournalStore {
			s, _ := newStore(t, repositories.NewContents(domain.MustCurrency("USD")))
			return s.Journals()
		},
	})
}

func TestLedgerStore(t *testing.T) {
	suite.Run(t, &storetest.LedgerStoreSuite{
		NewStore: func() repositories.LedgerStore {
			s, _ := newStore(t, repositories.NewContents(domain.MustCurrency("USD")))
			return s.Ledgers()
		},
	})
}

func TestCreate_FailureLeavesNothingBehind(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "books")
	addr := address(t, dir)

	// a name longer than any file name the filesystem accepts fails on write
	tooLong := domain.NewJournal(domain.JournalName(strings.Repeat("j", 300)), domain.MustCurrency("USD"))
	contents := repositories.NewContents(domain.MustCurrency("USD")).Personal()
	contents.Journals = append(contents.Journals, tooLong)
	_, err := fstore.Create(ctx, storeConfig, addr, contents)
	require.Error(t, err)
	assert.NoDirExists(t, dir, "partial store is removed")

	ok, err := fstore.Exists(ctx, addr)
	require.NoError(t, err)
	assert.False(t, ok)

	s, err := fstore.Create(ctx, storeConfig, addr, repositories.NewContents(domain.MustCurrency("USD")).Personal().WithCombinedJournal())
	require.NoError(t, err, "retry after a failed create")
	require.NoError(t, s.Disconnect(ctx))
}

func TestCreate_ThenExists_ThenCreateFails(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "books")
	addr := address(t, dir)

	ok, err := fstore.Exists(ctx, addr)
	require.NoError(t, err)
	assert.False(t, ok)

	s, err := fstore.Create(ctx, storeConfig, addr, repositories.NewContents(domain.MustCurrency("EUR")).Personal().WithCombinedJournal())
	require.NoError(t, err)
	require.NoError(t, s.Disconnect(ctx))

	ok, err = fstore.Exists(ctx, addr)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.FileExists(t, filepath.Join(dir, "settings.json"))
	assert.FileExists(t, filepath.Join(dir, "permissions.json"))
	assert.DirExists(t, filepath.Join(dir, "journals"))
	assert.FileExists(t, filepath.Join(dir, "ledgers", "general"))
	assert.FileExists(t, filepath.Join(dir, "journals", "combined"))

	_, err = fstore.Create(ctx, storeConfig, addr, repositories.NewContents(domain.MustCurrency("EUR")))
	assert.ErrorIs(t, err, apperrors.ErrStoreExists)
}

func TestConnect(t *testing.T) {
	ctx := context.Background()

	_, err := fstore.Connect(ctx, storeConfig, address(t, filepath.Join(t.TempDir(), "missing")))
	assert.ErrorIs(t, err, apperrors.ErrStoreDoesNotExist)

	s, dir := newStore(t, repositories.NewContents(domain.MustCurrency("EUR")).Personal().WithCombinedJournal())
	require.NoError(t, s.Disconnect(ctx))

	again, err := fstore.Connect(ctx, storeConfig, address(t, dir))
	require.NoError(t, err)
	defer again.Disconnect(ctx)

	assert.Equal(t, fstore.Scheme, again.Scheme())
	assert.Equal(t, "EUR", again.Settings().DefaultCommodity.Code())

	l, found, err := again.Ledgers().GetByID(ctx, domain.GeneralLedger())
	require.NoError(t, err)
	require.True(t, found)
	assert.NotEmpty(t, l.Book)

	_, found, err = again.Journals().GetByID(ctx, "combined")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestConnect_MalformedSettingsFallBackToDefaults(t *testing.T) {
	ctx := context.Background()
	s, dir := newStore(t, repositories.NewContents(domain.MustCurrency("EUR")))
	require.NoError(t, s.Disconnect(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"), []byte("{not json"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "permissions.json"), []byte(`{"version": ""}`), 0o600))

	again, err := fstore.Connect(ctx, storeConfig, address(t, dir))
	require.NoError(t, err)
	defer again.Disconnect(ctx)
	assert.Equal(t, domain.DefaultSettings().DefaultCommodity, again.Settings().DefaultCommodity)
	assert.True(t, again.Permissions().RoleCanPerform(domain.AdminRole, domain.ActionSign, domain.ResourceJournal))
}

func TestMalformedEntityFileIsLoud(t *testing.T) {
	ctx := context.Background()
	s, dir := newStore(t, repositories.NewContents(domain.MustCurrency("USD")).WithCombinedJournal())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "journals", "combined"), []byte("{broken"), 0o600))

	_, _, err := s.Journals().GetByID(ctx, "combined")
	assert.ErrorIs(t, err, apperrors.ErrSerialization)
	_, err = s.Journals().List(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrSerialization)
}

func TestEntityFilesAreEscapedAndTempFilesIgnored(t *testing.T) {
	ctx := context.Background()
	s, dir := newStore(t, repositories.NewContents(domain.MustCurrency("USD")))

	require.NoError(t, s.Journals().CreateWithID(ctx, domain.NewJournal("", domain.MustCurrency("USD")), "../escape"))
	assert.FileExists(t, filepath.Join(dir, "journals", "%2E.%2Fescape"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "journals", ".tmp-123"), []byte("partial"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "journals", "nested"), 0o750))

	page, err := s.Journals().List(ctx, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, domain.JournalName("../escape"), page.Items[0].Name)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, repositories.NewContents(domain.MustCurrency("USD")))

	require.NoError(t, s.Disconnect(ctx))
	require.NoError(t, s.Disconnect(ctx))

	_, err := s.Journals().List(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrStoreClosed)
}

func TestConcurrentUpdatesAreSerialized(t *testing.T) {
	ctx := context.Background()
	usd := domain.MustCurrency("USD")
	s, _ := newStore(t, repositories.NewContents(usd).WithCombinedJournal())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			j, _, err := s.Journals().GetByID(ctx, "combined")
			if !assert.NoError(t, err) {
				return
			}
			amount := decimal.NewFromInt(int64(i + 1))
			tx := domain.NewTransaction("tx", time.Now(),
				domain.NewSplit("a", domain.NewQuantity(usd, amount)),
				domain.NewSplit("b", domain.NewQuantity(usd, amount.Neg())))
			if assert.NoError(t, j.AddTransaction(tx, time.Now())) {
				assert.NoError(t, s.Journals().Update(ctx, j))
			}
		}(i)
	}
	wg.Wait()

	j, found, err := s.Journals().GetByID(ctx, "combined")
	require.NoError(t, err)
	require.True(t, found)
	// writers raced on stale reads, but every write left a complete, valid document behind
	assert.NotEmpty(t, j.Transactions)
	assert.NoError(t, j.Validate())
}

func TestWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, _ := newStore(t, repositories.NewContents(domain.MustCurrency("USD")))

	changes := make(chan []fstore.Change, 4)
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, func(c []fstore.Change) { changes <- c })
	}()
	// give the watcher time to register
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, s.Journals().CreateWithID(ctx, domain.NewJournal("", domain.MustCurrency("USD")), "main"))

	select {
	case got := <-changes:
		assert.Equal(t, []fstore.Change{{Kind: "journal", ID: "main"}}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	assert.NoError(t, <-done)
}
