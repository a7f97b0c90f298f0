package services_test

import (
	"context"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/SscSPs/sledge/internal/adapters/fstore"
	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/SscSPs/sledge/internal/core/ports/repositories"
	"github.com/SscSPs/sledge/internal/platform/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	admin  domain.UserID = "alice"
	reader domain.UserID = "bob"
)

var usd = domain.MustCurrency("USD")

// newStore creates a file store with a general ledger, a combined journal, an admin and a reader.
func newStore(t *testing.T) repositories.DataStore {
	t.Helper()
	contents := repositories.NewContents(usd).WithGeneralLedger().WithCombinedJournal()
	contents.Users = map[domain.UserID][]domain.RoleID{
		admin:  {domain.AdminRole},
		reader: {domain.ReaderRole},
	}
	u, err := url.Parse("fstore://" + filepath.ToSlash(filepath.Join(t.TempDir(), "books")))
	require.NoError(t, err)
	s, err := fstore.Create(context.Background(), config.StoreConfig{IOTimeout: 5 * time.Second, PageSize: 10}, u, contents)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Disconnect(context.Background()) })
	return s
}

// accountByDescription finds an account of the general ledger.
func accountByDescription(t *testing.T, store repositories.DataStore, description string) domain.Account {
	t.Helper()
	l, found, err := store.Ledgers().GetByID(context.Background(), domain.GeneralLedger())
	require.NoError(t, err)
	require.True(t, found)
	for _, a := range l.Book {
		if a.Description == description {
			return a
		}
	}
	t.Fatalf("no account %q", description)
	return domain.Account{}
}

func dollars(s string) domain.Quantity {
	return domain.NewQuantity(usd, decimal.RequireFromString(s))
}

func transfer(from, to domain.AccountID, amount string) domain.Transaction {
	return domain.Transaction{
		Name:      "transfer",
		Timestamp: domain.Now(),
		Splits: []domain.Split{
			{Account: to, Quantity: dollars(amount)},
			{Account: from, Quantity: dollars(amount).Neg()},
		},
	}
}
