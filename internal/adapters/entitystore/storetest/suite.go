// Package storetest holds the behavioural test suite every entity-store backend must pass.
package storetest

import (
	"context"
	"fmt"
	"time"

	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/SscSPs/sledge/internal/core/ports/repositories"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

// PageSize is the page size backends under test must be configured with.
const PageSize = 2

// JournalStoreSuite exercises a JournalStore. NewStore must return an empty store configured
// with PageSize.
type JournalStoreSuite struct {
	suite.Suite
	NewStore func() repositories.JournalStore

	ctx   context.Context
	store repositories.JournalStore
}

var (
	usd  = domain.MustCurrency("USD")
	base = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
)

func (s *JournalStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.NewStore()
}

func journal(name string, created time.Time) domain.Journal {
	j := domain.NewJournal(domain.JournalName(name), usd)
	j.CreatedAt = created
	return j
}

func rent(amount int64) domain.Transaction {
	return domain.NewTransaction("rent", base,
		domain.NewSplit("expense", domain.NewQuantity(usd, decimal.NewFromInt(amount))),
		domain.NewSplit("bank", domain.NewQuantity(usd, decimal.NewFromInt(-amount))),
	)
}

func (s *JournalStoreSuite) TestGetByIDMissing() {
	j, found, err := s.store.GetByID(s.ctx, "nope")
	s.NoError(err)
	s.False(found)
	s.Equal(domain.JournalName(""), j.Name)
}

func (s *JournalStoreSuite) TestCreateWithIDRoundTrip() {
	j := journal("ignored", base)
	tx := rent(100)
	s.Require().NoError(j.AddTransaction(tx, base))

	s.Require().NoError(s.store.CreateWithID(s.ctx, j, "2024/main books"))

	got, found, err := s.store.GetByID(s.ctx, "2024/main books")
	s.Require().NoError(err)
	s.Require().True(found)
	s.Equal(domain.JournalName("2024/main books"), got.Name)
	s.True(base.Equal(got.CreatedAt))
	s.Require().Len(got.Transactions, 1)
	s.Equal(tx.ID, got.Transactions[0].ID)
	s.True(got.Transactions[0].Splits[0].Quantity.Equal(tx.Splits[0].Quantity))
}

func (s *JournalStoreSuite) TestCreateAssignsIdentifier() {
	id, err := s.store.Create(s.ctx, journal("", base))
	s.Require().NoError(err)
	s.NotEmpty(id)

	got, found, err := s.store.GetByID(s.ctx, id)
	s.Require().NoError(err)
	s.True(found)
	s.Equal(id, got.Name)
}

func (s *JournalStoreSuite) TestCreateDuplicate() {
	_, err := s.store.Create(s.ctx, journal("main", base))
	s.Require().NoError(err)

	_, err = s.store.Create(s.ctx, journal("main", base.Add(time.Hour)))
	s.ErrorIs(err, apperrors.ErrDuplicate)
	s.ErrorIs(s.store.CreateWithID(s.ctx, journal("x", base), "main"), apperrors.ErrDuplicate)
}

func (s *JournalStoreSuite) TestCreateRejectsInvalid() {
	j := journal("bad", base)
	tx := rent(100)
	tx.Splits[1].Quantity = domain.NewQuantity(usd, decimal.NewFromInt(-90))
	j.Transactions = append(j.Transactions, tx)

	_, err := s.store.Create(s.ctx, j)
	s.ErrorIs(err, apperrors.ErrValidation)

	_, found, err := s.store.GetByID(s.ctx, "bad")
	s.NoError(err)
	s.False(found, "invalid entities are never written")
}

func (s *JournalStoreSuite) TestUpdate() {
	s.ErrorIs(s.store.Update(s.ctx, journal("ghost", base)), apperrors.ErrNotFound)

	j := journal("main", base)
	_, err := s.store.Create(s.ctx, j)
	s.Require().NoError(err)

	s.Require().NoError(j.AddTransaction(rent(5), base))
	s.Require().NoError(s.store.Update(s.ctx, j))

	got, _, err := s.store.GetByID(s.ctx, "main")
	s.Require().NoError(err)
	s.Len(got.Transactions, 1)

	invalid := got
	invalid.Currency = domain.CommodityID{}
	s.ErrorIs(s.store.Update(s.ctx, invalid), apperrors.ErrValidation)
}

func (s *JournalStoreSuite) TestReconciledSplitIsImmutable() {
	j := journal("main", base)
	tx := rent(100)
	s.Require().NoError(j.AddTransaction(tx, base))
	s.Require().NoError(j.Reconcile(tx.ID, tx.Splits[0].ID, "stmt-7", base))
	_, err := s.store.Create(s.ctx, j)
	s.Require().NoError(err)

	stored, _, err := s.store.GetByID(s.ctx, "main")
	s.Require().NoError(err)
	stored.Transactions[0].Splits[0].Description = "edited"
	s.ErrorIs(s.store.Update(s.ctx, stored), apperrors.ErrImmutable)

	stored.Transactions = stored.Transactions[:0]
	s.ErrorIs(s.store.Update(s.ctx, stored), apperrors.ErrImmutable)

	s.ErrorIs(s.store.Delete(s.ctx, "main"), apperrors.ErrImmutable)

	_, found, err := s.store.GetByID(s.ctx, "main")
	s.NoError(err)
	s.True(found)
}

func (s *JournalStoreSuite) TestDelete() {
	s.ErrorIs(s.store.Delete(s.ctx, "ghost"), apperrors.ErrNotFound)

	_, err := s.store.Create(s.ctx, journal("main", base))
	s.Require().NoError(err)
	s.Require().NoError(s.store.Delete(s.ctx, "main"))

	_, found, err := s.store.GetByID(s.ctx, "main")
	s.NoError(err)
	s.False(found)
}

func (s *JournalStoreSuite) TestListOrderAndPaging() {
	// Inserted out of order; the listing is ordered by (created, name).
	names := []string{"e", "c", "a", "d", "b"}
	created := map[string]time.Time{
		"a": base,
		"b": base,
		"c": base.Add(time.Minute),
		"d": base.Add(2 * time.Minute),
		"e": base.Add(3 * time.Minute),
	}
	for _, n := range names {
		_, err := s.store.Create(s.ctx, journal(n, created[n]))
		s.Require().NoError(err)
	}

	var (
		token string
		got   []string
	)
	for i := 0; i < 10; i++ {
		page, err := s.store.List(s.ctx, token)
		s.Require().NoError(err)
		s.LessOrEqual(len(page.Items), PageSize)
		if len(page.Items) == 0 {
			s.Equal(token, page.NextToken, "an exhausted listing returns the token it was given")
			break
		}
		for _, j := range page.Items {
			got = append(got, j.Name.String())
		}
		token = page.NextToken
	}
	s.Equal([]string{"a", "b", "c", "d", "e"}, got)

	again, err := s.store.List(s.ctx, "")
	s.Require().NoError(err)
	first, err := s.store.List(s.ctx, "")
	s.Require().NoError(err)
	s.Equal(journalNames(first.Items), journalNames(again.Items), "listing is idempotent")
	s.Equal(first.NextToken, again.NextToken)
}

func (s *JournalStoreSuite) TestAllIsRestartable() {
	for i := 0; i < 5; i++ {
		_, err := s.store.Create(s.ctx, journal(fmt.Sprintf("j%d", i), base.Add(time.Duration(i)*time.Second)))
		s.Require().NoError(err)
	}

	collect := func() []string {
		var out []string
		for j, err := range repositories.All(s.ctx, s.store) {
			s.Require().NoError(err)
			out = append(out, j.Name.String())
		}
		return out
	}
	first := collect()
	s.Equal([]string{"j0", "j1", "j2", "j3", "j4"}, first)
	s.Equal(first, collect())

	var partial []string
	for j, err := range repositories.All(s.ctx, s.store) {
		s.Require().NoError(err)
		partial = append(partial, j.Name.String())
		if len(partial) == 3 {
			break
		}
	}
	s.Len(partial, 3)
}

func (s *JournalStoreSuite) TestListRejectsBadToken() {
	_, err := s.store.List(s.ctx, "%%%")
	s.ErrorIs(err, apperrors.ErrValidation)
}

func journalNames(js []domain.Journal) []string {
	out := make([]string, 0, len(js))
	for _, j := range js {
		out = append(out, j.Name.String())
	}
	return out
}
