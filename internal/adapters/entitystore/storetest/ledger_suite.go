package storetest

import (
	"context"
	"strings"

	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/SscSPs/sledge/internal/core/ports/repositories"
	"github.com/stretchr/testify/suite"
)

// LedgerStoreSuite exercises a LedgerStore. NewStore must return an empty store configured
// with PageSize.
type LedgerStoreSuite struct {
	suite.Suite
	NewStore func() repositories.LedgerStore

	ctx   context.Context
	store repositories.LedgerStore
}

func (s *LedgerStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.NewStore()
}

// books returns a ledger holding an Assets header with one bank account beneath it.
func books(kind domain.LedgerKind) (domain.Ledger, domain.Account, domain.Account) {
	root := domain.NewAccount(domain.Asset, usd, "Assets")
	root.IsRecording = false
	bank := domain.NewAccount(domain.Bank, usd, "Checking").WithParent(root.ID)

	l := domain.NewLedger(kind, usd, "books")
	l.CreatedAt = base
	l.Book = []domain.Account{root, bank}
	return l, root, bank
}

func (s *LedgerStoreSuite) stored(kind domain.LedgerKind) domain.Ledger {
	l, found, err := s.store.GetByID(s.ctx, kind)
	s.Require().NoError(err)
	s.Require().True(found, kind.String())
	return l
}

func (s *LedgerStoreSuite) TestGetByIDMissing() {
	_, found, err := s.store.GetByID(s.ctx, domain.SalesLedger())
	s.NoError(err)
	s.False(found)
}

func (s *LedgerStoreSuite) TestRoundTripEveryKind() {
	kinds := []domain.LedgerKind{
		domain.GeneralLedger(),
		domain.SalesLedger(),
		domain.PurchaseLedger(),
		domain.OtherLedger("payroll/2024 q1"),
		domain.OtherLedger(".hidden"),
	}
	for _, kind := range kinds {
		l, _, bank := books(domain.LedgerKind{})
		s.Require().NoError(s.store.CreateWithID(s.ctx, l, kind))

		got := s.stored(kind)
		s.Equal(kind, got.Kind)
		s.True(base.Equal(got.CreatedAt))
		acct, ok := got.Account(bank.ID)
		s.Require().True(ok)
		s.Equal(bank.Description, acct.Description)
		s.Require().NotNil(acct.ParentID)
	}

	var listed []string
	token := ""
	for {
		page, err := s.store.List(s.ctx, token)
		s.Require().NoError(err)
		if len(page.Items) == 0 {
			break
		}
		for _, l := range page.Items {
			listed = append(listed, l.Kind.String())
		}
		token = page.NextToken
	}
	s.Len(listed, len(kinds))
	for _, kind := range kinds {
		s.Contains(listed, kind.String())
	}
}

func (s *LedgerStoreSuite) TestCreateAssignsOtherKind() {
	l, _, _ := books(domain.LedgerKind{})
	kind, err := s.store.Create(s.ctx, l)
	s.Require().NoError(err)
	s.True(strings.HasPrefix(kind.String(), "other:"))
	s.NotEmpty(strings.TrimSpace(kind.Label()))
	s.stored(kind)
}

func (s *LedgerStoreSuite) TestBlankOtherLabelRejected() {
	for _, label := range []string{"", "  "} {
		l, _, _ := books(domain.LedgerKind{})
		err := s.store.CreateWithID(s.ctx, l, domain.OtherLedger(label))
		s.ErrorIs(err, apperrors.ErrValidation, "label %q", label)
	}

	general, _, _ := books(domain.GeneralLedger())
	s.Require().NoError(s.store.CreateWithID(s.ctx, general, domain.GeneralLedger()))
	page, err := s.store.List(s.ctx, "")
	s.Require().NoError(err)
	s.Len(page.Items, 1, "nothing unreadable was stored")
}

func (s *LedgerStoreSuite) TestCreateDuplicate() {
	l, _, _ := books(domain.GeneralLedger())
	s.Require().NoError(s.store.CreateWithID(s.ctx, l, domain.GeneralLedger()))
	err := s.store.CreateWithID(s.ctx, l, domain.GeneralLedger())
	s.ErrorIs(err, apperrors.ErrDuplicate)
}

func (s *LedgerStoreSuite) TestUpdateAddsAccount() {
	l, root, _ := books(domain.GeneralLedger())
	s.Require().NoError(s.store.CreateWithID(s.ctx, l, domain.GeneralLedger()))

	cur := s.stored(domain.GeneralLedger())
	savings := domain.NewAccount(domain.Bank, usd, "Savings").WithParent(root.ID)
	s.Require().NoError(cur.AddAccount(savings))
	s.Require().NoError(s.store.Update(s.ctx, cur))

	_, ok := s.stored(domain.GeneralLedger()).Account(savings.ID)
	s.True(ok)
}

func (s *LedgerStoreSuite) TestUpdateRejectsBrokenParents() {
	l, root, bank := books(domain.GeneralLedger())
	s.Require().NoError(s.store.CreateWithID(s.ctx, l, domain.GeneralLedger()))

	missingParent := s.stored(domain.GeneralLedger())
	orphan := domain.NewAccount(domain.Bank, usd, "Orphan").WithParent(domain.NewAccountID())
	missingParent.Book = append(missingParent.Book, orphan)
	s.ErrorIs(s.store.Update(s.ctx, missingParent), apperrors.ErrValidation)

	cycle := s.stored(domain.GeneralLedger())
	for i := range cycle.Book {
		if cycle.Book[i].ID == root.ID {
			cycle.Book[i] = cycle.Book[i].WithParent(bank.ID)
		}
	}
	s.ErrorIs(s.store.Update(s.ctx, cycle), apperrors.ErrValidation)

	got := s.stored(domain.GeneralLedger())
	s.Len(got.Book, 2, "rejected updates leave the ledger unchanged")
	r, ok := got.Account(root.ID)
	s.Require().True(ok)
	s.Nil(r.ParentID)
}

func (s *LedgerStoreSuite) TestUpdateCannotRemoveAccount() {
	l, root, bank := books(domain.GeneralLedger())
	s.Require().NoError(s.store.CreateWithID(s.ctx, l, domain.GeneralLedger()))

	cur := s.stored(domain.GeneralLedger())
	cur.Book = []domain.Account{root}
	err := s.store.Update(s.ctx, cur)
	s.ErrorIs(err, apperrors.ErrImmutable)

	_, ok := s.stored(domain.GeneralLedger()).Account(bank.ID)
	s.True(ok)
}

func (s *LedgerStoreSuite) TestMissingLedger() {
	l, _, _ := books(domain.PurchaseLedger())
	s.ErrorIs(s.store.Update(s.ctx, l), apperrors.ErrNotFound)
	s.ErrorIs(s.store.Delete(s.ctx, domain.PurchaseLedger()), apperrors.ErrNotFound)
}

func (s *LedgerStoreSuite) TestDelete() {
	l, _, _ := books(domain.SalesLedger())
	s.Require().NoError(s.store.CreateWithID(s.ctx, l, domain.SalesLedger()))
	s.Require().NoError(s.store.Delete(s.ctx, domain.SalesLedger()))

	_, found, err := s.store.GetByID(s.ctx, domain.SalesLedger())
	s.NoError(err)
	s.False(found)
}
