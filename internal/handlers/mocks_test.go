package handlers_test

import (
	"context"
	"time"

	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/SscSPs/sledge/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/sledge/internal/core/ports/services"
	"github.com/stretchr/testify/mock"
)

// --- Mock LedgerService ---
type MockLedgerService struct {
	mock.Mock
}

var _ portssvc.LedgerSvcFacade = (*MockLedgerService)(nil)

func (m *MockLedgerService) ListLedgers(ctx context.Context, user domain.UserID, pageToken string) (repositories.Page[domain.Ledger], error) {
	args := m.Called(ctx, user, pageToken)
	return args.Get(0).(repositories.Page[domain.Ledger]), args.Error(1)
}
func (m *MockLedgerService) GetLedger(ctx context.Context, user domain.UserID, kind domain.LedgerKind) (domain.Ledger, error) {
	args := m.Called(ctx, user, kind)
	return args.Get(0).(domain.Ledger), args.Error(1)
}
func (m *MockLedgerService) Balance(ctx context.Context, user domain.UserID, kind domain.LedgerKind, account domain.AccountID) (domain.Quantity, error) {
	args := m.Called(ctx, user, kind, account)
	return args.Get(0).(domain.Quantity), args.Error(1)
}
func (m *MockLedgerService) AddAccount(ctx context.Context, user domain.UserID, kind domain.LedgerKind, account domain.Account) (domain.Account, error) {
	args := m.Called(ctx, user, kind, account)
	if fn, ok := args.Get(0).(func(domain.Account) domain.Account); ok {
		return fn(account), args.Error(1)
	}
	return args.Get(0).(domain.Account), args.Error(1)
}
func (m *MockLedgerService) UpdateAccount(ctx context.Context, user domain.UserID, kind domain.LedgerKind, account domain.Account) (domain.Account, error) {
	args := m.Called(ctx, user, kind, account)
	if fn, ok := args.Get(0).(func(domain.Account) domain.Account); ok {
		return fn(account), args.Error(1)
	}
	return args.Get(0).(domain.Account), args.Error(1)
}
func (m *MockLedgerService) DeactivateAccount(ctx context.Context, user domain.UserID, kind domain.LedgerKind, id domain.AccountID) error {
	args := m.Called(ctx, user, kind, id)
	return args.Error(0)
}

// --- Mock JournalService ---
type MockJournalService struct {
	mock.Mock
}

var _ portssvc.JournalSvcFacade = (*MockJournalService)(nil)

func (m *MockJournalService) ListJournals(ctx context.Context, user domain.UserID, pageToken string) (repositories.Page[domain.Journal], error) {
	args := m.Called(ctx, user, pageToken)
	return args.Get(0).(repositories.Page[domain.Journal]), args.Error(1)
}
func (m *MockJournalService) GetJournal(ctx context.Context, user domain.UserID, name domain.JournalName) (domain.Journal, error) {
	args := m.Called(ctx, user, name)
	return args.Get(0).(domain.Journal), args.Error(1)
}
func (m *MockJournalService) AddTransaction(ctx context.Context, user domain.UserID, name domain.JournalName, tx domain.Transaction) (domain.Transaction, error) {
	args := m.Called(ctx, user, name, tx)
	if fn, ok := args.Get(0).(func(domain.Transaction) domain.Transaction); ok {
		return fn(tx), args.Error(1)
	}
	return args.Get(0).(domain.Transaction), args.Error(1)
}
func (m *MockJournalService) UpdateTransaction(ctx context.Context, user domain.UserID, name domain.JournalName, tx domain.Transaction) (domain.Transaction, error) {
	args := m.Called(ctx, user, name, tx)
	return args.Get(0).(domain.Transaction), args.Error(1)
}
func (m *MockJournalService) RemoveTransaction(ctx context.Context, user domain.UserID, name domain.JournalName, id domain.TransactionID) error {
	args := m.Called(ctx, user, name, id)
	return args.Error(0)
}
func (m *MockJournalService) Reconcile(ctx context.Context, user domain.UserID, name domain.JournalName, split domain.SplitID, reference string) (domain.Split, error) {
	args := m.Called(ctx, user, name, split, reference)
	return args.Get(0).(domain.Split), args.Error(1)
}
func (m *MockJournalService) Close(ctx context.Context, user domain.UserID, name domain.JournalName) error {
	args := m.Called(ctx, user, name)
	return args.Error(0)
}
func (m *MockJournalService) NewVersion(ctx context.Context, user domain.UserID, name domain.JournalName) (uint32, error) {
	args := m.Called(ctx, user, name)
	return args.Get(0).(uint32), args.Error(1)
}
func (m *MockJournalService) Sign(ctx context.Context, user domain.UserID, name domain.JournalName, signer portssvc.Signer) (domain.Signature, error) {
	args := m.Called(ctx, user, name, signer)
	return args.Get(0).(domain.Signature), args.Error(1)
}
func (m *MockJournalService) Verify(ctx context.Context, user domain.UserID, name domain.JournalName, verifier portssvc.Verifier) error {
	args := m.Called(ctx, user, name, verifier)
	return args.Error(0)
}

// --- Mock ExchangeService ---
type MockExchangeService struct {
	mock.Mock
}

var _ portssvc.ExchangeSvc = (*MockExchangeService)(nil)

func (m *MockExchangeService) Convert(ctx context.Context, q domain.Quantity, to domain.CommodityID) (domain.RatedQuantity, error) {
	args := m.Called(ctx, q, to)
	if fn, ok := args.Get(0).(func(domain.Quantity, domain.CommodityID) domain.RatedQuantity); ok {
		return fn(q, to), args.Error(1)
	}
	return args.Get(0).(domain.RatedQuantity), args.Error(1)
}
func (m *MockExchangeService) ConvertAt(ctx context.Context, q domain.Quantity, to domain.CommodityID, asOf time.Time) (domain.RatedQuantity, error) {
	args := m.Called(ctx, q, to, asOf)
	return args.Get(0).(domain.RatedQuantity), args.Error(1)
}
