package services

import (
	"context"

	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/SscSPs/sledge/internal/core/ports/repositories"
)

// LedgerReaderSvc defines read operations for ledgers and their accounts.
type LedgerReaderSvc interface {
	ListLedgers(ctx context.Context, user domain.UserID, pageToken string) (repositories.Page[domain.Ledger], error)

	// GetLedger returns the ledger of the given kind or ErrNotFound.
	GetLedger(ctx context.Context, user domain.UserID, kind domain.LedgerKind) (domain.Ledger, error)

	// Balance sums the splits posted to an account and its descendants across every journal.
	Balance(ctx context.Context, user domain.UserID, kind domain.LedgerKind, account domain.AccountID) (domain.Quantity, error)
}

// LedgerWriterSvc defines changes to a ledger's chart of accounts.
type LedgerWriterSvc interface {
	AddAccount(ctx context.Context, user domain.UserID, kind domain.LedgerKind, account domain.Account) (domain.Account, error)
	UpdateAccount(ctx context.Context, user domain.UserID, kind domain.LedgerKind, account domain.Account) (domain.Account, error)
	DeactivateAccount(ctx context.Context, user domain.UserID, kind domain.LedgerKind, id domain.AccountID) error
}

// LedgerSvcFacade combines all ledger-related service interfaces
type LedgerSvcFacade interface {
	LedgerReaderSvc
	LedgerWriterSvc
}
