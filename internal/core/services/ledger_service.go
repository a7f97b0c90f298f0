package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/SscSPs/sledge/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/sledge/internal/core/ports/services"
	"github.com/SscSPs/sledge/internal/utils/accounting"
	"github.com/SscSPs/sledge/internal/utils/concurrency"
)

// LedgerService maintains the charts of accounts of a store.
type LedgerService struct {
	BaseService
	locks *concurrency.KeyedMutex
}

var _ portssvc.LedgerSvcFacade = (*LedgerService)(nil)

// NewLedgerService creates a new LedgerService.
func NewLedgerService(store repositories.DataStore) *LedgerService {
	return &LedgerService{BaseService: BaseService{Store: store}, locks: concurrency.NewKeyedMutex()}
}

func (s *LedgerService) ListLedgers(ctx context.Context, user domain.UserID, pageToken string) (repositories.Page[domain.Ledger], error) {
	if err := s.AuthorizeUser(ctx, user, domain.ActionList, domain.ResourceLedger); err != nil {
		return repositories.Page[domain.Ledger]{}, err
	}
	return s.Store.Ledgers().List(ctx, pageToken)
}

func (s *LedgerService) GetLedger(ctx context.Context, user domain.UserID, kind domain.LedgerKind) (domain.Ledger, error) {
	if err := s.AuthorizeUser(ctx, user, domain.ActionRead, domain.ResourceLedger); err != nil {
		return domain.Ledger{}, err
	}
	return s.ledger(ctx, kind)
}

func (s *LedgerService) ledger(ctx context.Context, kind domain.LedgerKind) (domain.Ledger, error) {
	l, found, err := s.Store.Ledgers().GetByID(ctx, kind)
	if err != nil {
		return domain.Ledger{}, err
	}
	if !found {
		return domain.Ledger{}, fmt.Errorf("%w: ledger %s", apperrors.ErrNotFound, kind)
	}
	return l, nil
}

// modify runs fn on the stored ledger and writes the result back. Writers of one ledger are
// serialized.
func (s *LedgerService) modify(ctx context.Context, kind domain.LedgerKind, fn func(l *domain.Ledger) error) error {
	unlock := s.locks.Lock(kind.String())
	defer unlock()

	l, err := s.ledger(ctx, kind)
	if err != nil {
		return err
	}
	if err := fn(&l); err != nil {
		return err
	}
	return s.Store.Ledgers().Update(ctx, l)
}

// AddAccount places account in the ledger's book, assigning an identifier when it has none.
func (s *LedgerService) AddAccount(ctx context.Context, user domain.UserID, kind domain.LedgerKind, account domain.Account) (domain.Account, error) {
	if err := s.AuthorizeUser(ctx, user, domain.ActionCreate, domain.ResourceAccount); err != nil {
		return domain.Account{}, err
	}
	if account.ID == "" {
		account.ID = domain.NewAccountID()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = domain.Now()
	}

	err := s.modify(ctx, kind, func(l *domain.Ledger) error { return l.AddAccount(account) })
	if err != nil {
		s.LogError(ctx, err, "Failed to add account", slog.String("ledger", kind.String()))
		return domain.Account{}, err
	}
	s.LogInfo(ctx, "Account added",
		slog.String("ledger", kind.String()),
		slog.String("account_id", account.ID.String()),
		slog.String("user_id", string(user)))
	return account, nil
}

// UpdateAccount replaces an account. A zero creation time keeps the stored one.
func (s *LedgerService) UpdateAccount(ctx context.Context, user domain.UserID, kind domain.LedgerKind, account domain.Account) (domain.Account, error) {
	if err := s.AuthorizeUser(ctx, user, domain.ActionModify, domain.ResourceAccount); err != nil {
		return domain.Account{}, err
	}
	err := s.modify(ctx, kind, func(l *domain.Ledger) error {
		prev, ok := l.Account(account.ID)
		if !ok {
			return fmt.Errorf("%w: account %s in ledger %s", apperrors.ErrNotFound, account.ID, kind)
		}
		if account.CreatedAt.IsZero() {
			account.CreatedAt = prev.CreatedAt
		}
		return l.ReplaceAccount(account)
	})
	if err != nil {
		return domain.Account{}, err
	}
	s.LogInfo(ctx, "Account updated", slog.String("ledger", kind.String()), slog.String("account_id", account.ID.String()))
	return account, nil
}

// DeactivateAccount marks an account inactive. Accounts are never removed from a book.
func (s *LedgerService) DeactivateAccount(ctx context.Context, user domain.UserID, kind domain.LedgerKind, id domain.AccountID) error {
	if err := s.AuthorizeUser(ctx, user, domain.ActionDelete, domain.ResourceAccount); err != nil {
		return err
	}
	return s.modify(ctx, kind, func(l *domain.Ledger) error {
		a, ok := l.Account(id)
		if !ok {
			return fmt.Errorf("%w: account %s in ledger %s", apperrors.ErrNotFound, id, kind)
		}
		for _, child := range l.Children(id) {
			if child.IsActive {
				return fmt.Errorf("%w: account %s has active child %s", apperrors.ErrValidation, id, child.ID)
			}
		}
		a.IsActive = false
		return l.ReplaceAccount(a)
	})
}

// Balance sums every split posted to the account and to its descendants in the same commodity.
func (s *LedgerService) Balance(ctx context.Context, user domain.UserID, kind domain.LedgerKind, id domain.AccountID) (domain.Quantity, error) {
	if err := s.AuthorizeUser(ctx, user, domain.ActionRead, domain.ResourceAccount); err != nil {
		return domain.Quantity{}, err
	}
	l, err := s.ledger(ctx, kind)
	if err != nil {
		return domain.Quantity{}, err
	}
	account, ok := l.Account(id)
	if !ok {
		return domain.Quantity{}, fmt.Errorf("%w: account %s in ledger %s", apperrors.ErrNotFound, id, kind)
	}

	accounts := accounting.Descendants(l, id)
	total := domain.Zero(account.Commodity)
	for j, err := range repositories.All(ctx, s.Store.Journals()) {
		if err != nil {
			return domain.Quantity{}, err
		}
		sum, err := accounting.SumSplits(j.Transactions, accounts, account.Commodity)
		if err != nil {
			return domain.Quantity{}, fmt.Errorf("journal %s: %w", j.Name, err)
		}
		if total, err = total.Add(sum); err != nil {
			return domain.Quantity{}, err
		}
	}
	s.LogDebug(ctx, "Balance calculated", slog.String("account_id", id.String()), slog.String("balance", total.String()))
	return total, nil
}
