package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/SscSPs/sledge/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/sledge/internal/core/ports/services"
	"github.com/SscSPs/sledge/internal/utils/concurrency"
)

// JournalService records, reconciles, closes and signs journal transactions.
type JournalService struct {
	BaseService
	locks *concurrency.KeyedMutex
	now   func() time.Time
}

var _ portssvc.JournalSvcFacade = (*JournalService)(nil)

// NewJournalService creates a new JournalService.
func NewJournalService(store repositories.DataStore) *JournalService {
	return &JournalService{
		BaseService: BaseService{Store: store},
		locks:       concurrency.NewKeyedMutex(),
		now:         domain.Now,
	}
}

func (s *JournalService) ListJournals(ctx context.Context, user domain.UserID, pageToken string) (repositories.Page[domain.Journal], error) {
	if err := s.AuthorizeUser(ctx, user, domain.ActionList, domain.ResourceJournal); err != nil {
		return repositories.Page[domain.Journal]{}, err
	}
	return s.Store.Journals().List(ctx, pageToken)
}

func (s *JournalService) GetJournal(ctx context.Context, user domain.UserID, name domain.JournalName) (domain.Journal, error) {
	if err := s.AuthorizeUser(ctx, user, domain.ActionRead, domain.ResourceJournal); err != nil {
		return domain.Journal{}, err
	}
	return s.journal(ctx, name)
}

func (s *JournalService) journal(ctx context.Context, name domain.JournalName) (domain.Journal, error) {
	j, found, err := s.Store.Journals().GetByID(ctx, name)
	if err != nil {
		return domain.Journal{}, err
	}
	if !found {
		return domain.Journal{}, fmt.Errorf("%w: journal %s", apperrors.ErrNotFound, name)
	}
	return j, nil
}

// modify runs fn on the stored journal and writes the result back. Writers of one journal are
// serialized.
func (s *JournalService) modify(ctx context.Context, name domain.JournalName, fn func(j *domain.Journal, now time.Time) error) error {
	unlock := s.locks.Lock(name.String())
	defer unlock()

	j, err := s.journal(ctx, name)
	if err != nil {
		return err
	}
	if err := fn(&j, s.now()); err != nil {
		return err
	}
	return s.Store.Journals().Update(ctx, j)
}

// stamp assigns identifiers to a transaction built without them.
func stamp(tx domain.Transaction) domain.Transaction {
	if tx.ID == "" {
		tx.ID = domain.NewTransactionID()
	}
	splits := make([]domain.Split, len(tx.Splits))
	for i, sp := range tx.Splits {
		if sp.ID == "" {
			sp.ID = domain.NewSplitID()
		}
		if sp.Transaction == "" {
			sp.Transaction = tx.ID
		}
		splits[i] = sp
	}
	tx.Splits = splits
	return tx
}

// checkAccounts requires every split to post to an active recording account of some ledger, in
// that account's commodity.
func (s *JournalService) checkAccounts(ctx context.Context, tx domain.Transaction) error {
	accounts := map[domain.AccountID]domain.Account{}
	for l, err := range repositories.All(ctx, s.Store.Ledgers()) {
		if err != nil {
			return err
		}
		for _, a := range l.Book {
			accounts[a.ID] = a
		}
	}
	for _, sp := range tx.Splits {
		a, ok := accounts[sp.Account]
		switch {
		case !ok:
			return fmt.Errorf("%w: split %s posts to unknown account %s", apperrors.ErrValidation, sp.ID, sp.Account)
		case !a.IsActive:
			return fmt.Errorf("%w: account %s is inactive", apperrors.ErrValidation, a.ID)
		case !a.IsRecording:
			return fmt.Errorf("%w: account %s is a placeholder", apperrors.ErrValidation, a.ID)
		case sp.Quantity.Commodity != a.Commodity:
			return fmt.Errorf("%w: split %s is in %s, account %s holds %s", domain.ErrCommodityMismatch, sp.ID, sp.Quantity.Commodity, a.ID, a.Commodity)
		}
	}
	return nil
}

func (s *JournalService) AddTransaction(ctx context.Context, user domain.UserID, name domain.JournalName, tx domain.Transaction) (domain.Transaction, error) {
	if err := s.AuthorizeUser(ctx, user, domain.ActionCreate, domain.ResourceTransaction); err != nil {
		return domain.Transaction{}, err
	}
	tx = stamp(tx)
	if err := s.checkAccounts(ctx, tx); err != nil {
		return domain.Transaction{}, err
	}
	err := s.modify(ctx, name, func(j *domain.Journal, now time.Time) error { return j.AddTransaction(tx, now) })
	if err != nil {
		s.LogError(ctx, err, "Failed to add transaction", slog.String("journal", name.String()))
		return domain.Transaction{}, err
	}
	s.LogInfo(ctx, "Transaction added",
		slog.String("journal", name.String()),
		slog.String("transaction_id", tx.ID.String()),
		slog.String("user_id", string(user)))
	return tx, nil
}

func (s *JournalService) UpdateTransaction(ctx context.Context, user domain.UserID, name domain.JournalName, tx domain.Transaction) (domain.Transaction, error) {
	if err := s.AuthorizeUser(ctx, user, domain.ActionModify, domain.ResourceTransaction); err != nil {
		return domain.Transaction{}, err
	}
	if tx.ID == "" {
		return domain.Transaction{}, fmt.Errorf("%w: transaction has no identifier", apperrors.ErrValidation)
	}
	tx = stamp(tx)
	if err := s.checkAccounts(ctx, tx); err != nil {
		return domain.Transaction{}, err
	}
	err := s.modify(ctx, name, func(j *domain.Journal, now time.Time) error { return j.ReplaceTransaction(tx, now) })
	if err != nil {
		return domain.Transaction{}, err
	}
	s.LogInfo(ctx, "Transaction updated", slog.String("journal", name.String()), slog.String("transaction_id", tx.ID.String()))
	return tx, nil
}

func (s *JournalService) RemoveTransaction(ctx context.Context, user domain.UserID, name domain.JournalName, id domain.TransactionID) error {
	if err := s.AuthorizeUser(ctx, user, domain.ActionDelete, domain.ResourceTransaction); err != nil {
		return err
	}
	err := s.modify(ctx, name, func(j *domain.Journal, now time.Time) error { return j.RemoveTransaction(id, now) })
	if err != nil {
		return err
	}
	s.LogInfo(ctx, "Transaction removed", slog.String("journal", name.String()), slog.String("transaction_id", id.String()))
	return nil
}

// Reconcile locates the split in the journal and marks it reconciled.
func (s *JournalService) Reconcile(ctx context.Context, user domain.UserID, name domain.JournalName, split domain.SplitID, reference string) (domain.Split, error) {
	if err := s.AuthorizeUser(ctx, user, domain.ActionReconcile, domain.ResourceTransaction); err != nil {
		return domain.Split{}, err
	}
	var reconciled domain.Split
	err := s.modify(ctx, name, func(j *domain.Journal, now time.Time) error {
		for _, tx := range j.Transactions {
			if _, ok := tx.Split(split); !ok {
				continue
			}
			if err := j.Reconcile(tx.ID, split, reference, now); err != nil {
				return err
			}
			updated, _ := j.Transaction(tx.ID)
			reconciled, _ = updated.Split(split)
			return nil
		}
		return fmt.Errorf("%w: split %s in journal %s", apperrors.ErrNotFound, split, name)
	})
	if err != nil {
		return domain.Split{}, err
	}
	s.LogInfo(ctx, "Split reconciled", slog.String("journal", name.String()), slog.String("split_id", split.String()))
	return reconciled, nil
}

func (s *JournalService) Close(ctx context.Context, user domain.UserID, name domain.JournalName) error {
	if err := s.AuthorizeUser(ctx, user, domain.ActionClose, domain.ResourceJournal); err != nil {
		return err
	}
	if err := s.modify(ctx, name, func(j *domain.Journal, now time.Time) error { return j.Close(now) }); err != nil {
		return err
	}
	s.LogInfo(ctx, "Journal closed", slog.String("journal", name.String()))
	return nil
}

func (s *JournalService) NewVersion(ctx context.Context, user domain.UserID, name domain.JournalName) (uint32, error) {
	if err := s.AuthorizeUser(ctx, user, domain.ActionModify, domain.ResourceJournal); err != nil {
		return 0, err
	}
	var version uint32
	err := s.modify(ctx, name, func(j *domain.Journal, _ time.Time) error {
		j.NewVersion()
		version = j.Version
		return nil
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// Sign signs the current version of the journal. A signed version cannot change.
func (s *JournalService) Sign(ctx context.Context, user domain.UserID, name domain.JournalName, signer portssvc.Signer) (domain.Signature, error) {
	if err := s.AuthorizeUser(ctx, user, domain.ActionSign, domain.ResourceJournal); err != nil {
		return domain.Signature{}, err
	}
	var sig domain.Signature
	err := s.modify(ctx, name, func(j *domain.Journal, _ time.Time) error {
		if j.IsSigned() {
			return fmt.Errorf("journal %s version %d: %w", j.Name, j.Version, domain.ErrAlreadySigned)
		}
		var err error
		if sig, err = signer.Sign(*j); err != nil {
			return err
		}
		return j.AttachSignature(sig)
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to sign journal", slog.String("journal", name.String()))
		return domain.Signature{}, err
	}
	s.LogInfo(ctx, "Journal signed",
		slog.String("journal", name.String()),
		slog.Int("version", int(sig.Version)),
		slog.String("key", string(sig.Identity)))
	return sig, nil
}

// Verify checks every signature the journal carries. A journal that was never signed fails.
func (s *JournalService) Verify(ctx context.Context, user domain.UserID, name domain.JournalName, verifier portssvc.Verifier) error {
	if err := s.AuthorizeUser(ctx, user, domain.ActionRead, domain.ResourceJournal); err != nil {
		return err
	}
	j, err := s.journal(ctx, name)
	if err != nil {
		return err
	}
	if !j.IsSigned() && len(j.PriorSignatures) == 0 {
		return fmt.Errorf("%w: journal %s has no signatures", apperrors.ErrValidation, name)
	}
	return verifier.VerifyHistory(j)
}
