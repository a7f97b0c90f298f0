package domain

import (
	"fmt"
	"time"

	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionID string

func NewTransactionID() TransactionID   { return TransactionID(uuid.NewString()) }
func (id TransactionID) String() string { return string(id) }

type SplitID string

func NewSplitID() SplitID         { return SplitID(uuid.NewString()) }
func (id SplitID) String() string { return string(id) }

// Reconciled marks a split as matched against an external statement.
type Reconciled struct {
	SplitID      SplitID   `json:"splitID"`
	Reference    string    `json:"reference"`
	ReconciledAt time.Time `json:"reconciledAt"`
}

// Split is one posting of a transaction against a single account.
type Split struct {
	ID            SplitID        `json:"id"`
	Transaction   TransactionID  `json:"transaction"`
	Account       AccountID      `json:"account"`
	Quantity      Quantity       `json:"quantity"`
	ExchangedFrom *RatedQuantity `json:"exchangedFrom,omitempty"`
	Description   string         `json:"description,omitempty"`
	Reconciled    *Reconciled    `json:"reconciled,omitempty"`
}

func (s Split) IsReconciled() bool { return s.Reconciled != nil }

// Reconcile attaches a reconciliation record. A split is reconciled at most once.
func (s *Split) Reconcile(reference string, at time.Time) error {
	if s.Reconciled != nil {
		return fmt.Errorf("%w: split %s already reconciled as %q", apperrors.ErrImmutable, s.ID, s.Reconciled.Reference)
	}
	if reference == "" {
		return fmt.Errorf("%w: reconciliation reference is required", apperrors.ErrValidation)
	}
	s.Reconciled = &Reconciled{SplitID: s.ID, Reference: reference, ReconciledAt: at.UTC()}
	return nil
}

// contribution returns the amount this split adds to the balance in the reference commodity.
func (s Split) contribution(ref CommodityID) (decimal.Decimal, error) {
	if s.Quantity.Commodity == ref {
		if s.ExchangedFrom != nil {
			return decimal.Zero, fmt.Errorf("%w: split %s is in the reference commodity but carries an exchange", apperrors.ErrValidation, s.ID)
		}
		return s.Quantity.Amount, nil
	}

	if s.ExchangedFrom == nil {
		return decimal.Zero, fmt.Errorf("%w: split %s in %s needs an exchange from %s", apperrors.ErrValidation, s.ID, s.Quantity.Commodity, ref)
	}
	rq := *s.ExchangedFrom
	if err := rq.Validate(); err != nil {
		return decimal.Zero, fmt.Errorf("split %s: %w", s.ID, err)
	}
	if rq.Source.Commodity != ref {
		return decimal.Zero, fmt.Errorf("%w: split %s exchanges from %s, expected %s", ErrCommodityMismatch, s.ID, rq.Source.Commodity, ref)
	}
	if rq.Rate.To != s.Quantity.Commodity {
		return decimal.Zero, fmt.Errorf("%w: split %s rate targets %s, split is in %s", ErrCommodityMismatch, s.ID, rq.Rate.To, s.Quantity.Commodity)
	}

	converted := rq.Converted().Amount
	if !converted.Equal(s.Quantity.Amount) {
		return decimal.Zero, fmt.Errorf("%w: split %s amount %s does not match exchanged amount %s", apperrors.ErrValidation, s.ID, s.Quantity.Amount, converted)
	}
	return rq.Source.Amount, nil
}

// Transaction groups balanced splits posted at one moment.
type Transaction struct {
	ID        TransactionID `json:"id"`
	Name      string        `json:"name"`
	Timestamp time.Time     `json:"timestamp"`
	Commodity *CommodityID  `json:"commodity,omitempty"`
	Splits    []Split       `json:"splits"`
}

// NewTransaction builds a transaction and stamps the back-reference and an id on every split.
func NewTransaction(name string, at time.Time, splits ...Split) Transaction {
	tx := Transaction{
		ID:        NewTransactionID(),
		Name:      name,
		Timestamp: at.UTC(),
		Splits:    make([]Split, 0, len(splits)),
	}
	for _, s := range splits {
		if s.ID == "" {
			s.ID = NewSplitID()
		}
		s.Transaction = tx.ID
		tx.Splits = append(tx.Splits, s)
	}
	return tx
}

// NewSplit is a convenience for building a split against account.
func NewSplit(account AccountID, q Quantity) Split {
	return Split{ID: NewSplitID(), Account: account, Quantity: q}
}

// ReferenceCommodity is the transaction's own commodity, or def when none is set.
func (t Transaction) ReferenceCommodity(def CommodityID) CommodityID {
	if t.Commodity != nil {
		return *t.Commodity
	}
	return def
}

// Split returns the split with the given id.
func (t Transaction) Split(id SplitID) (Split, bool) {
	for _, s := range t.Splits {
		if s.ID == id {
			return s, true
		}
	}
	return Split{}, false
}

// Balance sums the splits in the reference commodity.
func (t Transaction) Balance(def CommodityID) (Quantity, error) {
	ref := t.ReferenceCommodity(def)
	sum := decimal.Zero
	for _, s := range t.Splits {
		amt, err := s.contribution(ref)
		if err != nil {
			return Quantity{}, err
		}
		sum = sum.Add(amt)
	}
	return Quantity{Commodity: ref, Amount: sum}, nil
}

// Validate checks structure and that the splits balance to exactly zero.
func (t Transaction) Validate(def CommodityID) error {
	if t.ID == "" {
		return fmt.Errorf("%w: transaction has no identifier", apperrors.ErrValidation)
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("%w: transaction %s has no timestamp", apperrors.ErrValidation, t.ID)
	}
	if len(t.Splits) < 2 {
		return fmt.Errorf("%w: transaction %s must have at least two splits", apperrors.ErrValidation, t.ID)
	}
	ref := t.ReferenceCommodity(def)
	if err := ref.Validate(); err != nil {
		return fmt.Errorf("transaction %s: %w", t.ID, err)
	}

	seen := make(map[SplitID]struct{}, len(t.Splits))
	for _, s := range t.Splits {
		if s.ID == "" {
			return fmt.Errorf("%w: split without identifier in transaction %s", apperrors.ErrValidation, t.ID)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: duplicate split %s in transaction %s", apperrors.ErrValidation, s.ID, t.ID)
		}
		seen[s.ID] = struct{}{}
		if s.Transaction != t.ID {
			return fmt.Errorf("%w: split %s belongs to transaction %q", apperrors.ErrValidation, s.ID, s.Transaction)
		}
		if s.Account == "" {
			return fmt.Errorf("%w: split %s has no account", apperrors.ErrValidation, s.ID)
		}
		if err := s.Quantity.Validate(); err != nil {
			return fmt.Errorf("split %s: %w", s.ID, err)
		}
		if s.Reconciled != nil && s.Reconciled.SplitID != s.ID {
			return fmt.Errorf("%w: split %s carries reconciliation for %s", apperrors.ErrValidation, s.ID, s.Reconciled.SplitID)
		}
	}

	balance, err := t.Balance(def)
	if err != nil {
		return err
	}
	if !balance.IsZero() {
		return fmt.Errorf("%w: transaction %s does not balance, sum is %s", apperrors.ErrValidation, t.ID, balance.Amount)
	}
	return nil
}

// HasReconciled reports whether any split of t is reconciled.
func (t Transaction) HasReconciled() bool {
	for _, s := range t.Splits {
		if s.IsReconciled() {
			return true
		}
	}
	return false
}
