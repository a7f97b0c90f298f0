package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/google/uuid"
)

type ledgerKindTag int

const (
	generalLedger ledgerKindTag = iota + 1
	salesLedger
	purchaseLedger
	otherLedger
)

// LedgerKind identifies a ledger: General, Sales, Purchase or Other(label).
// The zero value means no identifier has been assigned yet.
type LedgerKind struct {
	tag   ledgerKindTag
	label string
}

func GeneralLedger() LedgerKind  { return LedgerKind{tag: generalLedger} }
func SalesLedger() LedgerKind    { return LedgerKind{tag: salesLedger} }
func PurchaseLedger() LedgerKind { return LedgerKind{tag: purchaseLedger} }

func OtherLedger(label string) LedgerKind {
	return LedgerKind{tag: otherLedger, label: label}
}

// NewOtherLedgerKind returns an Other kind with a generated label.
func NewOtherLedgerKind() LedgerKind { return OtherLedger(uuid.NewString()) }

// ParseLedgerKind parses the text form produced by String.
func ParseLedgerKind(s string) (LedgerKind, error) {
	switch {
	case s == "general":
		return GeneralLedger(), nil
	case s == "sales":
		return SalesLedger(), nil
	case s == "purchase":
		return PurchaseLedger(), nil
	case strings.HasPrefix(s, "other:") && strings.TrimSpace(s[len("other:"):]) != "":
		return OtherLedger(strings.TrimPrefix(s, "other:")), nil
	default:
		return LedgerKind{}, fmt.Errorf("%w: unknown ledger kind %q", apperrors.ErrValidation, s)
	}
}

func (k LedgerKind) IsZero() bool  { return k.tag == 0 }

// Validate rejects an Other kind whose label is blank, since its text form could not be parsed
// back.
func (k LedgerKind) Validate() error {
	if k.tag == otherLedger && strings.TrimSpace(k.label) == "" {
		return fmt.Errorf("%w: other ledger needs a label", apperrors.ErrValidation)
	}
	return nil
}

func (k LedgerKind) Label() string { return k.label }

func (k LedgerKind) String() string {
	switch k.tag {
	case generalLedger:
		return "general"
	case salesLedger:
		return "sales"
	case purchaseLedger:
		return "purchase"
	case otherLedger:
		return "other:" + k.label
	default:
		return ""
	}
}

func (k LedgerKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *LedgerKind) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*k = LedgerKind{}
		return nil
	}
	parsed, err := ParseLedgerKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Ledger is a book of accounts sharing a reporting currency.
type Ledger struct {
	Kind        LedgerKind  `json:"kind"`
	CreatedAt   time.Time   `json:"createdAt"`
	Description string      `json:"description"`
	Currency    CommodityID `json:"currency"`
	Book        []Account   `json:"book"`
}

// NewLedger builds an empty ledger; add accounts with AddAccount.
func NewLedger(kind LedgerKind, currency CommodityID, description string) Ledger {
	return Ledger{
		Kind:        kind,
		CreatedAt:   Now(),
		Description: description,
		Currency:    currency,
		Book:        []Account{},
	}
}

func (l Ledger) Identifier() LedgerKind { return l.Kind }
func (l Ledger) Label() string          { return l.Description }
func (l Ledger) Created() time.Time     { return l.CreatedAt }

func (l Ledger) WithIdentifier(kind LedgerKind) Ledger {
	l.Kind = kind
	return l
}

// Account returns the account with the given id.
func (l Ledger) Account(id AccountID) (Account, bool) {
	for _, a := range l.Book {
		if a.ID == id {
			return a, true
		}
	}
	return Account{}, false
}

// AddAccount appends a to the book and re-validates the ledger.
func (l *Ledger) AddAccount(a Account) error {
	if _, exists := l.Account(a.ID); exists {
		return fmt.Errorf("%w: account %s", apperrors.ErrDuplicate, a.ID)
	}
	next := *l
	next.Book = append(append([]Account{}, l.Book...), a)
	if err := next.Validate(); err != nil {
		return err
	}
	*l = next
	return nil
}

// ReplaceAccount swaps in a new version of an existing account.
func (l *Ledger) ReplaceAccount(a Account) error {
	idx := -1
	for i := range l.Book {
		if l.Book[i].ID == a.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: account %s", apperrors.ErrNotFound, a.ID)
	}
	if !a.CreatedAt.Equal(l.Book[idx].CreatedAt) {
		return fmt.Errorf("%w: account %s creation time", apperrors.ErrImmutable, a.ID)
	}
	next := *l
	next.Book = append([]Account{}, l.Book...)
	next.Book[idx] = a
	if err := next.Validate(); err != nil {
		return err
	}
	*l = next
	return nil
}

// Children returns the accounts whose parent is id.
func (l Ledger) Children(id AccountID) []Account {
	var out []Account
	for _, a := range l.Book {
		if a.ParentID != nil && *a.ParentID == id {
			out = append(out, a)
		}
	}
	return out
}

// Validate checks the currency, every account, identifier uniqueness and that the parent graph
// is a forest.
func (l Ledger) Validate() error {
	if l.Kind.IsZero() {
		return fmt.Errorf("%w: ledger has no kind", apperrors.ErrValidation)
	}
	if err := l.Kind.Validate(); err != nil {
		return err
	}
	if !l.Currency.IsCurrency() {
		return fmt.Errorf("%w: ledger currency %q is not a currency", apperrors.ErrValidation, l.Currency)
	}
	if err := l.Currency.Validate(); err != nil {
		return err
	}

	parents := make(map[AccountID]*AccountID, len(l.Book))
	for _, a := range l.Book {
		if err := a.Validate(); err != nil {
			return err
		}
		if _, dup := parents[a.ID]; dup {
			return fmt.Errorf("%w: duplicate account %s in ledger %s", apperrors.ErrValidation, a.ID, l.Kind)
		}
		parents[a.ID] = a.ParentID
	}

	for id, parent := range parents {
		if parent == nil {
			continue
		}
		if _, ok := parents[*parent]; !ok {
			return fmt.Errorf("%w: account %s references missing parent %s", apperrors.ErrValidation, id, *parent)
		}
		seen := map[AccountID]bool{id: true}
		for p := parent; p != nil; p = parents[*p] {
			if seen[*p] {
				return fmt.Errorf("%w: account %s is part of a parent cycle", apperrors.ErrValidation, id)
			}
			seen[*p] = true
		}
	}
	return nil
}

// CheckReplace validates that l may replace prev.
func (l Ledger) CheckReplace(prev Ledger, _ time.Time) error {
	if !l.CreatedAt.Equal(prev.CreatedAt) {
		return fmt.Errorf("%w: ledger %s creation time", apperrors.ErrImmutable, prev.Kind)
	}
	for _, old := range prev.Book {
		cur, ok := l.Account(old.ID)
		if !ok {
			return fmt.Errorf("%w: account %s cannot be removed, deactivate it instead", apperrors.ErrImmutable, old.ID)
		}
		if cur.Commodity != old.Commodity {
			return fmt.Errorf("%w: account %s commodity", apperrors.ErrImmutable, old.ID)
		}
	}
	return nil
}

// CheckDelete always allows removal; journals reference accounts by id only.
func (l Ledger) CheckDelete(_ time.Time) error { return nil }
