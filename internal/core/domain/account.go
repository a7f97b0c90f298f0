package domain

import (
	"fmt"
	"time"

	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountID is an opaque identifier assigned when an account is created.
type AccountID string

func NewAccountID() AccountID       { return AccountID(uuid.NewString()) }
func (id AccountID) String() string { return string(id) }

// AccountKind defines the accounting type of an account. Sub-kinds refine a base kind.
type AccountKind string

const (
	Asset              AccountKind = "ASSET"
	AccountsReceivable AccountKind = "ACCOUNTS_RECEIVABLE"
	Bank               AccountKind = "BANK"
	Equity             AccountKind = "EQUITY"
	Liability          AccountKind = "LIABILITY"
	AccountsPayable    AccountKind = "ACCOUNTS_PAYABLE"
	Credit             AccountKind = "CREDIT"
	Income             AccountKind = "INCOME"
	Expense            AccountKind = "EXPENSE"
)

// Class returns the base kind: Asset, Liability, Equity, Income or Expense.
func (k AccountKind) Class() (AccountKind, error) {
	switch k {
	case Asset, AccountsReceivable, Bank:
		return Asset, nil
	case Liability, AccountsPayable, Credit:
		return Liability, nil
	case Equity, Income, Expense:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown account kind %q", apperrors.ErrValidation, k)
	}
}

// IsDebitNormal reports whether increases to accounts of this kind are recorded as debits.
func (k AccountKind) IsDebitNormal() bool {
	class, err := k.Class()
	if err != nil {
		return false
	}
	return class == Asset || class == Expense
}

// RepresentsKind tags the variants of AccountRepresents.
type RepresentsKind string

const (
	RepresentsBankAccount      RepresentsKind = "BANK_ACCOUNT"
	RepresentsBrokerageAccount RepresentsKind = "BROKERAGE_ACCOUNT"
	RepresentsCreditCard       RepresentsKind = "CREDIT_CARD"
	RepresentsCustomer         RepresentsKind = "CUSTOMER"
	RepresentsEquipment        RepresentsKind = "EQUIPMENT"
	RepresentsLoan             RepresentsKind = "LOAN"
	RepresentsSupplier         RepresentsKind = "SUPPLIER"
	RepresentsSalary           RepresentsKind = "SALARY"
	RepresentsTax              RepresentsKind = "TAX"
	RepresentsUtilityService   RepresentsKind = "UTILITY_SERVICE"
)

// AccountRepresents describes the real-world thing an account tracks. Kind selects which of the
// optional detail fields is meaningful.
type AccountRepresents struct {
	Kind             RepresentsKind    `json:"kind"`
	BankAccount      *BankAccount      `json:"bankAccount,omitempty"`
	BrokerageAccount *BrokerageAccount `json:"brokerageAccount,omitempty"`
	CreditCard       *CreditCard       `json:"creditCard,omitempty"`
	Counterparty     *PartyID          `json:"counterparty,omitempty"` // customer or supplier
	Loan             *Loan             `json:"loan,omitempty"`
	UtilityService   *UtilityService   `json:"utilityService,omitempty"`
}

type BankAccount struct {
	Institution   PartyID          `json:"institution"`
	AccountNumber string           `json:"accountNumber" validate:"required"`
	InterestAPR   *decimal.Decimal `json:"interestApr,omitempty"`
}

type BrokerageAccount struct {
	Institution   PartyID `json:"institution"`
	AccountNumber string  `json:"accountNumber" validate:"required"`
}

type CreditCard struct {
	Institution   PartyID         `json:"institution"`
	AccountNumber string          `json:"accountNumber" validate:"required"`
	CloseMonth    uint8           `json:"closeMonth" validate:"min=1,max=12"`
	CloseDay      uint8           `json:"closeDay" validate:"min=1,max=31"`
	InterestAPR   decimal.Decimal `json:"interestApr"`
	AnnualFee     Quantity        `json:"annualFee"`
}

type Loan struct {
	Institution   PartyID          `json:"institution"`
	AccountNumber string           `json:"accountNumber" validate:"required"`
	InterestAPR   *decimal.Decimal `json:"interestApr,omitempty"`
	TermInMonths  uint8            `json:"termInMonths" validate:"min=1"`
}

type UtilityService struct {
	Provider      PartyID `json:"provider"`
	AccountNumber string  `json:"accountNumber" validate:"required"`
}

func (r AccountRepresents) Validate() error {
	switch r.Kind {
	case RepresentsBankAccount:
		if r.BankAccount == nil {
			return missingDetail(r.Kind)
		}
		return validateWithParty(r.BankAccount, r.BankAccount.Institution)
	case RepresentsBrokerageAccount:
		if r.BrokerageAccount == nil {
			return missingDetail(r.Kind)
		}
		return validateWithParty(r.BrokerageAccount, r.BrokerageAccount.Institution)
	case RepresentsCreditCard:
		if r.CreditCard == nil {
			return missingDetail(r.Kind)
		}
		if err := validateWithParty(r.CreditCard, r.CreditCard.Institution); err != nil {
			return err
		}
		return r.CreditCard.AnnualFee.Validate()
	case RepresentsCustomer, RepresentsSupplier:
		if r.Counterparty == nil {
			return missingDetail(r.Kind)
		}
		return r.Counterparty.Validate()
	case RepresentsLoan:
		if r.Loan == nil {
			return missingDetail(r.Kind)
		}
		return validateWithParty(r.Loan, r.Loan.Institution)
	case RepresentsUtilityService:
		if r.UtilityService == nil {
			return missingDetail(r.Kind)
		}
		return validateWithParty(r.UtilityService, r.UtilityService.Provider)
	case RepresentsEquipment, RepresentsSalary, RepresentsTax:
		return nil
	default:
		return fmt.Errorf("%w: unknown account representation %q", apperrors.ErrValidation, r.Kind)
	}
}

func missingDetail(kind RepresentsKind) error {
	return fmt.Errorf("%w: %s representation has no details", apperrors.ErrValidation, kind)
}

func validateWithParty(detail any, party PartyID) error {
	if err := party.Validate(); err != nil {
		return err
	}
	return validateStruct(detail)
}

// Account is a node in a ledger's chart of accounts.
type Account struct {
	ID          AccountID          `json:"id"`
	CreatedAt   time.Time          `json:"createdAt"`
	IsActive    bool               `json:"isActive"`
	ParentID    *AccountID         `json:"parentID,omitempty"`
	Kind        AccountKind        `json:"kind"`
	Commodity   CommodityID        `json:"commodity"`
	Description string             `json:"description"`
	IsRecording bool               `json:"isRecording"` // false for placeholder/grouping accounts
	Represents  *AccountRepresents `json:"represents,omitempty"`
}

// NewAccount builds an active recording account with a fresh identifier.
func NewAccount(kind AccountKind, commodity CommodityID, description string) Account {
	return Account{
		ID:          NewAccountID(),
		CreatedAt:   Now(),
		IsActive:    true,
		Kind:        kind,
		Commodity:   commodity,
		Description: description,
		IsRecording: true,
	}
}

// WithParent returns a copy of a placed beneath parent.
func (a Account) WithParent(parent AccountID) Account {
	a.ParentID = &parent
	return a
}

// Validate checks the account on its own; parent references are checked by the owning ledger.
func (a Account) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("%w: account has no identifier", apperrors.ErrValidation)
	}
	if _, err := a.Kind.Class(); err != nil {
		return err
	}
	if err := a.Commodity.Validate(); err != nil {
		return fmt.Errorf("account %s: %w", a.ID, err)
	}
	if a.ParentID != nil && *a.ParentID == a.ID {
		return fmt.Errorf("%w: account %s is its own parent", apperrors.ErrValidation, a.ID)
	}
	if a.Represents != nil {
		if err := a.Represents.Validate(); err != nil {
			return fmt.Errorf("account %s: %w", a.ID, err)
		}
	}
	return nil
}
