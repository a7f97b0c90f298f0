package dto

import (
	"fmt"
	"time"

	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/SscSPs/sledge/internal/utils"
)

// CreateAccountRequest defines the data needed to add an account to a ledger.
type CreateAccountRequest struct {
	Kind        domain.AccountKind `json:"kind" binding:"required,oneof=ASSET ACCOUNTS_RECEIVABLE BANK EQUITY LIABILITY ACCOUNTS_PAYABLE CREDIT INCOME EXPENSE"`
	Commodity   string             `json:"commodity" binding:"required"`
	ParentID    *string            `json:"parentID"`
	Description string             `json:"description" binding:"required"`
	Placeholder bool               `json:"placeholder"`
}

// ToDomain builds the account to add. The service assigns its identifier.
func (r CreateAccountRequest) ToDomain() (domain.Account, error) {
	commodity, err := domain.ParseCommodityID(r.Commodity)
	if err != nil {
		return domain.Account{}, err
	}
	a := domain.Account{
		IsActive:    true,
		Kind:        r.Kind,
		Commodity:   commodity,
		Description: r.Description,
		IsRecording: !r.Placeholder,
	}
	if r.ParentID != nil && *r.ParentID != "" {
		a = a.WithParent(domain.AccountID(*r.ParentID))
	}
	return a, nil
}

// UpdateAccountRequest defines the data allowed for updating an account.
// Use pointers to distinguish between zero-value updates and fields not provided.
type UpdateAccountRequest struct {
	Description *string `json:"description"`
	ParentID    *string `json:"parentID"` // empty string moves the account to the top level
	IsActive    *bool   `json:"isActive"`
}

// Apply returns a copy of a with the provided fields changed.
func (r UpdateAccountRequest) Apply(a domain.Account) (domain.Account, error) {
	if r.Description == nil && r.ParentID == nil && r.IsActive == nil {
		return a, fmt.Errorf("%w: no fields to update", apperrors.ErrValidation)
	}
	if r.Description != nil {
		a.Description = *r.Description
	}
	if r.ParentID != nil {
		if *r.ParentID == "" {
			a.ParentID = nil
		} else {
			a = a.WithParent(domain.AccountID(*r.ParentID))
		}
	}
	if r.IsActive != nil {
		a.IsActive = *r.IsActive
	}
	return a, nil
}

// AccountResponse defines the data returned for an account.
type AccountResponse struct {
	ID          string             `json:"id"`
	ParentID    string             `json:"parentID,omitempty"`
	Kind        domain.AccountKind `json:"kind"`
	Commodity   string             `json:"commodity"`
	Description string             `json:"description"`
	IsActive    bool               `json:"isActive"`
	Placeholder bool               `json:"placeholder"`
	CreatedAt   time.Time          `json:"createdAt"`
}

func ToAccountResponse(a domain.Account) AccountResponse {
	res := AccountResponse{
		ID:          a.ID.String(),
		Kind:        a.Kind,
		Commodity:   a.Commodity.String(),
		Description: a.Description,
		IsActive:    a.IsActive,
		Placeholder: !a.IsRecording,
		CreatedAt:   a.CreatedAt,
	}
	if a.ParentID != nil {
		res.ParentID = a.ParentID.String()
	}
	return res
}

// LedgerResponse defines the data returned for a ledger and its chart of accounts.
type LedgerResponse struct {
	Kind        string            `json:"kind"`
	Description string            `json:"description"`
	Currency    string            `json:"currency"`
	CreatedAt   time.Time         `json:"createdAt"`
	Accounts    []AccountResponse `json:"accounts"`
}

func ToLedgerResponse(l domain.Ledger) LedgerResponse {
	accounts := make([]AccountResponse, len(l.Book))
	for i, a := range l.Book {
		accounts[i] = ToAccountResponse(a)
	}
	return LedgerResponse{
		Kind:        l.Kind.String(),
		Description: l.Description,
		Currency:    l.Currency.String(),
		CreatedAt:   l.CreatedAt,
		Accounts:    accounts,
	}
}

// ListLedgersResponse is one page of ledgers.
type ListLedgersResponse struct {
	Ledgers       []LedgerResponse `json:"ledgers"`
	NextPageToken string           `json:"nextPageToken,omitempty"`
}

// BalanceResponse defines the data returned for an account balance query.
type BalanceResponse struct {
	AccountID string `json:"accountID"`
	Commodity string `json:"commodity"`
	Balance   string `json:"balance"`
}

func ToBalanceResponse(id domain.AccountID, q domain.Quantity) BalanceResponse {
	return BalanceResponse{AccountID: id.String(), Commodity: q.Commodity.String(), Balance: utils.FormatExactQuantity(q)}
}
