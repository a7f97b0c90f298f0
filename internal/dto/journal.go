package dto

import (
	"fmt"
	"time"

	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/SscSPs/sledge/internal/utils"
	"github.com/shopspring/decimal"
)

// SplitRequest is one posting of a transaction. Positive amounts are debits.
type SplitRequest struct {
	ID            string                `json:"id"`
	AccountID     string                `json:"accountID" binding:"required"`
	Amount        decimal.Decimal       `json:"amount"`
	Commodity     string                `json:"commodity" binding:"required"`
	Description   string                `json:"description"`
	ExchangedFrom *RatedQuantityRequest `json:"exchangedFrom"`
}

// RatedQuantityRequest is the transaction-commodity amount a foreign split was exchanged from.
// Amount times Rate must equal the split amount exactly.
type RatedQuantityRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Commodity string          `json:"commodity" binding:"required"`
	Rate      decimal.Decimal `json:"rate"`
}

func (r RatedQuantityRequest) toDomain(to domain.CommodityID) (*domain.RatedQuantity, error) {
	from, err := domain.ParseCommodityID(r.Commodity)
	if err != nil {
		return nil, err
	}
	return &domain.RatedQuantity{
		Source: domain.NewQuantity(from, r.Amount),
		Rate:   domain.Rate{From: from, To: to, Value: r.Rate},
	}, nil
}

// TransactionRequest defines the data needed to record or replace a transaction.
type TransactionRequest struct {
	Name      string         `json:"name" binding:"required"`
	Timestamp *time.Time     `json:"timestamp"` // defaults to now
	Commodity *string        `json:"commodity"` // defaults to the journal currency
	Splits    []SplitRequest `json:"splits" binding:"required,min=2,dive"`
}

// ToDomain converts the request. Balance and account checks are left to the service.
func (r TransactionRequest) ToDomain(id domain.TransactionID) (domain.Transaction, error) {
	tx := domain.Transaction{ID: id, Name: r.Name, Timestamp: domain.Now()}
	if r.Timestamp != nil {
		tx.Timestamp = r.Timestamp.UTC()
	}
	if r.Commodity != nil {
		c, err := domain.ParseCommodityID(*r.Commodity)
		if err != nil {
			return domain.Transaction{}, err
		}
		tx.Commodity = &c
	}
	for i, sr := range r.Splits {
		c, err := domain.ParseCommodityID(sr.Commodity)
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("split %d: %w", i, err)
		}
		sp := domain.Split{
			ID:          domain.SplitID(sr.ID),
			Transaction: id,
			Account:     domain.AccountID(sr.AccountID),
			Quantity:    domain.NewQuantity(c, sr.Amount),
			Description: sr.Description,
		}
		if sr.ExchangedFrom != nil {
			if sp.ExchangedFrom, err = sr.ExchangedFrom.toDomain(c); err != nil {
				return domain.Transaction{}, fmt.Errorf("split %d: %w", i, err)
			}
		}
		tx.Splits = append(tx.Splits, sp)
	}
	return tx, nil
}

// ReconcileRequest carries the statement reference a split is matched against.
type ReconcileRequest struct {
	Reference string `json:"reference" binding:"required"`
}

type RatedQuantityResponse struct {
	Amount    string `json:"amount"`
	Commodity string `json:"commodity"`
	Rate      string `json:"rate"`
}

// SplitResponse carries posted amounts exactly; they are never rounded to minor units.
type SplitResponse struct {
	ID            string                 `json:"id"`
	AccountID     string                 `json:"accountID"`
	Amount        string                 `json:"amount"`
	Commodity     string                 `json:"commodity"`
	ExchangedFrom *RatedQuantityResponse `json:"exchangedFrom,omitempty"`
	Description   string                 `json:"description,omitempty"`
	Reference     string                 `json:"reference,omitempty"`
	ReconciledAt  *time.Time             `json:"reconciledAt,omitempty"`
}

func ToSplitResponse(sp domain.Split) SplitResponse {
	res := SplitResponse{
		ID:          sp.ID.String(),
		AccountID:   sp.Account.String(),
		Amount:      utils.FormatExactQuantity(sp.Quantity),
		Commodity:   sp.Quantity.Commodity.String(),
		Description: sp.Description,
	}
	if rq := sp.ExchangedFrom; rq != nil {
		res.ExchangedFrom = &RatedQuantityResponse{
			Amount:    utils.FormatExactQuantity(rq.Source),
			Commodity: rq.Source.Commodity.String(),
			Rate:      rq.Rate.Value.String(),
		}
	}
	if sp.Reconciled != nil {
		at := sp.Reconciled.ReconciledAt
		res.Reference = sp.Reconciled.Reference
		res.ReconciledAt = &at
	}
	return res
}

type TransactionResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Timestamp time.Time       `json:"timestamp"`
	Commodity string          `json:"commodity,omitempty"`
	Splits    []SplitResponse `json:"splits"`
}

func ToTransactionResponse(tx domain.Transaction) TransactionResponse {
	res := TransactionResponse{ID: tx.ID.String(), Name: tx.Name, Timestamp: tx.Timestamp}
	if tx.Commodity != nil {
		res.Commodity = tx.Commodity.String()
	}
	res.Splits = make([]SplitResponse, len(tx.Splits))
	for i, sp := range tx.Splits {
		res.Splits[i] = ToSplitResponse(sp)
	}
	return res
}

// JournalResponse defines the data returned for a journal. Transactions are omitted in listings.
type JournalResponse struct {
	Name         string                `json:"name"`
	Currency     string                `json:"currency"`
	CreatedAt    time.Time             `json:"createdAt"`
	Version      uint32                `json:"version"`
	ReadOnly     bool                  `json:"readOnly"`
	Signed       bool                  `json:"signed"`
	Transactions []TransactionResponse `json:"transactions,omitempty"`
}

func ToJournalResponse(j domain.Journal, now time.Time, withTransactions bool) JournalResponse {
	res := JournalResponse{
		Name:      j.Name.String(),
		Currency:  j.Currency.String(),
		CreatedAt: j.CreatedAt,
		Version:   j.Version,
		ReadOnly:  j.IsReadOnly(now),
		Signed:    j.IsSigned(),
	}
	if withTransactions {
		res.Transactions = make([]TransactionResponse, len(j.Transactions))
		for i, tx := range j.Transactions {
			res.Transactions[i] = ToTransactionResponse(tx)
		}
	}
	return res
}

// ListJournalsResponse is one page of journals.
type ListJournalsResponse struct {
	Journals      []JournalResponse `json:"journals"`
	NextPageToken string            `json:"nextPageToken,omitempty"`
}

// VersionResponse reports the journal version that now accepts changes.
type VersionResponse struct {
	Version uint32 `json:"version"`
}

// ExchangeParams defines the query of a conversion.
type ExchangeParams struct {
	Amount string     `form:"amount" binding:"required"`
	From   string     `form:"from" binding:"required"`
	To     string     `form:"to" binding:"required"`
	AsOf   *time.Time `form:"asOf" time_format:"2006-01-02T15:04:05Z07:00"`
}

// Quantity parses the amount and source commodity.
func (p ExchangeParams) Quantity() (domain.Quantity, error) {
	amount, err := decimal.NewFromString(p.Amount)
	if err != nil {
		return domain.Quantity{}, fmt.Errorf("%w: invalid amount %q", apperrors.ErrValidation, p.Amount)
	}
	from, err := domain.ParseCommodityID(p.From)
	if err != nil {
		return domain.Quantity{}, err
	}
	return domain.NewQuantity(from, amount), nil
}

type ExchangeResponse struct {
	Source    string `json:"source"`
	From      string `json:"from"`
	Converted string `json:"converted"`
	To        string `json:"to"`
	Rate      string `json:"rate"`
}

func ToExchangeResponse(rq domain.RatedQuantity) ExchangeResponse {
	converted := rq.Converted()
	return ExchangeResponse{
		Source:    utils.FormatExactQuantity(rq.Source),
		From:      rq.Source.Commodity.String(),
		Converted: utils.FormatExactQuantity(converted),
		To:        converted.Commodity.String(),
		Rate:      rq.Rate.Value.String(),
	}
}
