package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/SscSPs/sledge/internal/core/domain"
)

// PriceQuote is the price of one unit of Commodity at AsOf.
type PriceQuote struct {
	Commodity domain.CommodityID `json:"commodity"`
	Price     domain.Quantity    `json:"price"`
	AsOf      time.Time          `json:"asOf"`
}

// Rate expresses the quote as a rate from the quoted commodity into the price commodity.
func (q PriceQuote) Rate() domain.Rate {
	return domain.Rate{From: q.Commodity, To: q.Price.Commodity, Value: q.Price.Amount}
}

func (q PriceQuote) Validate() error {
	if q.AsOf.IsZero() {
		return fmt.Errorf("%w: quote for %s has no time", apperrors.ErrValidation, q.Commodity)
	}
	return q.Rate().Validate()
}

// HistoryRange is the trailing window of a price history request.
type HistoryRange int

const (
	Hour HistoryRange = iota + 1
	Day
	Week
	Month
	Year
)

var historyRangeNames = map[HistoryRange]string{
	Hour:  "hour",
	Day:   "day",
	Week:  "week",
	Month: "month",
	Year:  "year",
}

func (r HistoryRange) String() string {
	if name, ok := historyRangeNames[r]; ok {
		return name
	}
	return fmt.Sprintf("HistoryRange(%d)", int(r))
}

// Since returns the start of the window ending at now.
func (r HistoryRange) Since(now time.Time) time.Time {
	switch r {
	case Hour:
		return now.Add(-time.Hour)
	case Day:
		return now.AddDate(0, 0, -1)
	case Week:
		return now.AddDate(0, 0, -7)
	case Month:
		return now.AddDate(0, -1, 0)
	case Year:
		return now.AddDate(-1, 0, 0)
	default:
		panic(fmt.Sprintf("unknown history range %d", int(r)))
	}
}

func ParseHistoryRange(s string) (HistoryRange, error) {
	for r, name := range historyRangeNames {
		if strings.EqualFold(s, name) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown history range %q", apperrors.ErrValidation, s)
}

// CommodityPriceService provides current prices.
type CommodityPriceService interface {
	// GetPrice returns the latest known quote for commodity.
	GetPrice(ctx context.Context, commodity domain.CommodityID) (PriceQuote, error)
}

// CommodityPriceHistoryService provides past prices.
type CommodityPriceHistoryService interface {
	// GetHistoricalPrice returns the latest quote at or before asOf.
	GetHistoricalPrice(ctx context.Context, commodity domain.CommodityID, asOf time.Time) (PriceQuote, error)

	// GetPriceTrailingHistory returns the quotes inside the trailing window, oldest first.
	GetPriceTrailingHistory(ctx context.Context, commodity domain.CommodityID, window HistoryRange) ([]PriceQuote, error)
}
