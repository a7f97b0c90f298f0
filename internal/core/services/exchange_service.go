package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/SscSPs/sledge/internal/core/domain"
	portssvc "github.com/SscSPs/sledge/internal/core/ports/services"
	"github.com/SscSPs/sledge/internal/platform/logging"
)

// rateScale is the number of decimal places kept when a cross rate is derived by division.
const rateScale = 16

// ExchangeService converts quantities using quoted prices. A rate is taken from a direct quote,
// the inverse of the opposite quote, or two quotes in a common commodity, in that order.
type ExchangeService struct {
	prices  portssvc.CommodityPriceService
	history portssvc.CommodityPriceHistoryService
}

var _ portssvc.ExchangeSvc = (*ExchangeService)(nil)

// NewExchangeService creates a new ExchangeService. history may be nil when only current prices
// are needed.
func NewExchangeService(prices portssvc.CommodityPriceService, history portssvc.CommodityPriceHistoryService) *ExchangeService {
	return &ExchangeService{prices: prices, history: history}
}

type quoteLookup func(commodity domain.CommodityID) (portssvc.PriceQuote, error)

func (s *ExchangeService) Convert(ctx context.Context, q domain.Quantity, to domain.CommodityID) (domain.RatedQuantity, error) {
	return s.convert(ctx, q, to, func(c domain.CommodityID) (portssvc.PriceQuote, error) {
		return s.prices.GetPrice(ctx, c)
	})
}

func (s *ExchangeService) ConvertAt(ctx context.Context, q domain.Quantity, to domain.CommodityID, asOf time.Time) (domain.RatedQuantity, error) {
	if s.history == nil {
		return domain.RatedQuantity{}, fmt.Errorf("%w: no price history configured", apperrors.ErrNotFound)
	}
	return s.convert(ctx, q, to, func(c domain.CommodityID) (portssvc.PriceQuote, error) {
		return s.history.GetHistoricalPrice(ctx, c, asOf)
	})
}

func (s *ExchangeService) convert(ctx context.Context, q domain.Quantity, to domain.CommodityID, lookup quoteLookup) (domain.RatedQuantity, error) {
	rate, err := findRate(q.Commodity, to, lookup)
	if err != nil {
		return domain.RatedQuantity{}, err
	}
	rq, err := q.Exchange(rate)
	if err != nil {
		return domain.RatedQuantity{}, err
	}
	logging.FromContext(ctx).Debug("Quantity exchanged",
		slog.String("from", q.Commodity.String()),
		slog.String("to", to.String()),
		slog.String("rate", rate.Value.String()))
	return rq, nil
}

func findRate(from, to domain.CommodityID, lookup quoteLookup) (domain.Rate, error) {
	if from == to {
		return domain.Rate{}, fmt.Errorf("%w: cannot exchange %s into itself", apperrors.ErrValidation, from)
	}

	fromQuote, fromErr := lookup(from)
	if fromErr == nil && fromQuote.Price.Commodity == to {
		return fromQuote.Rate(), nil
	}
	toQuote, toErr := lookup(to)
	if toErr == nil && toQuote.Price.Commodity == from {
		return toQuote.Rate().Inverse(), nil
	}
	if fromErr == nil && toErr == nil && fromQuote.Price.Commodity == toQuote.Price.Commodity {
		return domain.Rate{From: from, To: to, Value: fromQuote.Price.Amount.DivRound(toQuote.Price.Amount, rateScale)}, nil
	}

	for _, err := range []error{fromErr, toErr} {
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return domain.Rate{}, err
		}
	}
	return domain.Rate{}, fmt.Errorf("%w: no price path from %s to %s", apperrors.ErrNotFound, from, to)
}
