package services

import (
	"context"
	"time"

	"github.com/SscSPs/sledge/internal/core/domain"
)

// ExchangeSvc converts quantities between commodities using a price service.
type ExchangeSvc interface {
	// Convert exchanges q into commodity to at the latest prices.
	Convert(ctx context.Context, q domain.Quantity, to domain.CommodityID) (domain.RatedQuantity, error)

	// ConvertAt exchanges q into commodity to at the prices known at asOf.
	ConvertAt(ctx context.Context, q domain.Quantity, to domain.CommodityID, asOf time.Time) (domain.RatedQuantity, error)
}
