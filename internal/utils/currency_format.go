package utils

import (
	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/shopspring/decimal"
)

// FormatQuantity formats a quantity's amount with the precision of its commodity.
// Example: 12.3456 USD returns "12.35", 12.3456 JPY returns "12".
// Securities keep their full precision.
func FormatQuantity(q domain.Quantity) string {
	if !q.Commodity.IsCurrency() {
		return q.Amount.String()
	}
	return FormatWithPrecision(q.Amount, q.Commodity.Fraction())
}

// FormatWithPrecision formats an amount with the given precision, keeping trailing zeros.
func FormatWithPrecision(amount decimal.Decimal, precision int) string {
	return amount.StringFixed(int32(precision))
}

// FormatExactQuantity formats a quantity without losing digits. Currency amounts are padded to
// the currency's minor units; digits beyond them are kept.
// Example: 3 USD returns "3.00", 0.005 USD returns "0.005".
func FormatExactQuantity(q domain.Quantity) string {
	if !q.Commodity.IsCurrency() {
		return q.Amount.String()
	}
	places := int32(q.Commodity.Fraction())
	if q.Amount.Round(places).Equal(q.Amount) {
		return q.Amount.StringFixed(places)
	}
	return q.Amount.String()
}
