package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/shopspring/decimal"
)

// ErrCommodityMismatch is returned by arithmetic between quantities of different commodities.
var ErrCommodityMismatch = fmt.Errorf("%w: commodity mismatch", apperrors.ErrValidation)

// CommodityKind tags the variants of CommodityID.
type CommodityKind int

const (
	CurrencyCommodity CommodityKind = iota + 1
	SecurityCommodity
)

func (k CommodityKind) String() string {
	switch k {
	case CurrencyCommodity:
		return "currency"
	case SecurityCommodity:
		return "security"
	default:
		return "unknown"
	}
}

// CommodityID identifies a currency (ISO-4217 code) or a security (ISIN).
// The zero value is not a valid commodity.
type CommodityID struct {
	kind CommodityKind
	code string
}

var (
	isinRegex = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)
	micRegex  = regexp.MustCompile(`^[A-Z0-9]{4}$`)
)

// Currency returns the commodity for an ISO-4217 currency code.
func Currency(code string) (CommodityID, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if money.GetCurrency(code) == nil {
		return CommodityID{}, fmt.Errorf("%w: unknown currency code %q", apperrors.ErrValidation, code)
	}
	return CommodityID{kind: CurrencyCommodity, code: code}, nil
}

// MustCurrency is like Currency but panics on an unknown code. Intended for constants and tests.
func MustCurrency(code string) CommodityID {
	c, err := Currency(code)
	if err != nil {
		panic(err)
	}
	return c
}

// Security returns the commodity for an International Securities Identification Number.
func Security(isin string) (CommodityID, error) {
	isin = strings.ToUpper(strings.TrimSpace(isin))
	if err := ValidateISIN(isin); err != nil {
		return CommodityID{}, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	return CommodityID{kind: SecurityCommodity, code: isin}, nil
}

// ParseCommodityID parses the text form produced by String.
func ParseCommodityID(s string) (CommodityID, error) {
	if len(strings.TrimSpace(s)) == 12 {
		return Security(s)
	}
	return Currency(s)
}

func (c CommodityID) Kind() CommodityKind { return c.kind }
func (c CommodityID) Code() string        { return c.code }
func (c CommodityID) IsZero() bool        { return c.kind == 0 && c.code == "" }
func (c CommodityID) IsCurrency() bool    { return c.kind == CurrencyCommodity }
func (c CommodityID) IsSecurity() bool    { return c.kind == SecurityCommodity }
func (c CommodityID) String() string      { return c.code }

// Validate checks the identifier against its reference table.
func (c CommodityID) Validate() error {
	switch c.kind {
	case CurrencyCommodity:
		if money.GetCurrency(c.code) == nil {
			return fmt.Errorf("%w: unknown currency code %q", apperrors.ErrValidation, c.code)
		}
		return nil
	case SecurityCommodity:
		if err := ValidateISIN(c.code); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: commodity is not set", apperrors.ErrValidation)
	}
}

// Fraction is the number of minor-unit digits of a currency; securities report 0.
func (c CommodityID) Fraction() int {
	switch c.kind {
	case CurrencyCommodity:
		if cur := money.GetCurrency(c.code); cur != nil {
			return cur.Fraction
		}
		return 0
	case SecurityCommodity:
		return 0
	default:
		return 0
	}
}

func (c CommodityID) MarshalText() ([]byte, error) {
	if c.IsZero() {
		return []byte{}, nil
	}
	return []byte(c.code), nil
}

func (c *CommodityID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*c = CommodityID{}
		return nil
	}
	parsed, err := ParseCommodityID(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ValidateISIN checks length, layout and the modulus-10 check digit of an ISIN.
func ValidateISIN(isin string) error {
	if len(isin) != 12 {
		return fmt.Errorf("invalid ISIN length: must be 12 characters, got %d", len(isin))
	}
	if !isinRegex.MatchString(isin) {
		return fmt.Errorf("invalid ISIN format: must be 2 letters, 9 alphanumeric chars and 1 digit")
	}

	var digits strings.Builder
	for _, char := range isin[:11] {
		if char >= 'A' && char <= 'Z' {
			digits.WriteString(strconv.Itoa(int(char - 'A' + 10)))
		} else {
			digits.WriteRune(char)
		}
	}

	sum := 0
	double := true
	s := digits.String()
	for i := len(s) - 1; i >= 0; i-- {
		d := int(s[i] - '0')
		if double {
			d *= 2
		}
		sum += d/10 + d%10
		double = !double
	}

	expected := (10 - sum%10) % 10
	actual := int(isin[11] - '0')
	if expected != actual {
		return fmt.Errorf("invalid ISIN check digit: expected %d, got %d", expected, actual)
	}
	return nil
}

// MarketIdentifierCode is an ISO-10383 market identifier.
type MarketIdentifierCode string

func (m MarketIdentifierCode) Validate() error {
	if !micRegex.MatchString(string(m)) {
		return fmt.Errorf("%w: invalid MIC %q", apperrors.ErrValidation, string(m))
	}
	return nil
}

// Market describes a trading venue.
type Market struct {
	MIC       MarketIdentifierCode `json:"mic"`
	Name      string               `json:"name"`
	Country   CountryCode          `json:"country"`
	City      string               `json:"city"`
	Bloomberg string               `json:"bloomberg,omitempty"`
}

// SecurityInfo is descriptive data about a listed security.
type SecurityInfo struct {
	Market       MarketIdentifierCode `json:"market"`
	Symbol       string               `json:"symbol,omitempty"`
	ISIN         CommodityID          `json:"isin"`
	Name         string               `json:"name,omitempty"`
	BaseCurrency *CommodityID         `json:"baseCurrency,omitempty"`
}

// Quantity is an exact amount of one commodity.
type Quantity struct {
	Commodity CommodityID     `json:"commodity"`
	Amount    decimal.Decimal `json:"amount"`
}

func NewQuantity(commodity CommodityID, amount decimal.Decimal) Quantity {
	return Quantity{Commodity: commodity, Amount: amount}
}

// Zero returns a zero quantity of the given commodity.
func Zero(commodity CommodityID) Quantity {
	return Quantity{Commodity: commodity, Amount: decimal.Zero}
}

func (q Quantity) IsZero() bool     { return q.Amount.IsZero() }
func (q Quantity) IsNegative() bool { return q.Amount.IsNegative() }
func (q Quantity) Neg() Quantity    { return Quantity{Commodity: q.Commodity, Amount: q.Amount.Neg()} }

// Equal compares commodity and numeric value; 1.0 and 1.00 are equal.
func (q Quantity) Equal(o Quantity) bool {
	return q.Commodity == o.Commodity && q.Amount.Equal(o.Amount)
}

func (q Quantity) Add(o Quantity) (Quantity, error) {
	if q.Commodity != o.Commodity {
		return Quantity{}, fmt.Errorf("%w: cannot add %s to %s", ErrCommodityMismatch, o.Commodity, q.Commodity)
	}
	return Quantity{Commodity: q.Commodity, Amount: q.Amount.Add(o.Amount)}, nil
}

func (q Quantity) Sub(o Quantity) (Quantity, error) {
	if q.Commodity != o.Commodity {
		return Quantity{}, fmt.Errorf("%w: cannot subtract %s from %s", ErrCommodityMismatch, o.Commodity, q.Commodity)
	}
	return Quantity{Commodity: q.Commodity, Amount: q.Amount.Sub(o.Amount)}, nil
}

// Cmp compares two quantities of the same commodity.
func (q Quantity) Cmp(o Quantity) (int, error) {
	if q.Commodity != o.Commodity {
		return 0, fmt.Errorf("%w: cannot compare %s with %s", ErrCommodityMismatch, o.Commodity, q.Commodity)
	}
	return q.Amount.Cmp(o.Amount), nil
}

// Exchange converts q with rate, keeping the source quantity for audit.
func (q Quantity) Exchange(rate Rate) (RatedQuantity, error) {
	rq := RatedQuantity{Source: q, Rate: rate}
	if err := rq.Validate(); err != nil {
		return RatedQuantity{}, err
	}
	return rq, nil
}

func (q Quantity) Validate() error {
	return q.Commodity.Validate()
}

// String formats currencies with the currency's own template, e.g. "$100.00".
func (q Quantity) String() string {
	if q.Commodity.IsCurrency() {
		if cur := money.GetCurrency(q.Commodity.Code()); cur != nil {
			minor := q.Amount.Shift(int32(cur.Fraction))
			if minor.Equal(minor.Truncate(0)) {
				return cur.Formatter().Format(minor.IntPart())
			}
		}
	}
	return q.Amount.String() + " " + q.Commodity.String()
}

// Rate is the price of one unit of From expressed in To.
type Rate struct {
	From  CommodityID     `json:"from"`
	To    CommodityID     `json:"to"`
	Value decimal.Decimal `json:"value"`
}

func (r Rate) Validate() error {
	if err := r.From.Validate(); err != nil {
		return err
	}
	if err := r.To.Validate(); err != nil {
		return err
	}
	if r.From == r.To {
		return fmt.Errorf("%w: rate from %s to itself", apperrors.ErrValidation, r.From)
	}
	if !r.Value.IsPositive() {
		return fmt.Errorf("%w: rate value must be positive, got %s", apperrors.ErrValidation, r.Value)
	}
	return nil
}

// Inverse returns the rate from To to From.
func (r Rate) Inverse() Rate {
	return Rate{From: r.To, To: r.From, Value: decimal.NewFromInt(1).DivRound(r.Value, 16)}
}

// RatedQuantity records the source quantity and the rate used to obtain a quantity of another commodity.
type RatedQuantity struct {
	Source Quantity `json:"source"`
	Rate   Rate     `json:"rate"`
}

func (rq RatedQuantity) Validate() error {
	if err := rq.Rate.Validate(); err != nil {
		return err
	}
	if rq.Source.Commodity != rq.Rate.From {
		return fmt.Errorf("%w: source %s does not match rate origin %s", ErrCommodityMismatch, rq.Source.Commodity, rq.Rate.From)
	}
	return nil
}

// Converted returns the exact product of the source amount and the rate.
func (rq RatedQuantity) Converted() Quantity {
	return Quantity{Commodity: rq.Rate.To, Amount: rq.Source.Amount.Mul(rq.Rate.Value)}
}
