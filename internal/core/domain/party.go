package domain

import (
	"fmt"

	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/shopspring/decimal"
)

// PartyKind tags the variants of PartyID.
type PartyKind string

const (
	LegalEntityParty PartyKind = "LEGAL_ENTITY" // ISO 17442 LEI, 20 characters
	BusinessParty    PartyKind = "BUSINESS"     // DUNS number, 9 digits
	PersonParty      PartyKind = "PERSON"
)

// PartyID identifies a legal entity, business or person.
type PartyID struct {
	Kind  PartyKind `json:"kind"`
	Value string    `json:"value"`
}

type legalEntityID struct {
	Value string `validate:"len=20,alphanum"`
}

type dunsNumber struct {
	Value string `validate:"len=9,numeric"`
}

type personID struct {
	Value string `validate:"required"`
}

func LegalEntity(lei string) PartyID { return PartyID{Kind: LegalEntityParty, Value: lei} }
func Business(duns string) PartyID   { return PartyID{Kind: BusinessParty, Value: duns} }
func Person(id string) PartyID       { return PartyID{Kind: PersonParty, Value: id} }

func (p PartyID) String() string { return string(p.Kind) + ":" + p.Value }

func (p PartyID) Validate() error {
	switch p.Kind {
	case LegalEntityParty:
		return validateStruct(legalEntityID{Value: p.Value})
	case BusinessParty:
		return validateStruct(dunsNumber{Value: p.Value})
	case PersonParty:
		return validateStruct(personID{Value: p.Value})
	default:
		return fmt.Errorf("%w: unknown party kind %q", apperrors.ErrValidation, p.Kind)
	}
}

// Party is a counterparty referenced from accounts.
type Party struct {
	ID             PartyID `json:"id"`
	Active         bool    `json:"active"`
	Name           string  `json:"name" validate:"required"`
	Notes          string  `json:"notes,omitempty"`
	MailingAddress Address `json:"mailingAddress"`
}

func (p Party) Validate() error {
	if err := p.ID.Validate(); err != nil {
		return err
	}
	if err := validateStruct(p); err != nil {
		return err
	}
	return p.MailingAddress.Validate()
}

// CountryCode is an ISO-3166 alpha-2 country code.
type CountryCode string

func (c CountryCode) Validate() error {
	if err := Validator().Var(string(c), "required,iso3166_1_alpha2"); err != nil {
		return fmt.Errorf("%w: invalid country code %q", apperrors.ErrValidation, string(c))
	}
	return nil
}

// GlobalLocationNumber is a GS1 13 digit location number with a trailing check digit.
type GlobalLocationNumber string

func (g GlobalLocationNumber) Validate() error {
	s := string(g)
	if err := Validator().Var(s, "len=13,numeric"); err != nil {
		return fmt.Errorf("%w: GLN must be 13 digits, got %q", apperrors.ErrValidation, s)
	}
	sum := 0
	for i := 0; i < 12; i++ {
		d := int(s[i] - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	if expected := (10 - sum%10) % 10; int(s[12]-'0') != expected {
		return fmt.Errorf("%w: GLN check digit mismatch in %q", apperrors.ErrValidation, s)
	}
	return nil
}

var (
	maxLatitude  = decimal.NewFromInt(90)
	maxLongitude = decimal.NewFromInt(180)
)

// GeoLocation is a WGS-84 position.
type GeoLocation struct {
	Lat         decimal.Decimal  `json:"lat"`
	Long        decimal.Decimal  `json:"long"`
	Uncertainty *decimal.Decimal `json:"uncertainty,omitempty"` // radius in m
	Altitude    *decimal.Decimal `json:"altitude,omitempty"`    // in m
}

func (g GeoLocation) Validate() error {
	if g.Lat.Abs().GreaterThan(maxLatitude) {
		return fmt.Errorf("%w: latitude %s out of range", apperrors.ErrValidation, g.Lat)
	}
	if g.Long.Abs().GreaterThan(maxLongitude) {
		return fmt.Errorf("%w: longitude %s out of range", apperrors.ErrValidation, g.Long)
	}
	if g.Uncertainty != nil && g.Uncertainty.IsNegative() {
		return fmt.Errorf("%w: negative uncertainty", apperrors.ErrValidation)
	}
	return nil
}

// Address is a postal address.
type Address struct {
	POBox                  string                `json:"poBox,omitempty"`
	StreetNumber           string                `json:"streetNumber" validate:"required"`
	StreetName             string                `json:"streetName" validate:"required"`
	UnitNumber             string                `json:"unitNumber,omitempty"`
	NeighborhoodOrDistrict string                `json:"neighborhoodOrDistrict,omitempty"`
	CityOrTown             string                `json:"cityOrTown" validate:"required"`
	ProvinceOrState        string                `json:"provinceOrState,omitempty"`
	PostalCode             string                `json:"postalCode" validate:"required"`
	Country                CountryCode           `json:"country"`
	GLN                    *GlobalLocationNumber `json:"gln,omitempty"`
	Geo                    *GeoLocation          `json:"geo,omitempty"`
}

func (a Address) Validate() error {
	if err := validateStruct(a); err != nil {
		return err
	}
	if err := a.Country.Validate(); err != nil {
		return err
	}
	if a.GLN != nil {
		if err := a.GLN.Validate(); err != nil {
			return err
		}
	}
	if a.Geo != nil {
		return a.Geo.Validate()
	}
	return nil
}

// LocationKind tags the variants of Location.
type LocationKind string

const (
	AddressLocation LocationKind = "ADDRESS"
	GLNLocation     LocationKind = "GLN"
	GeoLocationKind LocationKind = "GEO"
)

// Location is exactly one of an address, a GLN or a geographic position, selected by Kind.
type Location struct {
	Kind    LocationKind          `json:"kind"`
	Address *Address              `json:"address,omitempty"`
	GLN     *GlobalLocationNumber `json:"gln,omitempty"`
	Geo     *GeoLocation          `json:"geo,omitempty"`
}

func (l Location) Validate() error {
	switch l.Kind {
	case AddressLocation:
		if l.Address == nil || l.GLN != nil || l.Geo != nil {
			return fmt.Errorf("%w: address location must carry only an address", apperrors.ErrValidation)
		}
		return l.Address.Validate()
	case GLNLocation:
		if l.GLN == nil || l.Address != nil || l.Geo != nil {
			return fmt.Errorf("%w: GLN location must carry only a GLN", apperrors.ErrValidation)
		}
		return l.GLN.Validate()
	case GeoLocationKind:
		if l.Geo == nil || l.Address != nil || l.GLN != nil {
			return fmt.Errorf("%w: geo location must carry only a position", apperrors.ErrValidation)
		}
		return l.Geo.Validate()
	default:
		return fmt.Errorf("%w: unknown location kind %q", apperrors.ErrValidation, l.Kind)
	}
}
