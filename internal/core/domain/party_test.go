package domain_test

import (
	"testing"

	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func validAddress() domain.Address {
	return domain.Address{
		StreetNumber: "1",
		StreetName:   "Infinite Loop",
		CityOrTown:   "Cupertino",
		PostalCode:   "95014",
		Country:      "US",
	}
}

func TestPartyID_Validate(t *testing.T) {
	tests := []struct {
		name    string
		id      domain.PartyID
		wantErr bool
	}{
		{name: "duns", id: domain.Business("150483782")},
		{name: "short duns", id: domain.Business("15048378"), wantErr: true},
		{name: "lei", id: domain.LegalEntity("HWUPKR0MPOU8FGXBT394")},
		{name: "short lei", id: domain.LegalEntity("HWUPKR0MPOU8"), wantErr: true},
		{name: "person", id: domain.Person("p-1")},
		{name: "anonymous person", id: domain.Person(""), wantErr: true},
		{name: "unknown kind", id: domain.PartyID{Kind: "ROBOT", Value: "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.id.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAddress_Validate(t *testing.T) {
	assert.NoError(t, validAddress().Validate())

	bad := validAddress()
	bad.Country = "USA"
	assert.ErrorIs(t, bad.Validate(), apperrors.ErrValidation)

	gln := domain.GlobalLocationNumber("4006381333931")
	withGLN := validAddress()
	withGLN.GLN = &gln
	assert.NoError(t, withGLN.Validate())

	badGLN := domain.GlobalLocationNumber("4006381333932")
	withGLN.GLN = &badGLN
	assert.ErrorIs(t, withGLN.Validate(), apperrors.ErrValidation)
}

func TestGeoLocation_Validate(t *testing.T) {
	ok := domain.GeoLocation{Lat: decimal.RequireFromString("-33.8688"), Long: decimal.RequireFromString("151.2093")}
	assert.NoError(t, ok.Validate())

	assert.Error(t, domain.GeoLocation{Lat: decimal.NewFromInt(91)}.Validate())
	assert.Error(t, domain.GeoLocation{Long: decimal.NewFromInt(-181)}.Validate())
}

func TestLocation_Validate(t *testing.T) {
	addr := validAddress()
	assert.NoError(t, domain.Location{Kind: domain.AddressLocation, Address: &addr}.Validate())
	assert.Error(t, domain.Location{Kind: domain.GLNLocation, Address: &addr}.Validate())
	assert.Error(t, domain.Location{Kind: "MOON"}.Validate())
}

func TestAccountRepresents_Validate(t *testing.T) {
	card := domain.AccountRepresents{
		Kind: domain.RepresentsCreditCard,
		CreditCard: &domain.CreditCard{
			Institution:   domain.Business("150483782"),
			AccountNumber: "4111",
			CloseMonth:    13,
			CloseDay:      1,
			AnnualFee:     qty(usd, "95"),
		},
	}
	assert.ErrorIs(t, card.Validate(), apperrors.ErrValidation)

	card.CreditCard.CloseMonth = 12
	assert.NoError(t, card.Validate())

	assert.Error(t, domain.AccountRepresents{Kind: domain.RepresentsSupplier}.Validate())
	assert.NoError(t, domain.AccountRepresents{Kind: domain.RepresentsTax}.Validate())
}
