package utils

import (
	"testing"
	"time"

	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatQuantity(t *testing.T) {
	isin, err := domain.Security("US0378331005")
	require.NoError(t, err)

	tests := []struct {
		name string
		q    domain.Quantity
		want string
	}{
		{name: "dollars round to cents", q: domain.NewQuantity(domain.MustCurrency("USD"), decimal.RequireFromString("12.3456")), want: "12.35"},
		{name: "dollars keep trailing zeros", q: domain.NewQuantity(domain.MustCurrency("USD"), decimal.NewFromInt(3)), want: "3.00"},
		{name: "yen has no minor unit", q: domain.NewQuantity(domain.MustCurrency("JPY"), decimal.RequireFromString("12.6")), want: "13"},
		{name: "security keeps precision", q: domain.NewQuantity(isin, decimal.RequireFromString("0.12345")), want: "0.12345"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatQuantity(tt.q))
		})
	}
}

func TestFormatExactQuantity(t *testing.T) {
	usd := domain.MustCurrency("USD")
	tests := []struct {
		amount string
		want   string
	}{
		{amount: "3", want: "3.00"},
		{amount: "-10.5", want: "-10.50"},
		{amount: "0.005", want: "0.005"},
		{amount: "12.3456", want: "12.3456"},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatExactQuantity(domain.NewQuantity(usd, decimal.RequireFromString(tt.amount))))
		})
	}
}

func TestJWTRoundTrip(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"

	token, err := GenerateJWT("alice", secret, time.Hour, "sledge")
	require.NoError(t, err)

	claims, err := ParseAndValidateJWT(token, secret, "sledge")
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)

	_, err = ParseAndValidateJWT(token, "another-secret-of-some-length", "sledge")
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	_, err = ParseAndValidateJWT(token, secret, "someone-else")
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)

	expired, err := GenerateJWT("alice", secret, -time.Minute, "sledge")
	require.NoError(t, err)
	_, err = ParseAndValidateJWT(expired, secret, "sledge")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	_, err = GenerateJWT("alice", "", time.Hour, "sledge")
	assert.Error(t, err)
}

func TestGenerateSecret(t *testing.T) {
	s, err := GenerateSecret(32)
	require.NoError(t, err)
	assert.Len(t, s, 64)

	other, err := GenerateSecret(32)
	require.NoError(t, err)
	assert.NotEqual(t, s, other)

	_, err = GenerateSecret(8)
	assert.Error(t, err)
}
