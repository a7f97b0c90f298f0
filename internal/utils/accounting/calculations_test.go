package accounting_test

import (
	"testing"

	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/SscSPs/sledge/internal/utils/accounting"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalBalance(t *testing.T) {
	tests := []struct {
		kind    domain.AccountKind
		sum     string
		want    string
		wantErr bool
	}{
		{kind: domain.Bank, sum: "100", want: "100"},
		{kind: domain.Expense, sum: "-5", want: "-5"},
		{kind: domain.Credit, sum: "-40", want: "40"},
		{kind: domain.Income, sum: "-1200.50", want: "1200.5"},
		{kind: domain.Equity, sum: "10", want: "-10"},
		{kind: "PETTY", sum: "1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got, err := accounting.NormalBalance(tt.kind, decimal.RequireFromString(tt.sum))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestSumSplits(t *testing.T) {
	usd := domain.MustCurrency("USD")
	eur := domain.MustCurrency("EUR")
	a, b, c := domain.NewAccountID(), domain.NewAccountID(), domain.NewAccountID()
	amount := func(s string) domain.Quantity { return domain.NewQuantity(usd, decimal.RequireFromString(s)) }

	txs := []domain.Transaction{
		domain.NewTransaction("one", domain.Now(), domain.NewSplit(a, amount("100")), domain.NewSplit(b, amount("-100"))),
		domain.NewTransaction("two", domain.Now(), domain.NewSplit(a, amount("-30.25")), domain.NewSplit(c, amount("30.25"))),
	}

	got, err := accounting.SumSplits(txs, map[domain.AccountID]bool{a: true}, usd)
	require.NoError(t, err)
	assert.True(t, got.Equal(amount("69.75")))

	got, err = accounting.SumSplits(txs, map[domain.AccountID]bool{a: true, b: true, c: true}, usd)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = accounting.SumSplits(txs, map[domain.AccountID]bool{a: true}, eur)
	assert.ErrorIs(t, err, domain.ErrCommodityMismatch)
}

func TestDescendants(t *testing.T) {
	usd := domain.MustCurrency("USD")
	l := domain.NewLedger(domain.GeneralLedger(), usd, "test")
	assets := domain.NewAccount(domain.Asset, usd, "Assets")
	bank := domain.NewAccount(domain.Bank, usd, "Bank").WithParent(assets.ID)
	sub := domain.NewAccount(domain.Bank, usd, "Sub").WithParent(bank.ID)
	shares := domain.NewAccount(domain.Asset, domain.MustCurrency("EUR"), "Shares").WithParent(assets.ID)
	for _, a := range []domain.Account{assets, bank, sub, shares} {
		require.NoError(t, l.AddAccount(a))
	}

	got := accounting.Descendants(l, assets.ID)
	assert.Equal(t, map[domain.AccountID]bool{assets.ID: true, bank.ID: true, sub.ID: true}, got)
	assert.Empty(t, accounting.Descendants(l, domain.NewAccountID()))
}
