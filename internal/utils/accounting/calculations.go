package accounting

import (
	"fmt"

	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/shopspring/decimal"
)

// NormalBalance applies the accounting convention to a raw split sum so that a positive result
// means the account carries its normal balance.
// DEBIT to ASSET/EXPENSE -> Positive (+)
// CREDIT to LIABILITY/EQUITY/INCOME -> Positive (+)
func NormalBalance(kind domain.AccountKind, sum decimal.Decimal) (decimal.Decimal, error) {
	if _, err := kind.Class(); err != nil {
		return decimal.Zero, err
	}
	if kind.IsDebitNormal() {
		return sum, nil
	}
	return sum.Neg(), nil
}

// SumSplits adds the quantities of every split posted to one of accounts. Every such split must
// be in commodity.
func SumSplits(transactions []domain.Transaction, accounts map[domain.AccountID]bool, commodity domain.CommodityID) (domain.Quantity, error) {
	total := domain.Zero(commodity)
	for _, tx := range transactions {
		for _, s := range tx.Splits {
			if !accounts[s.Account] {
				continue
			}
			next, err := total.Add(s.Quantity)
			if err != nil {
				return domain.Quantity{}, fmt.Errorf("split %s of transaction %s: %w", s.ID, tx.ID, err)
			}
			total = next
		}
	}
	return total, nil
}

// Descendants returns id and every account below it in the book that shares its commodity.
func Descendants(ledger domain.Ledger, id domain.AccountID) map[domain.AccountID]bool {
	root, ok := ledger.Account(id)
	if !ok {
		return map[domain.AccountID]bool{}
	}
	out := map[domain.AccountID]bool{id: true}
	queue := []domain.AccountID{id}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		for _, child := range ledger.Children(next) {
			if out[child.ID] || child.Commodity != root.Commodity {
				continue
			}
			out[child.ID] = true
			queue = append(queue, child.ID)
		}
	}
	return out
}
