package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alecthomas/kong"

	"github.com/SscSPs/sledge/internal/adapters/prices"
	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/SscSPs/sledge/internal/core/ports/repositories"
	"github.com/SscSPs/sledge/internal/core/services"
	"github.com/SscSPs/sledge/internal/utils"
	"github.com/SscSPs/sledge/internal/utils/accounting"
)

type BalanceCmd struct {
	Account string `arg:"" help:"Account identifier."`
	Ledger  string `default:"general" help:"Ledger holding the account (general, sales, purchase or other:<label>)."`
	As      string `required:"" env:"SLEDGE_USER" help:"User the query runs as."`
	In      string `help:"Convert the balance into this commodity."`
	Prices  string `type:"existingfile" help:"JSON file of price quotes, required with --in."`
	AsOf    string `name:"as-of" help:"Convert at the prices known at this RFC 3339 time instead of the latest."`
	Normal  bool   `help:"Sign the balance by the account's normal side, so credit balances of liabilities, equity and income show positive."`
}

func (cmd *BalanceCmd) Run(kctx *kong.Context, globals *Globals, parent context.Context) error {
	ctx := globals.context(parent, kctx.Stderr)

	kind, err := domain.ParseLedgerKind(cmd.Ledger)
	if err != nil {
		return err
	}
	store, _, err := globals.connect(ctx)
	if err != nil {
		return err
	}
	defer disconnect(ctx, store)

	id := domain.AccountID(cmd.Account)
	balance, err := services.NewLedgerService(store).Balance(ctx, domain.UserID(cmd.As), kind, id)
	if err != nil {
		return err
	}
	if cmd.Normal {
		if balance, err = normalBalance(ctx, store, kind, id, balance); err != nil {
			return err
		}
	}
	if cmd.In == "" {
		_, err = fmt.Fprintf(kctx.Stdout, "%s %s\n", utils.FormatQuantity(balance), balance.Commodity)
		return err
	}

	converted, err := cmd.convert(ctx, balance)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(kctx.Stdout, "%s %s (%s %s at %s)\n",
		utils.FormatQuantity(converted.Converted()), converted.Converted().Commodity,
		utils.FormatQuantity(balance), balance.Commodity, converted.Rate.Value)
	return err
}

func normalBalance(ctx context.Context, store repositories.DataStore, kind domain.LedgerKind, id domain.AccountID, q domain.Quantity) (domain.Quantity, error) {
	l, _, err := store.Ledgers().GetByID(ctx, kind)
	if err != nil {
		return q, err
	}
	a, ok := l.Account(id)
	if !ok {
		return q, fmt.Errorf("%w: account %s", apperrors.ErrNotFound, id)
	}
	amount, err := accounting.NormalBalance(a.Kind, q.Amount)
	if err != nil {
		return q, err
	}
	return domain.NewQuantity(q.Commodity, amount), nil
}

func (cmd *BalanceCmd) convert(ctx context.Context, q domain.Quantity) (domain.RatedQuantity, error) {
	if cmd.Prices == "" {
		return domain.RatedQuantity{}, errors.New("--in needs --prices")
	}
	to, err := domain.ParseCommodityID(cmd.In)
	if err != nil {
		return domain.RatedQuantity{}, err
	}
	table, err := prices.LoadFile(cmd.Prices)
	if err != nil {
		return domain.RatedQuantity{}, err
	}
	exchange := services.NewExchangeService(table, table)
	if cmd.AsOf == "" {
		return exchange.Convert(ctx, q, to)
	}
	asOf, err := time.Parse(time.RFC3339, cmd.AsOf)
	if err != nil {
		return domain.RatedQuantity{}, fmt.Errorf("invalid --as-of: %w", err)
	}
	return exchange.ConvertAt(ctx, q, to, asOf.UTC())
}
