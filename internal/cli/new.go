package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/SscSPs/sledge/internal/adapters/datastore"
	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/SscSPs/sledge/internal/core/ports/repositories"
)

type NewCmd struct {
	Currency string            `default:"USD" help:"Default currency of the store."`
	Preset   string            `enum:"business,personal,empty" default:"business" help:"Chart of accounts: business (general, sales and purchase ledgers), personal or empty."`
	Journals string            `enum:"combined,per-ledger,daily,none" default:"combined" help:"Journal layout: one combined journal, one per ledger, one per day, or none."`
	Days     int               `default:"7" help:"Number of daily journals, starting today."`
	User     map[string]string `help:"Grant a role, as user=role (admin or reader). Repeatable."`
}

// contents builds the initial store content from the flags.
func (cmd *NewCmd) contents() (repositories.CreateDatastoreContents, error) {
	currency, err := domain.Currency(cmd.Currency)
	if err != nil {
		return repositories.CreateDatastoreContents{}, err
	}
	c := repositories.NewContents(currency)

	switch cmd.Preset {
	case "business":
		c = c.WithGeneralLedger().WithSalesLedger().WithPurchaseLedger()
	case "personal":
		c = c.Personal()
	}

	switch cmd.Journals {
	case "combined":
		c = c.WithCombinedJournal()
	case "per-ledger":
		c = c.WithJournalPerLedger()
	case "daily":
		if cmd.Days < 1 {
			return c, fmt.Errorf("--days must be positive, got %d", cmd.Days)
		}
		c = c.WithDailyJournals(domain.Now(), cmd.Days)
	}

	if len(cmd.User) > 0 {
		c.Users = map[domain.UserID][]domain.RoleID{}
		for user, roles := range cmd.User {
			for _, role := range strings.Split(roles, "+") {
				c.Users[domain.UserID(user)] = append(c.Users[domain.UserID(user)], domain.RoleID(role))
			}
		}
	}
	return c, c.Validate()
}

func (cmd *NewCmd) Run(kctx *kong.Context, globals *Globals, parent context.Context) error {
	ctx := globals.context(parent, kctx.Stderr)

	contents, err := cmd.contents()
	if err != nil {
		return err
	}
	if err := contents.Permissions().Validate(); err != nil {
		return err
	}
	cfg, err := globals.configuration()
	if err != nil {
		return err
	}
	address, err := globals.address()
	if err != nil {
		return err
	}

	store, err := datastore.CreateDatastore(ctx, cfg, address, contents)
	if err != nil {
		return err
	}
	defer disconnect(ctx, store)

	printSuccess(kctx.Stdout, fmt.Sprintf("Created %s store at %s with %d ledgers and %d journals",
		store.Scheme(), store.Address(), len(contents.Ledgers), len(contents.Journals)))
	return nil
}
