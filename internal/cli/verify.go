package cli

import (
	"context"
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/SscSPs/sledge/internal/audit"
	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/SscSPs/sledge/internal/core/ports/repositories"
)

type VerifyCmd struct {
	PublicKey     map[string]string `name:"public-key" help:"Trusted signing key, as identity=path of a PEM public key. Repeatable."`
	RequireSigned bool              `help:"Report journals that were never signed."`
}

// check walks every entity of store and reports problems to report. It returns the number of
// problems found.
func (cmd *VerifyCmd) check(ctx context.Context, store repositories.DataStore, keys audit.KeyRing, report func(string)) int {
	problems := 0
	fail := func(format string, args ...any) {
		problems++
		report(fmt.Sprintf(format, args...))
	}

	accounts := map[domain.AccountID]bool{}
	for l, err := range repositories.All(ctx, store.Ledgers()) {
		if err != nil {
			fail("ledgers: %v", err)
			break
		}
		if err := l.Validate(); err != nil {
			fail("ledger %s: %v", l.Kind, err)
		}
		for _, a := range l.Book {
			accounts[a.ID] = true
		}
	}

	for j, err := range repositories.All(ctx, store.Journals()) {
		if err != nil {
			fail("journals: %v", err)
			break
		}
		if err := j.Validate(); err != nil {
			fail("journal %s: %v", j.Name, err)
		}
		for _, tx := range j.Transactions {
			for _, sp := range tx.Splits {
				if !accounts[sp.Account] {
					fail("journal %s: transaction %s posts to unknown account %s", j.Name, tx.ID, sp.Account)
				}
			}
		}

		signed := j.IsSigned() || len(j.PriorSignatures) > 0
		switch {
		case !signed && cmd.RequireSigned:
			fail("journal %s: never signed", j.Name)
		case signed && len(keys) > 0:
			if err := keys.VerifyHistory(j); err != nil {
				fail("journal %s: %v", j.Name, err)
			}
		}
	}
	return problems
}

func (cmd *VerifyCmd) Run(kctx *kong.Context, globals *Globals, parent context.Context) error {
	ctx := globals.context(parent, kctx.Stderr)

	keys := audit.KeyRing{}
	for identity, path := range cmd.PublicKey {
		if err := keys.LoadPublicKey(domain.KeyIdentifier(identity), path); err != nil {
			return err
		}
	}

	store, _, err := globals.connect(ctx)
	if err != nil {
		return err
	}
	defer disconnect(ctx, store)

	problems := cmd.check(ctx, store, keys, func(msg string) { printError(kctx.Stdout, msg) })
	if problems > 0 {
		return fmt.Errorf("%d problems found in %s", problems, store.Address())
	}
	if len(keys) == 0 {
		printInfof(kctx.Stdout, "signatures were not checked: no --public-key given")
	}
	printSuccess(kctx.Stdout, fmt.Sprintf("%s is consistent", store.Address()))
	return nil
}
