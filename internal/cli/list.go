package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/SscSPs/sledge/internal/core/ports/repositories"
)

type ListCmd struct {
	JSON bool `name:"json" help:"Print a JSON document instead of a table."`
}

type ledgerSummary struct {
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Currency    string `json:"currency"`
	Accounts    int    `json:"accounts"`
}

type journalSummary struct {
	Name         string `json:"name"`
	Currency     string `json:"currency"`
	Transactions int    `json:"transactions"`
	Version      uint32 `json:"version"`
	Signed       bool   `json:"signed"`
	ReadOnly     bool   `json:"readOnly"`
}

type storeSummary struct {
	Scheme   string           `json:"scheme"`
	Address  string           `json:"address"`
	Ledgers  []ledgerSummary  `json:"ledgers"`
	Journals []journalSummary `json:"journals"`
}

func summarize(ctx context.Context, store repositories.DataStore) (storeSummary, error) {
	s := storeSummary{Scheme: store.Scheme(), Address: store.Address(), Ledgers: []ledgerSummary{}, Journals: []journalSummary{}}
	for l, err := range repositories.All(ctx, store.Ledgers()) {
		if err != nil {
			return s, err
		}
		s.Ledgers = append(s.Ledgers, ledgerSummary{
			Kind:        l.Kind.String(),
			Description: l.Description,
			Currency:    l.Currency.String(),
			Accounts:    len(l.Book),
		})
	}
	now := domain.Now()
	for j, err := range repositories.All(ctx, store.Journals()) {
		if err != nil {
			return s, err
		}
		s.Journals = append(s.Journals, journalSummary{
			Name:         j.Name.String(),
			Currency:     j.Currency.String(),
			Transactions: len(j.Transactions),
			Version:      j.Version,
			Signed:       j.IsSigned(),
			ReadOnly:     j.IsReadOnly(now),
		})
	}
	return s, nil
}

func (cmd *ListCmd) Run(kctx *kong.Context, globals *Globals, parent context.Context) error {
	ctx := globals.context(parent, kctx.Stderr)
	store, _, err := globals.connect(ctx)
	if err != nil {
		return err
	}
	defer disconnect(ctx, store)

	s, err := summarize(ctx, store)
	if err != nil {
		return err
	}
	if cmd.JSON {
		enc := json.NewEncoder(kctx.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	printInfof(kctx.Stdout, "%s store at %s", s.Scheme, s.Address)
	ledgers := table.New().Border(lipgloss.NormalBorder()).Headers("LEDGER", "CURRENCY", "ACCOUNTS", "DESCRIPTION")
	for _, l := range s.Ledgers {
		ledgers.Row(l.Kind, l.Currency, strconv.Itoa(l.Accounts), l.Description)
	}
	journals := table.New().Border(lipgloss.NormalBorder()).Headers("JOURNAL", "CURRENCY", "TRANSACTIONS", "VERSION", "STATE")
	for _, j := range s.Journals {
		state := "open"
		switch {
		case j.Signed:
			state = "signed"
		case j.ReadOnly:
			state = "read-only"
		}
		journals.Row(j.Name, j.Currency, strconv.Itoa(j.Transactions), strconv.FormatUint(uint64(j.Version), 10), state)
	}
	_, err = fmt.Fprintf(kctx.Stdout, "%s\n%s\n", ledgers.Render(), journals.Render())
	return err
}
