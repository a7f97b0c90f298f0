// Package cli implements the sledge-store command line: creating, listing, verifying, signing
// and watching stores.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"

	"github.com/SscSPs/sledge/internal/adapters/datastore"
	"github.com/SscSPs/sledge/internal/core/ports/repositories"
	"github.com/SscSPs/sledge/internal/platform/config"
	"github.com/SscSPs/sledge/internal/platform/logging"
)

var (
	successSymbol = "✓"
	errorSymbol   = "✗"
	infoSymbol    = "→"

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00D787", Dark: "#00D787"})
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FF5F87", Dark: "#FF5F87"})
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#5FAFFF", Dark: "#5FAFFF"})
)

func printSuccess(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n", successStyle.Render(successSymbol), message)
}

func printError(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n", errorStyle.Render(errorSymbol), errorStyle.Render(message))
}

func printInfof(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, "%s %s\n", infoStyle.Render(infoSymbol), fmt.Sprintf(format, args...))
}

// Globals defines global flags available to all commands.
type Globals struct {
	Verbose   int    `short:"v" type:"counter" help:"Log to stderr; repeat for more detail (-v errors, -vvvv debug)."`
	Store     string `short:"s" help:"Store connection overriding the configured one, e.g. fstore:///~/books or sqlite:///books.db."`
	ConfigDir string `name:"config" type:"path" help:"Configuration directory (default: $SLEDGE_CONFIG_ROOT or the user config dir)."`
}

// context returns a context carrying the logger selected by -v.
func (g *Globals) context(parent context.Context, stderr io.Writer) context.Context {
	logger := logging.New(stderr, logging.LevelForVerbosity(g.Verbose))
	return logging.WithLogger(parent, logger)
}

// configuration loads the configuration files. With --store set, an absent configuration is not
// an error.
func (g *Globals) configuration() (*config.Configuration, error) {
	root := g.ConfigDir
	if root == "" {
		var err error
		if root, err = config.RootDir(); err != nil {
			return nil, err
		}
	}
	cfg, err := config.LoadFrom(root)
	if errors.Is(err, config.ErrIncomplete) && g.Store != "" {
		return nil, nil
	}
	return cfg, err
}

// address returns the --store override, or nil to use the configured connection.
func (g *Globals) address() (*url.URL, error) {
	if g.Store == "" {
		return nil, nil
	}
	return datastore.ParseAddress(g.Store)
}

// connect opens the selected store. Callers disconnect it.
func (g *Globals) connect(ctx context.Context) (repositories.DataStore, *config.Configuration, error) {
	cfg, err := g.configuration()
	if err != nil {
		return nil, nil, err
	}
	address, err := g.address()
	if err != nil {
		return nil, nil, err
	}
	store, err := datastore.GetCurrentDatastore(ctx, cfg, address)
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

func disconnect(ctx context.Context, store repositories.DataStore) {
	if err := datastore.Disconnect(ctx, store); err != nil {
		logging.FromContext(ctx).Error("Failed to disconnect", slog.String("error", err.Error()))
	}
}

// Commands is the sledge-store command tree.
type Commands struct {
	Globals

	New     NewCmd     `cmd:"" help:"Create and initialize a store."`
	List    ListCmd    `cmd:"" help:"List the ledgers and journals of a store."`
	Verify  VerifyCmd  `cmd:"" help:"Check every entity of a store and verify journal signatures."`
	Balance BalanceCmd `cmd:"" help:"Show the balance of an account, optionally converted."`
	Keygen  KeygenCmd  `cmd:"" help:"Generate an Ed25519 key pair for signing journals."`
	Sign    SignCmd    `cmd:"" help:"Sign the current version of a journal."`
	Token   TokenCmd   `cmd:"" help:"Issue an API token for the server."`
	Watch   WatchCmd   `cmd:"" help:"Print changes made to a file store by any process."`
}

// Options returns the kong options shared by the binary and tests. Commands run under ctx.
func Options(ctx context.Context, cli *Commands) []kong.Option {
	return []kong.Option{
		kong.Name("sledge-store"),
		kong.Description("Manage sledge double-entry stores."),
		kong.UsageOnError(),
		kong.Bind(&cli.Globals),
		kong.BindTo(ctx, (*context.Context)(nil)),
	}
}
