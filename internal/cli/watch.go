package cli

import (
	"context"
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/SscSPs/sledge/internal/adapters/fstore"
)

type WatchCmd struct{}

// Run blocks until interrupted.
func (cmd *WatchCmd) Run(kctx *kong.Context, globals *Globals, parent context.Context) error {
	ctx := globals.context(parent, kctx.Stderr)
	store, _, err := globals.connect(ctx)
	if err != nil {
		return err
	}
	defer disconnect(ctx, store)

	fs, ok := store.(*fstore.Store)
	if !ok {
		return fmt.Errorf("watch needs a %s store, not %s", fstore.Scheme, store.Scheme())
	}
	printInfof(kctx.Stdout, "Watching %s", fs.Root())
	return fs.Watch(ctx, func(changes []fstore.Change) {
		for _, c := range changes {
			_, _ = fmt.Fprintf(kctx.Stdout, "%s %s changed\n", c.Kind, c.ID)
		}
	})
}
