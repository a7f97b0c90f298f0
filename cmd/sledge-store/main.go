package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/SscSPs/sledge/internal/cli"
)

func main() {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var commands cli.Commands
	ctx := kong.Parse(&commands, cli.Options(sigCtx, &commands)...)
	err := ctx.Run()
	stop()
	ctx.FatalIfErrorf(err)
}
