package cli

import (
	"context"
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/SscSPs/sledge/internal/audit"
	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/SscSPs/sledge/internal/core/services"
)

type KeygenCmd struct {
	Identity string `arg:"" help:"Key identity recorded in signatures."`
	Out      string `type:"existingdir" default:"." help:"Directory the key pair is written to."`
}

func (cmd *KeygenCmd) Run(kctx *kong.Context) error {
	signer, _, err := audit.GenerateSigner(domain.KeyIdentifier(cmd.Identity))
	if err != nil {
		return err
	}
	privPath, pubPath, err := signer.WriteKeyPair(cmd.Out)
	if err != nil {
		return err
	}
	printSuccess(kctx.Stdout, fmt.Sprintf("Wrote signing key %s and public key %s", privPath, pubPath))
	return nil
}

type SignCmd struct {
	Journal  string `arg:"" help:"Name of the journal to sign."`
	Key      string `type:"existingfile" required:"" help:"PEM encoded Ed25519 signing key."`
	Identity string `required:"" help:"Key identity recorded in the signature."`
	As       string `required:"" env:"SLEDGE_USER" help:"User signing the journal."`
}

func (cmd *SignCmd) Run(kctx *kong.Context, globals *Globals, parent context.Context) error {
	ctx := globals.context(parent, kctx.Stderr)

	signer, err := audit.LoadSigner(domain.KeyIdentifier(cmd.Identity), cmd.Key)
	if err != nil {
		return err
	}
	store, _, err := globals.connect(ctx)
	if err != nil {
		return err
	}
	defer disconnect(ctx, store)

	sig, err := services.NewJournalService(store).Sign(ctx, domain.UserID(cmd.As), domain.JournalName(cmd.Journal), signer)
	if err != nil {
		return err
	}
	printSuccess(kctx.Stdout, fmt.Sprintf("Signed journal %s version %d with key %s", cmd.Journal, sig.Version, sig.Identity))
	return nil
}
