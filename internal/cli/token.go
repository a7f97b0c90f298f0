package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/alecthomas/kong"

	"github.com/SscSPs/sledge/internal/utils"
)

type TokenCmd struct {
	User      string        `arg:"" optional:"" help:"User the token authenticates."`
	Expiry    time.Duration `default:"24h" help:"Token lifetime."`
	NewSecret bool          `help:"Print a fresh signing secret for the server configuration instead."`
}

func (cmd *TokenCmd) Run(kctx *kong.Context, globals *Globals) error {
	if cmd.NewSecret {
		secret, err := utils.GenerateSecret(32)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(kctx.Stdout, secret)
		return err
	}
	if cmd.User == "" {
		return errors.New("a user is required")
	}

	cfg, err := globals.configuration()
	if err != nil {
		return err
	}
	if cfg == nil || cfg.Server == nil {
		return errors.New("no server section configured")
	}
	token, err := utils.GenerateJWT(cmd.User, cfg.Server.JWTSecret, cmd.Expiry, cfg.Server.JWTIssuer)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(kctx.Stdout, token)
	return err
}
