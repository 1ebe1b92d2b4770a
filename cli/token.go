package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/stevemurr/bizstore/identity"
)

// NewTokenCommand issues session tokens for local testing of the API. The
// real sign-in flow issues them in production.
func NewTokenCommand(opts *RootOptions) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a bearer token for the local API",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.cfg.JWTSecret == "" {
				return NewExitError(ExitCommandError, "no JWT secret configured (set jwt_secret or BIZSTORE_JWT_SECRET)")
			}
			token, err := identity.NewTokenVerifier([]byte(opts.cfg.JWTSecret)).Issue(args[0], ttl)
			if err != nil {
				return err
			}
			p := opts.printer(cmd)
			if p.json() {
				return p.Success(map[string]string{"user": args[0], "token": token})
			}
			return p.Success(token)
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	return cmd
}
