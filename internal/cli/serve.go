package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/runoshun/taskcal/internal/app"
	"github.com/runoshun/taskcal/internal/httpapi"
	"github.com/spf13/cobra"
)

// newServeCommand creates the serve command.
func newServeCommand(c *app.Container) *cobra.Command {
	var opts struct {
		Listen   string
		Timezone string
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the series operations over HTTP under /api.

Every request needs an "Authorization: Bearer <token>" header signed with
'http.jwt_secret'; the token subject is the acting user. Create one with
'taskcal token <user>'.

Stops gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.Config.HTTP.JWTSecret == "" {
				return errors.New("http.jwt_secret is not set in the config file")
			}
			listen := opts.Listen
			if listen == "" {
				listen = c.Config.HTTP.Listen
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			srv := c.HTTPServer(opts.Timezone)
			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Listen(listen)
			}()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", listen)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			if err := srv.Shutdown(); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return <-errCh
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "Listen address (default: 'http.listen' from config)")
	cmd.Flags().StringVar(&opts.Timezone, "tz", localZoneName(), "Timezone for imported entries without one")

	return cmd
}

// newTokenCommand creates the token command.
func newTokenCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "token <user>",
		Short: "Issue an API token for a user",
		Long: `Print a bearer token for the HTTP API, signed with 'http.jwt_secret'.
The token does not expire; rotate the secret to revoke every token.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := c.Config.HTTP.JWTSecret
			if secret == "" {
				return errors.New("http.jwt_secret is not set in the config file")
			}
			token, err := httpapi.IssueToken(secret, args[0])
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}
