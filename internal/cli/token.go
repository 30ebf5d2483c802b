package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"cinecritic/config"
	cinecritic_redis "cinecritic/internal/redis"
	"cinecritic/internal/services"

	"github.com/spf13/cobra"
)

type TokenOptions struct {
	*RootOptions
	Subject string
	Role    string
}

// NewTokenCommand mints tokens with the server's own secret. It needs the
// server configuration, and Redis so the API can later consume the refresh
// token.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	root := &cobra.Command{
		Use:   "token",
		Short: "Server-side token utilities",
	}

	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue an access/refresh token pair",
		Long: `Issue a token pair signed with JWT_SECRET and store the refresh
session in Redis.

Example:
  cinecritic-admin token issue --subject alice --role Administrator`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIssue(cmd.Context(), opts)
		},
	}
	issue.Flags().StringVar(&opts.Subject, "subject", "", "user id to put in the token (required)")
	issue.Flags().StringVar(&opts.Role, "role", services.RoleAdministrator, "role claim (Administrator|User)")
	_ = issue.MarkFlagRequired("subject")

	root.AddCommand(issue)
	return root
}

func runIssue(ctx context.Context, opts *TokenOptions) error {
	cfg := config.LoadConfig()
	if !cfg.RedisEnabled() {
		return fmt.Errorf("REDIS_HOST is not set; the API could not redeem the refresh token")
	}

	rdb := cinecritic_redis.NewClient(cinecritic_redis.ConfigFrom(cfg))
	defer rdb.Close()
	if err := cinecritic_redis.Ping(ctx, rdb); err != nil {
		return err
	}

	tokens := services.NewTokenService(cinecritic_redis.NewRefreshStore(rdb), cfg)
	pair, err := tokens.Issue(ctx, opts.Subject, opts.Role)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(opts.out)
	enc.SetIndent("", "  ")
	return enc.Encode(pair)
}
