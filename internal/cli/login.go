package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"cinecritic/internal/client"
	"cinecritic/internal/transport/httpdto"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type LoginOptions struct {
	*RootOptions
	AccessToken  string
	RefreshToken string
}

// NewLoginCommand stores a token pair obtained from "token issue" or an
// identity provider.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a session token pair",
		Long: `Store an access/refresh token pair in the local session database.

The access token may be omitted; the first request refreshes it.

Example:
  cinecritic-admin login --refresh-token 3f2a... --access-token eyJ...`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(opts.RefreshToken) == "" {
				return fmt.Errorf("--refresh-token is required")
			}
			s, err := opts.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			s.creds.Set(client.TokenPair{
				AccessToken:  strings.TrimSpace(opts.AccessToken),
				RefreshToken: strings.TrimSpace(opts.RefreshToken),
			})
			token, err := s.refresher.EnsureToken(cmd.Context())
			if err != nil {
				return err
			}
			if token == "" {
				return fmt.Errorf("the server rejected the refresh token")
			}
			fmt.Fprintln(opts.out, "Session stored.")
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.AccessToken, "access-token", "", "access token (optional)")
	cmd.Flags().StringVar(&opts.RefreshToken, "refresh-token", "", "refresh token")
	return cmd
}

func NewLogoutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "logout",
		Short:        "Revoke the refresh token and forget the session",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			pair := s.creds.Get()
			if pair.RefreshToken != "" {
				body, _ := json.Marshal(httpdto.LogoutRequest{RefreshToken: pair.RefreshToken})
				req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, opts.APIURL+"/v1/auth/logout", bytes.NewReader(body))
				if err != nil {
					return err
				}
				req.Header.Set("Content-Type", "application/json")
				resp, err := http.DefaultClient.Do(req)
				if err != nil {
					s.log.Warn("could not revoke refresh token on the server", zap.Error(err))
				} else {
					resp.Body.Close()
				}
			}
			s.creds.Clear()
			fmt.Fprintln(opts.out, "Logged out.")
			return nil
		},
	}
}
