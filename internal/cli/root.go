// Package cli implements the cinecritic-admin command: session management,
// the live notification listener and moderation actions.
package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"cinecritic/config"
	"cinecritic/internal/client"
	"cinecritic/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const requestTimeout = 30 * time.Second

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	APIURL  string
	TokenDB string

	cfg *config.ClientConfig
	out io.Writer
}

func NewRootCommand() *cobra.Command {
	cfg := config.LoadClientConfig()
	opts := &RootOptions{cfg: cfg}

	cmd := &cobra.Command{
		Use:   "cinecritic-admin",
		Short: "Administrator tools for cinecritic moderation",
		// main prints the error once.
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.out = cmd.OutOrStdout()
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.APIURL, "api", cfg.APIBaseURL, "API base URL")
	cmd.PersistentFlags().StringVar(&opts.TokenDB, "db", cfg.TokenDBPath, "path to the session database")

	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewListenCommand(opts))
	cmd.AddCommand(NewModerateCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

func (o *RootOptions) logger() *zap.Logger {
	mode := logger.ProductionMode
	if o.Verbose {
		mode = logger.DevelopmentMode
	}
	return logger.New(mode).Named("admin")
}

// session is one opened credential store plus the pipeline around it.
type session struct {
	store     *client.SQLiteTokenStore
	creds     *client.Credentials
	refresher *client.Refresher
	http      *http.Client
	log       *zap.Logger
}

func (o *RootOptions) openSession(ctx context.Context) (*session, error) {
	log := o.logger()
	store, err := client.OpenSQLiteTokenStore(o.TokenDB)
	if err != nil {
		return nil, err
	}
	creds := client.NewCredentials(store, log)
	if err := creds.Restore(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("restore session: %w", err)
	}

	refreshHTTP := &http.Client{Timeout: o.cfg.RefreshTimeout}
	refresher := client.NewRefresher(creds, client.NewHTTPRefreshClient(o.APIURL, refreshHTTP), log).
		WithTimeout(o.cfg.RefreshTimeout)

	return &session{
		store:     store,
		creds:     creds,
		refresher: refresher,
		http:      client.NewHTTPClient(refresher, log, requestTimeout),
		log:       log,
	}, nil
}

func (s *session) Close() {
	_ = s.log.Sync()
	_ = s.store.Close()
}
