package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"cinecritic/internal/client"
	"cinecritic/internal/notifications"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type ListenOptions struct {
	*RootOptions
	JSON bool
}

func NewListenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print moderation notifications as they arrive",
		Long: `Connect to the notification hub and print every notification until
interrupted. Dropped connections are retried after 0, 2, 5 and 10 seconds.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runListen(ctx, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print raw notification JSON")
	return cmd
}

func runListen(ctx context.Context, opts *ListenOptions) error {
	s, err := opts.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	handlers := client.HubHandlers{
		OnNotification: func(n client.Notification) {
			printNotification(opts, n)
		},
		OnReconnecting: func(attempt int, err error) {
			s.log.Warn("reconnecting to hub", zap.Int("attempt", attempt), zap.Error(err))
		},
		OnReconnected: func() {
			s.log.Info("reconnected to hub")
		},
	}

	hc, err := client.NewHubClient(opts.APIURL, opts.cfg.HubPath, s.refresher, handlers, s.log)
	if err != nil {
		return err
	}
	s.log.Info("listening for notifications", zap.String("api", opts.APIURL))
	return hc.Run(ctx)
}

func printNotification(opts *ListenOptions, n client.Notification) {
	if opts.JSON {
		data, _ := json.Marshal(n)
		fmt.Fprintln(opts.out, string(data))
		return
	}
	ts := n.Timestamp.Local().Format(time.Kitchen)
	switch n.Type {
	case notifications.TypeNewComment:
		fmt.Fprintf(opts.out, "[%s] new comment on %q by %s: %s\n", ts, n.ItemTitle, n.AuthorID, n.CommentPreview)
	case notifications.TypeCommentApproved, notifications.TypeCommentRejected:
		fmt.Fprintf(opts.out, "[%s] comment %s is now %s (by %s)\n", ts, n.CommentID, n.NewStatus, n.ReviewedBy)
	case notifications.TypeMovieCreated:
		fmt.Fprintf(opts.out, "[%s] movie added: %q\n", ts, n.ItemTitle)
	case notifications.TypeMovieDeleted:
		fmt.Fprintf(opts.out, "[%s] movie deleted: %q\n", ts, n.ItemTitle)
	default:
		fmt.Fprintf(opts.out, "[%s] %s\n", ts, n.Type)
	}
}
