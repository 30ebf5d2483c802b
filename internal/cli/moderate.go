package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"cinecritic/internal/transport/httpdto"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewModerateCommand groups the moderation actions. Every request goes
// through the session's token pipeline.
func NewModerateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "moderate",
		Short: "Approve, reject or reset comments",
	}
	for _, action := range []string{"approve", "reject", "reset"} {
		cmd.AddCommand(newModerateAction(opts, action))
	}
	cmd.AddCommand(newPendingCommand(opts))
	return cmd
}

func newModerateAction(opts *RootOptions, action string) *cobra.Command {
	return &cobra.Command{
		Use:          action + " <movie-id> <comment-id>",
		Short:        strings.ToUpper(action[:1]) + action[1:] + " a comment",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			movieID, commentID, err := parseIDs(args[0], args[1])
			if err != nil {
				return err
			}
			path := fmt.Sprintf("/v1/movies/%s/comments/%s/%s", movieID, commentID, action)

			var comment httpdto.CommentDTO
			if err := call(cmd.Context(), opts, http.MethodPost, path, &comment); err != nil {
				return err
			}
			fmt.Fprintf(opts.out, "comment %s is %s\n", comment.ID, comment.Status)
			return nil
		},
	}
}

func newPendingCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "pending <movie-id>",
		Short:        "List comments waiting for review",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			movieID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid movie id: %w", err)
			}
			var list httpdto.CommentListResponse
			path := fmt.Sprintf("/v1/movies/%s/comments?status=Pending", movieID)
			if err := call(cmd.Context(), opts, http.MethodGet, path, &list); err != nil {
				return err
			}
			for _, c := range list.Comments {
				fmt.Fprintf(opts.out, "%s  %-12s %s\n", c.ID, c.AuthorID, c.Text)
			}
			return nil
		},
	}
}

func call(ctx context.Context, opts *RootOptions, method, path string, out any) error {
	s, err := opts.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	req, err := http.NewRequestWithContext(ctx, method, opts.APIURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if !env.Success {
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("not logged in or session expired; run login again")
		}
		return fmt.Errorf("request failed (status %d): %s", resp.StatusCode, env.Error)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func parseIDs(movie, comment string) (uuid.UUID, uuid.UUID, error) {
	movieID, err := uuid.Parse(movie)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid movie id: %w", err)
	}
	commentID, err := uuid.Parse(comment)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid comment id: %w", err)
	}
	return movieID, commentID, nil
}
