package movie

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	cinecritic_errors "cinecritic/pkg/errors"

	"github.com/google/uuid"
)

// MaxCommentLength bounds comment text, counted in runes.
const MaxCommentLength = 2000

// Comment is owned by a Movie. Values handed out by the aggregate are copies;
// only the aggregate mutates the stored comment.
type Comment struct {
	ID         uuid.UUID
	MovieID    uuid.UUID
	AuthorID   string
	Text       string
	Status     Status
	ReviewedBy *string
	ReviewedAt *time.Time
	CreatedAt  time.Time
}

// RehydrateComment rebuilds a stored comment, rejecting rows that break the review invariant.
func RehydrateComment(id, movieID uuid.UUID, authorID, text string, status Status, reviewedBy *string, reviewedAt *time.Time, createdAt time.Time) (Comment, error) {
	if !status.Valid() {
		return Comment{}, fmt.Errorf("%w: unknown status %q", cinecritic_errors.ErrValidation, status)
	}
	hasReview := reviewedBy != nil && reviewedAt != nil
	hasAnyReview := reviewedBy != nil || reviewedAt != nil
	if status.Reviewed() != hasReview || (!status.Reviewed() && hasAnyReview) {
		return Comment{}, fmt.Errorf("%w: comment %s has inconsistent review fields for status %s", cinecritic_errors.ErrValidation, id, status)
	}
	return Comment{
		ID:         id,
		MovieID:    movieID,
		AuthorID:   authorID,
		Text:       text,
		Status:     status,
		ReviewedBy: copyString(reviewedBy),
		ReviewedAt: copyTime(reviewedAt),
		CreatedAt:  createdAt,
	}, nil
}

func validateCommentInput(authorID, text string) error {
	if strings.TrimSpace(authorID) == "" {
		return fmt.Errorf("%w: author id is required", cinecritic_errors.ErrValidation)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: comment text is required", cinecritic_errors.ErrValidation)
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return fmt.Errorf("%w: comment text exceeds %d characters", cinecritic_errors.ErrValidation, MaxCommentLength)
	}
	return nil
}

func (c *Comment) review(status Status, reviewerID string, at time.Time) {
	reviewer := reviewerID
	reviewedAt := at
	c.Status = status
	c.ReviewedBy = &reviewer
	c.ReviewedAt = &reviewedAt
}

func (c *Comment) resetReview() {
	c.Status = StatusPending
	c.ReviewedBy = nil
	c.ReviewedAt = nil
}

func (c *Comment) clone() Comment {
	out := *c
	out.ReviewedBy = copyString(c.ReviewedBy)
	out.ReviewedAt = copyTime(c.ReviewedAt)
	return out
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
