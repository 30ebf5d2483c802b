package services

import (
	"context"
	"fmt"
	"time"

	"cinecritic/internal/domain/movie"
	"cinecritic/internal/repository"
	cinecritic_errors "cinecritic/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ModerationService runs comment commands against the movie aggregate. Every
// command is one transaction; the events it raises reach the bus only after
// that transaction commits.
type ModerationService struct {
	tx     repository.TxRunner
	clock  func() time.Time
	logger *zap.Logger
}

func NewModerationService(tx repository.TxRunner, logger *zap.Logger) *ModerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModerationService{tx: tx, clock: time.Now, logger: logger}
}

// WithClock overrides the review timestamp source.
func (s *ModerationService) WithClock(clock func() time.Time) *ModerationService {
	s.clock = clock
	return s
}

type CommentStats struct {
	MovieID  uuid.UUID `json:"movie_id"`
	Pending  int       `json:"pending"`
	Approved int       `json:"approved"`
	Rejected int       `json:"rejected"`
	Total    int       `json:"total"`
}

func (s *ModerationService) AddComment(ctx context.Context, movieID uuid.UUID, authorID, text string) (movie.Comment, error) {
	var out movie.Comment
	err := s.mutate(ctx, movieID, func(m *movie.Movie) error {
		c, err := m.AddComment(authorID, text)
		out = c
		return err
	})
	return out, err
}

func (s *ModerationService) Approve(ctx context.Context, movieID, commentID uuid.UUID, reviewerID string) (movie.Comment, error) {
	var out movie.Comment
	err := s.mutate(ctx, movieID, func(m *movie.Movie) error {
		c, err := m.Approve(commentID, reviewerID)
		out = c
		return err
	})
	if err == nil {
		s.logger.Info("comment approved",
			zap.String("movie_id", movieID.String()),
			zap.String("comment_id", commentID.String()),
			zap.String("reviewer_id", reviewerID))
	}
	return out, err
}

func (s *ModerationService) Reject(ctx context.Context, movieID, commentID uuid.UUID, reviewerID string) (movie.Comment, error) {
	var out movie.Comment
	err := s.mutate(ctx, movieID, func(m *movie.Movie) error {
		c, err := m.Reject(commentID, reviewerID)
		out = c
		return err
	})
	if err == nil {
		s.logger.Info("comment rejected",
			zap.String("movie_id", movieID.String()),
			zap.String("comment_id", commentID.String()),
			zap.String("reviewer_id", reviewerID))
	}
	return out, err
}

func (s *ModerationService) ResetToPending(ctx context.Context, movieID, commentID uuid.UUID) (movie.Comment, error) {
	var out movie.Comment
	err := s.mutate(ctx, movieID, func(m *movie.Movie) error {
		c, err := m.ResetToPending(commentID)
		out = c
		return err
	})
	return out, err
}

func (s *ModerationService) RemoveComment(ctx context.Context, movieID, commentID uuid.UUID) error {
	return s.mutate(ctx, movieID, func(m *movie.Movie) error {
		if !m.RemoveComment(commentID) {
			return fmt.Errorf("%w: comment %s on movie %s", cinecritic_errors.ErrNotFound, commentID, movieID)
		}
		return nil
	})
}

// ListComments returns the movie's comments, optionally filtered by status.
func (s *ModerationService) ListComments(ctx context.Context, movieID uuid.UUID, status *movie.Status) ([]movie.Comment, error) {
	var out []movie.Comment
	err := s.tx.RunInTx(ctx, func(uow repository.UnitOfWork) error {
		m, err := uow.Movies.Get(ctx, movieID)
		if err != nil {
			return err
		}
		if status != nil {
			out = m.CommentsByStatus(*status)
		} else {
			out = m.Comments()
		}
		return nil
	})
	return out, err
}

func (s *ModerationService) Stats(ctx context.Context, movieID uuid.UUID) (CommentStats, error) {
	var out CommentStats
	err := s.tx.RunInTx(ctx, func(uow repository.UnitOfWork) error {
		m, err := uow.Movies.Get(ctx, movieID)
		if err != nil {
			return err
		}
		counts := m.CountByStatus()
		out = CommentStats{
			MovieID:  movieID,
			Pending:  counts[movie.StatusPending],
			Approved: counts[movie.StatusApproved],
			Rejected: counts[movie.StatusRejected],
		}
		out.Total = out.Pending + out.Approved + out.Rejected
		return nil
	})
	return out, err
}

func (s *ModerationService) mutate(ctx context.Context, movieID uuid.UUID, fn func(m *movie.Movie) error) error {
	return s.tx.RunInTx(ctx, func(uow repository.UnitOfWork) error {
		m, err := uow.Movies.Get(ctx, movieID)
		if err != nil {
			return err
		}
		m.WithClock(s.clock)
		if err := fn(m); err != nil {
			return err
		}
		if err := uow.Movies.Save(ctx, m); err != nil {
			return err
		}
		uow.Record(m)
		return nil
	})
}
