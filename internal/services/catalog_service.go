package services

import (
	"context"
	"time"

	"cinecritic/internal/domain/movie"
	"cinecritic/internal/repository"

	"github.com/google/uuid"
)

type CatalogService struct {
	tx repository.TxRunner
}

func NewCatalogService(tx repository.TxRunner) *CatalogService {
	return &CatalogService{tx: tx}
}

type CreateMovieInput struct {
	Title       string
	Description string
	Genre       string
	ReleaseYear int
}

// MovieSummary is a read model of a movie without its comment bodies.
type MovieSummary struct {
	ID            uuid.UUID
	Title         string
	Description   string
	Genre         string
	ReleaseYear   int
	PendingCount  int
	ApprovedCount int
	RejectedCount int
	CreatedAt     time.Time
}

func summarize(m *movie.Movie) MovieSummary {
	counts := m.CountByStatus()
	return MovieSummary{
		ID:            m.ID,
		Title:         m.Title,
		Description:   m.Description,
		Genre:         m.Genre,
		ReleaseYear:   m.ReleaseYear,
		PendingCount:  counts[movie.StatusPending],
		ApprovedCount: counts[movie.StatusApproved],
		RejectedCount: counts[movie.StatusRejected],
		CreatedAt:     m.CreatedAt,
	}
}

func (s *CatalogService) CreateMovie(ctx context.Context, in CreateMovieInput) (MovieSummary, error) {
	var out MovieSummary
	err := s.tx.RunInTx(ctx, func(uow repository.UnitOfWork) error {
		m, err := movie.NewMovie(in.Title, in.Description, in.Genre, in.ReleaseYear)
		if err != nil {
			return err
		}
		if err := uow.Movies.Save(ctx, m); err != nil {
			return err
		}
		uow.Record(m)
		out = summarize(m)
		return nil
	})
	return out, err
}

func (s *CatalogService) DeleteMovie(ctx context.Context, id uuid.UUID) error {
	return s.tx.RunInTx(ctx, func(uow repository.UnitOfWork) error {
		m, err := uow.Movies.Get(ctx, id)
		if err != nil {
			return err
		}
		m.MarkDeleted()
		if err := uow.Movies.Delete(ctx, id); err != nil {
			return err
		}
		uow.Record(m)
		return nil
	})
}

func (s *CatalogService) GetMovie(ctx context.Context, id uuid.UUID) (MovieSummary, error) {
	var out MovieSummary
	err := s.tx.RunInTx(ctx, func(uow repository.UnitOfWork) error {
		m, err := uow.Movies.Get(ctx, id)
		if err != nil {
			return err
		}
		out = summarize(m)
		return nil
	})
	return out, err
}

func (s *CatalogService) ListMovies(ctx context.Context, page, limit int) ([]MovieSummary, int64, error) {
	var (
		out   []MovieSummary
		total int64
	)
	err := s.tx.RunInTx(ctx, func(uow repository.UnitOfWork) error {
		movies, n, err := uow.Movies.List(ctx, page, limit)
		if err != nil {
			return err
		}
		total = n
		out = make([]MovieSummary, 0, len(movies))
		for _, m := range movies {
			out = append(out, summarize(m))
		}
		return nil
	})
	return out, total, err
}
