package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cinecritic/internal/domain/movie"
	"cinecritic/internal/events"
	cinecritic_errors "cinecritic/pkg/errors"

	"github.com/google/uuid"
)

type memoryMovie struct {
	id          uuid.UUID
	title       string
	description string
	genre       string
	releaseYear int
	createdAt   time.Time
	comments    []movie.Comment
}

func snapshot(m *movie.Movie) *memoryMovie {
	return &memoryMovie{
		id:          m.ID,
		title:       m.Title,
		description: m.Description,
		genre:       m.Genre,
		releaseYear: m.ReleaseYear,
		createdAt:   m.CreatedAt,
		comments:    m.Comments(),
	}
}

func (s *memoryMovie) rehydrate() *movie.Movie {
	return movie.Rehydrate(s.id, s.title, s.description, s.genre, s.releaseYear, s.createdAt, s.comments)
}

// MemoryStore keeps movies in process memory. It backs the API when no
// database is configured and is used by service tests.
type MemoryStore struct {
	mu     sync.Mutex
	movies map[uuid.UUID]*memoryMovie
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{movies: make(map[uuid.UUID]*memoryMovie)}
}

// MemoryTxRunner serializes units of work with a single lock. Writes are
// staged and applied to the store only if fn succeeds.
type MemoryTxRunner struct {
	store       *MemoryStore
	afterCommit AfterCommitFunc
}

func NewMemoryTxRunner(store *MemoryStore, afterCommit AfterCommitFunc) *MemoryTxRunner {
	return &MemoryTxRunner{store: store, afterCommit: afterCommit}
}

func (t *MemoryTxRunner) RunInTx(ctx context.Context, fn func(uow UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: transaction aborted: %v", cinecritic_errors.ErrServiceUnavailable, err)
	}

	collector := events.NewCollector()
	if err := t.run(collector, fn); err != nil {
		return err
	}
	flush(ctx, t.afterCommit, collector)
	return nil
}

func (t *MemoryTxRunner) run(collector *events.Collector, fn func(uow UnitOfWork) error) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	repo := &memoryTxRepo{store: t.store, staged: make(map[uuid.UUID]*memoryMovie)}
	if err := fn(UnitOfWork{Movies: repo, Events: collector}); err != nil {
		return err
	}
	repo.commit()
	return nil
}

// memoryTxRepo is only used while the store lock is held. A nil entry in
// staged marks a deletion.
type memoryTxRepo struct {
	store  *MemoryStore
	staged map[uuid.UUID]*memoryMovie
}

func (r *memoryTxRepo) lookup(id uuid.UUID) (*memoryMovie, bool) {
	if s, ok := r.staged[id]; ok {
		return s, s != nil
	}
	s, ok := r.store.movies[id]
	return s, ok
}

func (r *memoryTxRepo) Get(_ context.Context, id uuid.UUID) (*movie.Movie, error) {
	s, ok := r.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: movie %s", cinecritic_errors.ErrNotFound, id)
	}
	return s.rehydrate(), nil
}

func (r *memoryTxRepo) Save(_ context.Context, m *movie.Movie) error {
	r.staged[m.ID] = snapshot(m)
	return nil
}

func (r *memoryTxRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.lookup(id); !ok {
		return fmt.Errorf("%w: movie %s", cinecritic_errors.ErrNotFound, id)
	}
	r.staged[id] = nil
	return nil
}

func (r *memoryTxRepo) List(_ context.Context, page, limit int) ([]*movie.Movie, int64, error) {
	page, limit = NormalizePage(page, limit)

	var all []*memoryMovie
	for id, s := range r.store.movies {
		if _, overridden := r.staged[id]; !overridden {
			all = append(all, s)
		}
	}
	for _, s := range r.staged {
		if s != nil {
			all = append(all, s)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].createdAt.Equal(all[j].createdAt) {
			return all[i].id.String() < all[j].id.String()
		}
		return all[i].createdAt.After(all[j].createdAt)
	})

	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return []*movie.Movie{}, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	out := make([]*movie.Movie, 0, end-start)
	for _, s := range all[start:end] {
		out = append(out, s.rehydrate())
	}
	return out, total, nil
}

func (r *memoryTxRepo) commit() {
	for id, s := range r.staged {
		if s == nil {
			delete(r.store.movies, id)
			continue
		}
		r.store.movies[id] = s
	}
}
