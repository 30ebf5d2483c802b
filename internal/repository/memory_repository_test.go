package repository

import (
	"context"
	"errors"
	"testing"

	"cinecritic/internal/domain/movie"
	"cinecritic/internal/events"
	cinecritic_errors "cinecritic/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flushRecorder struct {
	batches [][]events.DomainEvent
}

func (f *flushRecorder) afterCommit(_ context.Context, evs ...events.DomainEvent) {
	f.batches = append(f.batches, evs)
}

func createMovie(t *testing.T, runner TxRunner, title string) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := runner.RunInTx(context.Background(), func(uow UnitOfWork) error {
		m, err := movie.NewMovie(title, "", "Drama", 2001)
		if err != nil {
			return err
		}
		id = m.ID
		uow.Record(m)
		return uow.Movies.Save(context.Background(), m)
	})
	require.NoError(t, err)
	return id
}

func TestMemoryTxRunner_FlushesEventsAfterCommit(t *testing.T) {
	rec := &flushRecorder{}
	runner := NewMemoryTxRunner(NewMemoryStore(), rec.afterCommit)

	id := createMovie(t, runner, "Amelie")
	require.Len(t, rec.batches, 1)
	require.Len(t, rec.batches[0], 1)
	assert.Equal(t, events.EventMovieCreated, rec.batches[0][0].Type())

	err := runner.RunInTx(context.Background(), func(uow UnitOfWork) error {
		m, err := uow.Movies.Get(context.Background(), id)
		if err != nil {
			return err
		}
		if _, err := m.AddComment("u1", "first"); err != nil {
			return err
		}
		if _, err := m.AddComment("u2", "second"); err != nil {
			return err
		}
		uow.Record(m)
		return uow.Movies.Save(context.Background(), m)
	})
	require.NoError(t, err)
	require.Len(t, rec.batches, 2)
	require.Len(t, rec.batches[1], 2)
	assert.Equal(t, "first", rec.batches[1][0].(events.CommentCreated).Text)
	assert.Equal(t, "second", rec.batches[1][1].(events.CommentCreated).Text)
}

func TestMemoryTxRunner_RollbackDropsEventsAndWrites(t *testing.T) {
	rec := &flushRecorder{}
	store := NewMemoryStore()
	runner := NewMemoryTxRunner(store, rec.afterCommit)
	id := createMovie(t, runner, "Amelie")
	rec.batches = nil

	boom := errors.New("commit refused")
	err := runner.RunInTx(context.Background(), func(uow UnitOfWork) error {
		m, err := uow.Movies.Get(context.Background(), id)
		if err != nil {
			return err
		}
		if _, err := m.AddComment("u1", "never stored"); err != nil {
			return err
		}
		uow.Record(m)
		if err := uow.Movies.Save(context.Background(), m); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, rec.batches)

	err = runner.RunInTx(context.Background(), func(uow UnitOfWork) error {
		m, err := uow.Movies.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Empty(t, m.Comments())
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, rec.batches, "a transaction without events flushes nothing")
}

func TestMemoryTxRunner_StoredAggregateIsIsolated(t *testing.T) {
	runner := NewMemoryTxRunner(NewMemoryStore(), nil)
	id := createMovie(t, runner, "Amelie")

	var commentID uuid.UUID
	require.NoError(t, runner.RunInTx(context.Background(), func(uow UnitOfWork) error {
		m, err := uow.Movies.Get(context.Background(), id)
		require.NoError(t, err)
		c, err := m.AddComment("u1", "hello")
		require.NoError(t, err)
		commentID = c.ID
		return uow.Movies.Save(context.Background(), m)
	}))

	require.NoError(t, runner.RunInTx(context.Background(), func(uow UnitOfWork) error {
		m, err := uow.Movies.Get(context.Background(), id)
		require.NoError(t, err)
		// mutated but never saved
		_, err = m.Approve(commentID, "admin1")
		return err
	}))

	require.NoError(t, runner.RunInTx(context.Background(), func(uow UnitOfWork) error {
		m, err := uow.Movies.Get(context.Background(), id)
		require.NoError(t, err)
		c, ok := m.GetComment(commentID)
		require.True(t, ok)
		assert.Equal(t, movie.StatusPending, c.Status)
		return nil
	}))
}

func TestMemoryRepository_DeleteAndList(t *testing.T) {
	runner := NewMemoryTxRunner(NewMemoryStore(), nil)
	first := createMovie(t, runner, "One")
	createMovie(t, runner, "Two")

	require.NoError(t, runner.RunInTx(context.Background(), func(uow UnitOfWork) error {
		return uow.Movies.Delete(context.Background(), first)
	}))

	err := runner.RunInTx(context.Background(), func(uow UnitOfWork) error {
		_, err := uow.Movies.Get(context.Background(), first)
		assert.ErrorIs(t, err, cinecritic_errors.ErrNotFound)
		assert.ErrorIs(t, uow.Movies.Delete(context.Background(), first), cinecritic_errors.ErrNotFound)

		list, total, err := uow.Movies.List(context.Background(), 1, 10)
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, list, 1)
		assert.Equal(t, "Two", list[0].Title)

		empty, _, err := uow.Movies.List(context.Background(), 5, 10)
		require.NoError(t, err)
		assert.Empty(t, empty)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryTxRunner_CancelledContext(t *testing.T) {
	runner := NewMemoryTxRunner(NewMemoryStore(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := runner.RunInTx(ctx, func(UnitOfWork) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, cinecritic_errors.ErrServiceUnavailable)
	assert.False(t, called)
}
