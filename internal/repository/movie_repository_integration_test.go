//go:build integration

package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"cinecritic/internal/domain/movie"
	"cinecritic/internal/outbox"
	cinecritic_errors "cinecritic/pkg/errors"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func newPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("cinecritic"),
		tcpostgres.WithUsername("cinecritic"),
		tcpostgres.WithPassword("cinecritic"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, InitSchema(ctx, db))
	return db
}

func TestPostgresTxRunner_RoundTripAndEvents(t *testing.T) {
	db := newPostgres(t)
	ctx := context.Background()
	rec := &flushRecorder{}
	runner := NewSQLTxRunner(db, rec.afterCommit, nil)

	id := createMovie(t, runner, "Solaris")
	require.Len(t, rec.batches, 1)

	var keep, drop movie.Comment
	require.NoError(t, runner.RunInTx(ctx, func(uow UnitOfWork) error {
		m, err := uow.Movies.Get(ctx, id)
		if err != nil {
			return err
		}
		keep, _ = m.AddComment("u1", "keep me")
		drop, _ = m.AddComment("u2", "drop me")
		if _, err := m.Approve(keep.ID, "admin1"); err != nil {
			return err
		}
		uow.Record(m)
		return uow.Movies.Save(ctx, m)
	}))
	require.Len(t, rec.batches, 2)
	assert.Len(t, rec.batches[1], 3)

	require.NoError(t, runner.RunInTx(ctx, func(uow UnitOfWork) error {
		m, err := uow.Movies.Get(ctx, id)
		if err != nil {
			return err
		}
		require.True(t, m.RemoveComment(drop.ID))
		return uow.Movies.Save(ctx, m)
	}))

	require.NoError(t, runner.RunInTx(ctx, func(uow UnitOfWork) error {
		m, err := uow.Movies.Get(ctx, id)
		require.NoError(t, err)
		comments := m.Comments()
		require.Len(t, comments, 1)
		assert.Equal(t, movie.StatusApproved, comments[0].Status)
		require.NotNil(t, comments[0].ReviewedBy)
		assert.Equal(t, "admin1", *comments[0].ReviewedBy)
		assert.NotNil(t, comments[0].ReviewedAt)
		return nil
	}))
}

func TestPostgresTxRunner_RollbackDropsEvents(t *testing.T) {
	db := newPostgres(t)
	ctx := context.Background()
	rec := &flushRecorder{}
	runner := NewSQLTxRunner(db, rec.afterCommit, nil)

	boom := errors.New("boom")
	err := runner.RunInTx(ctx, func(uow UnitOfWork) error {
		m, err := movie.NewMovie("Stalker", "", "", 1979)
		if err != nil {
			return err
		}
		uow.Record(m)
		if err := uow.Movies.Save(ctx, m); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, rec.batches)

	require.NoError(t, runner.RunInTx(ctx, func(uow UnitOfWork) error {
		_, total, err := uow.Movies.List(ctx, 1, 10)
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.ErrorIs(t, uow.Movies.Delete(ctx, uuid.New()), cinecritic_errors.ErrNotFound)
		return nil
	}))
}

func TestPostgresOutbox_CommitsWithState(t *testing.T) {
	db := newPostgres(t)
	ctx := context.Background()
	runner := NewSQLTxRunner(db, nil, nil).WithOutbox()
	repo := NewOutboxRepository(db)

	id := createMovie(t, runner, "Ran")

	err := runner.RunInTx(ctx, func(uow UnitOfWork) error {
		m, err := uow.Movies.Get(ctx, id)
		if err != nil {
			return err
		}
		if _, err := m.AddComment("u1", "rolled back"); err != nil {
			return err
		}
		uow.Record(m)
		return errors.New("boom")
	})
	require.Error(t, err)

	claimed, err := repo.Claim(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "movie.created", claimed[0].EventType)
	assert.Equal(t, id.String(), claimed[0].AggregateID)
	assert.Equal(t, outbox.StatusProcessing, claimed[0].Status)

	again, err := repo.Claim(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, repo.MarkRetry(ctx, claimed[0].ID, "broker down", false))
	retried, err := repo.Claim(ctx, 10)
	require.NoError(t, err)
	require.Len(t, retried, 1)
	assert.Equal(t, 1, retried[0].RetryCount)
	assert.Equal(t, "broker down", retried[0].Error)

	require.NoError(t, repo.MarkCompleted(ctx, retried[0].ID))
	var status string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT status FROM outbox_events WHERE id = $1`, retried[0].ID).Scan(&status))
	assert.Equal(t, string(outbox.StatusCompleted), status)
}
