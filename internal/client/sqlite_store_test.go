package client

import (
	"context"
	"path/filepath"
	"testing"

	cinecritic_errors "cinecritic/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	store, err := OpenSQLiteTokenStore(path)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, cinecritic_errors.ErrNotFound)

	require.NoError(t, store.Save(ctx, TokenPair{AccessToken: "a1", RefreshToken: "r1"}))
	require.NoError(t, store.Save(ctx, TokenPair{AccessToken: "a2", RefreshToken: "r2"}))

	pair, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, TokenPair{AccessToken: "a2", RefreshToken: "r2"}, pair)
	require.NoError(t, store.Close())

	// Survives a reopen.
	store, err = OpenSQLiteTokenStore(path)
	require.NoError(t, err)
	defer store.Close()

	creds := NewCredentials(store, nil)
	require.NoError(t, creds.Restore(ctx))
	assert.Equal(t, "r2", creds.Get().RefreshToken)

	creds.Clear()
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, cinecritic_errors.ErrNotFound)
}
