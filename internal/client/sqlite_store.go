package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	cinecritic_errors "cinecritic/pkg/errors"

	_ "github.com/mattn/go-sqlite3"
)

const sessionSchema = `
CREATE TABLE IF NOT EXISTS session_tokens (
    id            INTEGER PRIMARY KEY CHECK (id = 1),
    access_token  TEXT NOT NULL,
    refresh_token TEXT NOT NULL,
    updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// SQLiteTokenStore keeps the single session's tokens in a local SQLite file.
type SQLiteTokenStore struct {
	db *sql.DB
}

// OpenSQLiteTokenStore creates or opens the session database at path.
func OpenSQLiteTokenStore(path string) (*SQLiteTokenStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to token store: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(sessionSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteTokenStore{db: db}, nil
}

func (s *SQLiteTokenStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteTokenStore) Load(ctx context.Context) (TokenPair, error) {
	var pair TokenPair
	err := s.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token FROM session_tokens WHERE id = 1`,
	).Scan(&pair.AccessToken, &pair.RefreshToken)
	if errors.Is(err, sql.ErrNoRows) {
		return TokenPair{}, cinecritic_errors.ErrNotFound
	}
	if err != nil {
		return TokenPair{}, fmt.Errorf("load session tokens: %w", err)
	}
	return pair, nil
}

func (s *SQLiteTokenStore) Save(ctx context.Context, pair TokenPair) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_tokens (id, access_token, refresh_token, updated_at)
		VALUES (1, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			updated_at = excluded.updated_at`,
		pair.AccessToken, pair.RefreshToken,
	)
	if err != nil {
		return fmt.Errorf("save session tokens: %w", err)
	}
	return nil
}

func (s *SQLiteTokenStore) Delete(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_tokens`); err != nil {
		return fmt.Errorf("delete session tokens: %w", err)
	}
	return nil
}
