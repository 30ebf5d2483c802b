package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	cinecritic_errors "cinecritic/pkg/errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes the repositories translate.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// translateWriteError maps constraint violations to the service sentinels and
// wraps everything else with what was being written.
func translateWriteError(err error, what string) error {
	switch pgErrorCode(err) {
	case pgUniqueViolation:
		return fmt.Errorf("%w: %s already exists", cinecritic_errors.ErrConflict, what)
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %s references a missing row", cinecritic_errors.ErrNotFound, what)
	default:
		return fmt.Errorf("save %s: %w", what, err)
	}
}

// placeholders renders "$start,$start+1,..." for count positional args.
func placeholders(start, count int) string {
	var b strings.Builder
	for i := 0; i < count; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(start + i))
	}
	return b.String()
}

// WithTx runs fn in a new transaction on a *sql.DB, or directly when db is
// already a *sql.Tx. The transaction is committed only if fn returns nil.
func WithTx(ctx context.Context, db DBTX, fn func(DBTX) error) error {
	switch conn := db.(type) {
	case *sql.Tx:
		return fn(conn)
	case *sql.DB:
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		if err := fn(tx); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	case nil:
		return errors.New("database not initialized")
	default:
		return fmt.Errorf("unsupported db type %T", db)
	}
}
