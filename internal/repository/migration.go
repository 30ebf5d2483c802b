package repository

import (
	"context"
	"database/sql"
	"embed"

	"cinecritic/pkg/database"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// SchemaTables lists the tables owned by the schema, in creation order.
var SchemaTables = []string{"movies", "comments", "outbox_events"}

// InitSchema creates the comment_status enum, the movie/comment tables and the
// integration outbox.
// Every statement is idempotent so it is safe to run on each startup.
func InitSchema(ctx context.Context, db *sql.DB) error {
	return database.ApplyMigrations(ctx, db, migrationFS, "migrations", ".up.sql", false)
}

// DropSchema reverses InitSchema.
func DropSchema(ctx context.Context, db *sql.DB) error {
	return database.ApplyMigrations(ctx, db, migrationFS, "migrations", ".down.sql", true)
}
