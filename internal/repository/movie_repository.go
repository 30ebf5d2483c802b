package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cinecritic/internal/domain/movie"
	cinecritic_errors "cinecritic/pkg/errors"

	"github.com/google/uuid"
)

type PostgresMovieRepository struct {
	db DBTX
}

func NewMovieRepository(db DBTX) MovieRepository {
	return &PostgresMovieRepository{db: db}
}

const movieColumns = `id, title, description, genre, release_year, created_at`
const commentColumns = `id, movie_id, author_id, body, status, reviewed_by, reviewed_at, created_at`

func (r *PostgresMovieRepository) Get(ctx context.Context, id uuid.UUID) (*movie.Movie, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+movieColumns+` FROM movies WHERE id = $1`, id)
	var (
		title, description, genre string
		year                      int
		createdAt                 time.Time
	)
	if err := row.Scan(&id, &title, &description, &genre, &year, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: movie %s", cinecritic_errors.ErrNotFound, id)
		}
		return nil, err
	}

	comments, err := r.loadComments(ctx, id)
	if err != nil {
		return nil, err
	}
	return movie.Rehydrate(id, title, description, genre, year, createdAt, comments), nil
}

func (r *PostgresMovieRepository) loadComments(ctx context.Context, movieID uuid.UUID) ([]movie.Comment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE movie_id = $1 ORDER BY created_at ASC, id ASC`, movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []movie.Comment
	for rows.Next() {
		var (
			id, mid        uuid.UUID
			authorID, body string
			status         string
			reviewedBy     sql.NullString
			reviewedAt     sql.NullTime
			createdAt      time.Time
		)
		if err := rows.Scan(&id, &mid, &authorID, &body, &status, &reviewedBy, &reviewedAt, &createdAt); err != nil {
			return nil, err
		}
		var byPtr *string
		if reviewedBy.Valid {
			byPtr = &reviewedBy.String
		}
		var atPtr *time.Time
		if reviewedAt.Valid {
			atPtr = &reviewedAt.Time
		}
		c, err := movie.RehydrateComment(id, mid, authorID, body, movie.Status(status), byPtr, atPtr, createdAt)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Save upserts the movie row, upserts every comment and deletes the comments
// the aggregate no longer owns. Callers run it inside a transaction.
func (r *PostgresMovieRepository) Save(ctx context.Context, m *movie.Movie) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO movies (`+movieColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			genre = EXCLUDED.genre,
			release_year = EXCLUDED.release_year`,
		m.ID, m.Title, m.Description, m.Genre, m.ReleaseYear, m.CreatedAt)
	if err != nil {
		return translateWriteError(err, "movie "+m.ID.String())
	}

	comments := m.Comments()
	for _, c := range comments {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO comments (`+commentColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				status = EXCLUDED.status,
				reviewed_by = EXCLUDED.reviewed_by,
				reviewed_at = EXCLUDED.reviewed_at`,
			c.ID, c.MovieID, c.AuthorID, c.Text, string(c.Status), c.ReviewedBy, c.ReviewedAt, c.CreatedAt)
		if err != nil {
			return translateWriteError(err, "comment "+c.ID.String())
		}
	}

	if len(comments) == 0 {
		_, err = r.db.ExecContext(ctx, `DELETE FROM comments WHERE movie_id = $1`, m.ID)
		return err
	}
	args := make([]any, 0, len(comments)+1)
	args = append(args, m.ID)
	for _, c := range comments {
		args = append(args, c.ID)
	}
	_, err = r.db.ExecContext(ctx,
		`DELETE FROM comments WHERE movie_id = $1 AND id NOT IN (`+placeholders(2, len(comments))+`)`,
		args...)
	return err
}

func (r *PostgresMovieRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM movies WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: movie %s", cinecritic_errors.ErrNotFound, id)
	}
	return nil
}

func (r *PostgresMovieRepository) List(ctx context.Context, page, limit int) ([]*movie.Movie, int64, error) {
	page, limit = NormalizePage(page, limit)

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM movies`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+movieColumns+` FROM movies ORDER BY created_at DESC, id ASC LIMIT $1 OFFSET $2`,
		limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	type movieRow struct {
		id                        uuid.UUID
		title, description, genre string
		year                      int
		createdAt                 time.Time
	}
	var found []movieRow
	for rows.Next() {
		var mr movieRow
		if err := rows.Scan(&mr.id, &mr.title, &mr.description, &mr.genre, &mr.year, &mr.createdAt); err != nil {
			rows.Close()
			return nil, 0, err
		}
		found = append(found, mr)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	out := make([]*movie.Movie, 0, len(found))
	for _, mr := range found {
		comments, err := r.loadComments(ctx, mr.id)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, movie.Rehydrate(mr.id, mr.title, mr.description, mr.genre, mr.year, mr.createdAt, comments))
	}
	return out, total, nil
}

// NormalizePage clamps paging input: page starts at 1, limit defaults to 20 and is capped at 100.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
