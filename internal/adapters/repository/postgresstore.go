package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/okian/calibrate/internal/domain/model"
	"github.com/okian/calibrate/pkg/metrics"
)

// Schema creates the rated_items table. Migrate applies it.
const Schema = `
CREATE TABLE IF NOT EXISTS rated_items (
	owner_id     TEXT             NOT NULL,
	item_id      TEXT             NOT NULL,
	title        TEXT             NOT NULL DEFAULT '',
	rating       DOUBLE PRECISION NOT NULL CHECK (rating >= 1 AND rating <= 10),
	games_played INTEGER          NOT NULL DEFAULT 0 CHECK (games_played >= 0),
	updated_at   TIMESTAMPTZ      NOT NULL DEFAULT now(),
	PRIMARY KEY (owner_id, item_id)
);
CREATE INDEX IF NOT EXISTS rated_items_owner_rating_idx
	ON rated_items (owner_id, rating DESC, item_id ASC);
`

// PostgresStore keeps rated items in a single table keyed by owner and item.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres opens and pings a database using the lib/pq driver.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewPostgresStore wraps db. Call Migrate before first use on a fresh database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the table and index if they are missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate rated_items: %w", err)
	}
	return nil
}

// List implements Store.List.
func (s *PostgresStore) List(ctx context.Context, owner string) ([]model.RatedItem, error) {
	defer observeQuery(time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, title, rating, games_played
		FROM rated_items
		WHERE owner_id = $1
		ORDER BY rating DESC, item_id ASC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list rated items: %w", err)
	}
	defer rows.Close()

	out := []model.RatedItem{}
	for rows.Next() {
		var it model.RatedItem
		if err := rows.Scan(&it.ID, &it.Title, &it.Rating, &it.GamesPlayed); err != nil {
			return nil, fmt.Errorf("scan rated item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rated items: %w", err)
	}
	return out, nil
}

// Get implements Store.Get.
func (s *PostgresStore) Get(ctx context.Context, owner, itemID string) (model.RatedItem, error) {
	defer observeQuery(time.Now())

	var it model.RatedItem
	err := s.db.QueryRowContext(ctx, `
		SELECT item_id, title, rating, games_played
		FROM rated_items
		WHERE owner_id = $1 AND item_id = $2`, owner, itemID,
	).Scan(&it.ID, &it.Title, &it.Rating, &it.GamesPlayed)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RatedItem{}, ErrNotFound
	}
	if err != nil {
		return model.RatedItem{}, fmt.Errorf("get rated item: %w", err)
	}
	return it, nil
}

// Upsert implements Store.Upsert.
func (s *PostgresStore) Upsert(ctx context.Context, owner string, item model.RatedItem) error {
	defer observeUpdate(time.Now())

	if err := validateItem(owner, item); err != nil {
		return err
	}
	if item.GamesPlayed < 0 {
		item.GamesPlayed = 0
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rated_items (owner_id, item_id, title, rating, games_played, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (owner_id, item_id) DO UPDATE
		SET title = EXCLUDED.title,
		    rating = EXCLUDED.rating,
		    games_played = EXCLUDED.games_played,
		    updated_at = now()`,
		owner, item.ID, item.Title, normalize(item.Rating), item.GamesPlayed)
	if err != nil {
		return fmt.Errorf("upsert rated item: %w", err)
	}
	return nil
}

// UpdateRating implements Store.UpdateRating.
func (s *PostgresStore) UpdateRating(ctx context.Context, owner, itemID string, rating float64) error {
	defer observeUpdate(time.Now())

	res, err := s.db.ExecContext(ctx, `
		UPDATE rated_items
		SET rating = $3, games_played = games_played + 1, updated_at = now()
		WHERE owner_id = $1 AND item_id = $2`,
		owner, itemID, normalize(rating))
	if err != nil {
		return fmt.Errorf("update rating: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rating: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count implements Store.Count. Query errors count as zero.
func (s *PostgresStore) Count(ctx context.Context, owner string) int {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM rated_items WHERE owner_id = $1`, owner).Scan(&n); err != nil {
		metrics.RecordErrorByEndpoint("repository", "COUNT", "postgres")
		return 0
	}
	return n
}

// Close closes the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
