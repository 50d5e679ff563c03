package mapview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const upsertViewSQL = `
	INSERT INTO map_view_snapshots (session_id, owner, view, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (session_id) DO UPDATE SET
		owner = EXCLUDED.owner,
		view = EXCLUDED.view,
		updated_at = EXCLUDED.updated_at
`

// PostgresRepository stores saved views in map_view_snapshots as JSONB.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a PostgreSQL saved view repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Save creates or replaces a saved view.
func (r *PostgresRepository) Save(ctx context.Context, v SavedView) error {
	id, err := uuid.Parse(v.SessionID)
	if err != nil {
		return fmt.Errorf("session id %q: %w", v.SessionID, err)
	}
	viewJSON, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode view %s: %w", v.SessionID, err)
	}
	updatedAt := v.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err = r.pool.Exec(ctx, upsertViewSQL, id, v.Owner, viewJSON, updatedAt)
	return err
}

// Get returns a saved view by session id.
func (r *PostgresRepository) Get(ctx context.Context, sessionID string) (*SavedView, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}

	var (
		viewJSON  []byte
		updatedAt time.Time
	)
	err = r.pool.QueryRow(ctx,
		`SELECT view, updated_at FROM map_view_snapshots WHERE session_id = $1`, id,
	).Scan(&viewJSON, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query view %s: %w", sessionID, err)
	}

	var v SavedView
	if err := json.Unmarshal(viewJSON, &v); err != nil {
		return nil, fmt.Errorf("decode view %s: %w", sessionID, err)
	}
	v.SessionID = sessionID
	v.UpdatedAt = updatedAt
	return &v, nil
}

// Delete removes a saved view.
func (r *PostgresRepository) Delete(ctx context.Context, sessionID string) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return ErrSessionNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM map_view_snapshots WHERE session_id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteBefore removes views last updated before t.
func (r *PostgresRepository) DeleteBefore(ctx context.Context, t time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM map_view_snapshots WHERE updated_at < $1`, t)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

var _ Repository = (*PostgresRepository)(nil)
