package mapview

import (
	"context"
	"time"
)

// Repository persists saved views so sessions survive eviction and restarts.
type Repository interface {
	// Save creates or replaces the saved view of a session.
	Save(ctx context.Context, v SavedView) error

	// Get returns the saved view of a session or ErrSessionNotFound.
	Get(ctx context.Context, sessionID string) (*SavedView, error)

	// Delete removes a saved view. Missing ids return ErrSessionNotFound.
	Delete(ctx context.Context, sessionID string) error

	// DeleteBefore removes views not updated since t and returns how many were removed.
	DeleteBefore(ctx context.Context, t time.Time) (int, error)
}
