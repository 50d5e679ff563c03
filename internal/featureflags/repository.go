package featureflags

import (
	"context"
	"errors"
)

var (
	// ErrFlagNotFound is returned when a feature flag is not stored.
	ErrFlagNotFound = errors.New("feature flag not found")

	// ErrUnknownFlag is returned when updating a key that is not a well-known flag.
	ErrUnknownFlag = errors.New("unknown feature flag")
)

// Repository defines the interface for feature flag storage.
type Repository interface {
	GetFlag(ctx context.Context, key string) (*Flag, error)
	GetAllFlags(ctx context.Context) (map[string]*Flag, error)
	SetFlag(ctx context.Context, flag *Flag) error
	SetFlags(ctx context.Context, flags []*Flag) error
	DeleteFlag(ctx context.Context, key string) error
}
