package incident

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ChangeKind describes what happened to an incident upstream.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "CREADO"
	ChangeUpdated ChangeKind = "MODIFICADO"
	ChangeDeleted ChangeKind = "ELIMINADO"
)

// ErrInvalidChange is returned for change notifications that cannot be decoded.
var ErrInvalidChange = errors.New("invalid incident change")

// Change is an incident change notification published by the core backend.
type Change struct {
	ID        string     `json:"id"`
	Kind      ChangeKind `json:"tipo"`
	Latitude  *float64   `json:"latitud"`
	Longitude *float64   `json:"longitud"`
}

// HasLocation reports whether the change carries coordinates. Changes
// without them, such as deletions, can only be matched by id.
func (c Change) HasLocation() bool {
	return c.Latitude != nil && c.Longitude != nil
}

// ParseChange decodes and validates a change notification payload.
// Coordinates are optional but must come as a pair.
func ParseChange(data []byte) (Change, error) {
	var c Change
	if err := json.Unmarshal(data, &c); err != nil {
		return Change{}, fmt.Errorf("%w: %w", ErrInvalidChange, err)
	}
	if c.ID == "" {
		return Change{}, fmt.Errorf("%w: missing id", ErrInvalidChange)
	}
	if (c.Latitude == nil) != (c.Longitude == nil) {
		return Change{}, fmt.Errorf("%w: incomplete coordinates for %s", ErrInvalidChange, c.ID)
	}
	if c.Kind == "" {
		c.Kind = ChangeUpdated
	}
	return c, nil
}
