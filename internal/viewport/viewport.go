// Package viewport tracks the geographic bounds and zoom level of a map view.
package viewport

import (
	"errors"
	"fmt"
	"sync"
)

// MinZoom is the lowest zoom level at which incidents are queried.
// Below it the visible area is too large to query.
const MinZoom = 13

// MaxZoom is the highest zoom level offered by the tile layers.
const MaxZoom = 22

// ValidZoom reports whether zoom is a level a map client can report.
func ValidZoom(zoom int) bool {
	return zoom >= 0 && zoom <= MaxZoom
}

// ErrInvalidBounds is returned for inverted or out-of-range bounds.
var ErrInvalidBounds = errors.New("invalid viewport bounds")

// Bounds is a geographic bounding box in degrees.
// Views crossing the antimeridian are not supported.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Validate checks that south < north, west < east and all values are in range.
func (b Bounds) Validate() error {
	switch {
	case b.South < -90 || b.North > 90:
		return fmt.Errorf("%w: latitude out of range", ErrInvalidBounds)
	case b.West < -180 || b.East > 180:
		return fmt.Errorf("%w: longitude out of range", ErrInvalidBounds)
	case b.South >= b.North:
		return fmt.Errorf("%w: south must be less than north", ErrInvalidBounds)
	case b.West >= b.East:
		return fmt.Errorf("%w: west must be less than east", ErrInvalidBounds)
	}
	return nil
}

// Contains reports whether the point lies inside the bounds (edges inclusive).
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.South && lat <= b.North && lon >= b.West && lon <= b.East
}

// State is a point-in-time copy of the tracker.
type State struct {
	Bounds    Bounds `json:"bounds"`
	HasBounds bool   `json:"hasBounds"`
	Zoom      int    `json:"zoom"`
}

// Queryable reports whether the view is zoomed in far enough and has bounds.
func (s State) Queryable() bool {
	return s.HasBounds && s.Zoom >= MinZoom
}

// Tracker holds the current viewport. It never performs network calls;
// callers react to the values returned by MoveEnd and ZoomEnd.
type Tracker struct {
	mu        sync.RWMutex
	bounds    Bounds
	hasBounds bool
	zoom      int
}

// NewTracker creates a tracker at the given initial zoom without bounds.
func NewTracker(zoom int) *Tracker {
	return &Tracker{zoom: zoom}
}

// Restore creates a tracker from a saved state.
func Restore(s State) *Tracker {
	return &Tracker{bounds: s.Bounds, hasBounds: s.HasBounds, zoom: s.Zoom}
}

// MoveEnd records the bounds after a pan or zoom finishes.
func (t *Tracker) MoveEnd(b Bounds) error {
	if err := b.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bounds = b
	t.hasBounds = true
	return nil
}

// ZoomEnd records the new zoom level. It returns false when the zoom is
// below MinZoom, meaning the marker set must be cleared.
func (t *Tracker) ZoomEnd(zoom int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.zoom = zoom
	return zoom >= MinZoom
}

// State returns a copy of the current viewport.
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return State{Bounds: t.bounds, HasBounds: t.hasBounds, Zoom: t.zoom}
}

// MinZoomMessage is the status text shown while zoomed out too far.
func MinZoomMessage() string {
	return fmt.Sprintf("Acercá el mapa (zoom %d o más) para ver hechos", MinZoom)
}
