// Package mapview coordinates one map session: viewport, filters, marker
// fetches, popup selection and the media viewer.
package mapview

import (
	"errors"
	"fmt"
	"time"

	"github.com/metamapa/mapgateway/internal/filter"
	"github.com/metamapa/mapgateway/internal/marker"
	"github.com/metamapa/mapgateway/internal/viewport"
)

var (
	// ErrSessionNotFound is returned for unknown, evicted-and-unsaved or foreign sessions.
	ErrSessionNotFound = errors.New("map session not found")

	// ErrMarkerNotFound is returned when a marker id is not in the current marker set.
	ErrMarkerNotFound = errors.New("marker not found")
)

// StatusKind classifies the status line under the map.
type StatusKind string

const (
	StatusIdle    StatusKind = "idle"
	StatusLoading StatusKind = "loading"
	StatusResults StatusKind = "results"
	StatusEmpty   StatusKind = "empty"
	StatusError   StatusKind = "error"
	StatusMinZoom StatusKind = "min_zoom"
)

// Status is the status line under the map.
type Status struct {
	Kind StatusKind `json:"kind"`
	Text string     `json:"text"`
}

func idleStatus() Status {
	return Status{Kind: StatusIdle}
}

func loadingStatus() Status {
	return Status{Kind: StatusLoading, Text: "Cargando..."}
}

func minZoomStatus() Status {
	return Status{Kind: StatusMinZoom, Text: viewport.MinZoomMessage()}
}

func resultStatus(n int) Status {
	switch n {
	case 0:
		return Status{Kind: StatusEmpty, Text: "No se encontraron hechos"}
	case 1:
		return Status{Kind: StatusResults, Text: "Se encontró 1 hecho"}
	default:
		return Status{Kind: StatusResults, Text: fmt.Sprintf("Se encontraron %d hechos", n)}
	}
}

func errorStatus(detail string) Status {
	return Status{Kind: StatusError, Text: "Error al cargar hechos: " + detail}
}

// FilterView is the filter panel as seen by the client.
type FilterView struct {
	Pending   filter.State
	Applied   filter.State
	PanelOpen bool
}

// MediaView is the open media viewer.
type MediaView struct {
	MarkerID string
	Index    int
	Count    int
	URL      string
}

// View is a consistent copy of a session's state.
type View struct {
	ID        string
	Owner     string
	Viewport  viewport.State
	CanQuery  bool
	Filters   FilterView
	Pins      []marker.Pin
	Status    Status
	Loading   bool
	Selected  *marker.Detail
	Media     *MediaView
	UpdatedAt time.Time
}

// SavedView is the persisted part of a session: enough to rebuild the same
// map after a restart. Markers are re-fetched, never stored.
type SavedView struct {
	SessionID string         `json:"sessionId"`
	Owner     string         `json:"owner"`
	Viewport  viewport.State `json:"viewport"`
	Applied   filter.State   `json:"applied"`
	UpdatedAt time.Time      `json:"updatedAt"`
}
