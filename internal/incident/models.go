// Package incident defines incident markers ("hechos") and the fetcher
// contract used to load them for a map viewport.
package incident

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/metamapa/mapgateway/internal/query"
)

// Defaults applied to missing or blank fields of a fetched incident.
const (
	DefaultTitle    = "Sin título"
	DefaultCategory = "General"
)

// ErrBackendUnavailable is wrapped by fetch errors raised before any
// response was received (transport failure, open circuit).
var ErrBackendUnavailable = errors.New("incident backend unavailable")

// Marker is one incident placed on the map.
type Marker struct {
	ID              string
	Title           string
	Description     string
	Category        string
	EventDate       time.Time
	Latitude        float64
	Longitude       float64
	MediaURLs       []string
	AdminSuggestion string
}

// HasMedia reports whether the marker has attached images or videos.
func (m Marker) HasMedia() bool {
	return len(m.MediaURLs) > 0
}

// Normalize fills the display defaults for missing fields.
func (m *Marker) Normalize() {
	m.Title = strings.TrimSpace(m.Title)
	if m.Title == "" {
		m.Title = DefaultTitle
	}
	m.Category = strings.TrimSpace(m.Category)
	if m.Category == "" {
		m.Category = DefaultCategory
	}
	m.AdminSuggestion = strings.TrimSpace(m.AdminSuggestion)

	urls := m.MediaURLs[:0]
	for _, u := range m.MediaURLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	m.MediaURLs = urls
}

// FetchError is returned when the backend could not produce a marker list.
// Body holds the raw response text when a response was received.
type FetchError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	b.WriteString("fetch markers")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Body != "" {
		b.WriteString(": ")
		b.WriteString(e.Body)
	}
	return b.String()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Detail is the text surfaced to the user: the response body when there is
// one, otherwise the underlying error.
func (e *FetchError) Detail() string {
	if e.Body != "" {
		return e.Body
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "error desconocido"
}

// Fetcher loads the markers matching a filtro payload.
type Fetcher interface {
	FetchMarkers(ctx context.Context, payload query.Payload) ([]Marker, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, payload query.Payload) ([]Marker, error)

// FetchMarkers calls f.
func (f FetcherFunc) FetchMarkers(ctx context.Context, payload query.Payload) ([]Marker, error) {
	return f(ctx, payload)
}
