// Package query translates applied map filters into the GraphQL filtro input.
package query

import (
	"strings"

	"github.com/metamapa/mapgateway/internal/filter"
	"github.com/metamapa/mapgateway/internal/viewport"
)

// Payload keys of the filtro input object.
const (
	KeySouth           = "latitudMin"
	KeyWest            = "longitudMin"
	KeyNorth           = "latitudMax"
	KeyEast            = "longitudMax"
	KeyTitle           = "titulo"
	KeyDescription     = "descripcion"
	KeyCategory        = "categoria"
	KeyHasMedia        = "tieneMultimedia"
	KeyEventDateFrom   = "fechaAcontecimientoDesde"
	KeyEventDateTo     = "fechaAcontecimientoHasta"
	KeyUploadDateFrom  = "fechaCargaDesde"
	KeyUploadDateTo    = "fechaCargaHasta"
	KeyDesiredState    = "estadoDeseado"
	KeyCollection      = "coleccion"
	KeyCollectionMode  = "modoNavegacion"
	startOfDaySuffix   = "T00:00:00"
	endOfDaySuffix     = "T23:59:59"
	hasMediaTrueString = "true"
)

// Payload is the flat filtro object. Only constraints in force are present.
type Payload map[string]any

// Options tweak payload construction.
type Options struct {
	// ExplicitMediaFalse sends tieneMultimedia=false when the filter is "false".
	// Off by default: only the literal "true" produces a media constraint.
	ExplicitMediaFalse bool
}

// Build returns the filtro payload for the applied state and viewport bounds.
func Build(applied filter.State, bounds viewport.Bounds, opts Options) Payload {
	c := applied.Criteria

	p := Payload{
		KeySouth: bounds.South,
		KeyWest:  bounds.West,
		KeyNorth: bounds.North,
		KeyEast:  bounds.East,
	}

	p[KeyTitle] = text(c.Title)
	p[KeyDescription] = text(c.Description)
	p[KeyCategory] = text(c.Category)
	p[KeyEventDateFrom] = day(c.EventDate.From, startOfDaySuffix)
	p[KeyEventDateTo] = day(c.EventDate.To, endOfDaySuffix)
	p[KeyUploadDateFrom] = day(c.UploadDate.From, startOfDaySuffix)
	p[KeyUploadDateTo] = day(c.UploadDate.To, endOfDaySuffix)
	p[KeyDesiredState] = text(c.DesiredState)

	switch {
	case c.HasMedia == hasMediaTrueString:
		p[KeyHasMedia] = true
	case opts.ExplicitMediaFalse && c.HasMedia == "false":
		p[KeyHasMedia] = false
	}

	if applied.Collection.Selected() {
		mode := applied.Mode
		if mode == "" {
			mode = filter.DefaultMode
		}
		p[KeyCollection] = applied.Collection.Handle
		p[KeyCollectionMode] = string(mode)
	}

	for k, v := range p {
		if v == nil {
			delete(p, k)
		}
	}

	return p
}

// text returns nil for blank input so the key is dropped.
func text(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// day appends a fixed time of day so the range covers the whole boundary day.
func day(s, suffix string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s + suffix
}
