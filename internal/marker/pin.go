package marker

import (
	"time"

	"github.com/metamapa/mapgateway/internal/incident"
)

// Pin is a marker as placed on the map.
type Pin struct {
	ID        string
	Title     string
	Category  Category
	RawLabel  string
	Icon      string
	Latitude  float64
	Longitude float64
	HasMedia  bool
	EventDate time.Time
}

// Pins builds the map pins of a marker set, keeping its order.
func Pins(markers []incident.Marker, icons *IconSet) []Pin {
	pins := make([]Pin, 0, len(markers))
	for _, m := range markers {
		c := ParseCategory(m.Category)
		pins = append(pins, Pin{
			ID:        m.ID,
			Title:     m.Title,
			Category:  c,
			RawLabel:  m.Category,
			Icon:      icons.Icon(c),
			Latitude:  m.Latitude,
			Longitude: m.Longitude,
			HasMedia:  m.HasMedia(),
			EventDate: m.EventDate,
		})
	}
	return pins
}

// FeatureCollection is a GeoJSON export of a pin set.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is a GeoJSON point feature.
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// Geometry is a GeoJSON point, coordinates in [lon, lat] order.
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// ToGeoJSON renders pins as a FeatureCollection.
func ToGeoJSON(pins []Pin) FeatureCollection {
	features := make([]Feature, 0, len(pins))
	for _, p := range pins {
		props := map[string]any{
			"id":         p.ID,
			"titulo":     p.Title,
			"categoria":  p.RawLabel,
			"tipo":       string(p.Category),
			"icono":      p.Icon,
			"multimedia": p.HasMedia,
		}
		if !p.EventDate.IsZero() {
			props["fechaAcontecimiento"] = p.EventDate.Format(time.RFC3339)
		}
		features = append(features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{p.Longitude, p.Latitude},
			},
			Properties: props,
		})
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}
