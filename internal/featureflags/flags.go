// Package featureflags provides runtime switches for map session behaviour.
package featureflags

import (
	"encoding/json"
	"time"
)

// Well-known feature flag keys.
const (
	// FlagDiscardStaleResponses applies only the newest fetch result of a
	// session and cancels superseded requests. Off restores last-write-wins.
	FlagDiscardStaleResponses = "map_discard_stale_responses"

	// FlagExplicitMediaFalse sends tieneMultimedia=false when the media filter is "false".
	FlagExplicitMediaFalse = "filters_explicit_media_false"

	// FlagRefreshOnIncidentChange refreshes live sessions on incident change notifications.
	FlagRefreshOnIncidentChange = "map_refresh_on_incident_change"

	// FlagGeoJSONExport enables the markers.geojson export.
	FlagGeoJSONExport = "map_geojson_export"
)

// Flag represents a feature flag with its current value.
type Flag struct {
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// BoolValue returns the flag value as a boolean, or defaultValue when the
// flag is nil or not boolean-like.
func (f *Flag) BoolValue(defaultValue bool) bool {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case bool:
		return v
	case float64:
		// JSON numbers
		return v != 0
	case string:
		switch v {
		case "true", "on":
			return true
		case "false", "off":
			return false
		}
	}
	return defaultValue
}

// StringValue returns the flag value as a string, or defaultValue.
func (f *Flag) StringValue(defaultValue string) string {
	if f == nil {
		return defaultValue
	}
	if v, ok := f.Value.(string); ok {
		return v
	}
	return defaultValue
}

// JSONValue unmarshals the flag value into target.
func (f *Flag) JSONValue(target interface{}) error {
	if f == nil {
		return nil
	}
	data, err := json.Marshal(f.Value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

func (f *Flag) clone() *Flag {
	c := *f
	return &c
}

// DefaultFlags returns the default value of every well-known flag.
func DefaultFlags() map[string]*Flag {
	now := time.Now()
	return map[string]*Flag{
		FlagDiscardStaleResponses:   {Key: FlagDiscardStaleResponses, Value: true, UpdatedAt: now},
		FlagExplicitMediaFalse:      {Key: FlagExplicitMediaFalse, Value: false, UpdatedAt: now},
		FlagRefreshOnIncidentChange: {Key: FlagRefreshOnIncidentChange, Value: true, UpdatedAt: now},
		FlagGeoJSONExport:           {Key: FlagGeoJSONExport, Value: true, UpdatedAt: now},
	}
}

// IsKnown reports whether key is a well-known flag.
func IsKnown(key string) bool {
	_, ok := DefaultFlags()[key]
	return ok
}
