// Package graphql fetches incident markers from the MetaMapa GraphQL endpoint.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/metamapa/mapgateway/internal/backend/resilience"
	"github.com/metamapa/mapgateway/internal/incident"
	"github.com/metamapa/mapgateway/internal/query"
	"github.com/metamapa/mapgateway/internal/telemetry"
)

// BackendName identifies the GraphQL endpoint in the backend registry.
const BackendName = "metamapa-graphql"

// HechosQuery requests the fixed field set rendered on the map.
const HechosQuery = `query Hechos($filtro: FiltroHechosInput) {
  hechos(filtro: $filtro) {
    id
    titulo
    descripcion
    categoria
    fechaAcontecimiento
    latitud
    longitud
    multimedia
    sugerenciaAdmin
  }
}`

// maxErrorBody caps the response text kept on a FetchError.
const maxErrorBody = 4 << 10

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the GraphQL client.
type ClientConfig struct {
	// Endpoint is the full GraphQL URL.
	Endpoint string

	// HTTPClient executes requests. A resilient client is created when nil.
	HTTPClient HTTPDoer

	// Timeout per attempt when HTTPClient is nil (default: 10s).
	Timeout time.Duration

	// Registry receives the default client's health when HTTPClient is nil.
	Registry *resilience.Registry
}

// Client implements incident.Fetcher over GraphQL.
type Client struct {
	endpoint   string
	httpClient HTTPDoer
}

// NewClient creates a GraphQL incident client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rc := resilience.DefaultClientConfig(BackendName)
		if cfg.Timeout > 0 {
			rc.Timeout = cfg.Timeout
		}
		rc.Registry = cfg.Registry
		httpClient = resilience.NewClient(rc)
	}

	return &Client{
		endpoint:   cfg.Endpoint,
		httpClient: httpClient,
	}
}

var _ incident.Fetcher = (*Client)(nil)

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type response struct {
	Data *struct {
		Hechos []json.RawMessage `json:"hechos"`
	} `json:"data"`
	Errors []gqlError `json:"errors"`
}

type gqlError struct {
	Message string `json:"message"`
}

// hecho keeps every field raw so one mistyped field cannot fail the
// whole response; each field is decoded on its own with a fallback.
type hecho struct {
	ID                  json.RawMessage `json:"id"`
	Titulo              json.RawMessage `json:"titulo"`
	Descripcion         json.RawMessage `json:"descripcion"`
	Categoria           json.RawMessage `json:"categoria"`
	FechaAcontecimiento json.RawMessage `json:"fechaAcontecimiento"`
	Latitud             json.RawMessage `json:"latitud"`
	Longitud            json.RawMessage `json:"longitud"`
	Multimedia          json.RawMessage `json:"multimedia"`
	SugerenciaAdmin     json.RawMessage `json:"sugerenciaAdmin"`
}

// FetchMarkers posts the Hechos query with payload as the filtro variable.
// Every failure is reported as *incident.FetchError.
func (c *Client) FetchMarkers(ctx context.Context, payload query.Payload) ([]incident.Marker, error) {
	ctx, span := telemetry.Tracer("incident/graphql").Start(ctx, "graphql.Hechos")
	defer span.End()

	markers, err := c.fetch(ctx, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch markers")
		return nil, err
	}
	span.SetAttributes(attribute.Int("metamapa.markers", len(markers)))
	return markers, nil
}

func (c *Client) fetch(ctx context.Context, payload query.Payload) ([]incident.Marker, error) {
	body, err := json.Marshal(request{
		Query:     HechosQuery,
		Variables: map[string]any{"filtro": payload},
	})
	if err != nil {
		return nil, &incident.FetchError{Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &incident.FetchError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	telemetry.InjectHeaders(ctx, req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &incident.FetchError{Err: fmt.Errorf("%w: %w", incident.ErrBackendUnavailable, err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &incident.FetchError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &incident.FetchError{StatusCode: resp.StatusCode, Body: truncate(raw)}
	}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
		return []incident.Marker{}, nil
	}

	var result response
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &incident.FetchError{
			StatusCode: resp.StatusCode,
			Body:       truncate(raw),
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	if len(result.Errors) > 0 {
		return nil, &incident.FetchError{
			StatusCode: resp.StatusCode,
			Body:       truncate(raw),
			Err:        errors.New(result.Errors[0].Message),
		}
	}
	if result.Data == nil {
		return []incident.Marker{}, nil
	}

	markers := make([]incident.Marker, 0, len(result.Data.Hechos))
	for _, raw := range result.Data.Hechos {
		if m, ok := toMarker(raw); ok {
			markers = append(markers, m)
		}
	}
	return markers, nil
}

// toMarker maps one hecho. Only records that cannot be placed on the map
// (not an object, or no usable coordinates) are skipped.
func toMarker(raw json.RawMessage) (incident.Marker, bool) {
	var h hecho
	if err := json.Unmarshal(raw, &h); err != nil {
		return incident.Marker{}, false
	}
	lat, okLat := coordinate(h.Latitud)
	lon, okLon := coordinate(h.Longitud)
	if !okLat || !okLon {
		return incident.Marker{}, false
	}

	m := incident.Marker{
		ID:              scalarString(h.ID),
		Title:           text(h.Titulo),
		Description:     text(h.Descripcion),
		Category:        categoryName(h.Categoria),
		EventDate:       parseDate(scalarString(h.FechaAcontecimiento)),
		Latitude:        lat,
		Longitude:       lon,
		MediaURLs:       mediaURLs(h.Multimedia),
		AdminSuggestion: text(h.SugerenciaAdmin),
	}
	m.Normalize()
	return m, true
}

// text returns a JSON string value, or "" for null and any other type.
func text(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// coordinate accepts a JSON number or a numeric string.
func coordinate(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(text(raw)), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// scalarString accepts GraphQL ID values encoded as strings or numbers.
func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// categoryName accepts a plain string or an object with a nombre field.
func categoryName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Nombre string `json:"nombre"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Nombre
	}
	return ""
}

// mediaURLs accepts a list of URL strings or of objects carrying url or ruta.
func mediaURLs(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var urls []string
	if err := json.Unmarshal(raw, &urls); err == nil {
		return urls
	}
	var objs []struct {
		URL  string `json:"url"`
		Ruta string `json:"ruta"`
	}
	if err := json.Unmarshal(raw, &objs); err != nil {
		return nil
	}
	urls = make([]string, 0, len(objs))
	for _, o := range objs {
		if o.URL != "" {
			urls = append(urls, o.URL)
		} else {
			urls = append(urls, o.Ruta)
		}
	}
	return urls
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseDate returns the zero time for unknown formats.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}

// truncate caps b at maxErrorBody without splitting a UTF-8 sequence.
func truncate(b []byte) string {
	if len(b) <= maxErrorBody {
		return string(b)
	}
	end := maxErrorBody
	for end > 0 && !utf8.RuneStart(b[end]) {
		end--
	}
	return string(b[:end])
}
