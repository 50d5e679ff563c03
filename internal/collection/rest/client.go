// Package rest reads collections from the MetaMapa core REST gateway.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/metamapa/mapgateway/internal/backend/resilience"
	"github.com/metamapa/mapgateway/internal/collection"
	"github.com/metamapa/mapgateway/internal/telemetry"
)

// BackendName identifies the core REST gateway in the backend registry.
const BackendName = "metamapa-core"

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the REST client.
type ClientConfig struct {
	// BaseURL of the core gateway, without trailing slash.
	BaseURL string

	// HTTPClient executes requests. A resilient client is created when nil.
	HTTPClient HTTPDoer

	// Timeout per attempt when HTTPClient is nil (default: 10s).
	Timeout time.Duration

	// Registry receives the default client's health when HTTPClient is nil.
	Registry *resilience.Registry
}

// Client fetches collections over REST.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
}

// NewClient creates a collection REST client.
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
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpClient,
	}
}

type coleccionData struct {
	ID          json.RawMessage `json:"id"`
	Handle      string          `json:"handle"`
	Titulo      string          `json:"titulo"`
	Descripcion string          `json:"descripcion"`
	Algoritmo   string          `json:"algoritmoConsenso"`
}

type envelope struct {
	Colecciones []coleccionData `json:"colecciones"`
}

// FetchCollections calls GET /colecciones. A 204 or empty body is an empty
// listing; the response may be a {"colecciones": [...]} envelope or a bare array.
func (c *Client) FetchCollections(ctx context.Context) ([]collection.Collection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/colecciones", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	telemetry.InjectHeaders(ctx, req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch collections: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return []collection.Collection{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status %d from collections endpoint: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read collections response: %w", err)
	}
	items, err := decodeListing(raw)
	if err != nil {
		return nil, fmt.Errorf("decode collections response: %w", err)
	}

	out := make([]collection.Collection, 0, len(items))
	for _, it := range items {
		col := toCollection(&it)
		if col.Handle == "" {
			continue
		}
		out = append(out, col)
	}
	return out, nil
}

func decodeListing(raw []byte) ([]coleccionData, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	if raw[0] == '[' {
		var items []coleccionData
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return env.Colecciones, nil
}

// idString accepts ids encoded as strings or numbers. Null and any other
// type yield "".
func idString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func toCollection(d *coleccionData) collection.Collection {
	handle := strings.TrimSpace(d.Handle)
	if handle == "" {
		handle = idString(d.ID)
	}
	return collection.Collection{
		Handle:      handle,
		Title:       d.Titulo,
		Description: d.Descripcion,
		Algorithm:   d.Algoritmo,
	}
}
