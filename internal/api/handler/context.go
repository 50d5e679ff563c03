package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/metamapa/mapgateway/internal/api/middleware"
	"github.com/metamapa/mapgateway/internal/api/response"
)

// GetUserID retrieves the authenticated subject from the context.
// This is a convenience wrapper around middleware.GetUserID.
func GetUserID(ctx context.Context) string {
	return middleware.GetUserID(ctx)
}

// decodeJSON decodes the request body into v and writes a 400 on failure.
// An empty body is accepted when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}, allowEmpty bool) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil:
		return true
	case errors.Is(err, io.EOF) && allowEmpty:
		return true
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		response.BadRequest(w, r, "request body too large", nil)
		return false
	}
	response.BadRequest(w, r, "invalid JSON body", nil)
	return false
}
