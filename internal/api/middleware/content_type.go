package middleware

import (
	"mime"
	"net/http"

	"github.com/metamapa/mapgateway/internal/api/models"
)

// DefaultMaxBodyBytes bounds request bodies; the largest one is a filter patch.
const DefaultMaxBodyBytes = 64 << 10

// ContentTypeJSON sets the Content-Type header to application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only set if not already set (allows handlers to override)
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// RequireJSON rejects POST, PUT and PATCH bodies that are declared as
// anything but JSON. PATCH also accepts application/merge-patch+json.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			if contentType := r.Header.Get("Content-Type"); contentType != "" && !acceptedBodyType(r.Method, contentType) {
				writeProblem(w, r, models.ProblemFor(http.StatusUnsupportedMediaType,
					GetRequestID(r.Context()), "Content-Type must be application/json"))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// MaxBodySize limits request bodies to n bytes.
func MaxBodySize(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func acceptedBodyType(method, contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch mediaType {
	case "application/json":
		return true
	case "application/merge-patch+json":
		return method == http.MethodPatch
	default:
		return false
	}
}
