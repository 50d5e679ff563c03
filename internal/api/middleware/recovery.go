package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/metamapa/mapgateway/internal/api/models"
)

// Recovery returns a middleware that recovers from panics and returns a 500 error.
// http.ErrAbortHandler is re-raised so the server aborts the response as intended.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				requestID := GetRequestID(r.Context())
				log.Error().
					Str("request_id", requestID).
					Str("route", routePattern(r)).
					Str("session_id", sessionIDParam(r)).
					Interface("error", rec).
					Str("stack", string(debug.Stack())).
					Msg("panic recovered")

				writeProblem(w, r, models.ProblemFor(http.StatusInternalServerError, requestID, "an unexpected error occurred"))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
