package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/metamapa/mapgateway/internal/api/models"
	"github.com/metamapa/mapgateway/internal/auth"
)

// sessionKey is the context key for the authenticated auth session.
type sessionKey struct{}

// TokenValidator validates bearer tokens. *auth.Service satisfies it.
type TokenValidator interface {
	ValidateAccessToken(token string) (*auth.Session, error)
}

// Auth creates authentication middleware that requires a valid JWT bearer token.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, r, "missing authorization header")
				return
			}

			session, detail := authenticate(validator, authHeader)
			if session == nil {
				writeUnauthorized(w, r, detail)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey{}, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches the session when a bearer token is present and lets
// anonymous requests through. A present but invalid token is still rejected.
func OptionalAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, detail := authenticate(validator, authHeader)
			if session == nil {
				writeUnauthorized(w, r, detail)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey{}, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated callers without role. It must run after Auth.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := GetSession(r.Context())
			if session == nil {
				writeUnauthorized(w, r, "authentication required")
				return
			}
			if !session.HasRole(role) {
				writeProblem(w, r, models.ProblemFor(http.StatusForbidden, GetRequestID(r.Context()), "role "+role+" required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// authenticate returns the session for an Authorization header, or nil and
// the reason it was refused.
func authenticate(validator TokenValidator, authHeader string) (*auth.Session, string) {
	const bearerPrefix = "Bearer "
	if len(authHeader) < len(bearerPrefix) ||
		!strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
		return nil, "invalid authorization header format"
	}

	tokenString := strings.TrimSpace(authHeader[len(bearerPrefix):])
	if tokenString == "" {
		return nil, "missing bearer token"
	}

	session, err := validator.ValidateAccessToken(tokenString)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrAccessTokenExpired):
			return nil, "access token has expired"
		case errors.Is(err, auth.ErrInvalidAccessToken):
			return nil, "invalid access token"
		default:
			return nil, "authentication failed"
		}
	}
	return session, ""
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="metamapa"`)
	writeProblem(w, r, models.ProblemFor(http.StatusUnauthorized, GetRequestID(r.Context()), detail))
}

// writeProblem sends p for the current request path. The response package
// imports middleware, so middleware cannot use it.
func writeProblem(w http.ResponseWriter, r *http.Request, p *models.Problem) {
	p.Instance = r.URL.Path
	p.Write(w)
}

// GetSession retrieves the authenticated session from the context, or nil.
func GetSession(ctx context.Context) *auth.Session {
	if s, ok := ctx.Value(sessionKey{}).(*auth.Session); ok {
		return s
	}
	return nil
}

// GetUserID retrieves the authenticated subject from the context.
// Returns an empty string if not authenticated.
func GetUserID(ctx context.Context) string {
	if s := GetSession(ctx); s != nil {
		return s.Subject
	}
	return ""
}

// WithSession returns a copy of ctx carrying session.
func WithSession(ctx context.Context, session *auth.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}
