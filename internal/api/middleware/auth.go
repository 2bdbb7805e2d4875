package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/runair/runair/internal/api/models"
	"github.com/runair/runair/internal/auth"
)

type subjectKey struct{}

// TokenAuthorizer validates a bearer token for a scope.
type TokenAuthorizer interface {
	Authorize(token, scope string) (*auth.Claims, error)
}

// AdminAuth requires a bearer token carrying the admin scope. A nil
// authorizer rejects every request, which keeps the admin routes closed when
// no signing key is configured.
func AdminAuth(tokens TokenAuthorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokens == nil {
				writeUnauthorized(w, r, "admin access is not configured")
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeUnauthorized(w, r, "missing or malformed bearer token")
				return
			}

			claims, err := tokens.Authorize(token, auth.ScopeAdmin)
			switch {
			case err == nil:
			case errors.Is(err, auth.ErrTokenExpired):
				writeUnauthorized(w, r, "token has expired")
				return
			case errors.Is(err, auth.ErrMissingScope):
				models.NewForbidden(GetRequestID(r.Context()), "token lacks the admin scope").
					WithInstance(r.URL.Path).
					Write(w)
				return
			default:
				writeUnauthorized(w, r, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Subject returns the authenticated token subject, or "".
func Subject(ctx context.Context) string {
	if s, ok := ctx.Value(subjectKey{}).(string); ok {
		return s
	}
	return ""
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="runair"`)
	models.NewUnauthorized(GetRequestID(r.Context()), detail).
		WithInstance(r.URL.Path).
		Write(w)
}
