package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"neurocare-api/internal/auth"
	"neurocare-api/internal/model"
)

type ctxKey string

const principalKey ctxKey = "principal"

// TokenHeader carries the bearer token. The frontend sends it bare, not as
// an Authorization scheme.
const TokenHeader = "token"

func WithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFrom(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalKey).(model.Principal)
	return p, ok
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}

// Auth resolves the token header into a Principal on the request context.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(TokenHeader))
			if raw == "" {
				writeMessage(w, http.StatusUnauthorized, "You are not signed in")
				return
			}
			claims, err := auth.ParseToken(raw, secret)
			if err != nil {
				writeMessage(w, http.StatusUnauthorized, "You are not signed in")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), claims.Principal())))
		})
	}
}

// RequireRole must run after Auth.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				writeMessage(w, http.StatusUnauthorized, "You are not signed in")
				return
			}
			if !slices.Contains(roles, p.Role) {
				writeMessage(w, http.StatusForbidden, "Access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
