package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/hstoff/storefront/internal/auth"
)

type contextKey int

const (
	contextKeyAdmin contextKey = iota
)

// Auth guards admin routes. It expects a Bearer token minted by the login
// endpoint.
func Auth(token *auth.AuthToken) func(handler http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			payload, err := token.VerifyToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyAdmin, payload.Subject)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
