package middleware

import (
	"context"
	"net/http"

	"auth-shell/internal/authctx"
)

// unexported, collision-proof context key
type userIDContextKeyType struct{}

var userIDKey = userIDContextKeyType{}

// UserIDFromContext extracts the authenticated user's subject from context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}

// RequireAuth lets only authenticated requests through. It relies on the
// auth state attached by authctx.Provider.Mount.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 1. Read the resolved auth state
		v, err := authctx.FromContext(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		// 2. Identity client still starting
		if v.IsLoading {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "identity provider unavailable", http.StatusServiceUnavailable)
			return
		}

		if !v.IsAuthenticated {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// 3. Attach subject to context
		sub, _ := v.User["sub"].(string)
		ctx := context.WithValue(r.Context(), userIDKey, sub)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
