// Package middleware provides net/http handlers wrapping an
// [authkit.Engine].
package middleware

import (
	"context"
	"net/http"

	authkit "github.com/authkit-go/authkit"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the identity established by [Guard] for
// the current request.
func AuthResultFromContext(ctx context.Context) (*authkit.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*authkit.AuthResult)
	return res, ok
}

// Guard authenticates each request through the engine's cookie
// coordinator. A valid access cookie passes straight through; an expired
// one with a usable refresh cookie gets a transparently rotated pair;
// anything else is a uniform 401.
func Guard(engine *authkit.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := engine.Authenticate(w, r)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
