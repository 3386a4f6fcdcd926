package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/anastasiosv/snake-rivals-arena/internal/domain"
)

type contextKey struct{}

var userKey contextKey

// UserFrom returns the authenticated user stored in the request context.
func UserFrom(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userKey).(*domain.User)
	return user, ok
}

// TokenResolver resolves a bearer token to a user.
type TokenResolver interface {
	ResolveUser(ctx context.Context, token string) (*domain.User, error)
}

// RequireUser rejects requests without a resolvable bearer token. Missing,
// malformed and unknown-user tokens are indistinguishable from outside:
// all map to the same 401.
func RequireUser(resolver TokenResolver, unauthorized http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w, r)
				return
			}

			user, err := resolver.ResolveUser(r.Context(), token)
			if err != nil {
				unauthorized(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}
