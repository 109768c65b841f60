package auth

import (
	"context"
	"net/http"
	"strings"

	"wallet-chat/contract"
	"wallet-chat/domain"
	"wallet-chat/errors"
)

type contextKey string

const identityKey contextKey = "identity"

// BearerToken extracts the token of an "Authorization: Bearer <token>" header,
// falling back to the "token" query parameter used by browser websockets.
func BearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// Middleware rejects requests without a valid token and injects the
// identity into the request context for downstream handlers.
func Middleware(verifier contract.TokenVerifier, reject func(http.ResponseWriter, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				reject(w, errors.ErrInvalidToken)
				return
			}
			identity, err := verifier.Verify(token)
			if err != nil {
				reject(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(domain.Identity)
	return identity, ok
}
