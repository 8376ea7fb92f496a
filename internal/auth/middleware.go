package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// contextKey is unexported so no other package can read or overwrite the
// identity stored by RequireAuth.
type contextKey string

const identityKey contextKey = "identity"

var errMissingToken = errors.New("auth: missing bearer token")

// RequireAuth rejects requests without a valid bearer token with 401 and
// stores the caller's Identity in the request context otherwise.
//
// Chi applies middlewares in a chain: req → M1 → M2 → Handler → M2 → M1 → resp,
// so anything mounted after RequireAuth can rely on IdentityFromContext.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := extractIdentity(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"Authentication failed!"}`))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// WithIdentity returns a copy of ctx carrying id. Handler tests use it to
// skip token issuance.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the authenticated caller, or false for an
// anonymous request.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID != ""
}

// UserIDFromContext is IdentityFromContext for callers that only need the ID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := IdentityFromContext(ctx)
	return id.UserID, ok
}

// extractIdentity reads "Authorization: Bearer <token>". The scheme is
// matched case-insensitively.
func extractIdentity(r *http.Request, tokens *TokenService) (Identity, error) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return Identity{}, errMissingToken
	}
	return tokens.Validate(strings.TrimSpace(token))
}
