// Package middleware provides the HTTP middleware for the ops API: auth,
// per-client rate limiting and request IDs.
package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type principalKey struct{}

// WithPrincipal stores the authenticated principal name in the context.
func WithPrincipal(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, principalKey{}, name)
}

// PrincipalFromContext extracts the principal name from the context.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(principalKey{}).(string)
	return name, ok
}

// APIKeyLookup resolves a sha256-hex API key hash to a principal name.
type APIKeyLookup interface {
	LookupPrincipalByAPIKeyHash(ctx context.Context, keyHash string) (string, error)
}

// Auth authenticates requests with an HS256 bearer token or, failing that,
// an X-API-Key header checked against the stored key hashes. Both failing is
// a 401.
func Auth(jwtSecret []byte, keys APIKeyLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				tokenStr := strings.TrimPrefix(auth, "Bearer ")
				token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
					return jwtSecret, nil
				}, jwt.WithValidMethods([]string{"HS256"}))

				if err == nil && token.Valid {
					if claims, ok := token.Claims.(jwt.MapClaims); ok {
						if sub, ok := claims["sub"].(string); ok && sub != "" {
							next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), sub)))
							return
						}
					}
				}
			}

			if apiKey := r.Header.Get("X-API-Key"); apiKey != "" && keys != nil {
				hash := sha256.Sum256([]byte(apiKey))
				principal, err := keys.LookupPrincipalByAPIKeyHash(r.Context(), hex.EncodeToString(hash[:]))
				if err == nil {
					next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
					return
				}
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code":    401,
				"message": "unauthorized: provide a valid bearer token or API key",
			})
		})
	}
}
