package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bitstreamfno/orchestrator/internal/infrastructure/http/response"
	"github.com/bitstreamfno/orchestrator/internal/infrastructure/keygen"
)

// AdminAuth gates the admin-only endpoints (scheduler reset, stale-lease
// recovery) behind a static bearer token set. Tokens are keygen-issued
// keys; only their hashed long secret is held in memory, never the
// plaintext, matching the hashing idiom the rest of the stack uses for
// credential storage.
type AdminAuth struct {
	hashedSecrets map[string]struct{}
}

// NewAdminAuth builds an AdminAuth from the raw bearer tokens configured
// via ADMIN_API_KEYS. Malformed tokens are rejected at startup rather
// than silently never matching.
func NewAdminAuth(tokens []string) (*AdminAuth, error) {
	hashed := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		parts, err := keygen.ParseAPIKey(tok)
		if err != nil {
			return nil, err
		}
		hashed[keygen.HashSecret(parts.LongSecret)] = struct{}{}
	}
	return &AdminAuth{hashedSecrets: hashed}, nil
}

// Validate is Chi middleware requiring "Authorization: Bearer <key>"
// where <key> hashes to one of the configured admin tokens.
func (a *AdminAuth) Validate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(authHeader, "Bearer ")
		if authHeader == "" || !found {
			slog.WarnContext(r.Context(), "admin auth failed: missing or malformed Authorization header",
				"path", r.URL.Path, "method", r.Method)
			response.Error(w, "UNAUTHORIZED", "missing or malformed Authorization header", http.StatusUnauthorized)
			return
		}

		if !a.authorized(token) {
			slog.WarnContext(r.Context(), "admin auth failed: unrecognized bearer token",
				"path", r.URL.Path, "method", r.Method, "key_prefix", keygen.MaskAPIKey(token))
			response.Error(w, "UNAUTHORIZED", "invalid or unrecognized admin token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *AdminAuth) authorized(token string) bool {
	parts, err := keygen.ParseAPIKey(token)
	if err != nil {
		return false
	}
	candidate := keygen.HashSecret(parts.LongSecret)
	for hashed := range a.hashedSecrets {
		if subtle.ConstantTimeCompare([]byte(hashed), []byte(candidate)) == 1 {
			return true
		}
	}
	return false
}
