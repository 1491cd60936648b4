package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

type ctxKey int

const (
	userKey ctxKey = iota
	requestIDKey
)

// maxUserIDLen bounds the X-User-ID header.
const maxUserIDLen = 128

// Auth returns middleware that validates API requests using either a Bearer
// token in the Authorization header or a key in the X-API-Key header, then
// stores the caller's X-User-ID in the request context. Browsers opening /ws
// pass both as the token and user query parameters. If apiKeys is empty, key
// validation is disabled. Paths in public skip validation.
func Auth(apiKeys []string, public ...string) func(http.Handler) http.Handler {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, []byte(k))
		}
	}
	open := make(map[string]bool, len(public))
	for _, p := range public {
		open[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || open[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			if len(keys) > 0 {
				token := extractToken(r)
				if token == "" {
					writeUnauthorized(w, "missing authentication token")
					return
				}
				if !validKey(keys, token) {
					writeUnauthorized(w, "invalid authentication token")
					return
				}
			}

			user := strings.TrimSpace(r.Header.Get("X-User-ID"))
			if user == "" {
				user = strings.TrimSpace(r.URL.Query().Get("user"))
			}
			if len(user) > maxUserIDLen {
				writeUnauthorized(w, "user id too long")
				return
			}
			if !validUserID(user) {
				writeUnauthorized(w, "invalid user id")
				return
			}
			if user != "" {
				r = r.WithContext(WithUserID(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// validUserID reports whether user uses only letters, digits and "_.@-".
// User ids become object key segments, so "/" must never reach storage.
func validUserID(user string) bool {
	for _, r := range user {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == '.', r == '@', r == '-':
		default:
			return false
		}
	}
	return true
}

// validKey compares token against every key in constant time.
func validKey(keys [][]byte, token string) bool {
	ok := 0
	for _, k := range keys {
		ok |= subtle.ConstantTimeCompare([]byte(token), k)
	}
	return ok == 1
}

// WithUserID returns a context carrying the caller's user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

// UserID returns the caller's user id, or "" when the request is anonymous.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userKey).(string)
	return id
}

// extractToken looks for a token in the Authorization header (Bearer scheme),
// the X-API-Key header or the token query parameter.
func extractToken(r *http.Request) string {
	// Check Authorization: Bearer <token>
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	// Check X-API-Key header.
	if key := r.Header.Get("X-API-Key"); key != "" {
		return strings.TrimSpace(key)
	}

	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
