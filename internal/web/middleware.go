package web

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/coinsight/crypto_screener/internal/gateway"
)

// publicPaths may be visited without a credential.
var publicPaths = map[string]bool{
	"/login":      true,
	"/permission": true,
	"/terms":      true,
	"/privacy":    true,
}

// RequireAuth gates page requests on credential presence. API routes
// self-authenticate in their handlers and pass through here. This is a
// presence check only: a stale-but-present credential passes and fails at
// the first real request with a 401, which the browser gateway turns into
// a login redirect. Validating here would cost a backend round trip per
// navigation.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || publicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(gateway.AuthCookie)
		if err != nil || cookie.Value == "" {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Recover turns handler panics into a structured 500 so no request dies
// with an empty response.
func Recover(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("Panic in handler",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path))
				writeJSON(w, http.StatusInternalServerError, map[string]string{
					"error": "Internal server error",
					"type":  "internal_error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
