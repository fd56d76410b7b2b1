package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/JonMunkholm/sldstore/internal/config"
	"github.com/JonMunkholm/sldstore/internal/logging"
)

// APIKeyHeader is the request header carrying the API key.
const APIKeyHeader = "X-API-Key"

type authError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// APIKeyAuth returns middleware that validates X-API-Key against the
// configured keys. If RequireAPIKey is false, all requests pass through.
// If RequireAPIKey is true but no keys are configured, all requests are
// rejected.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := r.Header.Get(APIKeyHeader)
			if apiKey == "" {
				rejectAuth(w, r, http.StatusUnauthorized, authError{Error: "missing API key", Code: "AUTH001"})
				return
			}
			if !isValidAPIKey(apiKey, cfg.APIKeys) {
				rejectAuth(w, r, http.StatusForbidden, authError{Error: "invalid API key", Code: "AUTH002"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rejectAuth(w http.ResponseWriter, r *http.Request, status int, body authError) {
	logging.FromContext(r.Context()).Warn("auth: "+body.Error,
		"path", r.URL.Path,
		"method", r.Method,
		"remote_addr", r.RemoteAddr,
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// isValidAPIKey checks key against every configured key in constant time,
// so timing does not reveal which key (if any) matched.
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, validKey := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(validKey))
	}
	return valid == 1
}
