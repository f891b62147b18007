package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"lrc-editor-go/logcolors"

	log "github.com/sirupsen/logrus"
)

const apiKeyAuthenticatedKey contextKey = "apiKeyAuthenticated"

// Authenticated reports whether the request presented a valid API key
func Authenticated(ctx context.Context) bool {
	ok, _ := ctx.Value(apiKeyAuthenticatedKey).(bool)
	return ok
}

// publicPaths matches exact paths and prefixes written as "/prefix/*"
type publicPaths struct {
	exact    map[string]bool
	prefixes []string
}

func newPublicPaths(paths []string) publicPaths {
	p := publicPaths{exact: make(map[string]bool)}
	for _, path := range paths {
		if strings.HasSuffix(path, "*") {
			p.prefixes = append(p.prefixes, strings.TrimSuffix(path, "*"))
			continue
		}
		p.exact[path] = true
	}
	return p
}

func (p publicPaths) match(path string) bool {
	if p.exact[path] {
		return true
	}
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// APIKeyMiddleware creates middleware that requires X-API-Key header when enabled.
// If required is false, all requests pass through; a valid key still marks the
// request as authenticated. If required is true but apiKey is empty, logs a
// warning and allows all requests. Public paths are always allowed.
func APIKeyMiddleware(apiKey string, required bool, paths []string) func(http.Handler) http.Handler {
	public := newPublicPaths(paths)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			providedKey := r.Header.Get("X-API-Key")
			valid := apiKey != "" && providedKey != "" &&
				subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiKey)) == 1
			if valid {
				r = r.WithContext(context.WithValue(r.Context(), apiKeyAuthenticatedKey, true))
			}

			if !required || public.match(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			if apiKey == "" {
				log.Warnf("%s API key required but not configured, allowing request", logcolors.LogAPIKey)
				next.ServeHTTP(w, r)
				return
			}

			if providedKey == "" {
				log.Warnf("%s Missing API key from %s for %s", logcolors.LogAPIKey, r.RemoteAddr, r.URL.Path)
				unauthorized(w, "API key required", "Provide a valid API key via X-API-Key header")
				return
			}

			if !valid {
				log.Warnf("%s Invalid API key from %s for %s", logcolors.LogAPIKey, r.RemoteAddr, r.URL.Path)
				unauthorized(w, "Invalid API key", "The provided API key is not valid")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, msg, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "message": detail})
}
