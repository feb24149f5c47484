package providers

import (
	"fmt"
	"net/http"
	"regexp"
	"tgmed/internal/structures"
)

const (
	corsAllowMethods = "GET, POST, OPTIONS"
	corsAllowHeaders = "Content-Type, X-Telegram-InitData, X-Request-ID"
)

// CORS echoes the Origin back when it matches one of the configured
// patterns. "*" matches any origin. Preflights are answered with 204.
func CORS(conf *structures.Config, next http.Handler) (http.Handler, error) {
	patterns := make([]*regexp.Regexp, 0, len(conf.Cors.AllowedOrigins))
	for _, origin := range conf.Cors.AllowedOrigins {
		if origin == "*" {
			origin = ".*"
		}
		re, err := regexp.Compile("^(?:" + origin + ")$")
		if err != nil {
			return nil, fmt.Errorf("cors origin %q: %w", origin, err)
		}
		patterns = append(patterns, re)
	}

	allowed := func(origin string) bool {
		for _, re := range patterns {
			if re.MatchString(origin) {
				return true
			}
		}
		return false
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && allowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Expose-Headers", RequestIDHeader)
			h.Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	}), nil
}
