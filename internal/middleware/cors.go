package middleware

import (
	"net/http"
	"strings"
)

// CORS allows the configured origins. origins is a comma-separated list, or "*".
func CORS(origins string) func(http.Handler) http.Handler {
	allowed := splitOrigins(origins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqOrigin := r.Header.Get("Origin")
			allow := allowed[0]
			if reqOrigin != "" && isAllowed(reqOrigin, allowed) {
				allow = reqOrigin
			}

			w.Header().Set("Access-Control-Allow-Origin", allow)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, x-auth-token")
			w.Header().Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func splitOrigins(origins string) []string {
	var out []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func isAllowed(reqOrigin string, allowed []string) bool {
	for _, o := range allowed {
		if o == "*" || o == reqOrigin {
			return true
		}
	}
	return false
}
