package middleware

import (
	"context"
	"net/http"

	"github.com/web3-frozen/kpi-dashboard/internal/auth"
)

type ctxKey struct{}

// TokenVerifier is satisfied by *auth.Issuer.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// RequireToken rejects requests without a valid session token with 401 and
// stores the verified claims on the request context.
func RequireToken(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.TokenFromRequest(r)
			if token == "" {
				writeUnauthorized(w, "No token, authorization denied")
				return
			}
			claims, err := v.Verify(token)
			if err != nil {
				writeUnauthorized(w, "Token is not valid")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims)))
		})
	}
}

// ClaimsFrom returns the claims stored by RequireToken.
func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(*auth.Claims)
	return c, ok
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"msg":"` + msg + `"}`))
}
