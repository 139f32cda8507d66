// pkg/middleware/auth.go
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwt"

	"linkpay/pkg/problems"
)

type tokenCtxKey struct{}

// Verifier parses and validates a raw bearer token.
type Verifier func(ctx context.Context, raw string) (jwt.Token, error)

// BearerAuth validates access tokens with verify and populates the token and its
// scopes in the request context. Health, metrics and well-known paths are public.
func BearerAuth(verify Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" || strings.HasPrefix(r.URL.Path, "/.well-known/") {
				next.ServeHTTP(w, r)
				return
			}
			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				problems.Write(w, http.StatusUnauthorized, "missing-token", "missing bearer")
				return
			}
			raw := strings.TrimSpace(authz[len("Bearer "):])
			if raw == "" {
				problems.Write(w, http.StatusUnauthorized, "missing-token", "missing access token")
				return
			}
			jt, err := verify(r.Context(), raw)
			if err != nil {
				problems.Write(w, http.StatusUnauthorized, "invalid-token", "invalid token")
				return
			}
			var scopes []string
			if sc, ok := jt.Get("scope"); ok {
				if s, _ := sc.(string); s != "" {
					scopes = strings.Fields(s)
				}
			}
			ctx := WithScopes(r.Context(), scopes)
			ctx = context.WithValue(ctx, tokenCtxKey{}, jt)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorSub returns the subject of the verified token, or "".
func ActorSub(ctx context.Context) string {
	if jt := TokenFrom(ctx); jt != nil {
		return jt.Subject()
	}
	return ""
}

func TokenFrom(ctx context.Context) jwt.Token {
	if t, ok := ctx.Value(tokenCtxKey{}).(jwt.Token); ok {
		return t
	}
	return nil
}
