package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func scopedToken(t *testing.T, scope string) jwt.Token {
	t.Helper()
	tok, err := jwt.NewBuilder().Subject("demo-client").Claim("scope", scope).Build()
	require.NoError(t, err)
	return tok
}

func verifierFor(t *testing.T, raw string, tok jwt.Token) Verifier {
	return func(_ context.Context, got string) (jwt.Token, error) {
		if got != raw {
			return nil, errors.New("bad token")
		}
		return tok, nil
	}
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct{ Error string }
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestBearerAuthAndScope(t *testing.T) {
	verify := verifierFor(t, "good", scopedToken(t, "link payments:read"))
	var sub string
	h := BearerAuth(verify)(RequireScope("payments:read")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub = ActorSub(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	cases := []struct {
		name   string
		path   string
		authz  string
		status int
		err    string
	}{
		{"valid", "/v1/payments/1", "Bearer good", http.StatusNoContent, ""},
		{"missing", "/v1/payments/1", "", http.StatusUnauthorized, "missing bearer"},
		{"invalid", "/v1/payments/1", "Bearer bad", http.StatusUnauthorized, "invalid token"},
		{"public", "/healthz", "", http.StatusForbidden, "insufficient_scope"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.authz != "" {
				req.Header.Set("Authorization", tc.authz)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.err != "" {
				assert.Equal(t, tc.err, errorBody(t, rec))
			}
		})
	}
	assert.Equal(t, "demo-client", sub)
}

func TestRequireScope_Insufficient(t *testing.T) {
	h := BearerAuth(verifierFor(t, "good", scopedToken(t, "link")))(RequireScope("payments:read")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})))
	req := httptest.NewRequest(http.MethodGet, "/v1/payments/1", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) { seen = RequestIDFrom(r.Context()) }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-Id"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "abc")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "abc", seen)
}

func TestRecover(t *testing.T) {
	h := Recover(zap.NewNop().Sugar())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", errorBody(t, rec))
}

func TestTracing_DisabledWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	rec := httptest.NewRecorder()
	Tracing("test")(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NoError(t, ShutdownTracing(context.Background()))
}
