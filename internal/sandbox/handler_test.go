package sandbox_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkpay/internal/merchant"
	"linkpay/internal/policy"
	"linkpay/internal/sandbox"
	"linkpay/pkg/config"
)

var sandboxCfg = config.SandboxConfig{
	ClientID:        "demo-client",
	ClientSecret:    "demo-secret",
	MerchantID:      "demo-merchant",
	SigningKey:      "test-signing-key",
	TokenIssuer:     "linkpay-sandbox",
	TokenTTL:        time.Hour,
	PaymentLimit:    100,
	AccessTokenPath: "/v1/oauth/token",
	SessionKeyPath:  "/v1/link/sessions",
	PaymentPath:     "/v1/payments",
}

type harness struct {
	srv    *httptest.Server
	client *merchant.Client
	reg    *prometheus.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	tokens, err := sandbox.NewIssuer(sandboxCfg.SigningKey, sandboxCfg.TokenIssuer, sandboxCfg.TokenTTL)
	require.NoError(t, err)
	engine, err := policy.NewEngine(context.Background(), "")
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	svc := sandbox.NewService(sandboxCfg, sandbox.NewMemoryStore(), tokens, engine, nil, sandbox.NewMetrics(reg))

	r := chi.NewRouter()
	sandbox.Routes(r, svc)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	client := merchant.NewClient(merchant.Routes{
		BaseURL:         srv.URL,
		AccessTokenPath: sandboxCfg.AccessTokenPath,
		SessionKeyPath:  sandboxCfg.SessionKeyPath,
		PaymentPath:     sandboxCfg.PaymentPath,
	}, merchant.Options{})
	return &harness{srv: srv, client: client, reg: reg}
}

var noRedirect = &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}

// link drives the hosted linking page and returns the customer id from the callback redirect.
func (h *harness) link(t *testing.T, sessionKey string) string {
	t.Helper()
	q := url.Values{}
	q.Set("sessionKey", sessionKey)
	q.Set("environment", "sandbox")
	q.Set("redirect_uri", "http://127.0.0.1:8765/complete")
	q.Set("approve", "1")
	resp, err := noRedirect.Get(h.srv.URL + "/link?" + q.Encode())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/complete", loc.Path)
	return loc.Query().Get("customer_id")
}

func TestSandbox_FullFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tok, err := h.client.AccessToken(ctx, "demo-client", "demo-secret")
	require.NoError(t, err)
	assert.NotEmpty(t, tok.Token)
	assert.Equal(t, int64(3600), tok.ExpiresIn)
	assert.Equal(t, "Bearer", tok.TokenType)

	sk, err := h.client.SessionKey(ctx, merchant.SessionKeyRequest{First: "Ada", Last: "Lovelace", Email: "ada@example.com", AccessToken: tok.Token})
	require.NoError(t, err)
	require.NotEmpty(t, sk.Key)

	customerID := h.link(t, sk.Key)
	require.NotEmpty(t, customerID)
	assert.Equal(t, customerID, h.link(t, sk.Key), "linking twice yields the same customer")

	p, err := h.client.Pay(ctx, merchant.NewPaymentRequest(customerID, "demo-merchant", 12.5, tok.Token, "ref-1", "DEMO"))
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "PENDING", p.Status)
	assert.Equal(t, "ref-1", p.ClientReferenceID)

	req, err := http.NewRequest(http.MethodGet, h.srv.URL+"/v1/payments/"+p.ID, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec sandbox.PaymentRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, 12.5, rec.Amount)
	assert.Equal(t, "USD", rec.Currency)
	assert.Equal(t, customerID, rec.CustomerID)
	assert.Equal(t, "DEMO", rec.SoftDescriptor)
	assert.Equal(t, "demo-client", rec.ClientID)

	// access_token/issued, session_key/issued, link/linked, payment/accepted
	count, err := testutil.GatherAndCount(h.reg, "linkpay_sandbox_events_total")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestSandbox_InvalidClient(t *testing.T) {
	h := newHarness(t)

	_, err := h.client.AccessToken(context.Background(), "demo-client", "wrong")
	var apiErr *merchant.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "401", apiErr.Code)
	assert.Equal(t, "invalid client", apiErr.Message)
}

func TestSandbox_SessionKeyRequiresValidToken(t *testing.T) {
	h := newHarness(t)

	_, err := h.client.SessionKey(context.Background(), merchant.SessionKeyRequest{First: "Ada", Last: "L", Email: "ada@example.com", AccessToken: "garbage"})
	var apiErr *merchant.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "401", apiErr.Code)
	assert.Equal(t, "invalid token", apiErr.Message)

	other, err := sandbox.NewIssuer("another-key", sandboxCfg.TokenIssuer, time.Hour)
	require.NoError(t, err)
	forged, _, err := other.Mint("demo-client", "demo-merchant", []string{sandbox.ScopeLink})
	require.NoError(t, err)
	_, err = h.client.SessionKey(context.Background(), merchant.SessionKeyRequest{First: "Ada", Last: "L", Email: "ada@example.com", AccessToken: forged})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "401", apiErr.Code)
}

func TestSandbox_SessionKeyValidation(t *testing.T) {
	h := newHarness(t)
	tok, err := h.client.AccessToken(context.Background(), "demo-client", "demo-secret")
	require.NoError(t, err)

	_, err = h.client.SessionKey(context.Background(), merchant.SessionKeyRequest{First: "Ada", Email: "not-an-email", AccessToken: tok.Token})
	var apiErr *merchant.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "400", apiErr.Code)
	assert.Equal(t, "invalid session request: last is required, email is not a valid email", apiErr.Message)
}

func TestSandbox_PaymentPolicy(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tok, err := h.client.AccessToken(ctx, "demo-client", "demo-secret")
	require.NoError(t, err)
	sk, err := h.client.SessionKey(ctx, merchant.SessionKeyRequest{First: "Ada", Last: "L", Email: "ada@example.com", AccessToken: tok.Token})
	require.NoError(t, err)
	customerID := h.link(t, sk.Key)

	_, err = h.client.Pay(ctx, merchant.NewPaymentRequest(customerID, "demo-merchant", 500, tok.Token, "", ""))
	var apiErr *merchant.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "422", apiErr.Code)
	assert.Equal(t, "payment declined: amount_over_limit", apiErr.Message)

	_, err = h.client.Pay(ctx, merchant.NewPaymentRequest(customerID, "someone-else", 5, tok.Token, "", ""))
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "payment declined: merchant_mismatch", apiErr.Message)

	_, err = h.client.Pay(ctx, merchant.NewPaymentRequest("no-such-customer", "demo-merchant", 5, tok.Token, "", ""))
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "404", apiErr.Code)
	assert.Equal(t, "unknown customer", apiErr.Message)
}

func TestSandbox_LinkPage(t *testing.T) {
	h := newHarness(t)

	t.Run("confirmation page", func(t *testing.T) {
		resp, err := http.Get(h.srv.URL + "/link?sessionKey=sk&environment=sandbox&redirect_uri=" + url.QueryEscape("http://localhost:9000/complete"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"))
	})

	t.Run("unknown session redirects to cancel", func(t *testing.T) {
		resp, err := noRedirect.Get(h.srv.URL + "/link?approve=1&sessionKey=nope&redirect_uri=" + url.QueryEscape("http://127.0.0.1:9000/complete"))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusFound, resp.StatusCode)
		loc, err := url.Parse(resp.Header.Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "/cancel", loc.Path)
		assert.Equal(t, "unknown session key", loc.Query().Get("error"))
	})

	t.Run("rejects non-loopback redirect", func(t *testing.T) {
		resp, err := noRedirect.Get(h.srv.URL + "/link?approve=1&sessionKey=sk&redirect_uri=" + url.QueryEscape("https://evil.example.com/complete"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body struct{ Error, Type string }
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Contains(t, body.Type, "/problems/invalid-redirect")
	})
}

func (h *harness) lookup(t *testing.T, token, id string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, h.srv.URL+"/v1/payments/"+id, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestSandbox_PaymentLookupScopedToClient(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tok, err := h.client.AccessToken(ctx, "demo-client", "demo-secret")
	require.NoError(t, err)
	sk, err := h.client.SessionKey(ctx, merchant.SessionKeyRequest{First: "Ada", Last: "L", Email: "ada@example.com", AccessToken: tok.Token})
	require.NoError(t, err)
	p, err := h.client.Pay(ctx, merchant.NewPaymentRequest(h.link(t, sk.Key), "demo-merchant", 5, tok.Token, "", ""))
	require.NoError(t, err)

	same, err := sandbox.NewIssuer(sandboxCfg.SigningKey, sandboxCfg.TokenIssuer, time.Hour)
	require.NoError(t, err)
	other, _, err := same.Mint("other-client", "demo-merchant", []string{"payments:read"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, h.lookup(t, tok.Token, p.ID))
	assert.Equal(t, http.StatusNotFound, h.lookup(t, other, p.ID))
	assert.Equal(t, http.StatusNotFound, h.lookup(t, tok.Token, "no-such-payment"))
}

func TestSandbox_PaymentLookupNeedsBearer(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.srv.URL + "/v1/payments/abc")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSandbox_OpenAPI(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.srv.URL + "/.well-known/openapi.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	var doc struct {
		OpenAPI string                    `json:"openapi"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, "3.1.0", doc.OpenAPI)
	assert.Contains(t, doc.Paths, "/v1/oauth/token")
	assert.Contains(t, doc.Paths["/v1/payments/{id}"], "get")
}
