package merchant_test

import (
	"encoding/json"
	"math"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkpay/internal/merchant"
)

var testRoutes = merchant.Routes{
	BaseURL:         "https://merchant.example.com",
	AccessTokenPath: "/v1/oauth/token",
	SessionKeyPath:  "/v1/link/sessions",
	PaymentPath:     "/v1/payments",
}

func allEndpoints() []merchant.Endpoint {
	return []merchant.Endpoint{
		merchant.AccessTokenRequest{ClientID: "abc", ClientSecret: "xyz"},
		merchant.SessionKeyRequest{First: "Ada", Last: "Lovelace", Email: "ada@example.com", AccessToken: "tok1"},
		merchant.NewPaymentRequest("cust-1", "merch-1", 12.5, "tok1", "ref-1", "Order 1"),
	}
}

func TestDescribe(t *testing.T) {
	d, err := merchant.Describe(testRoutes, merchant.SessionKeyRequest{})
	require.NoError(t, err)

	assert.Equal(t, merchant.KindSessionKey, d.Kind)
	assert.Equal(t, "https://merchant.example.com", d.BaseURL)
	assert.Equal(t, "https://merchant.example.com/v1/link/sessions", d.URL)
	assert.Equal(t, http.MethodPost, d.Method)
	assert.Equal(t, "application/json", d.Header.Get("Content-Type"))
	assert.Equal(t, merchant.SessionKeyRequest{}, d.Params)
}

func TestDescribe_AllKindsArePOST(t *testing.T) {
	for _, ep := range allEndpoints() {
		d, err := merchant.Describe(testRoutes, ep)
		require.NoError(t, err)
		assert.Equal(t, http.MethodPost, d.Method, ep.Kind().String())
	}
}

func TestDescribe_InvalidURL(t *testing.T) {
	cases := map[string]merchant.Routes{
		"empty configuration": {},
		"no scheme":           {BaseURL: "merchant.example.com", PaymentPath: "/v1/payments"},
		"bad host":            {BaseURL: "https://merchant example.com", PaymentPath: "/v1/payments"},
	}
	for name, routes := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := merchant.Describe(routes, merchant.PaymentRequest{})
			var cfgErr *merchant.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, routes.BaseURL+routes.PaymentPath, cfgErr.URL)
		})
	}
}

func TestBuild_ContentTypeAlwaysJSON(t *testing.T) {
	for _, ep := range allEndpoints() {
		d, err := merchant.Describe(testRoutes, ep)
		require.NoError(t, err)
		d.Header.Set("Content-Type", "text/plain")
		d.Header.Add("X-Trace", "1")

		req, err := merchant.Build(d)
		require.NoError(t, err)
		assert.Equal(t, []string{"application/json"}, req.Header.Values("Content-Type"), ep.Kind().String())
		assert.Equal(t, "1", req.Header.Get("X-Trace"))
		assert.Equal(t, "no-cache", req.Header.Get("Cache-Control"))
		// the descriptor is left untouched
		assert.Equal(t, "text/plain", d.Header.Get("Content-Type"))
	}
}

func TestBuild_BodyRoundTrips(t *testing.T) {
	t.Run("access token", func(t *testing.T) {
		in := merchant.AccessTokenRequest{ClientID: "abc", ClientSecret: "xyz"}
		body := buildBody(t, in)
		var out merchant.AccessTokenRequest
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Equal(t, in, out)
		assert.JSONEq(t, `{"clientId":"abc","clientSecret":"xyz"}`, string(body))
	})
	t.Run("session key", func(t *testing.T) {
		in := merchant.SessionKeyRequest{First: "Ada", Last: "Lovelace", Email: "ada@example.com", AccessToken: "tok1"}
		body := buildBody(t, in)
		var out merchant.SessionKeyRequest
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Equal(t, in, out)
		assert.JSONEq(t, `{"first":"Ada","last":"Lovelace","email":"ada@example.com","access_token":"tok1"}`, string(body))
	})
	t.Run("payment", func(t *testing.T) {
		in := merchant.NewPaymentRequest("cust-1", "merch-1", 12.5, "tok1", "", "")
		body := buildBody(t, in)
		var out merchant.PaymentRequest
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Equal(t, in, out)
		assert.JSONEq(t, `{
			"clientReferenceId": "",
			"softDescriptor": "",
			"amount": {"currency": "USD", "value": 12.5},
			"source": {"id": "cust-1", "type": "CUSTOMER"},
			"destination": {"id": "merch-1", "type": "MERCHANT"},
			"accessToken": "tok1"
		}`, string(body))
	})
}

func TestBuild_GETHasNoBody(t *testing.T) {
	d, err := merchant.Describe(testRoutes, merchant.AccessTokenRequest{ClientID: "abc"})
	require.NoError(t, err)
	d.Method = http.MethodGet

	req, err := merchant.Build(d)
	require.NoError(t, err)
	assert.Nil(t, req.Body)
	assert.Empty(t, req.Header.Get("Cache-Control"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
}

func TestBuild_SerializationError(t *testing.T) {
	d, err := merchant.Describe(testRoutes, merchant.NewPaymentRequest("cust-1", "merch-1", math.NaN(), "tok1", "", ""))
	require.NoError(t, err)

	_, err = merchant.Build(d)
	var serErr *merchant.SerializationError
	require.ErrorAs(t, err, &serErr)
	assert.Equal(t, merchant.KindPayment, serErr.Kind)
}

func TestBuild_Idempotent(t *testing.T) {
	for _, ep := range allEndpoints() {
		d1, err := merchant.Describe(testRoutes, ep)
		require.NoError(t, err)
		d2, err := merchant.Describe(testRoutes, ep)
		require.NoError(t, err)

		r1, err := merchant.Build(d1)
		require.NoError(t, err)
		r2, err := merchant.Build(d2)
		require.NoError(t, err)
		assert.Equal(t, r1, r2)
	}
}

func buildBody(t *testing.T, ep merchant.Endpoint) []byte {
	t.Helper()
	d, err := merchant.Describe(testRoutes, ep)
	require.NoError(t, err)
	req, err := merchant.Build(d)
	require.NoError(t, err)
	require.True(t, json.Valid(req.Body))
	return req.Body
}
