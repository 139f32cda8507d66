package merchant

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Client issues the three merchant backend calls. Calls are independent; each
// owns its request and response values.
type Client struct {
	routes    Routes
	transport Transport
	pipeline  *Pipeline
	log       *zap.SugaredLogger
	metrics   *Metrics
}

type Options struct {
	Transport Transport // defaults to an HTTPTransport over a fresh http.Client
	Pipeline  *Pipeline // defaults to DefaultPipeline
	Logger    *zap.SugaredLogger
	Metrics   *Metrics
}

func NewClient(routes Routes, opts Options) *Client {
	c := &Client{routes: routes, transport: opts.Transport, pipeline: opts.Pipeline, log: opts.Logger, metrics: opts.Metrics}
	if c.transport == nil {
		c.transport = NewHTTPTransport(nil, 0, false)
	}
	if c.pipeline == nil {
		c.pipeline = DefaultPipeline()
	}
	if c.log == nil {
		c.log = zap.NewNop().Sugar()
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	return c
}

// AccessToken exchanges client credentials for an access token.
func (c *Client) AccessToken(ctx context.Context, clientID, clientSecret string) (AccessToken, error) {
	res, err := call[AccessTokenResponse](ctx, c, AccessTokenRequest{ClientID: clientID, ClientSecret: clientSecret})
	if err != nil || res.AccessToken == nil {
		return AccessToken{}, err
	}
	return *res.AccessToken, nil
}

// SessionKey creates a linking session for the customer.
func (c *Client) SessionKey(ctx context.Context, req SessionKeyRequest) (SessionKey, error) {
	res, err := call[SessionKeyResponse](ctx, c, req)
	if err != nil || res.SessionKey == nil {
		return SessionKey{}, err
	}
	return *res.SessionKey, nil
}

// Pay submits a payment from the linked customer to the merchant.
func (c *Client) Pay(ctx context.Context, req PaymentRequest) (Payment, error) {
	res, err := call[PaymentResponse](ctx, c, req)
	if err != nil || res.Parsed == nil {
		return Payment{}, err
	}
	return *res.Parsed, nil
}

func call[T any](ctx context.Context, c *Client, ep Endpoint) (T, error) {
	start := time.Now()
	kind := ep.Kind().String()
	out, err := roundTrip[T](ctx, c, ep)
	c.metrics.requests.WithLabelValues(kind, outcome(err)).Inc()
	c.metrics.latency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		c.log.Warnw("merchant call failed", "endpoint", kind, "outcome", outcome(err), "err", err)
	} else {
		c.log.Debugw("merchant call ok", "endpoint", kind, "duration_ms", time.Since(start).Milliseconds())
	}
	return out, err
}

func roundTrip[T any](ctx context.Context, c *Client, ep Endpoint) (T, error) {
	var zero T
	d, err := Describe(c.routes, ep)
	if err != nil {
		return zero, err
	}
	req, err := Build(d)
	if err != nil {
		return zero, err
	}
	raw := c.transport.RoundTrip(ctx, req)
	return Decode[T](c.pipeline, raw)
}
