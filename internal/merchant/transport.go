package merchant

import (
	"context"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Raw is the unclassified outcome of one exchange. Err is set for transport
// failures; otherwise Status and Body describe the response.
type Raw struct {
	Status int
	Body   []byte
	Err    error
}

// Transport performs exactly one exchange per call and never retries.
type Transport interface {
	RoundTrip(ctx context.Context, req *Request) Raw
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *Request) Raw

func (f TransportFunc) RoundTrip(ctx context.Context, req *Request) Raw { return f(ctx, req) }

type HTTPTransport struct {
	HTTP *http.Client
}

// NewHTTPTransport wraps a copy of hc, or a fresh client when nil; hc itself is
// never modified. A zero timeout keeps the client's default. When traced is
// true the round tripper is instrumented with otelhttp.
func NewHTTPTransport(hc *http.Client, timeout time.Duration, traced bool) *HTTPTransport {
	if hc == nil {
		hc = &http.Client{}
	} else {
		c := *hc
		hc = &c
	}
	if timeout > 0 {
		hc.Timeout = timeout
	}
	if traced {
		base := hc.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		hc.Transport = otelhttp.NewTransport(base)
	}
	return &HTTPTransport{HTTP: hc}
}

func (t *HTTPTransport) RoundTrip(ctx context.Context, req *Request) Raw {
	hr, err := req.HTTPRequest(ctx)
	if err != nil {
		return Raw{Err: err}
	}
	resp, err := t.HTTP.Do(hr)
	if err != nil {
		return Raw{Err: err}
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return Raw{Err: err}
	}
	return Raw{Status: resp.StatusCode, Body: b}
}
