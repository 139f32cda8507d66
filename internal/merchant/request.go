package merchant

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// Request is a fully built call, owned by the transport that sends it.
type Request struct {
	Kind   Kind
	Method string
	URL    string
	Header http.Header
	Body   []byte // nil for GET
}

// Build turns a descriptor into a request. Content-Type is always JSON, even
// when the descriptor carries another value. Non-GET requests get a JSON body
// and no-cache directives.
func Build(d Descriptor) (*Request, error) {
	h := d.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Content-Type", contentTypeJSON)

	req := &Request{Kind: d.Kind, Method: d.Method, URL: d.URL, Header: h}
	if d.Method == http.MethodGet {
		return req, nil
	}
	body, err := json.Marshal(d.Params)
	if err != nil {
		return nil, &SerializationError{Kind: d.Kind, Err: err}
	}
	req.Body = body
	h.Set("Cache-Control", "no-cache")
	h.Set("Pragma", "no-cache")
	return req, nil
}

// HTTPRequest converts to a *http.Request bound to ctx.
func (r *Request) HTTPRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	hr, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, err
	}
	hr.Header = r.Header.Clone()
	return hr, nil
}
