package sandbox

import (
	"encoding/json"
	"errors"
	"html/template"
	"net"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"linkpay/internal/merchant"
	"linkpay/pkg/middleware"
	"linkpay/pkg/openapi"
	"linkpay/pkg/problems"
)

// Routes mounts the sandbox endpoints on r.
func Routes(r chi.Router, svc *Service) {
	cfg := svc.cfg
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/.well-known/openapi.json", apiDoc(svc).ServeHandler("merchant-sandbox", "v1"))

	r.Post(cfg.AccessTokenPath, func(w http.ResponseWriter, req *http.Request) {
		var body merchant.AccessTokenRequest
		if !decode(w, req, &body) {
			return
		}
		tok, err := svc.IssueToken(req.Context(), body)
		if err != nil {
			svc.writeError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"accessToken": tok})
	})
	r.Post(cfg.SessionKeyPath, func(w http.ResponseWriter, req *http.Request) {
		var body merchant.SessionKeyRequest
		if !decode(w, req, &body) {
			return
		}
		key, err := svc.CreateSession(req.Context(), body)
		if err != nil {
			svc.writeError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, merchant.SessionKeyResponse{SessionKey: &key})
	})
	r.Post(cfg.PaymentPath, func(w http.ResponseWriter, req *http.Request) {
		var body merchant.PaymentRequest
		if !decode(w, req, &body) {
			return
		}
		p, err := svc.Pay(req.Context(), body)
		if err != nil {
			svc.writeError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, merchant.PaymentResponse{Parsed: &p})
	})

	r.Get("/link", svc.linkPage)

	r.Group(func(pr chi.Router) {
		pr.Use(middleware.BearerAuth(svc.tokens.Verify))
		pr.With(middleware.RequireScope(scopeRead)).Get(cfg.PaymentPath+"/{id}", func(w http.ResponseWriter, req *http.Request) {
			rec, err := svc.Payment(req.Context(), middleware.ActorSub(req.Context()), chi.URLParam(req, "id"))
			if err != nil {
				svc.writeError(w, req, err)
				return
			}
			writeJSON(w, http.StatusOK, rec)
		})
	})
}

var linkTmpl = template.Must(template.New("link").Parse(`<!doctype html>
<html><head><title>Link your account</title></head>
<body>
<h1>Link your account</h1>
<p>Environment: {{.Environment}}</p>
<p><a href="{{.Approve}}">Link account</a> &middot; <a href="{{.Cancel}}">Cancel</a></p>
</body></html>
`))

// linkPage stands in for the hosted account-linking page. Without approve=1 it
// renders a confirmation page; with it, the session is linked and the browser
// is sent back to redirect_uri with the new customer_id.
func (s *Service) linkPage(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	redirect, err := callbackURL(q.Get("redirect_uri"))
	if err != nil {
		problems.Write(w, http.StatusBadRequest, "invalid-redirect", err.Error())
		return
	}
	sessionKey := q.Get("sessionKey")

	if q.Get("approve") != "1" {
		approve := *req.URL
		aq := approve.Query()
		aq.Set("approve", "1")
		approve.RawQuery = aq.Encode()

		cancel := *redirect
		cancel.Path = "/cancel"
		cq := url.Values{}
		cq.Set("error", "Account linking was canceled")
		cancel.RawQuery = cq.Encode()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = linkTmpl.Execute(w, map[string]string{
			"Environment": q.Get("environment"),
			"Approve":     approve.String(),
			"Cancel":      cancel.String(),
		})
		return
	}

	c, err := s.Link(req.Context(), sessionKey)
	if err != nil {
		var se *Error
		if !errors.As(err, &se) {
			s.log.Errorw("link failed", "err", err)
		}
		back := *redirect
		back.Path = "/cancel"
		bq := url.Values{}
		bq.Set("error", errorMessage(err))
		back.RawQuery = bq.Encode()
		http.Redirect(w, req, back.String(), http.StatusFound)
		return
	}
	bq := redirect.Query()
	bq.Set("customer_id", c.ID)
	redirect.RawQuery = bq.Encode()
	http.Redirect(w, req, redirect.String(), http.StatusFound)
}

var errRedirect = errors.New("redirect_uri must be an http URL on a loopback host")

// callbackURL only accepts loopback http callbacks so the page cannot be used
// as an open redirect.
func callbackURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "http" {
		return nil, errRedirect
	}
	host := u.Hostname()
	if host == "localhost" {
		return u, nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return u, nil
	}
	return nil, errRedirect
}

func apiDoc(svc *Service) *openapi.Registry {
	cfg := svc.cfg
	ok := map[string]any{"200": map[string]any{"description": "OK"}}
	reg := openapi.NewRegistry()
	reg.Register(openapi.Operation{
		Method: "POST", Path: cfg.AccessTokenPath, Summary: "Exchange client credentials for an access token",
		Tags: []string{"auth"}, Responses: ok,
		RequestBody: openapi.JSONBody(map[string]any{"type": "object", "required": []string{"clientId", "clientSecret"}}),
	})
	reg.Register(openapi.Operation{
		Method: "POST", Path: cfg.SessionKeyPath, Summary: "Create an account linking session",
		Tags: []string{"link"}, Responses: ok,
		RequestBody: openapi.JSONBody(map[string]any{"type": "object", "required": []string{"first", "last", "email", "access_token"}}),
	})
	reg.Register(openapi.Operation{
		Method: "POST", Path: cfg.PaymentPath, Summary: "Charge a linked customer",
		Tags: []string{"payments"}, Responses: ok,
		RequestBody: openapi.JSONBody(map[string]any{"type": "object", "required": []string{"amount", "source", "destination", "accessToken"}}),
	})
	reg.Register(openapi.Operation{
		Method: "GET", Path: cfg.PaymentPath + "/{id}", Summary: "Look up a payment",
		Tags: []string{"payments"}, Scopes: []string{scopeRead}, Responses: ok,
	})
	reg.Register(openapi.Operation{
		Method: "GET", Path: "/link", Summary: "Hosted account linking page",
		Tags: []string{"link"}, Responses: map[string]any{"302": map[string]any{"description": "Redirect to redirect_uri"}},
	})
	return reg
}

func decode(w http.ResponseWriter, req *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, 1<<20)).Decode(v); err != nil {
		problems.Write(w, http.StatusBadRequest, "malformed-body", "malformed request body")
		return false
	}
	return true
}

func (s *Service) writeError(w http.ResponseWriter, req *http.Request, err error) {
	var se *Error
	if errors.As(err, &se) {
		problems.Write(w, se.Status, se.Slug, se.Message)
		return
	}
	s.log.Errorw("request failed", "path", req.URL.Path, "reqid", middleware.RequestIDFrom(req.Context()), "err", err)
	problems.Write(w, http.StatusInternalServerError, "internal", "internal error")
}

func errorMessage(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Message
	}
	return "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
