package linking

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"linkpay/pkg/config"
)

// CallbackLinker hands the session key to the hosted linking page and waits for
// the page to redirect back to a local callback server.
type CallbackLinker struct {
	Addr  string                        // callback listen address, port 0 picks one
	Hosts map[config.Environment]string // linking page per environment
	// Present shows the linking URL to the user. It must not block.
	Present func(linkURL string)
	Log     *zap.SugaredLogger
}

type linkResult struct {
	customerID string
	err        error
}

func (c *CallbackLinker) Link(ctx context.Context, sessionKey string, env config.Environment) (string, error) {
	host := c.Hosts[env]
	if host == "" {
		return "", &Error{Message: fmt.Sprintf("no account linking host configured for %s", env)}
	}
	l, err := net.Listen("tcp", c.Addr)
	if err != nil {
		return "", fmt.Errorf("listening for link callback: %w", err)
	}

	results := make(chan linkResult, 1)
	var once sync.Once
	deliver := func(r linkResult) { once.Do(func() { results <- r }) }

	r := chi.NewRouter()
	r.Get("/complete", func(w http.ResponseWriter, req *http.Request) {
		deliver(linkResult{customerID: req.URL.Query().Get("customer_id")})
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("Account linked. You can close this window."))
	})
	r.Get("/cancel", func(w http.ResponseWriter, req *http.Request) {
		msg := req.URL.Query().Get("error")
		if msg == "" {
			deliver(linkResult{err: ErrCanceled})
		} else {
			deliver(linkResult{err: &Error{Message: msg}})
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("Account linking canceled."))
	})

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			deliver(linkResult{err: fmt.Errorf("link callback server: %w", err)})
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	linkURL, err := buildLinkURL(host, sessionKey, env, "http://"+l.Addr().String()+"/complete")
	if err != nil {
		return "", err
	}
	if c.Log != nil {
		c.Log.Infow("awaiting account linking", "environment", env, "callback", l.Addr().String())
	}
	if c.Present != nil {
		c.Present(linkURL)
	}

	select {
	case res := <-results:
		return res.customerID, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func buildLinkURL(host, sessionKey string, env config.Environment, redirect string) (string, error) {
	u, err := url.Parse(host)
	if err != nil {
		return "", fmt.Errorf("parse linking host: %w", err)
	}
	q := u.Query()
	q.Set("sessionKey", sessionKey)
	q.Set("environment", string(env))
	q.Set("redirect_uri", redirect)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
