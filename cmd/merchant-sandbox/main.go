// cmd/merchant-sandbox/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"linkpay/internal/policy"
	"linkpay/internal/sandbox"
	"linkpay/pkg/config"
	"linkpay/pkg/db"
	"linkpay/pkg/logger"
	"linkpay/pkg/middleware"
	"linkpay/pkg/problems"
)

func main() {
	cfg := config.LoadSandbox()
	log := logger.New(cfg.Env)
	problems.SetPublicURL(cfg.PublicURL)
	ctx := context.Background()

	var store sandbox.Store
	if pool := db.MustConnect(ctx, cfg.DatabaseURL, log); pool != nil {
		if err := sandbox.EnsureSchema(ctx, pool); err != nil {
			log.Fatalw("schema", "err", err)
		}
		store = sandbox.NewPostgresStore(pool)
	} else if rdb := db.MustRedis(ctx, cfg.RedisURL, log); rdb != nil {
		store = sandbox.NewRedisStore(rdb, 24*time.Hour)
	} else {
		store = sandbox.NewMemoryStore()
	}

	tokens, err := sandbox.NewIssuer(cfg.SigningKey, cfg.TokenIssuer, cfg.TokenTTL)
	if err != nil {
		log.Fatalw("token issuer", "err", err)
	}
	var module string
	if path := os.Getenv("SANDBOX_POLICY_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			log.Fatalw("read policy", "path", path, "err", err)
		}
		module = string(b)
	}
	engine, err := policy.NewEngine(ctx, module)
	if err != nil {
		log.Fatalw("policy", "err", err)
	}

	svc := sandbox.NewService(cfg, store, tokens, engine, log, sandbox.NewMetrics(prometheus.DefaultRegisterer))

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.Tracing("merchant-sandbox"))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	sandbox.Routes(r, svc)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Infow("merchant-sandbox listening", "addr", cfg.HTTPAddr, "link_page", cfg.PublicURL+"/link")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = middleware.ShutdownTracing(shutdownCtx)
	fmt.Println("merchant-sandbox stopped")
}
