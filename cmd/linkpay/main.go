// cmd/linkpay/main.go
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"linkpay/internal/linking"
	"linkpay/internal/merchant"
	"linkpay/internal/workflow"
	"linkpay/pkg/config"
	"linkpay/pkg/logger"
	"linkpay/pkg/middleware"
)

func main() {
	var form workflow.Form
	flag.StringVar(&form.FirstName, "first", "", "customer first name")
	flag.StringVar(&form.LastName, "last", "", "customer last name")
	flag.StringVar(&form.Email, "email", "", "customer email")
	flag.StringVar(&form.Amount, "amount", "", "amount to charge in USD")
	flag.StringVar(&form.ClientReferenceID, "ref", "", "client reference id sent with the payment")
	flag.StringVar(&form.SoftDescriptor, "descriptor", "", "soft descriptor sent with the payment")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	log := logger.New(cfg.Env)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := prompt(os.Stdin, os.Stdout, &form); err != nil {
		fmt.Fprintln(os.Stderr, "input:", err)
		os.Exit(2)
	}

	pipeline, err := merchant.NewPipeline(cfg.ErrorPath)
	if err != nil {
		log.Fatalw("error path", "expr", cfg.ErrorPath, "err", err)
	}
	traced := middleware.InitTracing("linkpay")
	client := merchant.NewClient(merchant.RoutesFrom(cfg.Merchant), merchant.Options{
		Transport: merchant.NewHTTPTransport(nil, cfg.HTTPTimeout, traced),
		Pipeline:  pipeline,
		Logger:    log,
		Metrics:   merchant.NewMetrics(prometheus.DefaultRegisterer),
	})
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, log)
	}

	orch := workflow.New(client, newLinker(cfg, log), cfg.Merchant, log)
	events, err := orch.Start(ctx, form)
	if err != nil {
		log.Fatalw("start", "err", err)
	}
	code := 0
	for ev := range events {
		if !ev.State.Terminal() {
			fmt.Printf("... %s\n", ev.State)
			continue
		}
		fmt.Printf("\n%s\n%s\n", ev.Run.Alert.Title, ev.Run.Alert.Message)
		if ev.Run.Alert.Kind == workflow.AlertFailure {
			code = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = middleware.ShutdownTracing(shutdownCtx)
	if code != 0 {
		log.Sync()
		os.Exit(code)
	}
}

func newLinker(cfg config.Config, log *zap.SugaredLogger) linking.Linker {
	if cfg.LinkCustomerID != "" {
		return linking.Static{CustomerID: cfg.LinkCustomerID}
	}
	hosts := map[config.Environment]string{config.Sandbox: cfg.LinkSandboxURL}
	if cfg.LinkProductionURL != "" {
		hosts[config.Production] = cfg.LinkProductionURL
	}
	return &linking.CallbackLinker{
		Addr:  cfg.LinkCallbackAddr,
		Hosts: hosts,
		Log:   log,
		Present: func(linkURL string) {
			fmt.Printf("\nOpen this URL in a browser to link the customer account:\n  %s\n\n", linkURL)
		},
	}
}

// prompt asks for every required form field left empty on the command line.
func prompt(in io.Reader, out io.Writer, form *workflow.Form) error {
	r := bufio.NewReader(in)
	fields := []struct {
		label string
		dst   *string
	}{
		{"First name", &form.FirstName},
		{"Last name", &form.LastName},
		{"Email", &form.Email},
		{"Amount", &form.Amount},
	}
	for _, f := range fields {
		if *f.dst != "" {
			continue
		}
		fmt.Fprintf(out, "%s: ", f.label)
		line, err := r.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return fmt.Errorf("reading %s: %w", strings.ToLower(f.label), err)
		}
		*f.dst = strings.TrimSpace(line)
	}
	return nil
}

func serveMetrics(addr string, log *zap.SugaredLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log.Infow("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Warnw("metrics server", "err", err)
	}
}
