package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"pidcheck/internal/adapters/httpapi"
	"pidcheck/internal/core"
	"pidcheck/internal/ctxlog"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(g *globals) *cobra.Command {
	var (
		addr    string
		metrics string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog and validation API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := g.load()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = e.cfg.HTTP.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx = ctxlog.WithLogger(ctx, e.logger)

			handler, err := newServeHandler(ctx, g, e, metrics)
			if err != nil {
				return err
			}
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", addr, err)
			}
			return serve(ctx, ln, handler, e.logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :6969)")
	cmd.Flags().StringVar(&metrics, "metrics", "prometheus", "metrics exporter (prometheus, expvar, none)")
	return cmd
}

// newServeHandler wires the service with the chosen metrics exporter.
// prometheus serves /metrics; expvar serves /debug/vars.
func newServeHandler(ctx context.Context, g *globals, e *env, metrics string) (http.Handler, error) {
	mux := http.NewServeMux()
	var opts []core.Option
	var metricsHandler http.Handler
	switch metrics {
	case "prometheus":
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		rec, err := core.NewPrometheusRecorder(reg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, core.WithMetricsRecorder(rec), core.WithReportObserver(rec))
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	case "expvar":
		rec := core.NewExpvarMetricsRecorder("")
		opts = append(opts, core.WithMetricsRecorder(rec), core.WithReportObserver(rec))
		mux.Handle("/debug/vars", expvar.Handler())
	case "none", "":
	default:
		return nil, fmt.Errorf("unknown metrics exporter %q", metrics)
	}
	svc, err := g.service(ctx, e, opts...)
	if err != nil {
		return nil, err
	}
	api := httpapi.NewHandler(svc)
	api.Logger = e.logger
	api.Metrics = metricsHandler
	mux.Handle("/", api)
	return mux, nil
}

// serve runs an HTTP server on ln until ctx is cancelled, then shuts it down.
func serve(ctx context.Context, ln net.Listener, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctxlog.WithLogger(context.Background(), logger) },
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("pidcheck listening", "addr", ln.Addr().String(), "version", version)
		errc <- srv.Serve(ln)
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("pidcheck stopped")
	return nil
}
