package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geoticket/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the Prometheus metrics endpoint",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if !cfg.Metrics.Enabled {
			return eris.New("serve: metrics.enabled is false in config")
		}

		collector := metrics.NewCollector()

		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})

		return startServer(ctx, mux, cfg.Metrics.Addr)
	},
}

// startServer runs an HTTP server with graceful shutdown on ctx
// cancellation, the same lifecycle as the teacher's cmd.startServer.
func startServer(ctx context.Context, handler http.Handler, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down metrics server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting metrics server", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "serve: listen")
	}
	return nil
}
