// Spins up a fig cache behind an admin port compatible w/ the Redis protocol, plus a Prometheus metrics endpoint.

package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nobletooth/fig/pkg/cache"
	"github.com/nobletooth/fig/pkg/config"
	"github.com/nobletooth/fig/pkg/persist"
	"github.com/nobletooth/fig/pkg/port"
	"github.com/nobletooth/fig/pkg/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	printVersion   = flag.Bool("print_version", false, "Print the version and exit.")
	metricsAddress = flag.String("metrics_address", ":9464", "The ip:port serving /metrics; empty disables it.")
)

// serveMetrics exposes the default prometheus registry until `ctx` is cancelled.
func serveMetrics(ctx context.Context) {
	if *metricsAddress == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: *metricsAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down metrics server.", "error", err)
		}
	}()
	go func() {
		slog.Info("Serving metrics.", "address", *metricsAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server stopped.", "error", err)
		}
	}()
}

func main() {
	config.InitFlags()
	utils.InitLogging()

	if *printVersion {
		slog.Info("Fig build info.", "version", utils.Version, "commit", utils.Commit, "build", utils.BuildTime)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slots, err := persist.OpenFromFlags(ctx)
	if err != nil {
		slog.Error("Failed to open durable slot store.", "error", err)
		os.Exit(1)
	}
	if closer, ok := slots.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				slog.Warn("Failed to close durable slot store.", "error", err)
			}
		}()
	}
	store, err := cache.NewFromFlags[string](ctx, slots)
	if err != nil {
		slog.Error("Failed to create cache.", "error", err)
		os.Exit(1)
	}

	serveMetrics(ctx)
	if err := port.RunRedisServer(ctx, store); err != nil {
		slog.Error("Fig server stopped.", "error", err)
		return
	}
	slog.Info("Fig server stopped.")
}
