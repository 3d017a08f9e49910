// Package main provides the HTTP ingress server for spider notifications.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/spidersync/internal/app"
	"github.com/raphaelgruber/spidersync/internal/config"
	"github.com/raphaelgruber/spidersync/internal/server"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (default $SPIDERSYNC_CONFIG)")
	wipeLedger := flag.Bool("wipe", false, "wipe the run ledger on startup (testing only)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.SlogLevel())
	defer closeLog()
	slog.SetDefault(logger)

	slog.Info("starting spidersync-server", "port", cfg.Port)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		slog.Error("failed to initialize pipeline", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			slog.Error("failed to close ledger", "error", err)
		}
	}()

	if *wipeLedger || os.Getenv("SPIDERSYNC_WIPE_LEDGER") == "true" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := a.WipeLedger(ctx)
		cancel()
		if err != nil {
			slog.Error("failed to wipe ledger", "error", err)
			os.Exit(1)
		}
	}

	srv := server.New(a.Processor, a.Processor.Runs(), a.Metrics, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute, // notifications may be up to 100 MiB
		IdleTimeout:       120 * time.Second,
		// No WriteTimeout: the response is sent after the whole sync run.
	}

	go func() {
		slog.Info("ingress endpoint available", "url", fmt.Sprintf("http://localhost:%s/", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	// Running syncs get a grace period to finish their current wave.
	ctx, cancel = context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
