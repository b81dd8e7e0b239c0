package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dontdude/goconv/internal/api"
	"github.com/dontdude/goconv/internal/bridge"
	"github.com/dontdude/goconv/internal/config"
	"github.com/dontdude/goconv/internal/platform/provider"
	"github.com/dontdude/goconv/internal/platform/store"
	"github.com/dontdude/goconv/internal/platform/web"
	"github.com/dontdude/goconv/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:           "goconv-server",
		Short:         "File conversion service with real-time completion notices",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				slog.Error("Failed to load config", "error", err)
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, cfg); err != nil {
				slog.Error("Server failed", "error", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "path to a config file (yaml, toml or json)")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	// 1. Initialize logger
	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// 2. Open the artifact store
	artifacts, err := store.Open(store.Options{
		Driver:       cfg.StorageDriver,
		DatabasePath: cfg.DatabasePath,
		RedisAddr:    cfg.RedisAddr,
	})
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}
	defer artifacts.Close()

	// 3. Provider client and submission pool
	cloud := provider.NewCloudConvert(cfg.ProviderURL, cfg.APIKey, cfg.ProviderTimeout)
	pool := worker.NewPool(cfg.SubmitWorkers, cloud)
	pool.Start()
	defer pool.Stop()

	// 4. Correlation bridge
	b := bridge.New(provider.NewHTTPFetcher(cfg.ProviderTimeout, cfg.MaxFetchBytes), artifacts, bridge.SessionConfig{
		HandshakeTimeout: cfg.HandshakeTimeout,
		PingInterval:     cfg.PingInterval,
		SinkBuffer:       cfg.SinkBuffer,
	})

	// 5. Rate limiter for submissions
	var limiter *web.RateLimiter
	if cfg.RateLimit > 0 {
		limiter = web.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	}

	srv := &http.Server{
		Addr: cfg.Address,
		Handler: api.NewServer(b, pool, artifacts, api.Options{
			MaxUploadBytes: cfg.MaxUploadBytes,
			WebhookSecret:  cfg.WebhookSecret,
			RateLimiter:    limiter,
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("API server starting", "address", cfg.Address, "storage", cfg.StorageDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		b.Jobs.StartSweepRoutine(ctx, cfg.SweepInterval, cfg.PendingTTL)
		return nil
	})

	if limiter != nil {
		g.Go(func() error {
			limiter.StartCleanup(ctx)
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Shutdown does not wait for hijacked sockets; their sessions end when the process exits.
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
