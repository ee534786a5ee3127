// Command server runs the pubgate object publisher.
//
// Configuration is read from a YAML file (-config, PUBGATE_CONFIG,
// ./config.yaml or /etc/pubgate/config.yaml) with PUBGATE_* environment
// overrides. See pkg/config for the full list.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rhuss/pubgate/pkg/auth"
	"github.com/rhuss/pubgate/pkg/config"
	"github.com/rhuss/pubgate/pkg/content"
	"github.com/rhuss/pubgate/pkg/debug"
	"github.com/rhuss/pubgate/pkg/publisher"
	transporthttp "github.com/rhuss/pubgate/pkg/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.Storage.SeedFile != "" {
		n, err := seedStore(ctx, store, cfg.Storage.SeedFile)
		if err != nil {
			return err
		}
		logger.Info("store seeded", "file", cfg.Storage.SeedFile, "objects", n)
	}

	chain, err := buildAuthChain(cfg.Auth)
	if err != nil {
		return err
	}
	var limiter auth.RateLimiter
	if cfg.Auth.RateLimit.Enabled {
		limiter = buildRateLimiter(cfg.Auth.RateLimit)
	}

	bypass := []string{"/healthz", "/readyz"}
	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(":" + strconv.Itoa(cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(logger),
		transporthttp.WithHealthChecker(store),
	}
	if cfg.Observability.Metrics.Enabled {
		opts = append(opts, transporthttp.WithMetricsPath(cfg.Observability.Metrics.Path))
		bypass = append(bypass, cfg.Observability.Metrics.Path)
	} else {
		opts = append(opts, transporthttp.WithMetricsPath(""))
	}
	opts = append(opts, transporthttp.WithHTTPMiddleware(auth.Middleware(chain, limiter, bypass)))

	pub := content.New(store, content.WithLogger(logger))
	p := publisher.New(
		publisher.WithMaxRetries(cfg.Publisher.MaxRetries),
		publisher.WithLogger(logger),
	)

	srv := transporthttp.NewServer(pub, p, opts...)

	logger.Info("pubgate configured",
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Type,
		"auth", cfg.Auth.Type,
		"anonymous", cfg.Auth.Anonymous,
		"max_retries", cfg.Publisher.MaxRetries,
	)

	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}
