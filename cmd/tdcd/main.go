package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"tdcchain/config"
	"tdcchain/core"
	"tdcchain/core/events"
	"tdcchain/core/genesis"
	"tdcchain/gateway/middleware"
	"tdcchain/gateway/routes"
	"tdcchain/observability"
	"tdcchain/observability/logging"
	telemetry "tdcchain/observability/otel"
	"tdcchain/storage"
	"tdcchain/storage/journal"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		cfgPath     string
		genesisPath string
	)
	flag.StringVar(&cfgPath, "config", "./config.toml", "path to the node configuration file")
	flag.StringVar(&genesisPath, "genesis", "", "override the genesis document named in the config")
	flag.Parse()

	if err := run(cfgPath, genesisPath); err != nil {
		fmt.Fprintf(os.Stderr, "tdcd: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath, genesisPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if strings.TrimSpace(genesisPath) != "" {
		cfg.GenesisFile = genesisPath
	}

	logger, logCloser := logging.SetupWithOptions("tdcd", cfg.Environment, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "tdcd",
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("initialise telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	db, err := storage.Open(cfg.StorageBackend, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()

	feed := events.NewFeed()
	sinks := events.Multi{feed, observability.Events()}
	var history routes.History
	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Driver, cfg.Journal.DSN, logger)
		if err != nil {
			return fmt.Errorf("open event journal: %w", err)
		}
		defer j.Close()
		sinks = append(sinks, j)
		history = j
	}

	runtime, err := core.NewRuntime(db,
		core.WithEmitter(sinks),
		core.WithLogger(logger),
		core.WithAllowMigrate(cfg.AllowMigrate),
	)
	if err != nil {
		return fmt.Errorf("open ledger runtime: %w", err)
	}

	if path := strings.TrimSpace(cfg.GenesisFile); path != "" {
		spec, err := genesis.LoadGenesisSpec(path)
		if err != nil {
			return fmt.Errorf("load genesis: %w", err)
		}
		applied, err := genesis.Apply(ctx, runtime, spec)
		if err != nil {
			return fmt.Errorf("apply genesis: %w", err)
		}
		logger.Info("genesis processed", "path", path, "applied", applied, "ledgers", len(spec.Ledgers))
	}

	handler, err := buildHandler(cfg, runtime, history, feed, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "address", listener.Addr().String())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
	return nil
}

func buildHandler(cfg *config.Config, runtime *core.Runtime, history routes.History, feed *events.Feed, logger *slog.Logger) (http.Handler, error) {
	authCfg := middleware.AuthConfig{
		Enabled:             cfg.Auth.Enabled,
		Issuer:              cfg.Auth.Issuer,
		Audience:            cfg.Auth.Audience,
		AllowAnonymousReads: cfg.Auth.AllowAnonymousReads,
	}
	if cfg.Auth.Enabled {
		secret, err := cfg.JWTSecret()
		if err != nil {
			return nil, err
		}
		authCfg.HMACSecret = string(secret)
		logger.Info("authentication enabled",
			logging.MaskField("issuer", authCfg.Issuer),
			logging.MaskField("audience", authCfg.Audience),
			logging.MaskField("secret", authCfg.HMACSecret))
	} else {
		logger.Warn("authentication disabled; callers are taken from the " + middleware.DevCallerHeader + " header")
	}

	limits := map[string]middleware.RateLimit{}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limits[routes.RateLimitWrite] = middleware.RateLimit{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}
	}

	router, err := routes.New(routes.Config{
		Runtime:       runtime,
		History:       history,
		Feed:          feed,
		Authenticator: middleware.NewAuthenticator(authCfg, logger),
		RateLimiter:   middleware.NewRateLimiter(limits, logger),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{
			ServiceName: "tdc-gateway",
			LogRequests: strings.EqualFold(cfg.Log.Level, "debug"),
			Enabled:     true,
		}, logger),
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("configure routes: %w", err)
	}
	if cfg.Telemetry.Traces {
		return otelhttp.NewHandler(router, "tdc-gateway"), nil
	}
	return router, nil
}
