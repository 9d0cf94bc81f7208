// Package main is the entry point for the multicall batcher.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fd1az/multicall-batcher/business/batching"
	batchingDI "github.com/fd1az/multicall-batcher/business/batching/di"
	"github.com/fd1az/multicall-batcher/internal/apm"
	"github.com/fd1az/multicall-batcher/internal/config"
	"github.com/fd1az/multicall-batcher/internal/health"
	"github.com/fd1az/multicall-batcher/internal/logger"
	"github.com/fd1az/multicall-batcher/internal/metrics"
	"github.com/fd1az/multicall-batcher/internal/monolith"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, once bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(os.Stderr, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)
	log.Info(ctx, "starting multicall batcher",
		"version", version,
		"environment", cfg.App.Environment,
		"once", once,
	)

	traceProvider, err := setupTelemetry(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := traceProvider.Stop(); err != nil {
			log.Warn(context.Background(), "trace provider shutdown failed", "error", err)
		}
	}()

	mono, err := monolith.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	modules := []monolith.Module{
		&batching.Module{},
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	batcher := batchingDI.GetBatcher(mono.Services())

	if once {
		result, err := batcher.RunOnce(ctx)
		if err != nil {
			return err
		}
		if result == nil {
			log.Info(ctx, "no batch submitted", "queued", batcher.QueueLen())
		}
		return nil
	}

	if cfg.Health.Enabled {
		healthServer := health.NewServer(cfg.Health.Port, version)
		healthServer.RegisterCheck("rpc", func(ctx context.Context) (bool, string) {
			id, err := mono.EthClient().ChainID(ctx)
			if err != nil {
				return false, err.Error()
			}
			return true, "chain " + id.String()
		})
		healthServer.RegisterCheck("queue", func(context.Context) (bool, string) {
			return true, fmt.Sprintf("%d calls queued", batcher.QueueLen())
		})

		errCh := healthServer.Start()
		go func() {
			if err, ok := <-errCh; ok && err != nil {
				log.Warn(ctx, "health server stopped", "error", err)
			}
		}()
		log.Info(ctx, "health server started", "port", cfg.Health.Port)

		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = healthServer.Stop(stopCtx)
		}()
	}

	log.Info(ctx, "all modules started, beginning batch cycles", "interval", cfg.Batching.Interval.String())

	if err := batcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info(context.Background(), "shutting down")
	return nil
}

// setupTelemetry starts tracing and metrics when enabled. The returned
// provider is never nil.
func setupTelemetry(ctx context.Context, cfg *config.Config, log *logger.Logger) (apm.TraceProvider, error) {
	if !cfg.Telemetry.Enabled {
		return apm.NewTraceProvider(ctx, apm.Config{Provider: apm.EmptyProvider})
	}

	tp, err := apm.NewTraceProvider(ctx, apm.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Provider:    apm.Provider(cfg.Telemetry.TraceProvider),
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Headers:     cfg.Telemetry.OTLPHeaders,
		Writer:      os.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}
	log.Info(ctx, "tracing initialized", "provider", cfg.Telemetry.TraceProvider, "endpoint", cfg.Telemetry.OTLPEndpoint)

	mp, err := metrics.NewProvider(ctx, metrics.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		// prometheus is always served; OTLP push only when a collector is configured
		OTLPEndpoint: otlpMetricsEndpoint(cfg),
		OTLPHeaders:  apm.ParseHeaders(cfg.Telemetry.OTLPHeaders),
	})
	if err != nil {
		_ = tp.Stop()
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	go func() {
		if err := mp.Serve(ctx, cfg.Telemetry.PrometheusPort); err != nil {
			log.Warn(ctx, "prometheus metrics server stopped", "error", err)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mp.Shutdown(shutdownCtx)
	}()
	log.Info(ctx, "prometheus metrics server started", "port", cfg.Telemetry.PrometheusPort)

	return tp, nil
}

func otlpMetricsEndpoint(cfg *config.Config) string {
	if cfg.Telemetry.TraceProvider != string(apm.OTLPGRPCProvider) {
		return ""
	}
	return cfg.Telemetry.OTLPEndpoint
}
