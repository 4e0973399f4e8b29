package main

import (
	"context"
	"encoding/hex"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/unfurl/internal/cache"
	"github.com/edgecomet/unfurl/internal/common/logger"
	"github.com/edgecomet/unfurl/internal/common/metricsserver"
	"github.com/edgecomet/unfurl/internal/config"
	"github.com/edgecomet/unfurl/internal/extractor"
	"github.com/edgecomet/unfurl/internal/extractor/sites"
	"github.com/edgecomet/unfurl/internal/metrics"
	"github.com/edgecomet/unfurl/internal/server"
)

// drainTimeout is how long in-flight requests get to finish after the
// shutdown signal.
const drainTimeout = time.Second

func main() {
	log := logger.FromEnv()
	defer log.Sync()

	configPath := envOr("EMBED_CONFIG_PATH", "./config.toml")
	configData, err := os.ReadFile(configPath)
	if err != nil {
		log.Fatal("reading config file", zap.String("path", configPath), zap.Error(err))
	}
	cfg, err := config.Parse(configData)
	if err != nil {
		log.Fatal("parsing config file", zap.String("path", configPath), zap.Error(err))
	}

	var signingKey []byte
	if cfg.Signed {
		raw := os.Getenv("CAMO_SIGNING_KEY")
		if raw == "" {
			log.Fatal("CAMO_SIGNING_KEY not found")
		}
		if signingKey, err = hex.DecodeString(raw); err != nil {
			log.Fatal("CAMO_SIGNING_KEY is not valid hex", zap.Error(err))
		}
	}

	collector := metrics.New("unfurl", log)

	tiered, err := cache.NewTiered(cfg.CacheTiers, log, collector)
	if err != nil {
		log.Fatal("opening cache tiers", zap.Error(err))
	}
	embedCache, err := cache.New(cfg.CacheSize, tiered, log, collector)
	if err != nil {
		log.Fatal("building cache", zap.Error(err))
	}

	state := extractor.NewState(cfg, signingKey, log, collector)

	chain, err := sites.All(cfg)
	if err != nil {
		log.Fatal("building extractors", zap.Error(err))
	}
	registry := extractor.NewRegistry(chain...)

	setupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := registry.Setup(setupCtx, state); err != nil {
		log.Fatal("extractor setup failed", zap.Error(err))
	}
	cancel()
	log.Info("extractors ready", zap.Int("count", registry.Len()))

	metricsServer := metricsserver.Start(cfg.MetricsAddress, collector, log)

	addr := envOr("EMBED_BIND_ADDRESS", "0.0.0.0:8050")
	httpServer := &fasthttp.Server{
		Handler:      server.New(embedCache, registry, state, log, collector).Handler(),
		Name:         "unfurl",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		TCPKeepalive: true,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("address", addr))
		errCh <- httpServer.ListenAndServe(addr)
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-signals:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server failed", zap.Error(err))
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	if err := httpServer.ShutdownWithContext(drainCtx); err != nil {
		log.Warn("drain incomplete", zap.Error(err))
	}
	cancel()

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		_ = metricsServer.ShutdownWithContext(shutdownCtx)
		cancel()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	embedCache.Shutdown(shutdownCtx)
	cancel()

	log.Info("goodbye")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
