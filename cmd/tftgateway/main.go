// Command tftgateway serves the TFT statistics query API through the
// request-optimization layer: complexity gating, response caching and
// per-request batch loading over a dataset snapshot.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/s0mar1/tftai.gg-sub000/batch"
	"github.com/s0mar1/tftai.gg-sub000/complexity"
	"github.com/s0mar1/tftai.gg-sub000/config"
	"github.com/s0mar1/tftai.gg-sub000/errors"
	"github.com/s0mar1/tftai.gg-sub000/gateway"
	"github.com/s0mar1/tftai.gg-sub000/invalidation"
	"github.com/s0mar1/tftai.gg-sub000/metric"
	"github.com/s0mar1/tftai.gg-sub000/respcache"
	"github.com/s0mar1/tftai.gg-sub000/store"
)

const appName = "tftgateway"

// Version is set by the build.
var Version = "dev"

func main() {
	cli := parseFlags()

	if cli.ShowHelp {
		flag.Usage()
		return
	}
	if cli.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		return
	}

	cfg, err := loadConfig(cli)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel, cli.LogFormat)
	slog.SetDefault(logger)

	if cli.Validate {
		logger.Info("configuration is valid", "path", cli.ConfigPath)
		return
	}

	if err := run(cli, cfg, logger); err != nil {
		logger.Error("gateway failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig(cli *CLIConfig) (*config.Config, error) {
	cfg := config.Default()
	if cli.ConfigPath != "" {
		loaded, err := config.Load(cli.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func run(cli *CLIConfig, cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, closeStore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := metric.NewMetricsRegistry()

	cache, err := respcache.NewCache(kv,
		respcache.Policy{
			BaseTTL:       cfg.Cache.BaseTTL(),
			MaxTTL:        cfg.Cache.MaxTTL(),
			TagTTL:        cfg.Cache.TagTTL(),
			CapMultiplier: cfg.Cache.CapMultiplier,
		},
		respcache.WithLogger(logger),
		respcache.WithMetrics(registry),
		respcache.WithTopLevelTags(
			invalidation.TagChampionData,
			invalidation.TagItemData,
			invalidation.TagTraitData,
			invalidation.TagMatchData,
			invalidation.TagSummonerData,
			invalidation.TagDeckData,
		),
	)
	if err != nil {
		return err
	}

	table := complexity.NewWeightTable(
		cfg.Weights.DefaultWeight, cfg.Weights.ListMultiplier, cfg.Weights.Fields)
	// Sentinel just past the gate so unanalyzable queries are rejected.
	analyzer := complexity.NewAnalyzer(table, cfg.Limits.MaxComplexity+1, logger)

	fetcher, err := newFileFetcher(cli.DataPath)
	if err != nil {
		return err
	}

	gwCfg := gateway.Config{
		BindAddress:        cfg.Server.BindAddress,
		Path:               cfg.Server.Path,
		EnablePlayground:   *cfg.Server.EnablePlayground,
		EnableCORS:         *cfg.Server.EnableCORS,
		CORSOrigins:        cfg.Server.CORSOrigins,
		Timeout:            cfg.Server.Timeout(),
		MaxComplexity:      cfg.Limits.MaxComplexity,
		MaxDepth:           cfg.Limits.MaxDepth,
		PrincipalScopedOps: cfg.Cache.PrincipalScopedOps,
		Batch: batch.Options{
			MaxBatchSize: cfg.Batch.MaxBatchSize,
			Wait:         cfg.Batch.Wait(),
		},
	}

	orch, err := gateway.NewOrchestrator(gwCfg, analyzer, cache, fetcher, logger,
		gateway.WithMetrics(registry.Metrics),
		gateway.WithTelemetry(func(ev gateway.Event) {
			logger.Debug("request completed",
				"operation", ev.Operation, "hit", ev.Hit,
				"complexity", ev.Complexity, "depth", ev.Depth,
				"duration_ms", ev.DurationMs)
		}),
	)
	if err != nil {
		return err
	}

	manager, err := invalidation.NewManager(cache,
		invalidation.WithLogger(logger),
		invalidation.WithMetrics(registry))
	if err != nil {
		return err
	}

	admin := newAdminServer(cfg.Server.MetricsAddress, registry, manager, logger)
	go func() {
		logger.Info("admin server starting", "address", admin.Addr)
		if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = admin.Shutdown(shutdownCtx)
	}()

	srv, err := gateway.NewServer(gwCfg, orch, logger)
	if err != nil {
		return err
	}
	if err := srv.Setup(); err != nil {
		return err
	}

	ready := make(chan struct{})
	return srv.Start(ctx, ready)
}

// buildStore picks the cache backend: JetStream KV when NATS is
// configured, in-memory otherwise.
func buildStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.KV, func(), error) {
	if cfg.NATS.URL == "" {
		logger.Info("using in-memory cache store")
		mem := store.NewMemory()
		return mem, func() { _ = mem.Close() }, nil
	}

	logger.Info("connecting to NATS", "url", cfg.NATS.URL, "bucket", cfg.NATS.Bucket)

	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name(appName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, errors.WrapTransient(err, "main", "buildStore", "NATS connect")
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, errors.WrapFatal(err, "main", "buildStore", "JetStream init")
	}

	bucket, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.NATS.Bucket,
		Description: "TFT gateway response cache",
		History:     1,
	})
	if err != nil {
		nc.Close()
		return nil, nil, errors.WrapTransient(err, "main", "buildStore", "KV bucket setup")
	}

	return store.NewNATS(bucket, logger), func() { nc.Close() }, nil
}
