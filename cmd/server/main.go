package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomszi/quotefeed/internal/cache"
	"github.com/tomszi/quotefeed/internal/config"
	"github.com/tomszi/quotefeed/internal/evolve"
	"github.com/tomszi/quotefeed/internal/provider"
	"github.com/tomszi/quotefeed/internal/registry"
	"github.com/tomszi/quotefeed/internal/router"
	"github.com/tomszi/quotefeed/internal/server"
	"github.com/tomszi/quotefeed/internal/snapshot"
	"github.com/tomszi/quotefeed/internal/store"
	"github.com/tomszi/quotefeed/internal/stream"
	"github.com/tomszi/quotefeed/internal/syncer"
	"github.com/tomszi/quotefeed/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/server.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting quotefeed",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instruments", len(cfg.Instruments),
		"port", cfg.Server.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	reg, err := registry.New(cfg.Instruments)
	if err != nil {
		logger.Error("failed to build instrument registry", "error", err)
		os.Exit(1)
	}

	// Optional backends. A missing host or broker list means run without.
	var (
		tickStore *store.TickStore
		latest    *store.LatestCache
		publisher *syncer.KafkaPublisher
		dbPinger  server.Pinger
		rdPinger  server.Pinger
	)

	if cfg.Database.Host != "" {
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		tickStore = store.NewTickStore(pool, logger)
		dbPinger = pool
		logger.Info("database connected", "host", cfg.Database.Host)
	} else {
		logger.Info("no database configured, running without tick archive")
	}

	if cfg.Redis.Host != "" {
		lc, err := store.NewLatestCache(ctx, cfg.Redis)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer lc.Close()
		latest = lc
		rdPinger = lc
		logger.Info("redis connected", "host", cfg.Redis.Host)
	} else {
		logger.Info("no redis configured, running without latest-tick cache")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		publisher = syncer.NewKafkaPublisher(cfg.Kafka)
		defer publisher.Close()
		logger.Info("kafka publisher ready",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
	} else {
		logger.Info("no kafka brokers configured, running without tick publication")
	}

	// Provider adapters in the order the registry's priority lists name them.
	strategy := evolve.NewRandomWalk()
	adapters := []provider.Adapter{
		provider.NewCoinrate(cfg.Providers.Coinrate),
		provider.NewQuoteboard(cfg.Providers.Quoteboard),
		provider.NewSimulated(strategy),
	}

	sourceRouter := router.New(reg, adapters, logger)
	freshness := cache.New(cfg.Cache.TTL)

	var snapOpts []snapshot.Option
	if tickStore != nil || latest != nil {
		snapOpts = append(snapOpts, snapshot.WithFallback(store.NewLastKnown(latest, tickStore)))
	}
	snapshots := snapshot.New(snapshot.DefaultConfig(), freshness, sourceRouter, logger, snapOpts...)

	engine := stream.NewEngine(stream.Config{
		TickMin:      cfg.Stream.TickMin,
		TickMax:      cfg.Stream.TickMax,
		Heartbeat:    cfg.Stream.Heartbeat,
		WriteTimeout: cfg.Stream.WriteTimeout,
	}, reg, snapshots, strategy, logger)

	familySync := buildSyncer(reg, sourceRouter, tickStore, latest, publisher, logger)

	srv := server.New(server.Config{
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, reg, snapshots, engine, familySync, dbPinger, rdPinger, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("quotefeed stopped")
}

// buildSyncer wires the family syncer with whichever sinks are configured.
func buildSyncer(
	reg *registry.Registry,
	resolver syncer.Resolver,
	tickStore *store.TickStore,
	latest *store.LatestCache,
	publisher *syncer.KafkaPublisher,
	logger *slog.Logger,
) *syncer.Syncer {
	var ticks syncer.TickSink
	if tickStore != nil {
		ticks = tickStore
	}
	var latestSink syncer.LatestSink
	if latest != nil {
		latestSink = latest
	}
	var pub syncer.Publisher
	if publisher != nil {
		pub = publisher
	}
	return syncer.New(syncer.DefaultConfig(), reg, resolver, ticks, latestSink, pub, logger)
}
