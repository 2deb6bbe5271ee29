package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"soh-gateway/internal/api"
	"soh-gateway/internal/cache"
	"soh-gateway/internal/catalog"
	"soh-gateway/internal/config"
	"soh-gateway/internal/consumer"
	"soh-gateway/internal/history"
	"soh-gateway/internal/processor"
	"soh-gateway/internal/producer"
	"soh-gateway/internal/publisher"
	"soh-gateway/internal/scheduler"
	"soh-gateway/internal/settings"
	"soh-gateway/internal/workflow"
	"soh-gateway/pkg/metrics"
	"soh-gateway/pkg/shared"
)

const serviceName = "soh-gateway"

func main() {
	_ = godotenv.Load() // ignore missing file

	cfg, err := config.Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	// Set up structured logging
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: shared.ParseLogLevel(cfg.LogLevel),
	})))

	slog.Info("Starting SOH gateway",
		"kafka_brokers", cfg.KafkaBrokers,
		"soh_topic", cfg.SohTopic,
		"consumer_group_id", cfg.ConsumerGroupID,
		"acknowledge_topic", cfg.AcknowledgeTopic,
		"quiet_topic", cfg.QuietTopic,
		"redis_addr", cfg.RedisAddr,
		"feed_channel", cfg.FeedChannel,
		"postgres_dsn", shared.MaskDSN(cfg.PostgresDSN),
		"settings_file", cfg.SettingsFile,
		"history_url", cfg.HistoryURL,
		"http_addr", cfg.HTTPAddr,
	)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := settings.Default()
	if cfg.SettingsFile != "" {
		st, err = settings.Load(cfg.SettingsFile)
		if err != nil {
			slog.Error("Failed to load settings", "path", cfg.SettingsFile, "error", err)
			os.Exit(1)
		}
	}
	slog.Info("Loaded SOH settings",
		"redisplay_period", st.RedisplayPeriod,
		"acknowledgement_quiet_duration", st.AcknowledgementQuietDuration,
		"station_groups", st.DisplayedStationGroups,
	)

	stations, err := loadStations(ctx, cfg, st)
	if err != nil {
		slog.Error("Failed to load station catalog", "error", err)
		slog.Info("Tip: Ensure the soh_stations table exists or list stations in the settings file")
		os.Exit(1)
	}

	sohCache := cache.New()
	seeded := sohCache.Seed(stations)
	sohCache.SetStationGroups(st.StationGroupStatuses(time.Now()))
	slog.Info("Seeded SOH cache", "stations", seeded)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		slog.Info("Connecting to Redis", "addr", cfg.RedisAddr)
		redisClient, err = shared.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			slog.Info("Tip: Start Redis with 'docker compose up -d redis' or set -redis-addr=\"\"")
			os.Exit(1)
		}
		defer redisClient.Close()
		slog.Info("Successfully connected to Redis")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(serviceName, redisClient,
		metrics.WithRegisterer(registry),
		metrics.WithReportInterval(cfg.MetricsReportInterval),
	)
	collector.Start(ctx)
	defer collector.Stop()

	hub := publisher.NewHub(collector)
	var sink *publisher.RedisSink
	if redisClient != nil {
		sink = publisher.NewRedisSink(redisClient, cfg.FeedChannel, publisher.DefaultRedisBuffer)
		hub.Subscribe(sink)
	}

	slog.Info("Connecting to Kafka consumer", "topic", cfg.SohTopic)
	kafkaConsumer, err := consumer.NewConsumer(cfg.KafkaBrokers, cfg.SohTopic, cfg.ConsumerGroupID)
	if err != nil {
		slog.Error("Failed to create Kafka consumer", "error", err)
		slog.Info("Tip: Start Kafka with 'docker compose up -d kafka'")
		os.Exit(1)
	}
	defer kafkaConsumer.Close()
	slog.Info("Successfully connected to Kafka consumer")

	slog.Info("Connecting to Kafka producer", "acknowledge_topic", cfg.AcknowledgeTopic, "quiet_topic", cfg.QuietTopic)
	kafkaProducer, err := producer.NewProducer(cfg.KafkaBrokers, cfg.AcknowledgeTopic, cfg.QuietTopic)
	if err != nil {
		slog.Error("Failed to create Kafka producer", "error", err)
		os.Exit(1)
	}
	defer kafkaProducer.Close()
	slog.Info("Successfully connected to Kafka producer")

	proc := processor.NewProcessorWithMetrics(kafkaConsumer, sohCache, hub, cfg.SohTopic, collector)
	sched := scheduler.NewScheduler(sohCache, hub)
	workflows := workflow.New(sohCache, kafkaProducer, st.AcknowledgementQuietDuration, workflow.WithMetrics(collector))
	defer workflows.Wait()

	server := api.New(cfg.HTTPAddr, api.Deps{
		Soh:      sohCache,
		Commands: workflows,
		History:  history.NewClient(cfg.HistoryURL, cfg.HistoryTimeout),
		Feed:     hub,
		Settings: st,
		Metrics:  collector,
		Gatherer: registry,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return proc.ProcessSoh(gctx) })
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error { return server.Run(gctx) })
	if sink != nil {
		g.Go(func() error { return sink.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		slog.Error("SOH gateway failed", "error", err)
		os.Exit(1)
	}

	slog.Info("SOH gateway stopped")
}

// loadStations lists the known stations from Postgres when a DSN is set and
// from the settings file otherwise.
func loadStations(ctx context.Context, cfg *config.Config, st *settings.Settings) ([]string, error) {
	var source catalog.Catalog
	if cfg.PostgresDSN != "" {
		slog.Info("Connecting to station catalog database")
		pg, err := catalog.NewPostgresCatalog(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		defer pg.Close()
		source = pg
	} else {
		source = catalog.NewStaticCatalog(st.Stations)
	}

	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return source.ListStations(loadCtx)
}
