package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"soh-gateway/internal/producer"
	"soh-gateway/internal/settings"
	"soh-gateway/internal/simulator"
	"soh-gateway/pkg/shared"
)

func main() {
	_ = godotenv.Load() // ignore missing file

	var (
		brokers, topic, stations, settingsFile, statusDist, logLevel string
		perBatch                                                     int
		rate                                                         float64
		duration                                                     time.Duration
		seed                                                         int64
	)
	flag.StringVar(&brokers, "kafka-brokers", shared.GetEnvOrDefault("KAFKA_BROKERS", "localhost:9092"), "Kafka broker addresses (comma-separated)")
	flag.StringVar(&topic, "soh-topic", shared.GetEnvOrDefault("SOH_TOPIC", "soh.ui-materialized"), "Kafka topic to publish SOH batches to")
	flag.StringVar(&stations, "stations", "", "Station names (comma-separated); defaults to the settings file list")
	flag.StringVar(&settingsFile, "settings-file", shared.GetEnvOrDefault("SETTINGS_FILE", ""), "YAML file with SOH display settings")
	flag.StringVar(&statusDist, "status-dist", simulator.DefaultStatusDist, "Monitor status distribution (STATUS:PERCENT,...)")
	flag.IntVar(&perBatch, "stations-per-batch", 5, "Stations per published batch")
	flag.Float64Var(&rate, "rate", 2, "Batches per second")
	flag.DurationVar(&duration, "duration", time.Minute, "How long to run (0 runs until interrupted)")
	flag.Int64Var(&seed, "seed", 0, "RNG seed for reproducible output (0 uses the clock)")
	flag.StringVar(&logLevel, "log-level", shared.GetEnvOrDefault("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: shared.ParseLogLevel(logLevel),
	})))

	st := settings.Default()
	if settingsFile != "" {
		var err error
		if st, err = settings.Load(settingsFile); err != nil {
			slog.Error("Failed to load settings", "path", settingsFile, "error", err)
			os.Exit(1)
		}
	}

	names := st.Stations
	if stations != "" {
		names = strings.Split(stations, ",")
	}

	gen, err := simulator.New(simulator.Config{
		Stations:         names,
		StationGroups:    st.DisplayedStationGroups,
		StatusDist:       statusDist,
		StationsPerBatch: perBatch,
		Seed:             seed,
	})
	if err != nil {
		slog.Error("Invalid simulator configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	batchProducer, err := producer.NewBatchProducer(brokers, topic)
	if err != nil {
		slog.Error("Failed to create Kafka producer", "error", err)
		slog.Info("Tip: Start Kafka with 'docker compose up -d kafka'")
		os.Exit(1)
	}
	defer batchProducer.Close()

	sent, err := simulator.NewRunner(gen, batchProducer, nil).Run(ctx, rate, duration)
	if err != nil {
		slog.Error("SOH simulation failed", "sent", sent, "error", err)
		os.Exit(1)
	}
	slog.Info("SOH simulation complete", "sent", sent)
}
