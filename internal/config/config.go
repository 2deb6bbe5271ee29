// Package config provides configuration parsing and validation for the SOH gateway.
package config

import (
	"flag"
	"fmt"
	"time"

	"soh-gateway/pkg/shared"
)

// Config holds all configuration parameters for the SOH gateway.
type Config struct {
	KafkaBrokers          string
	SohTopic              string
	ConsumerGroupID       string
	AcknowledgeTopic      string
	QuietTopic            string
	RedisAddr             string
	FeedChannel           string
	PostgresDSN           string
	SettingsFile          string
	HistoryURL            string
	HistoryTimeout        time.Duration
	HTTPAddr              string
	MetricsReportInterval time.Duration
	LogLevel              string
}

// Parse reads flags from args. Every flag defaults to its environment
// variable when set.
func Parse(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}
	fs.StringVar(&cfg.KafkaBrokers, "kafka-brokers", shared.GetEnvOrDefault("KAFKA_BROKERS", "localhost:9092"), "Kafka broker addresses (comma-separated)")
	fs.StringVar(&cfg.SohTopic, "soh-topic", shared.GetEnvOrDefault("SOH_TOPIC", "soh.ui-materialized"), "Kafka topic for incoming station SOH")
	fs.StringVar(&cfg.ConsumerGroupID, "consumer-group-id", shared.GetEnvOrDefault("CONSUMER_GROUP_ID", "soh-gateway-group"), "Kafka consumer group ID for the SOH topic")
	fs.StringVar(&cfg.AcknowledgeTopic, "acknowledge-topic", shared.GetEnvOrDefault("ACKNOWLEDGE_TOPIC", "soh.ack"), "Kafka topic for acknowledgement events")
	fs.StringVar(&cfg.QuietTopic, "quiet-topic", shared.GetEnvOrDefault("QUIET_TOPIC", "soh.quiet"), "Kafka topic for quiet events")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", shared.GetEnvOrDefault("REDIS_ADDR", "localhost:6379"), "Redis server address (empty disables metrics report and feed mirror)")
	fs.StringVar(&cfg.FeedChannel, "feed-channel", shared.GetEnvOrDefault("FEED_CHANNEL", "soh:feed"), "Redis pub/sub channel mirroring the SOH feed")
	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", shared.GetEnvOrDefault("POSTGRES_DSN", ""), "PostgreSQL DSN for the station catalog (empty uses the settings file)")
	fs.StringVar(&cfg.SettingsFile, "settings-file", shared.GetEnvOrDefault("SETTINGS_FILE", ""), "YAML file with SOH display settings")
	fs.StringVar(&cfg.HistoryURL, "history-url", shared.GetEnvOrDefault("HISTORY_URL", "http://localhost:8081"), "Base URL of the historical SOH service")
	fs.DurationVar(&cfg.HistoryTimeout, "history-timeout", shared.GetDurationEnvOrDefault("HISTORY_TIMEOUT", 30*time.Second), "Timeout for historical SOH queries")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", shared.GetEnvOrDefault("HTTP_ADDR", ":8090"), "HTTP listen address")
	fs.DurationVar(&cfg.MetricsReportInterval, "metrics-report-interval", shared.GetDurationEnvOrDefault("METRICS_REPORT_INTERVAL", 30*time.Second), "Interval for writing metrics to Redis")
	fs.StringVar(&cfg.LogLevel, "log-level", shared.GetEnvOrDefault("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set and have valid values.
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.SohTopic == "" {
		return fmt.Errorf("soh-topic cannot be empty")
	}
	if c.ConsumerGroupID == "" {
		return fmt.Errorf("consumer-group-id cannot be empty")
	}
	if c.AcknowledgeTopic == "" {
		return fmt.Errorf("acknowledge-topic cannot be empty")
	}
	if c.QuietTopic == "" {
		return fmt.Errorf("quiet-topic cannot be empty")
	}
	if c.AcknowledgeTopic == c.QuietTopic {
		return fmt.Errorf("acknowledge-topic and quiet-topic must differ")
	}
	if c.RedisAddr != "" && c.FeedChannel == "" {
		return fmt.Errorf("feed-channel cannot be empty when redis-addr is set")
	}
	if c.HistoryURL == "" {
		return fmt.Errorf("history-url cannot be empty")
	}
	if c.HistoryTimeout <= 0 {
		return fmt.Errorf("history-timeout must be > 0")
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("http-addr cannot be empty")
	}
	if c.MetricsReportInterval <= 0 {
		return fmt.Errorf("metrics-report-interval must be > 0")
	}
	return nil
}
