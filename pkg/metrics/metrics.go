// Package metrics provides the gateway's metrics collection and reporting.
// Counters are written to Redis for the platform dashboard and mirrored into
// Prometheus collectors for scraping.
package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const (
	// MetricsKeyPrefix is the Redis key prefix for service metrics.
	MetricsKeyPrefix = "metrics:"
	// MetricsTTL is how long metrics stay in Redis if not refreshed.
	MetricsTTL = 2 * time.Minute
	// DefaultReportInterval is the default interval for writing metrics to Redis.
	DefaultReportInterval = 30 * time.Second
)

// ServiceMetrics holds metrics for a single service.
type ServiceMetrics struct {
	ServiceName string    `json:"service_name"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`
	Status      string    `json:"status"` // "healthy" or "unhealthy"

	// Counters (monotonically increasing since start)
	MessagesReceived  uint64 `json:"messages_received"`
	MessagesProcessed uint64 `json:"messages_processed"`
	MessagesPublished uint64 `json:"messages_published"`
	ProcessingErrors  uint64 `json:"processing_errors"`

	// Rates (per report interval)
	MessagesPerSecond float64 `json:"messages_per_second"`

	// Latencies (averages in nanoseconds)
	AvgProcessingLatencyNs float64 `json:"avg_processing_latency_ns"`

	CustomCounters map[string]uint64 `json:"custom_counters,omitempty"`
	Gauges         map[string]int64  `json:"gauges,omitempty"`
}

// Collector collects and reports metrics for the gateway.
// All recording methods are safe for concurrent use.
type Collector struct {
	serviceName    string
	redis          *redis.Client
	startedAt      time.Time
	reportInterval time.Duration

	messagesReceived  atomic.Uint64
	messagesProcessed atomic.Uint64
	messagesPublished atomic.Uint64
	processingErrors  atomic.Uint64

	// rate calculation state, guarded by reportMu
	reportMu           sync.Mutex
	lastReportTime     time.Time
	lastProcessedCount uint64

	totalLatencyNs atomic.Uint64
	latencyCount   atomic.Uint64

	customMu       sync.RWMutex
	customCounters map[string]*atomic.Uint64
	gauges         map[string]*atomic.Int64

	prom *promCollectors

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures a Collector.
type Option func(*Collector)

// WithRegisterer mirrors every recorded value into Prometheus collectors
// registered on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Collector) {
		if reg != nil {
			c.prom = newPromCollectors(reg, c.serviceName)
		}
	}
}

// WithReportInterval sets the interval for writing metrics to Redis.
func WithReportInterval(interval time.Duration) Option {
	return func(c *Collector) {
		if interval > 0 {
			c.reportInterval = interval
		}
	}
}

// NewCollector creates a new metrics collector for a service.
// A nil redisClient disables the Redis report; counters still accumulate.
func NewCollector(serviceName string, redisClient *redis.Client, opts ...Option) *Collector {
	c := &Collector{
		serviceName:    serviceName,
		redis:          redisClient,
		startedAt:      time.Now().UTC(),
		reportInterval: DefaultReportInterval,
		lastReportTime: time.Now().UTC(),
		customCounters: make(map[string]*atomic.Uint64),
		gauges:         make(map[string]*atomic.Int64),
		stopCh:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins the periodic metrics reporting to Redis.
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.writeMetrics(context.Background()) // Final write
				return
			case <-c.stopCh:
				c.writeMetrics(context.Background()) // Final write
				return
			case <-ticker.C:
				c.writeMetrics(ctx)
			}
		}
	}()
}

// Stop stops the metrics reporting. It is safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// RecordReceived increments the messages received counter.
func (c *Collector) RecordReceived() {
	c.messagesReceived.Add(1)
	if c.prom != nil {
		c.prom.received.Inc()
	}
}

// RecordProcessed increments the messages processed counter with latency.
func (c *Collector) RecordProcessed(latency time.Duration) {
	c.messagesProcessed.Add(1)
	c.totalLatencyNs.Add(uint64(latency.Nanoseconds()))
	c.latencyCount.Add(1)
	if c.prom != nil {
		c.prom.processed.Observe(latency.Seconds())
	}
}

// RecordPublished increments the messages published counter.
func (c *Collector) RecordPublished() {
	c.messagesPublished.Add(1)
	if c.prom != nil {
		c.prom.published.Inc()
	}
}

// RecordError increments the processing errors counter.
func (c *Collector) RecordError() {
	c.processingErrors.Add(1)
	if c.prom != nil {
		c.prom.errors.Inc()
	}
}

// IncrementCustom increments a custom counter by name.
func (c *Collector) IncrementCustom(name string) {
	c.AddCustom(name, 1)
}

// AddCustom adds a value to a custom counter.
func (c *Collector) AddCustom(name string, value uint64) {
	c.customMu.RLock()
	counter, exists := c.customCounters[name]
	c.customMu.RUnlock()

	if !exists {
		c.customMu.Lock()
		// Double-check after acquiring write lock
		if counter, exists = c.customCounters[name]; !exists {
			counter = &atomic.Uint64{}
			c.customCounters[name] = counter
		}
		c.customMu.Unlock()
	}
	counter.Add(value)
	if c.prom != nil {
		c.prom.events.WithLabelValues(name).Add(float64(value))
	}
}

// SetGauge records the current value of a named gauge.
func (c *Collector) SetGauge(name string, value int64) {
	c.customMu.RLock()
	gauge, exists := c.gauges[name]
	c.customMu.RUnlock()

	if !exists {
		c.customMu.Lock()
		if gauge, exists = c.gauges[name]; !exists {
			gauge = &atomic.Int64{}
			c.gauges[name] = gauge
		}
		c.customMu.Unlock()
	}
	gauge.Store(value)
	if c.prom != nil {
		c.prom.gauges.WithLabelValues(name).Set(float64(value))
	}
}

// GetSnapshot returns current metrics without writing to Redis.
func (c *Collector) GetSnapshot() *ServiceMetrics {
	now := time.Now().UTC()
	processed := c.messagesProcessed.Load()

	c.reportMu.Lock()
	elapsed := now.Sub(c.lastReportTime).Seconds()
	lastProcessed := c.lastProcessedCount
	c.reportMu.Unlock()

	var rate float64
	if elapsed > 0 {
		rate = float64(processed-lastProcessed) / elapsed
	}

	var avgLatencyNs float64
	latencyCount := c.latencyCount.Load()
	if latencyCount > 0 {
		avgLatencyNs = float64(c.totalLatencyNs.Load()) / float64(latencyCount)
	}

	c.customMu.RLock()
	customCounters := make(map[string]uint64, len(c.customCounters))
	for name, counter := range c.customCounters {
		customCounters[name] = counter.Load()
	}
	gauges := make(map[string]int64, len(c.gauges))
	for name, gauge := range c.gauges {
		gauges[name] = gauge.Load()
	}
	c.customMu.RUnlock()

	return &ServiceMetrics{
		ServiceName:            c.serviceName,
		StartedAt:              c.startedAt,
		LastUpdated:            now,
		Status:                 "healthy",
		MessagesReceived:       c.messagesReceived.Load(),
		MessagesProcessed:      processed,
		MessagesPublished:      c.messagesPublished.Load(),
		ProcessingErrors:       c.processingErrors.Load(),
		MessagesPerSecond:      rate,
		AvgProcessingLatencyNs: avgLatencyNs,
		CustomCounters:         customCounters,
		Gauges:                 gauges,
	}
}

// writeMetrics writes current metrics to Redis.
func (c *Collector) writeMetrics(ctx context.Context) {
	if c.redis == nil {
		return
	}

	metrics := c.GetSnapshot()

	c.reportMu.Lock()
	c.lastReportTime = metrics.LastUpdated
	c.lastProcessedCount = metrics.MessagesProcessed
	c.reportMu.Unlock()

	data, err := json.Marshal(metrics)
	if err != nil {
		slog.Error("Failed to marshal metrics", "service", c.serviceName, "error", err)
		return
	}

	key := MetricsKeyPrefix + c.serviceName
	if err := c.redis.Set(ctx, key, data, MetricsTTL).Err(); err != nil {
		slog.Error("Failed to write metrics to Redis", "service", c.serviceName, "error", err)
		return
	}

	slog.Debug("Metrics written to Redis", "service", c.serviceName, "key", key)
}

type promCollectors struct {
	received  prometheus.Counter
	published prometheus.Counter
	errors    prometheus.Counter
	processed prometheus.Histogram
	events    *prometheus.CounterVec
	gauges    *prometheus.GaugeVec
}

func newPromCollectors(reg prometheus.Registerer, serviceName string) *promCollectors {
	namespace := strings.ReplaceAll(serviceName, "-", "_")
	p := &promCollectors{
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total SOH messages received from Kafka",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Total views and events published",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processing_errors_total",
			Help:      "Total processing errors",
		}),
		processed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_duration_seconds",
			Help:      "Time spent applying one SOH message to the cache",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Named gateway events",
		}, []string{"event"}),
		gauges: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current",
			Help:      "Named gateway gauges",
		}, []string{"name"}),
	}
	reg.MustRegister(p.received, p.published, p.errors, p.processed, p.events, p.gauges)
	return p
}
