package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/ecoride/internal/config"
	"github.com/example/ecoride/internal/influxdb"
	"github.com/example/ecoride/internal/logging"
	"github.com/example/ecoride/internal/models"
	"github.com/example/ecoride/internal/sensors"
	"github.com/example/ecoride/internal/storage"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ecoride_consumer",
		Name:      "messages_consumed_total",
		Help:      "Total sensor reading messages consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ecoride_consumer",
		Name:      "messages_invalid_total",
		Help:      "Total invalid messages received",
	})
	storeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ecoride_consumer",
		Name:      "store_errors_total",
		Help:      "Total readings that could not be persisted",
	})
	cacheUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ecoride_consumer",
		Name:      "cache_updates_total",
		Help:      "Total successful latest-reading cache updates",
	})
	cacheErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ecoride_consumer",
		Name:      "cache_errors_total",
		Help:      "Total latest-reading cache errors after retries",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, storeErrors, cacheUpdates, cacheErrors)
}

func main() {
	cfg, err := config.LoadConsumerConfig()
	logger := logging.NewLogger("ecoride-consumer", cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := &processor{logger: logger, attempts: cfg.RetryAttempts, delay: cfg.RetryDelay}

	if cfg.PGDSN != "" {
		pg, err := storage.NewPostgresStore(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("postgres connect failed", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		p.store = pg
	} else {
		logger.Warn("PG_DSN not set; readings will only be cached")
	}

	var rc *redis.Client
	if cfg.RedisAddr != "" {
		rc = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rc.Close()
		p.cache = sensors.NewRedisCache(rc, 0)
	}

	if cfg.InfluxURL != "" {
		ic, err := influxdb.NewClient(ctx, cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
		if err != nil {
			logger.Warn("influxdb unavailable; mirroring disabled", "error", err)
		} else {
			defer ic.Close()
			p.mirror = ic
		}
	}

	go serveHealth(cfg.MetricsAddr, rc, logger)

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic, GroupID: cfg.KafkaGroup, MinBytes: 1, MaxBytes: 10e6})
	defer r.Close()

	logger.Info("consumer listening", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers, "group", cfg.KafkaGroup)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down consumer")
				return
			}
			logger.Warn("kafka read error", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
		msgsConsumed.Inc()
		p.handle(ctx, m.Value)
	}
}

func serveHealth(addr string, rc *redis.Client, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if rc != nil {
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	logger.Info("metrics/health listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server stopped", "error", err)
	}
}

// readingMirror receives every persisted reading, e.g. the InfluxDB client.
type readingMirror interface {
	WriteReading(r models.SensorReading)
}

type processor struct {
	store    storage.SensorStore
	cache    sensors.Cache
	mirror   readingMirror
	logger   *slog.Logger
	attempts int
	delay    time.Duration
}

// handle decodes one message and fans it out. A message that fails to decode
// or validate is dropped; a store failure skips the cache and mirror.
func (p *processor) handle(ctx context.Context, payload []byte) {
	var r models.SensorReading
	if err := json.Unmarshal(payload, &r); err != nil {
		msgsInvalid.Inc()
		p.logger.Warn("invalid message", "error", err)
		return
	}
	if r.LocationID <= 0 || r.AQI < 0 || r.VehicleCount < 0 {
		msgsInvalid.Inc()
		p.logger.Warn("invalid reading", "location_id", r.LocationID, "aqi", r.AQI, "vehicle_count", r.VehicleCount)
		return
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}

	if p.store != nil {
		if err := p.store.AppendReading(ctx, &r); err != nil {
			storeErrors.Inc()
			p.logger.Error("persist reading failed", "location_id", r.LocationID, "error", err)
			return
		}
	}

	if p.cache != nil {
		if err := updateCacheWithRetry(ctx, p.cache, r, p.attempts, p.delay); err != nil {
			cacheErrors.Inc()
			p.logger.Warn("cache update failed", "location_id", r.LocationID, "error", err)
		} else {
			cacheUpdates.Inc()
		}
	}

	if p.mirror != nil {
		p.mirror.WriteReading(r)
	}
}

// updateCacheWithRetry refreshes the latest-reading cache, doubling the delay
// between attempts.
func updateCacheWithRetry(ctx context.Context, c sensors.Cache, r models.SensorReading, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = c.Put(ctx, r); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
