package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// placeholderMapsKey is what the sample .env ships with; treat it as unset.
const placeholderMapsKey = "YOUR_API_KEY_HERE"

// ServerConfig captures all tunable parameters for the HTTP API process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without a database, broker or maps key.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	PGDSN         string
	RunMigrations bool

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string

	KafkaBrokers []string
	KafkaTopic   string

	MapsAPIKey           string
	RouteProviderURL     string
	RouteProviderTimeout time.Duration
	RouteCacheTTL        time.Duration
	CorridorLocationID   int64

	EmissionThreshold int
	// EmissionProbe picks the reading source when a check omits aqi: "simulated" or "sensor".
	EmissionProbe string

	StripeAPIKey string
	FineCurrency string

	JWTSecret string
	JWTTTL    time.Duration

	AMQPURL  string
	SOSQueue string

	LogLevel string
}

// MapsConfigured reports whether live routing should be used.
func (c ServerConfig) MapsConfigured() bool {
	return c.MapsAPIKey != "" && c.MapsAPIKey != placeholderMapsKey
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:             ":3000",
		ReadTimeout:          5 * time.Second,
		WriteTimeout:         10 * time.Second,
		IdleTimeout:          120 * time.Second,
		ShutdownTimeout:      15 * time.Second,
		RedisGeoKey:          "locations_geo",
		KafkaTopic:           "sensor-readings",
		RouteProviderURL:     "https://maps.googleapis.com/maps/api/directions/json",
		RouteProviderTimeout: 5 * time.Second,
		RouteCacheTTL:        30 * time.Second,
		CorridorLocationID:   9,
		EmissionThreshold:    80,
		EmissionProbe:        "simulated",
		FineCurrency:         "inr",
		JWTSecret:            "change-me",
		JWTTTL:               24 * time.Hour,
		SOSQueue:             "sos-alerts",
		LogLevel:             "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" && os.Getenv("HTTP_ADDR") == "" {
		cfg.HTTPAddr = ":" + port
	}
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.PGDSN = os.Getenv("PG_DSN")
	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.MapsAPIKey = strings.TrimSpace(os.Getenv("GOOGLE_MAPS_API_KEY"))
	setStringFromEnv(&cfg.RouteProviderURL, "ROUTE_PROVIDER_URL")
	setDurationFromEnv(&cfg.RouteProviderTimeout, "ROUTE_PROVIDER_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.RouteCacheTTL, "ROUTE_CACHE_TTL", &errs)
	setInt64FromEnv(&cfg.CorridorLocationID, "CORRIDOR_LOCATION_ID", &errs)

	setIntFromEnv(&cfg.EmissionThreshold, "EMISSION_THRESHOLD", &errs)
	setStringFromEnv(&cfg.EmissionProbe, "EMISSION_PROBE")

	cfg.StripeAPIKey = os.Getenv("STRIPE_API_KEY")
	setStringFromEnv(&cfg.FineCurrency, "FINE_CURRENCY")

	setStringFromEnv(&cfg.JWTSecret, "JWT_SECRET")
	setDurationFromEnv(&cfg.JWTTTL, "JWT_TTL", &errs)

	cfg.AMQPURL = strings.TrimSpace(os.Getenv("AMQP_URL"))
	setStringFromEnv(&cfg.SOSQueue, "SOS_QUEUE")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.RouteProviderTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ROUTE_PROVIDER_TIMEOUT must be > 0"))
	}
	if cfg.EmissionThreshold < 0 {
		errs = append(errs, fmt.Errorf("EMISSION_THRESHOLD must be >= 0"))
	}
	if cfg.EmissionProbe != "simulated" && cfg.EmissionProbe != "sensor" {
		errs = append(errs, fmt.Errorf("EMISSION_PROBE must be simulated or sensor, got %q", cfg.EmissionProbe))
	}

	return cfg, errors.Join(errs...)
}

// ConsumerConfig configures the sensor reading consumer process.
type ConsumerConfig struct {
	MetricsAddr string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroup   string

	PGDSN string

	RedisAddr     string
	RedisPassword string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	RetryAttempts int
	RetryDelay    time.Duration

	LogLevel string
}

func LoadConsumerConfig() (ConsumerConfig, error) {
	cfg := ConsumerConfig{
		MetricsAddr:   ":2112",
		KafkaBrokers:  []string{"localhost:9092"},
		KafkaTopic:    "sensor-readings",
		KafkaGroup:    "ecoride-sensor-consumer",
		InfluxOrg:     "ecoride",
		InfluxBucket:  "sensors",
		RetryAttempts: 3,
		RetryDelay:    200 * time.Millisecond,
		LogLevel:      "info",
	}
	var errs []error

	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		brokers = os.Getenv("KAFKA_BROKER")
	}
	if brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")

	cfg.PGDSN = os.Getenv("PG_DSN")
	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	cfg.InfluxURL = strings.TrimSpace(os.Getenv("INFLUXDB_URL"))
	cfg.InfluxToken = os.Getenv("INFLUXDB_TOKEN")
	setStringFromEnv(&cfg.InfluxOrg, "INFLUXDB_ORG")
	setStringFromEnv(&cfg.InfluxBucket, "INFLUXDB_BUCKET")

	setIntFromEnv(&cfg.RetryAttempts, "CONSUMER_RETRY_ATTEMPTS", &errs)
	setDurationFromEnv(&cfg.RetryDelay, "CONSUMER_RETRY_DELAY", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if len(cfg.KafkaBrokers) == 0 {
		errs = append(errs, fmt.Errorf("KAFKA_BROKERS must not be empty"))
	}
	if cfg.RetryAttempts <= 0 {
		errs = append(errs, fmt.Errorf("CONSUMER_RETRY_ATTEMPTS must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setInt64FromEnv(target *int64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
