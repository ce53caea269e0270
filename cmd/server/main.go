package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/example/ecoride/internal/alerts"
	"github.com/example/ecoride/internal/auth"
	"github.com/example/ecoride/internal/carpool"
	"github.com/example/ecoride/internal/config"
	"github.com/example/ecoride/internal/emission"
	"github.com/example/ecoride/internal/geo"
	httpapi "github.com/example/ecoride/internal/http"
	"github.com/example/ecoride/internal/ingest"
	"github.com/example/ecoride/internal/logging"
	"github.com/example/ecoride/internal/payments"
	"github.com/example/ecoride/internal/relay"
	"github.com/example/ecoride/internal/routing"
	"github.com/example/ecoride/internal/sensors"
	"github.com/example/ecoride/internal/storage"
)

const sensorCacheTTL = 10 * time.Minute

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger("ecoride-api", cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) error {
	var checks []func(context.Context) error

	var store storage.Store
	if cfg.PGDSN != "" {
		pg, err := storage.NewPostgresStore(ctx, cfg.PGDSN)
		if err != nil {
			return err
		}
		if cfg.RunMigrations {
			if err := pg.Migrate(ctx); err != nil {
				_ = pg.Close()
				return err
			}
			logger.Info("migrations applied")
		}
		checks = append(checks, pg.Ping)
		store = pg
	} else {
		logger.Warn("PG_DSN not set; using in-memory store")
		store = storage.NewMemoryStore()
	}
	defer store.Close()

	var (
		cache   sensors.Cache
		locator geo.Locator = geo.NewIndex()
	)
	if cfg.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rc.Close()
		cache = sensors.NewRedisCache(rc, sensorCacheTTL)
		locator = geo.NewRedisGeo(rc, cfg.RedisGeoKey)
		checks = append(checks, func(ctx context.Context) error { return rc.Ping(ctx).Err() })
	}
	if locs, err := store.ListLocations(ctx); err != nil {
		logger.Warn("location index not loaded", "error", err)
	} else if err := locator.Index(ctx, locs); err != nil {
		logger.Warn("location index not loaded", "error", err)
	}

	var publisher sensors.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
	}
	sensorSvc := sensors.NewService(store, store, cache, publisher, logger)

	var source routing.Source
	if cfg.MapsConfigured() {
		source = routing.NewLiveSource(cfg.RouteProviderURL, cfg.MapsAPIKey, cfg.RouteProviderTimeout, cfg.RouteCacheTTL)
	} else {
		logger.Warn("maps key not configured; using simulated routes")
		source = routing.NewSimulatedSource(sensorSvc, cfg.CorridorLocationID, logger)
	}

	var probe emission.Probe = emission.SimulatedProbe{}
	if cfg.EmissionProbe == "sensor" {
		probe = emission.SensorProbe{Sensors: sensorSvc, LocationID: cfg.CorridorLocationID}
	}

	hub := relay.NewHub(logger)
	defer hub.Close()

	var sos alerts.Publisher
	if cfg.AMQPURL != "" {
		ap, err := alerts.NewAMQPPublisher(cfg.AMQPURL, cfg.SOSQueue)
		if err != nil {
			logger.Warn("sos queue unavailable; alerts will be logged", "error", err)
		} else {
			defer ap.Close()
			sos = ap
		}
	}

	srv := httpapi.NewServer(httpapi.Deps{
		Store:    store,
		Planner:  routing.NewPlanner(source, logger),
		Emission: emission.NewService(store, probe, cfg.EmissionThreshold, logger),
		Carpool:  carpool.NewService(store, store, store, hub, logger),
		Sensors:  sensorSvc,
		Geo:      locator,
		Auth:     auth.NewService(store, auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL), logger),
		Payments: payments.NewFinePayments(store, cfg.StripeAPIKey, cfg.FineCurrency, logger),
		Alerts:   alerts.NewService(store, sos, logger),
		Relay:    hub,
		Ready: func(ctx context.Context) error {
			for _, check := range checks {
				if err := check(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	}, logger)

	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("ecoride listening", "addr", cfg.HTTPAddr, "route_source", source.Name(), "emission_probe", cfg.EmissionProbe)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		hub.Close()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
