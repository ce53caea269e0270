package sensors

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/ecoride/internal/apperr"
	"github.com/example/ecoride/internal/logging"
	"github.com/example/ecoride/internal/models"
	"github.com/example/ecoride/internal/observability"
	"github.com/example/ecoride/internal/storage"
)

const (
	// HighAQI is the level above which an incoming reading is logged as an alert.
	HighAQI = 200

	locationLimit = 20
	overallLimit  = 50
)

// Publisher hands readings to the ingest pipeline instead of writing them inline.
type Publisher interface {
	PublishReading(ctx context.Context, r models.SensorReading) error
}

type Service struct {
	Store     storage.SensorStore
	Locations storage.LocationStore
	Cache     Cache
	Publisher Publisher
	Logger    *slog.Logger
	now       func() time.Time
}

func NewService(store storage.SensorStore, locations storage.LocationStore, cache Cache, pub Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{Store: store, Locations: locations, Cache: cache, Publisher: pub, Logger: logger, now: time.Now}
}

type Input struct {
	LocationID   int64
	AQI          int
	VehicleCount int
	Timestamp    time.Time
}

// Record accepts a reading from a roadside unit. A zero location means the
// demo zone. With a Publisher configured the reading is queued and persisted
// by the consumer; otherwise it is stored and cached here.
func (s *Service) Record(ctx context.Context, in Input) (models.SensorReading, bool, error) {
	const op = "sensors.record"
	if in.AQI < 0 {
		return models.SensorReading{}, false, apperr.Invalid(op, "aqi", "must be >= 0")
	}
	if in.VehicleCount < 0 {
		return models.SensorReading{}, false, apperr.Invalid(op, "vehicle_count", "must be >= 0")
	}

	var (
		loc models.Location
		err error
	)
	if in.LocationID == 0 {
		loc, err = s.Locations.DemoLocation(ctx)
	} else {
		loc, err = s.Locations.GetLocation(ctx, in.LocationID)
		if apperr.Is(err, apperr.KindNotFound) {
			return models.SensorReading{}, false, apperr.Invalid(op, "locationId", "unknown location")
		}
	}
	if err != nil {
		return models.SensorReading{}, false, err
	}

	r := models.SensorReading{LocationID: loc.ID, AQI: in.AQI, VehicleCount: in.VehicleCount, Timestamp: in.Timestamp}
	if r.Timestamp.IsZero() {
		r.Timestamp = s.now().UTC()
	}
	if r.AQI > HighAQI {
		s.Logger.Warn("high emission alert", "location", loc.Name, "location_id", loc.ID, "aqi", r.AQI)
	}

	if s.Publisher != nil {
		if err := s.Publisher.PublishReading(ctx, r); err != nil {
			return models.SensorReading{}, false, apperr.Wrap(apperr.KindUpstreamUnavailable, op+".publish", err)
		}
		observability.SensorReadingsTotal.WithLabelValues("queued").Inc()
		return r, true, nil
	}

	if err := s.Apply(ctx, &r); err != nil {
		return models.SensorReading{}, false, err
	}
	observability.SensorReadingsTotal.WithLabelValues("direct").Inc()
	return r, false, nil
}

// Apply persists a reading and refreshes the latest-reading cache. Cache
// failures are logged only.
func (s *Service) Apply(ctx context.Context, r *models.SensorReading) error {
	if err := s.Store.AppendReading(ctx, r); err != nil {
		return err
	}
	if s.Cache != nil {
		if err := s.Cache.Put(ctx, *r); err != nil {
			s.Logger.Warn("sensor cache update failed", "location_id", r.LocationID, "error", err)
		}
	}
	return nil
}

// LatestReading reads through the cache to the store.
func (s *Service) LatestReading(ctx context.Context, locationID int64) (models.SensorReading, error) {
	if s.Cache != nil {
		r, ok, err := s.Cache.Latest(ctx, locationID)
		switch {
		case err != nil:
			s.Logger.Warn("sensor cache read failed", "location_id", locationID, "error", err)
		case ok:
			return r, nil
		}
	}
	r, err := s.Store.LatestReading(ctx, locationID)
	if err != nil {
		return models.SensorReading{}, err
	}
	if s.Cache != nil {
		if err := s.Cache.Put(ctx, r); err != nil {
			s.Logger.Warn("sensor cache fill failed", "location_id", locationID, "error", err)
		}
	}
	return r, nil
}

// Recent lists the newest readings for a location, or across all locations when locationID is 0.
func (s *Service) Recent(ctx context.Context, locationID int64) ([]models.SensorReading, error) {
	limit := overallLimit
	if locationID != 0 {
		limit = locationLimit
	}
	return s.Store.RecentReadings(ctx, locationID, limit)
}

func (s *Service) Window(ctx context.Context, locationID int64, from, to time.Time) ([]models.SensorReading, error) {
	const op = "sensors.window"
	if locationID <= 0 {
		return nil, apperr.Invalid(op, "locationId", "is required")
	}
	if to.Before(from) {
		return nil, apperr.Invalid(op, "to", "must not be before from")
	}
	return s.Store.ReadingsBetween(ctx, locationID, from, to)
}
