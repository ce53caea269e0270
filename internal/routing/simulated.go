package routing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/example/ecoride/internal/apperr"
	"github.com/example/ecoride/internal/logging"
	"github.com/example/ecoride/internal/models"
	"github.com/example/ecoride/internal/observability"
)

// Corridor endpoints that receive sensor-fused data in simulated mode.
var (
	Kengeri    = models.Coord{Lat: 12.9177, Lng: 77.4833}
	Whitefield = models.Coord{Lat: 12.9698, Lng: 77.7500}
)

const corridorTolerance = 0.01

// SensorReader is the slice of the sensor store the eco profile needs.
type SensorReader interface {
	LatestReading(ctx context.Context, locationID int64) (models.SensorReading, error)
}

type profile struct {
	id      int
	summary string
	km      float64
	mins    int
	traffic float64
	aqi     float64
	// fused profiles take traffic and aqi from the corridor sensor instead.
	fused bool
	// offsets are the (lat, lng) fractions of the three interior path points.
	offsets [3][2]float64
}

var profiles = []profile{
	{id: 1, summary: "Fastest Route (Main Road)", km: 12, mins: 35, traffic: 80, aqi: 150,
		offsets: [3][2]float64{{0.3, 0.2}, {0.6, 0.5}, {0.8, 0.8}}},
	{id: 2, summary: "Eco Route (Low Pollution)", km: 14, mins: 40, fused: true,
		offsets: [3][2]float64{{0.25, 0.4}, {0.5, 0.7}, {0.75, 0.9}}},
	{id: 3, summary: "Scenic Route (Less Traffic)", km: 15, mins: 42, traffic: 40, aqi: 90,
		offsets: [3][2]float64{{0.2, 0.6}, {0.5, 0.3}, {0.8, 0.6}}},
}

// SimulatedSource generates the three fixed profiles used when no mapping
// provider is configured.
type SimulatedSource struct {
	Sensors            SensorReader
	CorridorLocationID int64
	// Rand returns a value in [0, 1). Defaults to math/rand.
	Rand   func() float64
	Logger *slog.Logger
}

func NewSimulatedSource(sensors SensorReader, corridorLocationID int64, logger *slog.Logger) *SimulatedSource {
	return &SimulatedSource{Sensors: sensors, CorridorLocationID: corridorLocationID, Logger: logger}
}

func (s *SimulatedSource) Name() string { return "simulated" }

func (s *SimulatedSource) Candidates(ctx context.Context, origin, dest models.Coord) ([]models.RouteCandidate, error) {
	aqi, traffic := s.ecoSignals(ctx, origin, dest)

	out := make([]models.RouteCandidate, 0, len(profiles))
	for _, p := range profiles {
		rc := models.RouteCandidate{
			ID:           p.id,
			Summary:      p.summary,
			Distance:     fmt.Sprintf("%g km", p.km),
			Duration:     fmt.Sprintf("%d mins", p.mins),
			DistanceKm:   p.km,
			DurationSec:  p.mins * 60,
			TrafficLevel: p.traffic,
			AQIAvg:       p.aqi,
			Path:         interpolate(origin, dest, p.offsets),
		}
		if p.fused {
			rc.TrafficLevel = traffic
			rc.AQIAvg = aqi
		}
		out = append(out, rc)
	}
	return out, nil
}

// OnCorridor reports whether the pair matches the corridor in either direction.
func OnCorridor(origin, dest models.Coord) bool {
	return (near(origin, Kengeri) && near(dest, Whitefield)) ||
		(near(origin, Whitefield) && near(dest, Kengeri))
}

func near(a, b models.Coord) bool {
	return math.Abs(a.Lat-b.Lat) < corridorTolerance && math.Abs(a.Lng-b.Lng) < corridorTolerance
}

// ecoSignals returns the corridor sensor reading when it applies, otherwise
// bounded substitutes. Sensor failures are logged and never abort the request.
func (s *SimulatedSource) ecoSignals(ctx context.Context, origin, dest models.Coord) (aqi, traffic float64) {
	if OnCorridor(origin, dest) && s.Sensors != nil {
		r, err := s.Sensors.LatestReading(ctx, s.CorridorLocationID)
		switch {
		case err == nil:
			observability.RouteFusionTotal.WithLabelValues("sensor").Inc()
			return float64(r.AQI), float64(r.VehicleCount)
		case apperr.Is(err, apperr.KindNotFound):
			observability.RouteFusionTotal.WithLabelValues("no_reading").Inc()
		default:
			s.logger().Warn("corridor sensor read failed, using substitute values",
				"location_id", s.CorridorLocationID, "error", err)
			observability.RouteFusionTotal.WithLabelValues("sensor_error").Inc()
		}
	} else {
		observability.RouteFusionTotal.WithLabelValues("substitute").Inc()
	}
	return 50 + math.Floor(s.draw()*100), 20 + math.Floor(s.draw()*40)
}

func (s *SimulatedSource) draw() float64 {
	if s.Rand != nil {
		return s.Rand()
	}
	return rand.Float64()
}

func (s *SimulatedSource) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return logging.Discard()
}

func interpolate(origin, dest models.Coord, offsets [3][2]float64) []models.Coord {
	dLat := dest.Lat - origin.Lat
	dLng := dest.Lng - origin.Lng
	path := make([]models.Coord, 0, len(offsets)+2)
	path = append(path, origin)
	for _, f := range offsets {
		path = append(path, models.Coord{Lat: origin.Lat + dLat*f[0], Lng: origin.Lng + dLng*f[1]})
	}
	return append(path, dest)
}
