package routing

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/example/ecoride/internal/apperr"
	"github.com/example/ecoride/internal/models"
)

type fakeSensors struct {
	reading models.SensorReading
	err     error
	calls   int
}

func (f *fakeSensors) LatestReading(ctx context.Context, locationID int64) (models.SensorReading, error) {
	f.calls++
	return f.reading, f.err
}

func fixedRand(v float64) func() float64 { return func() float64 { return v } }

func ecoOf(t *testing.T, cands []models.RouteCandidate) models.RouteCandidate {
	t.Helper()
	for _, c := range cands {
		if c.ID == 2 {
			return c
		}
	}
	t.Fatal("eco candidate missing")
	return models.RouteCandidate{}
}

func TestSimulatedWhitefieldToKengeriUsesCorridorReading(t *testing.T) {
	sensors := &fakeSensors{reading: models.SensorReading{LocationID: 9, AQI: 60, VehicleCount: 25}}
	src := &SimulatedSource{Sensors: sensors, CorridorLocationID: 9, Rand: fixedRand(0.99)}

	cands, err := src.Candidates(context.Background(), Whitefield, Kengeri)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(cands))
	}
	eco := ecoOf(t, cands)
	if eco.AQIAvg != 60 || eco.TrafficLevel != 25 {
		t.Fatalf("eco signals not fused: %+v", eco)
	}

	ranked := Rank(cands)
	if ranked[0].Summary != "Eco Route (Low Pollution)" || !ranked[0].IsRecommended {
		t.Fatalf("expected eco route recommended, got %+v", ranked[0])
	}
}

func TestSimulatedCorridorEitherDirectionWithinTolerance(t *testing.T) {
	sensors := &fakeSensors{reading: models.SensorReading{AQI: 70, VehicleCount: 30}}
	src := &SimulatedSource{Sensors: sensors, CorridorLocationID: 9}
	origin := models.Coord{Lat: Kengeri.Lat + 0.009, Lng: Kengeri.Lng - 0.009}

	cands, _ := src.Candidates(context.Background(), origin, Whitefield)
	if eco := ecoOf(t, cands); eco.AQIAvg != 70 {
		t.Fatalf("expected corridor match, got %+v", eco)
	}
	if sensors.calls != 1 {
		t.Fatalf("expected one sensor read, got %d", sensors.calls)
	}
}

func TestSimulatedOffCorridorUsesSubstitutes(t *testing.T) {
	sensors := &fakeSensors{reading: models.SensorReading{AQI: 60, VehicleCount: 25}}
	src := &SimulatedSource{Sensors: sensors, CorridorLocationID: 9, Rand: fixedRand(0)}
	mgRoad := models.Coord{Lat: 12.9716, Lng: 77.5946}

	cands, _ := src.Candidates(context.Background(), mgRoad, Kengeri)
	eco := ecoOf(t, cands)
	if eco.AQIAvg != 50 || eco.TrafficLevel != 20 {
		t.Fatalf("expected lower substitute bounds, got %+v", eco)
	}
	if sensors.calls != 0 {
		t.Fatalf("sensor should not be consulted off corridor")
	}
}

func TestSimulatedSubstituteBounds(t *testing.T) {
	src := &SimulatedSource{Rand: fixedRand(0.999999)}
	cands, _ := src.Candidates(context.Background(), models.Coord{Lat: 1, Lng: 1}, models.Coord{Lat: 2, Lng: 2})
	eco := ecoOf(t, cands)
	if eco.AQIAvg < 50 || eco.AQIAvg >= 150 {
		t.Fatalf("aqi out of range: %f", eco.AQIAvg)
	}
	if eco.TrafficLevel < 20 || eco.TrafficLevel >= 60 {
		t.Fatalf("traffic out of range: %f", eco.TrafficLevel)
	}
}

func TestSimulatedSensorFailureIsDowngraded(t *testing.T) {
	for name, err := range map[string]error{
		"no reading": apperr.New(apperr.KindNotFound, "test", "none"),
		"failure":    errors.New("connection refused"),
	} {
		t.Run(name, func(t *testing.T) {
			src := &SimulatedSource{Sensors: &fakeSensors{err: err}, CorridorLocationID: 9, Rand: fixedRand(0.5)}
			cands, gotErr := src.Candidates(context.Background(), Kengeri, Whitefield)
			if gotErr != nil {
				t.Fatalf("sensor error must not abort: %v", gotErr)
			}
			eco := ecoOf(t, cands)
			if eco.AQIAvg != 100 || eco.TrafficLevel != 40 {
				t.Fatalf("expected substitutes, got %+v", eco)
			}
		})
	}
}

func TestSimulatedPathsStartAndEndAtEndpoints(t *testing.T) {
	src := &SimulatedSource{Rand: fixedRand(0.3)}
	origin := models.Coord{Lat: 12.9352, Lng: 77.6245}
	dest := models.Coord{Lat: 13.1007, Lng: 77.5963}
	cands, _ := src.Candidates(context.Background(), origin, dest)
	for _, c := range cands {
		if len(c.Path) < 5 {
			t.Fatalf("candidate %d has %d points", c.ID, len(c.Path))
		}
		if c.Path[0] != origin || c.Path[len(c.Path)-1] != dest {
			t.Fatalf("candidate %d path does not span endpoints", c.ID)
		}
	}
	fastest := cands[0]
	want := models.Coord{Lat: origin.Lat + (dest.Lat-origin.Lat)*0.3, Lng: origin.Lng + (dest.Lng-origin.Lng)*0.2}
	if math.Abs(fastest.Path[1].Lat-want.Lat) > 1e-9 || math.Abs(fastest.Path[1].Lng-want.Lng) > 1e-9 {
		t.Fatalf("unexpected first waypoint %+v, want %+v", fastest.Path[1], want)
	}
	if fastest.Distance != "12 km" || fastest.Duration != "35 mins" {
		t.Fatalf("unexpected labels %q %q", fastest.Distance, fastest.Duration)
	}
}
