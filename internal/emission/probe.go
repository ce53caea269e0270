package emission

import (
	"context"
	"math"
	"math/rand"

	"github.com/example/ecoride/internal/models"
)

// Probe supplies an aqi reading for a vehicle when the caller does not send one.
type Probe interface {
	Read(ctx context.Context, vehicleID string) (int, error)
}

// SimulatedProbe mimics a roadside tester that flags most vehicles:
// seven readings in ten land in [81, 181), the rest in [30, 80).
type SimulatedProbe struct {
	Rand func() float64
}

func (p SimulatedProbe) Read(ctx context.Context, vehicleID string) (int, error) {
	draw := p.Rand
	if draw == nil {
		draw = rand.Float64
	}
	if draw() > 0.3 {
		return 81 + int(math.Floor(draw()*100)), nil
	}
	return 30 + int(math.Floor(draw()*50)), nil
}

type latestReader interface {
	LatestReading(ctx context.Context, locationID int64) (models.SensorReading, error)
}

// SensorProbe uses the most recent reading of a fixed checkpoint sensor.
type SensorProbe struct {
	Sensors    latestReader
	LocationID int64
}

func (p SensorProbe) Read(ctx context.Context, vehicleID string) (int, error) {
	r, err := p.Sensors.LatestReading(ctx, p.LocationID)
	if err != nil {
		return 0, err
	}
	return r.AQI, nil
}
