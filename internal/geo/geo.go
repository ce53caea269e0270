package geo

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/example/ecoride/internal/models"
)

// DefaultRadiusM is used when a proximity query does not name a radius.
const DefaultRadiusM = 5000.0

// Hit is a location with its distance from the query point.
type Hit struct {
	models.Location
	DistanceM float64 `json:"distance_m"`
}

// Locator answers "which hotspots are near this point" queries.
type Locator interface {
	Index(ctx context.Context, locs []models.Location) error
	Nearby(ctx context.Context, lat, lng, radiusM float64, limit int) ([]Hit, error)
}

// Index is the in-process Locator. The location set is small, so a full
// scan per query is fine.
type Index struct {
	mu   sync.RWMutex
	locs map[int64]models.Location
}

func NewIndex() *Index {
	return &Index{locs: make(map[int64]models.Location)}
}

func (g *Index) Index(ctx context.Context, locs []models.Location) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, l := range locs {
		g.locs[l.ID] = l
	}
	return nil
}

// Nearby returns locations within radiusM, closest first. limit <= 0 means no limit.
func (g *Index) Nearby(ctx context.Context, lat, lng, radiusM float64, limit int) ([]Hit, error) {
	if radiusM <= 0 {
		radiusM = DefaultRadiusM
	}
	g.mu.RLock()
	out := make([]Hit, 0)
	for _, l := range g.locs {
		d := Haversine(lat, lng, l.Lat, l.Lng)
		if d <= radiusM {
			out = append(out, Hit{Location: l, DistanceM: d})
		}
	}
	g.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceM != out[j].DistanceM {
			return out[i].DistanceM < out[j].DistanceM
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
