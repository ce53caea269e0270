package routing

import (
	"math"
	"sort"

	"github.com/example/ecoride/internal/models"
)

const (
	aqiWeight      = 0.5
	trafficWeight  = 0.3
	distanceWeight = 0.05

	aqiCeiling     = 300.0
	trafficCeiling = 100.0
)

// EcoScore fuses pollution, congestion and length into one number; lower is better.
// aqi and traffic saturate at their ceilings, distance does not.
func EcoScore(aqi, traffic, distanceKm float64) float64 {
	return aqiWeight*math.Min(aqi/aqiCeiling, 1) +
		trafficWeight*math.Min(traffic/trafficCeiling, 1) +
		distanceWeight*distanceKm
}

// Rank scores every candidate, orders them best first and marks the first one
// recommended. Equal scores keep their incoming order. The input is not modified.
func Rank(cands []models.RouteCandidate) []models.RouteCandidate {
	out := make([]models.RouteCandidate, len(cands))
	copy(out, cands)
	for i := range out {
		out[i].EcoScore = EcoScore(out[i].AQIAvg, out[i].TrafficLevel, out[i].DistanceKm)
		out[i].IsRecommended = false
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EcoScore < out[j].EcoScore })
	if len(out) > 0 {
		out[0].IsRecommended = true
	}
	return out
}
