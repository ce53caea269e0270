package routing

import (
	"math"
	"testing"

	"github.com/example/ecoride/internal/models"
)

func TestEcoScoreWeights(t *testing.T) {
	got := EcoScore(150, 80, 12)
	want := 0.5*0.5 + 0.3*0.8 + 0.05*12
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %f, got %f", want, got)
	}
	// aqi and traffic saturate
	if EcoScore(600, 250, 0) != EcoScore(300, 100, 0) {
		t.Fatalf("expected saturation at ceilings")
	}
}

func TestEcoScoreMonotonic(t *testing.T) {
	base := EcoScore(100, 40, 10)
	if EcoScore(120, 40, 10) < base {
		t.Fatalf("score decreased with aqi")
	}
	if EcoScore(100, 60, 10) < base {
		t.Fatalf("score decreased with traffic")
	}
	if EcoScore(100, 40, 11) < base {
		t.Fatalf("score decreased with distance")
	}
}

func TestRankRecommendsLowestScore(t *testing.T) {
	cands := []models.RouteCandidate{
		{ID: 1, DistanceKm: 12, TrafficLevel: 80, AQIAvg: 150},
		{ID: 2, DistanceKm: 14, TrafficLevel: 20, AQIAvg: 60},
		{ID: 3, DistanceKm: 15, TrafficLevel: 40, AQIAvg: 90, IsRecommended: true},
	}
	ranked := Rank(cands)
	if ranked[0].ID != 2 {
		t.Fatalf("expected candidate 2 first, got %d", ranked[0].ID)
	}
	recommended := 0
	for i, rc := range ranked {
		if rc.IsRecommended {
			recommended++
		}
		if i > 0 && rc.EcoScore < ranked[i-1].EcoScore {
			t.Fatalf("not sorted ascending at %d", i)
		}
	}
	if recommended != 1 {
		t.Fatalf("expected exactly one recommended, got %d", recommended)
	}
	if cands[2].EcoScore != 0 {
		t.Fatalf("input was modified")
	}
}

func TestRankTiesKeepOriginalOrder(t *testing.T) {
	cands := []models.RouteCandidate{
		{ID: 7, DistanceKm: 10, TrafficLevel: 50, AQIAvg: 100},
		{ID: 3, DistanceKm: 10, TrafficLevel: 50, AQIAvg: 100},
		{ID: 5, DistanceKm: 10, TrafficLevel: 50, AQIAvg: 100},
	}
	ranked := Rank(cands)
	for i, want := range []int{7, 3, 5} {
		if ranked[i].ID != want {
			t.Fatalf("position %d: expected %d, got %d", i, want, ranked[i].ID)
		}
	}
	if !ranked[0].IsRecommended || ranked[1].IsRecommended {
		t.Fatalf("tie should recommend the first in original order")
	}
}

func TestRankEmpty(t *testing.T) {
	if got := Rank(nil); len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}
