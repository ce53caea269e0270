package routing

import (
	"context"
	"log/slog"

	"github.com/example/ecoride/internal/apperr"
	"github.com/example/ecoride/internal/logging"
	"github.com/example/ecoride/internal/models"
	"github.com/example/ecoride/internal/observability"
)

// Planner validates a route request, pulls candidates from its Source and ranks them.
type Planner struct {
	Source Source
	Logger *slog.Logger
}

func NewPlanner(src Source, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Planner{Source: src, Logger: logger}
}

func (p *Planner) Plan(ctx context.Context, origin, dest models.Coord) ([]models.RouteCandidate, error) {
	if err := ValidateCoord("src", origin); err != nil {
		return nil, err
	}
	if err := ValidateCoord("dst", dest); err != nil {
		return nil, err
	}

	src := p.Source.Name()
	cands, err := p.Source.Candidates(ctx, origin, dest)
	if err != nil {
		observability.RouteRequestsTotal.WithLabelValues(src, string(apperr.KindOf(err))).Inc()
		p.Logger.Error("route candidates failed", "source", src, "error", err)
		return nil, err
	}

	ranked := Rank(cands)
	observability.RouteRequestsTotal.WithLabelValues(src, "ok").Inc()
	if len(ranked) > 0 {
		best := ranked[0]
		observability.RouteRecommendedTotal.WithLabelValues(best.Summary).Inc()
		p.Logger.Info("route_recommended",
			"source", src,
			"candidates", len(ranked),
			"summary", best.Summary,
			"eco_score", best.EcoScore,
		)
	}
	return ranked, nil
}
