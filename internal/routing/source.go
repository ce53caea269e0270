package routing

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/example/ecoride/internal/apperr"
	"github.com/example/ecoride/internal/models"
)

// Source supplies unscored route candidates between two points.
type Source interface {
	Candidates(ctx context.Context, origin, dest models.Coord) ([]models.RouteCandidate, error)
	// Name labels the source in metrics and logs.
	Name() string
}

// ParseCoord parses a lat/lng pair from query strings.
func ParseCoord(field, lat, lng string) (models.Coord, error) {
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return models.Coord{}, apperr.Invalid("routing.parse", field+".lat", "must be a number")
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return models.Coord{}, apperr.Invalid("routing.parse", field+".lng", "must be a number")
	}
	c := models.Coord{Lat: la, Lng: lo}
	return c, ValidateCoord(field, c)
}

// ValidateCoord rejects NaN, infinities and values outside the WGS84 ranges.
func ValidateCoord(field string, c models.Coord) error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || c.Lat < -90 || c.Lat > 90 {
		return apperr.Invalid("routing.validate", field+".lat", "must be within [-90, 90]")
	}
	if math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) || c.Lng < -180 || c.Lng > 180 {
		return apperr.Invalid("routing.validate", field+".lng", "must be within [-180, 180]")
	}
	return nil
}
