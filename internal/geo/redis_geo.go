package geo

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/example/ecoride/internal/models"
)

// RedisGeo implements Locator using Redis GEO commands. Location names and
// kinds live in a hash next to the GEO set.
type RedisGeo struct {
	client redis.Cmdable
	key    string
}

func NewRedisGeo(client redis.Cmdable, key string) *RedisGeo {
	return &RedisGeo{client: client, key: key}
}

func (r *RedisGeo) Index(ctx context.Context, locs []models.Location) error {
	if len(locs) == 0 {
		return nil
	}
	members := make([]*redis.GeoLocation, 0, len(locs))
	pipe := r.client.TxPipeline()
	for _, l := range locs {
		id := strconv.FormatInt(l.ID, 10)
		members = append(members, &redis.GeoLocation{Longitude: l.Lng, Latitude: l.Lat, Name: id})
		pipe.HSet(ctx, metaKey(id), map[string]interface{}{"name": l.Name, "type": string(l.Kind)})
	}
	pipe.GeoAdd(ctx, r.key, members...)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisGeo) Nearby(ctx context.Context, lat, lng, radiusM float64, limit int) ([]Hit, error) {
	if radiusM <= 0 {
		radiusM = DefaultRadiusM
	}
	q := &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lng,
			Latitude:   lat,
			Radius:     radiusM,
			RadiusUnit: "m",
			Sort:       "ASC",
			Count:      limit,
		},
		WithCoord: true,
		WithDist:  true,
	}
	res, err := r.client.GeoSearchLocation(ctx, r.key, q).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Hit, 0, len(res))
	for _, g := range res {
		id, err := strconv.ParseInt(g.Name, 10, 64)
		if err != nil {
			continue
		}
		h := Hit{Location: models.Location{ID: id, Lat: g.Latitude, Lng: g.Longitude}, DistanceM: g.Dist}
		if m, err := r.client.HGetAll(ctx, metaKey(g.Name)).Result(); err == nil {
			h.Name = m["name"]
			h.Kind = models.LocationKind(m["type"])
		}
		out = append(out, h)
	}
	return out, nil
}

func metaKey(id string) string { return "location:meta:" + id }
