package sensors

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ecoride/internal/models"
)

// Cache holds the most recent reading per location.
type Cache interface {
	Latest(ctx context.Context, locationID int64) (models.SensorReading, bool, error)
	Put(ctx context.Context, r models.SensorReading) error
}

// RedisCache stores the latest reading of each location in a hash holding
// the reading as JSON and its timestamp in microseconds.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func latestKey(locationID int64) string {
	return "sensor:latest:" + strconv.FormatInt(locationID, 10)
}

// putIfNewer writes ARGV[2] unless the stored ts is greater than ARGV[1].
// Microsecond timestamps stay within the exact integer range of Lua numbers.
var putIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'ts')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'ts', ARGV[1], 'data', ARGV[2])
if tonumber(ARGV[3]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

func (c *RedisCache) Latest(ctx context.Context, locationID int64) (models.SensorReading, bool, error) {
	raw, err := c.client.HGet(ctx, latestKey(locationID), "data").Bytes()
	if errors.Is(err, redis.Nil) {
		return models.SensorReading{}, false, nil
	}
	if err != nil {
		return models.SensorReading{}, false, err
	}
	var r models.SensorReading
	if err := json.Unmarshal(raw, &r); err != nil {
		return models.SensorReading{}, false, err
	}
	return r, true, nil
}

// Put replaces the cached reading unless the cached one is newer. The
// comparison and the write run as one script so concurrent writers cannot
// interleave.
func (c *RedisCache) Put(ctx context.Context, r models.SensorReading) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	args := []any{r.Timestamp.UnixMicro(), string(b), c.ttl.Milliseconds()}
	return putIfNewer.Run(ctx, c.client, []string{latestKey(r.LocationID)}, args...).Err()
}
