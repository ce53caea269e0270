package sensors

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ecoride/internal/models"
)

// newTestRedis connects to REDIS_TEST_ADDR and skips when it is unset.
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisCacheKeepsNewerReading(t *testing.T) {
	ctx := context.Background()
	client := newTestRedis(t)
	const loc = 990001
	_ = client.Del(ctx, latestKey(loc)).Err()
	t.Cleanup(func() { _ = client.Del(context.Background(), latestKey(loc)).Err() })

	c := NewRedisCache(client, time.Minute)
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	if err := c.Put(ctx, models.SensorReading{LocationID: loc, AQI: 120, Timestamp: base.Add(time.Minute)}); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(ctx, models.SensorReading{LocationID: loc, AQI: 40, Timestamp: base}); err != nil {
		t.Fatal(err)
	}
	r, ok, err := c.Latest(ctx, loc)
	if err != nil || !ok || r.AQI != 120 {
		t.Fatalf("older reading replaced newer one: %+v ok=%v err=%v", r, ok, err)
	}
	if ttl := client.TTL(ctx, latestKey(loc)).Val(); ttl <= 0 {
		t.Fatalf("expected expiry on cached reading, got %v", ttl)
	}
}

func TestRedisCacheConcurrentPutsKeepNewest(t *testing.T) {
	ctx := context.Background()
	client := newTestRedis(t)
	const loc = 990002
	_ = client.Del(ctx, latestKey(loc)).Err()
	t.Cleanup(func() { _ = client.Del(context.Background(), latestKey(loc)).Err() })

	c := NewRedisCache(client, time.Minute)
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = c.Put(ctx, models.SensorReading{LocationID: loc, AQI: i, Timestamp: base.Add(time.Duration(i) * time.Second)})
		}(i)
	}
	wg.Wait()

	r, ok, err := c.Latest(ctx, loc)
	if err != nil || !ok || r.AQI != 49 {
		t.Fatalf("expected newest reading to win, got %+v ok=%v err=%v", r, ok, err)
	}
}

func TestRedisCacheMiss(t *testing.T) {
	client := newTestRedis(t)
	c := NewRedisCache(client, time.Minute)
	if _, ok, err := c.Latest(context.Background(), 990003); err != nil || ok {
		t.Fatalf("expected clean miss, ok=%v err=%v", ok, err)
	}
}
