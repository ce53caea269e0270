package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/ecoride/internal/logging"
	"github.com/example/ecoride/internal/models"
	"github.com/example/ecoride/internal/storage"
)

// fakeCache implements sensors.Cache for tests
type fakeCache struct {
	failPut int // number of times to fail Put before succeeding
	calls   int
	last    models.SensorReading
}

func (f *fakeCache) Latest(ctx context.Context, locationID int64) (models.SensorReading, bool, error) {
	return f.last, f.last.LocationID == locationID, nil
}

func (f *fakeCache) Put(ctx context.Context, r models.SensorReading) error {
	f.calls++
	if f.calls <= f.failPut {
		return errors.New("put fail")
	}
	f.last = r
	return nil
}

type fakeMirror struct{ got []models.SensorReading }

func (m *fakeMirror) WriteReading(r models.SensorReading) { m.got = append(m.got, r) }

func TestUpdateCacheWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeCache{failPut: 2}
	start := time.Now()
	if err := updateCacheWithRetry(context.Background(), f, models.SensorReading{LocationID: 9, AQI: 120}, 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", f.calls)
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Fatalf("expected doubling backoff between attempts")
	}
}

func TestUpdateCacheWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeCache{failPut: 5}
	if err := updateCacheWithRetry(context.Background(), f, models.SensorReading{LocationID: 9}, 3, 5*time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
	if f.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", f.calls)
	}
}

func TestHandlePersistsCachesAndMirrors(t *testing.T) {
	store := storage.NewMemoryStore()
	cache := &fakeCache{}
	mirror := &fakeMirror{}
	p := &processor{store: store, cache: cache, mirror: mirror, logger: logging.Discard(), attempts: 3, delay: time.Millisecond}

	p.handle(context.Background(), []byte(`{"location_id":9,"aqi":230,"vehicle_count":61,"timestamp":"2026-05-01T08:00:00Z"}`))

	got, err := store.LatestReading(context.Background(), 9)
	if err != nil || got.AQI != 230 || got.ID == 0 {
		t.Fatalf("reading not persisted: %+v %v", got, err)
	}
	if cache.last.ID != got.ID {
		t.Fatalf("cache holds %+v, want id %d", cache.last, got.ID)
	}
	if len(mirror.got) != 1 || mirror.got[0].VehicleCount != 61 {
		t.Fatalf("mirror got %+v", mirror.got)
	}
}

func TestHandleDropsBadMessages(t *testing.T) {
	store := storage.NewMemoryStore()
	mirror := &fakeMirror{}
	p := &processor{store: store, mirror: mirror, logger: logging.Discard(), attempts: 1}

	p.handle(context.Background(), []byte(`not json`))
	p.handle(context.Background(), []byte(`{"location_id":9,"aqi":-4}`))
	p.handle(context.Background(), []byte(`{"aqi":10}`))

	if rs, _ := store.RecentReadings(context.Background(), 0, 10); len(rs) != 0 {
		t.Fatalf("expected nothing persisted, got %d", len(rs))
	}
	if len(mirror.got) != 0 {
		t.Fatalf("expected nothing mirrored")
	}
}
