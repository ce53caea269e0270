package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/ecoride/internal/apperr"
	"github.com/example/ecoride/internal/models"
)

func TestMemoryRideScopeDiscardsWritesOnError(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	ride := &models.Ride{Owner: "asha", SrcID: 3, DstID: 10, Capacity: 2, DepartureTime: "18:30"}
	if err := m.CreateRide(ctx, ride); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := m.WithinRide(ctx, ride.ID, func(tx RideTx) error {
		if _, ok, err := tx.TakeSeat(ctx, ride.ID); err != nil || !ok {
			t.Fatalf("take seat ok=%v err=%v", ok, err)
		}
		if err := tx.InsertBooking(ctx, &models.Booking{RideID: ride.ID, UserID: 1}); err != nil {
			t.Fatal(err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected scope error, got %v", err)
	}

	got, _ := m.GetRide(ctx, ride.ID)
	if got.Capacity != 2 || got.Status != models.RideActive {
		t.Fatalf("ride mutated after failed scope: %+v", got)
	}
	if bs, _ := m.ListBookings(ctx, ride.ID); len(bs) != 0 {
		t.Fatalf("booking leaked after failed scope: %+v", bs)
	}
}

func TestMemoryTakeSeatFlipsToFull(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	ride := &models.Ride{Owner: "asha", SrcID: 3, DstID: 10, Capacity: 1}
	_ = m.CreateRide(ctx, ride)

	err := m.WithinRide(ctx, ride.ID, func(tx RideTx) error {
		r, ok, err := tx.TakeSeat(ctx, ride.ID)
		if err != nil || !ok {
			t.Fatalf("ok=%v err=%v", ok, err)
		}
		if r.Capacity != 0 || r.Status != models.RideFull {
			t.Fatalf("unexpected ride %+v", r)
		}
		if _, ok, _ := tx.TakeSeat(ctx, ride.ID); ok {
			t.Fatalf("second seat on a full ride must fail")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if open, _ := m.ListOpenRides(ctx, 0, 0); len(open) != 0 {
		t.Fatalf("full ride still listed: %+v", open)
	}
}

func TestMemoryTakeSeatMissingRide(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	err := m.WithinRide(ctx, 404, func(tx RideTx) error {
		_, ok, err := tx.TakeSeat(ctx, 404)
		if err != nil || ok {
			t.Fatalf("ok=%v err=%v", ok, err)
		}
		_, err = tx.GetRide(ctx, 404)
		if !apperr.Is(err, apperr.KindNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestMemoryInsertBookingDuplicateIsConflict(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	ride := &models.Ride{Owner: "asha", SrcID: 3, DstID: 10, Capacity: 3}
	_ = m.CreateRide(ctx, ride)
	join := func() error {
		return m.WithinRide(ctx, ride.ID, func(tx RideTx) error {
			return tx.InsertBooking(ctx, &models.Booking{RideID: ride.ID, UserID: 7})
		})
	}
	if err := join(); err != nil {
		t.Fatal(err)
	}
	if err := join(); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestMemoryViolationScopeSerializesPerVehicle(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	var wg sync.WaitGroup
	counts := make(chan int, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.WithinVehicle(ctx, "KA01AB1234", func(tx ViolationTx) error {
				n, err := tx.CountViolations(ctx, "KA01AB1234")
				if err != nil {
					return err
				}
				counts <- n
				return tx.InsertViolation(ctx, &models.Violation{VehicleID: "KA01AB1234", Reason: "test"})
			})
		}()
	}
	wg.Wait()
	close(counts)

	seen := make(map[int]bool)
	for n := range counts {
		if seen[n] {
			t.Fatalf("count %d observed twice", n)
		}
		seen[n] = true
	}
	vs, _ := m.ListViolations(ctx, "KA01AB1234")
	if len(vs) != 20 {
		t.Fatalf("expected 20 violations, got %d", len(vs))
	}
	if m.vehicleLocks.size() != 0 {
		t.Fatalf("vehicle locks not released")
	}
}

func TestMemoryLatestReadingNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	if _, err := m.LatestReading(ctx, 9); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found on empty location, got %v", err)
	}
	_ = m.AppendReading(ctx, &models.SensorReading{LocationID: 9, AQI: 100, VehicleCount: 10, Timestamp: base})
	_ = m.AppendReading(ctx, &models.SensorReading{LocationID: 9, AQI: 140, VehicleCount: 25, Timestamp: base.Add(time.Minute)})
	_ = m.AppendReading(ctx, &models.SensorReading{LocationID: 2, AQI: 300, VehicleCount: 90, Timestamp: base.Add(time.Hour)})

	r, err := m.LatestReading(ctx, 9)
	if err != nil {
		t.Fatal(err)
	}
	if r.AQI != 140 {
		t.Fatalf("expected newest reading, got %+v", r)
	}
	window, _ := m.ReadingsBetween(ctx, 9, base, base.Add(30*time.Second))
	if len(window) != 1 || window[0].AQI != 100 {
		t.Fatalf("unexpected window %+v", window)
	}
	all, _ := m.RecentReadings(ctx, 0, 50)
	if len(all) != 3 || all[0].LocationID != 2 {
		t.Fatalf("unexpected recent list %+v", all)
	}
}

func TestMemoryUsersAreCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	if err := m.CreateUser(ctx, &models.User{Username: "Ravi", PasswordHash: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := m.CreateUser(ctx, &models.User{Username: "ravi", PasswordHash: "y"}); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	u, err := m.UserByUsername(ctx, "RAVI")
	if err != nil || u.Role != "user" {
		t.Fatalf("lookup failed: %+v %v", u, err)
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := k.Lock("b")
		unlockB()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
	unlockA()
	if k.size() != 0 {
		t.Fatalf("expected no retained keys, got %d", k.size())
	}
}
