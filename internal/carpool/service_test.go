package carpool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/example/ecoride/internal/apperr"
	"github.com/example/ecoride/internal/models"
	"github.com/example/ecoride/internal/storage"
)

type recordedEvent struct {
	rideID int64
	typ    string
	data   any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakePublisher) Publish(rideID int64, eventType string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{rideID, eventType, data})
}

func newTestService(t *testing.T) (*Service, *storage.MemoryStore, *fakePublisher) {
	t.Helper()
	store := storage.NewMemoryStore()
	pub := &fakePublisher{}
	return NewService(store, store, store, pub, nil), store, pub
}

func offer(t *testing.T, svc *Service, capacity int, at string) models.Ride {
	t.Helper()
	r, err := svc.CreateOffer(context.Background(), Offer{Owner: "asha", SrcID: 3, DstID: 10, Capacity: capacity, Time: at})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestJoinDecrementsAndBooks(t *testing.T) {
	ctx := context.Background()
	svc, store, pub := newTestService(t)
	ride := offer(t, svc, 2, "18:30")

	res, err := svc.Join(ctx, ride.ID, 7)
	if err != nil {
		t.Fatal(err)
	}
	if res.NewCapacity != 1 || res.Status != models.RideActive {
		t.Fatalf("unexpected result %+v", res)
	}
	bs, _ := store.ListBookings(ctx, ride.ID)
	if len(bs) != 1 || bs[0].UserID != 7 {
		t.Fatalf("unexpected bookings %+v", bs)
	}
	if res.BookingID == 0 || res.BookingID != bs[0].ID {
		t.Fatalf("booking id %d does not match stored booking %d", res.BookingID, bs[0].ID)
	}
	if len(pub.events) != 1 || pub.events[0].typ != EventJoined {
		t.Fatalf("expected a join event, got %+v", pub.events)
	}
}

func TestJoinTwiceIsAlreadyBooked(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	ride := offer(t, svc, 3, "")

	if _, err := svc.Join(ctx, ride.ID, 7); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Join(ctx, ride.ID, 7)
	if !apperr.Is(err, apperr.KindAlreadyBooked) {
		t.Fatalf("expected already booked, got %v", err)
	}
	got, _ := store.GetRide(ctx, ride.ID)
	if got.Capacity != 2 {
		t.Fatalf("capacity changed on rejected join: %d", got.Capacity)
	}
	if bs, _ := store.ListBookings(ctx, ride.ID); len(bs) != 1 {
		t.Fatalf("expected one booking, got %d", len(bs))
	}
}

func TestJoinMissingRide(t *testing.T) {
	svc, _, pub := newTestService(t)
	if _, err := svc.Join(context.Background(), 999, 7); !apperr.Is(err, apperr.KindRideNotFound) {
		t.Fatalf("expected ride not found, got %v", err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("no event expected on failure")
	}
}

func TestJoinFullRide(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	ride := offer(t, svc, 1, "")

	res, err := svc.Join(ctx, ride.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.NewCapacity != 0 || res.Status != models.RideFull {
		t.Fatalf("expected full ride, got %+v", res)
	}
	if _, err := svc.Join(ctx, ride.ID, 2); !apperr.Is(err, apperr.KindRideUnavailable) {
		t.Fatalf("expected ride unavailable, got %v", err)
	}
	// an existing booking still reports already booked first
	if _, err := svc.Join(ctx, ride.ID, 1); !apperr.Is(err, apperr.KindAlreadyBooked) {
		t.Fatalf("expected already booked, got %v", err)
	}
}

func TestJoinValidatesIDs(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Join(context.Background(), 0, 1); !apperr.Is(err, apperr.KindInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := svc.Join(context.Background(), 1, -3); !apperr.Is(err, apperr.KindInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestConcurrentJoinsForLastSeat(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	ride := offer(t, svc, 1, "")

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		successes   int
		unavailable int
	)
	for user := int64(1); user <= 2; user++ {
		wg.Add(1)
		go func(u int64) {
			defer wg.Done()
			_, err := svc.Join(ctx, ride.ID, u)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperr.Is(err, apperr.KindRideUnavailable):
				unavailable++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}(user)
	}
	wg.Wait()

	if successes != 1 || unavailable != 1 {
		t.Fatalf("expected one success and one failure, got %d/%d", successes, unavailable)
	}
	got, _ := store.GetRide(ctx, ride.ID)
	if got.Capacity != 0 || got.Status != models.RideFull {
		t.Fatalf("unexpected final ride %+v", got)
	}
	if bs, _ := store.ListBookings(ctx, ride.ID); len(bs) != 1 {
		t.Fatalf("expected exactly one booking, got %d", len(bs))
	}
}

func TestConcurrentJoinsNeverOversubscribe(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	ride := offer(t, svc, 5, "")

	var wg sync.WaitGroup
	for user := int64(1); user <= 40; user++ {
		wg.Add(1)
		go func(u int64) {
			defer wg.Done()
			_, _ = svc.Join(ctx, ride.ID, u)
		}(user)
	}
	wg.Wait()

	bs, _ := store.ListBookings(ctx, ride.ID)
	if len(bs) != 5 {
		t.Fatalf("expected 5 bookings, got %d", len(bs))
	}
	got, _ := store.GetRide(ctx, ride.ID)
	if got.Capacity != 0 {
		t.Fatalf("expected capacity 0, got %d", got.Capacity)
	}
}

func TestCreateOfferValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	bad := []Offer{
		{Owner: "", SrcID: 3, DstID: 10, Capacity: 2},
		{Owner: "asha", SrcID: 3, DstID: 10, Capacity: 0},
		{Owner: "asha", SrcID: 3, DstID: 10, Capacity: 2, Time: "25:99"},
		{Owner: "asha", SrcID: 300, DstID: 10, Capacity: 2},
	}
	for _, o := range bad {
		if _, err := svc.CreateOffer(ctx, o); !apperr.Is(err, apperr.KindInvalidInput) {
			t.Fatalf("offer %+v: expected invalid input, got %v", o, err)
		}
	}
}

func TestCommunityHidesDepartedRides(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	svc.Now = func() time.Time { return time.Date(2026, 5, 4, 9, 30, 45, 0, time.Local) }

	offer(t, svc, 2, "09:29")
	exact := offer(t, svc, 2, "09:30")
	later := offer(t, svc, 2, "17:00")
	anytime := offer(t, svc, 2, "")
	full := offer(t, svc, 1, "18:00")
	if _, err := svc.Join(ctx, full.ID, 1); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Community(ctx, 3, 10)
	if err != nil {
		t.Fatal(err)
	}
	ids := map[int64]bool{}
	for _, r := range got {
		ids[r.ID] = true
		if r.SrcName != "Whitefield" || r.DstName != "Kengeri" {
			t.Fatalf("missing location names: %+v", r)
		}
	}
	if len(got) != 3 || !ids[exact.ID] || !ids[later.ID] || !ids[anytime.ID] {
		t.Fatalf("unexpected community list %+v", got)
	}

	if other, _ := svc.Community(ctx, 1, 2); len(other) != 0 {
		t.Fatalf("expected no rides for another pair, got %+v", other)
	}
}

func TestVisible(t *testing.T) {
	now := time.Date(2026, 5, 4, 14, 5, 59, 0, time.UTC)
	cases := map[string]bool{
		"":         true,
		"14:05":    true,
		"14:04":    false,
		"14:06":    true,
		"9:00":     false,
		"23:59":    true,
		"14:05:00": true,
		"noon":     false,
		"24:00":    false,
	}
	for in, want := range cases {
		if got := Visible(in, now); got != want {
			t.Fatalf("Visible(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPostMessagePublishes(t *testing.T) {
	ctx := context.Background()
	svc, store, pub := newTestService(t)
	ride := offer(t, svc, 2, "")
	u := &models.User{Username: "ravi", PasswordHash: "x"}
	_ = store.CreateUser(ctx, u)

	m, err := svc.PostMessage(ctx, ride.ID, u.ID, "  on my way ")
	if err != nil {
		t.Fatal(err)
	}
	if m.Content != "on my way" || m.Username != "ravi" {
		t.Fatalf("unexpected message %+v", m)
	}
	if len(pub.events) != 1 || pub.events[0].typ != EventMessage || pub.events[0].rideID != ride.ID {
		t.Fatalf("expected message event, got %+v", pub.events)
	}
	list, _ := svc.ListMessages(ctx, ride.ID)
	if len(list) != 1 {
		t.Fatalf("expected 1 message, got %d", len(list))
	}
	if _, err := svc.PostMessage(ctx, 999, u.ID, "hi"); !apperr.Is(err, apperr.KindRideNotFound) {
		t.Fatalf("expected ride not found, got %v", err)
	}
	if _, err := svc.PostMessage(ctx, ride.ID, u.ID, "   "); !apperr.Is(err, apperr.KindInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
