package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/example/ecoride/internal/apperr"
	"github.com/example/ecoride/internal/models"
)

type bookingKey struct {
	rideID int64
	userID int64
}

// MemoryStore keeps everything in process. Map access is guarded by mu;
// ride and vehicle read-modify-write scopes additionally hold a per-key lock
// so unrelated rides never wait on each other.
type MemoryStore struct {
	mu sync.RWMutex

	lastID int64

	locations  []models.Location
	readings   []models.SensorReading
	rides      map[int64]models.Ride
	bookings   []models.Booking
	booked     map[bookingKey]struct{}
	violations []models.Violation
	users      map[int64]models.User
	usernames  map[string]int64
	messages   []models.Message
	alerts     []models.SafetyAlert

	rideLocks    *keyedMutex
	vehicleLocks *keyedMutex

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		locations:    append([]models.Location(nil), SeedLocations...),
		rides:        make(map[int64]models.Ride),
		booked:       make(map[bookingKey]struct{}),
		users:        make(map[int64]models.User),
		usernames:    make(map[string]int64),
		rideLocks:    newKeyedMutex(),
		vehicleLocks: newKeyedMutex(),
		now:          time.Now,
	}
	return m
}

func (m *MemoryStore) Close() error { return nil }

// nextID must be called with mu held for writing.
func (m *MemoryStore) nextID() int64 {
	m.lastID++
	return m.lastID
}

func (m *MemoryStore) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return m.now()
	}
	return t
}

// --- locations ---

func (m *MemoryStore) ListLocations(ctx context.Context) ([]models.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Location(nil), m.locations...), nil
}

func (m *MemoryStore) GetLocation(ctx context.Context, id int64) (models.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.locations {
		if l.ID == id {
			return l, nil
		}
	}
	return models.Location{}, apperr.New(apperr.KindNotFound, "locations.get", "location not found")
}

func (m *MemoryStore) DemoLocation(ctx context.Context) (models.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.locations {
		if l.Kind == models.LocationDemo {
			return l, nil
		}
	}
	return models.Location{}, apperr.New(apperr.KindNotFound, "locations.demo", "demo zone not found")
}

// --- sensors ---

func (m *MemoryStore) AppendReading(ctx context.Context, r *models.SensorReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.nextID()
	r.Timestamp = m.stamp(r.Timestamp)
	m.readings = append(m.readings, *r)
	return nil
}

// newestFirst orders by timestamp, then insertion id, descending.
func newestFirst(rs []models.SensorReading) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Timestamp.Equal(rs[j].Timestamp) {
			return rs[i].ID > rs[j].ID
		}
		return rs[i].Timestamp.After(rs[j].Timestamp)
	})
}

func (m *MemoryStore) LatestReading(ctx context.Context, locationID int64) (models.SensorReading, error) {
	rs, _ := m.RecentReadings(ctx, locationID, 1)
	if len(rs) == 0 || locationID == 0 {
		return models.SensorReading{}, apperr.New(apperr.KindNotFound, "sensors.latest", "no reading for location")
	}
	return rs[0], nil
}

func (m *MemoryStore) RecentReadings(ctx context.Context, locationID int64, limit int) ([]models.SensorReading, error) {
	m.mu.RLock()
	out := make([]models.SensorReading, 0)
	for _, r := range m.readings {
		if locationID == 0 || r.LocationID == locationID {
			out = append(out, r)
		}
	}
	m.mu.RUnlock()
	newestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ReadingsBetween(ctx context.Context, locationID int64, from, to time.Time) ([]models.SensorReading, error) {
	m.mu.RLock()
	out := make([]models.SensorReading, 0)
	for _, r := range m.readings {
		if r.LocationID != locationID {
			continue
		}
		if r.Timestamp.Before(from) || r.Timestamp.After(to) {
			continue
		}
		out = append(out, r)
	}
	m.mu.RUnlock()
	newestFirst(out)
	return out, nil
}

// --- rides ---

func (m *MemoryStore) CreateRide(ctx context.Context, r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.nextID()
	if r.Status == "" {
		r.Status = models.RideActive
	}
	m.rides[r.ID] = *r
	return nil
}

func (m *MemoryStore) GetRide(ctx context.Context, id int64) (models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return models.Ride{}, apperr.New(apperr.KindNotFound, "rides.get", "ride not found")
	}
	return r, nil
}

func (m *MemoryStore) ListOpenRides(ctx context.Context, srcID, dstID int64) ([]models.RideListing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make(map[int64]string, len(m.locations))
	for _, l := range m.locations {
		names[l.ID] = l.Name
	}
	out := make([]models.RideListing, 0)
	for _, r := range m.rides {
		if r.Status != models.RideActive || r.Capacity <= 0 {
			continue
		}
		if (srcID != 0 && r.SrcID != srcID) || (dstID != 0 && r.DstID != dstID) {
			continue
		}
		out = append(out, models.RideListing{Ride: r, SrcName: names[r.SrcID], DstName: names[r.DstID]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) ListBookings(ctx context.Context, rideID int64) ([]models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Booking, 0)
	for _, b := range m.bookings {
		if b.RideID == rideID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *MemoryStore) WithinRide(ctx context.Context, rideID int64, fn func(tx RideTx) error) error {
	unlock := m.rideLocks.Lock(strconv.FormatInt(rideID, 10))
	defer unlock()

	tx := &memRideTx{m: m, rideID: rideID}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return apperr.Wrap(apperr.KindStorageFailure, "rides.commit", err)
	}
	tx.commit()
	return nil
}

// memRideTx stages writes until the scope function succeeds.
type memRideTx struct {
	m        *MemoryStore
	rideID   int64
	ride     *models.Ride
	bookings []models.Booking
}

func (tx *memRideTx) scoped(op string, rideID int64) error {
	if rideID != tx.rideID {
		return apperr.New(apperr.KindStorageFailure, op, fmt.Sprintf("ride %d outside scope of ride %d", rideID, tx.rideID))
	}
	return nil
}

func (tx *memRideTx) BookingExists(ctx context.Context, rideID, userID int64) (bool, error) {
	if err := tx.scoped("rides.booking_exists", rideID); err != nil {
		return false, err
	}
	for _, b := range tx.bookings {
		if b.UserID == userID {
			return true, nil
		}
	}
	tx.m.mu.RLock()
	defer tx.m.mu.RUnlock()
	_, ok := tx.m.booked[bookingKey{rideID, userID}]
	return ok, nil
}

func (tx *memRideTx) GetRide(ctx context.Context, rideID int64) (models.Ride, error) {
	if err := tx.scoped("rides.get", rideID); err != nil {
		return models.Ride{}, err
	}
	if tx.ride != nil {
		return *tx.ride, nil
	}
	return tx.m.GetRide(ctx, rideID)
}

func (tx *memRideTx) TakeSeat(ctx context.Context, rideID int64) (models.Ride, bool, error) {
	r, err := tx.GetRide(ctx, rideID)
	if apperr.Is(err, apperr.KindNotFound) {
		return models.Ride{}, false, nil
	}
	if err != nil {
		return models.Ride{}, false, err
	}
	if r.Capacity <= 0 || r.Status != models.RideActive {
		return r, false, nil
	}
	r.Capacity--
	if r.Capacity == 0 {
		r.Status = models.RideFull
	}
	tx.ride = &r
	return r, true, nil
}

func (tx *memRideTx) InsertBooking(ctx context.Context, b *models.Booking) error {
	exists, err := tx.BookingExists(ctx, b.RideID, b.UserID)
	if err != nil {
		return err
	}
	if exists {
		return apperr.New(apperr.KindConflict, "bookings.insert", "duplicate booking for ride and user")
	}
	tx.m.mu.Lock()
	b.ID = tx.m.nextID()
	tx.m.mu.Unlock()
	b.Timestamp = tx.m.stamp(b.Timestamp)
	tx.bookings = append(tx.bookings, *b)
	return nil
}

func (tx *memRideTx) commit() {
	tx.m.mu.Lock()
	defer tx.m.mu.Unlock()
	if tx.ride != nil {
		tx.m.rides[tx.ride.ID] = *tx.ride
	}
	for _, b := range tx.bookings {
		tx.m.bookings = append(tx.m.bookings, b)
		tx.m.booked[bookingKey{b.RideID, b.UserID}] = struct{}{}
	}
}

// --- violations ---

func (m *MemoryStore) ListViolations(ctx context.Context, vehicleID string) ([]models.Violation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Violation, 0)
	for _, v := range m.violations {
		if v.VehicleID == vehicleID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *MemoryStore) GetViolation(ctx context.Context, id int64) (models.Violation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.violations {
		if v.ID == id {
			return v, nil
		}
	}
	return models.Violation{}, apperr.New(apperr.KindNotFound, "violations.get", "violation not found")
}

func (m *MemoryStore) WithinVehicle(ctx context.Context, vehicleID string, fn func(tx ViolationTx) error) error {
	unlock := m.vehicleLocks.Lock(vehicleID)
	defer unlock()

	tx := &memViolationTx{m: m, vehicleID: vehicleID}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return apperr.Wrap(apperr.KindStorageFailure, "violations.commit", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range tx.staged {
		m.violations = append(m.violations, *v)
	}
	return nil
}

type memViolationTx struct {
	m         *MemoryStore
	vehicleID string
	staged    []*models.Violation
}

func (tx *memViolationTx) CountViolations(ctx context.Context, vehicleID string) (int, error) {
	if vehicleID != tx.vehicleID {
		return 0, apperr.New(apperr.KindStorageFailure, "violations.count", "vehicle outside scope")
	}
	tx.m.mu.RLock()
	defer tx.m.mu.RUnlock()
	n := len(tx.staged)
	for _, v := range tx.m.violations {
		if v.VehicleID == vehicleID {
			n++
		}
	}
	return n, nil
}

func (tx *memViolationTx) InsertViolation(ctx context.Context, v *models.Violation) error {
	if v.VehicleID != tx.vehicleID {
		return apperr.New(apperr.KindStorageFailure, "violations.insert", "vehicle outside scope")
	}
	tx.m.mu.Lock()
	v.ID = tx.m.nextID()
	tx.m.mu.Unlock()
	v.Timestamp = tx.m.stamp(v.Timestamp)
	if v.Status == "" {
		v.Status = models.ViolationPending
	}
	tx.staged = append(tx.staged, v)
	return nil
}

// --- users ---

func (m *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(u.Username)
	if _, taken := m.usernames[key]; taken {
		return apperr.New(apperr.KindConflict, "users.create", "username already exists")
	}
	u.ID = m.nextID()
	if u.Role == "" {
		u.Role = "user"
	}
	m.users[u.ID] = *u
	m.usernames[key] = u.ID
	return nil
}

func (m *MemoryStore) UserByUsername(ctx context.Context, username string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.usernames[strings.ToLower(username)]
	if !ok {
		return models.User{}, apperr.New(apperr.KindNotFound, "users.by_username", "user not found")
	}
	return m.users[id], nil
}

func (m *MemoryStore) GetUser(ctx context.Context, id int64) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return models.User{}, apperr.New(apperr.KindNotFound, "users.get", "user not found")
	}
	return u, nil
}

// --- messages ---

func (m *MemoryStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = m.nextID()
	msg.Timestamp = m.stamp(msg.Timestamp)
	if u, ok := m.users[msg.UserID]; ok {
		msg.Username = u.Username
	}
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *MemoryStore) ListMessages(ctx context.Context, rideID int64) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Message, 0)
	for _, msg := range m.messages {
		if msg.RideID == rideID {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// --- safety alerts ---

func (m *MemoryStore) AppendAlert(ctx context.Context, a *models.SafetyAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.nextID()
	a.Timestamp = m.stamp(a.Timestamp)
	if a.Status == "" {
		a.Status = "triggered"
	}
	if u, ok := m.users[a.UserID]; ok {
		a.Username = u.Username
	}
	m.alerts = append(m.alerts, *a)
	return nil
}

func (m *MemoryStore) ListAlerts(ctx context.Context, rideID, userID int64, limit int) ([]models.SafetyAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.SafetyAlert, 0)
	for i := len(m.alerts) - 1; i >= 0; i-- {
		a := m.alerts[i]
		if (rideID != 0 && a.RideID != rideID) || (userID != 0 && a.UserID != userID) {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
