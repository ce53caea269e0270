package storage

import (
	"context"
	"time"

	"github.com/example/ecoride/internal/models"
)

// LocationStore is the Location Directory.
type LocationStore interface {
	ListLocations(ctx context.Context) ([]models.Location, error)
	GetLocation(ctx context.Context, id int64) (models.Location, error)
	// DemoLocation returns the first location of kind demo.
	DemoLocation(ctx context.Context) (models.Location, error)
}

// SensorStore is append-only; readings come back most recent first.
type SensorStore interface {
	AppendReading(ctx context.Context, r *models.SensorReading) error
	// LatestReading fails with apperr.KindNotFound when the location has no readings.
	LatestReading(ctx context.Context, locationID int64) (models.SensorReading, error)
	// RecentReadings lists up to limit readings; locationID 0 means every location.
	RecentReadings(ctx context.Context, locationID int64, limit int) ([]models.SensorReading, error)
	ReadingsBetween(ctx context.Context, locationID int64, from, to time.Time) ([]models.SensorReading, error)
}

// RideTx is the view of one ride inside a WithinRide scope. Writes become
// visible to other callers only if the scope function returns nil.
type RideTx interface {
	BookingExists(ctx context.Context, rideID, userID int64) (bool, error)
	GetRide(ctx context.Context, rideID int64) (models.Ride, error)
	// TakeSeat decrements capacity iff capacity > 0 and status is active,
	// flipping status to full when the last seat goes. ok is false when
	// the condition did not hold (including a missing ride).
	TakeSeat(ctx context.Context, rideID int64) (ride models.Ride, ok bool, err error)
	// InsertBooking fails with apperr.KindConflict on a duplicate (ride, user).
	InsertBooking(ctx context.Context, b *models.Booking) error
}

type RideStore interface {
	CreateRide(ctx context.Context, r *models.Ride) error
	GetRide(ctx context.Context, id int64) (models.Ride, error)
	// ListOpenRides returns active rides with seats left; zero ids match any location.
	ListOpenRides(ctx context.Context, srcID, dstID int64) ([]models.RideListing, error)
	ListBookings(ctx context.Context, rideID int64) ([]models.Booking, error)
	// WithinRide serializes fn against every other scope on the same ride.
	WithinRide(ctx context.Context, rideID int64, fn func(tx RideTx) error) error
}

type ViolationTx interface {
	CountViolations(ctx context.Context, vehicleID string) (int, error)
	InsertViolation(ctx context.Context, v *models.Violation) error
}

type ViolationStore interface {
	ListViolations(ctx context.Context, vehicleID string) ([]models.Violation, error)
	GetViolation(ctx context.Context, id int64) (models.Violation, error)
	// WithinVehicle serializes fn against every other scope on the same vehicle.
	WithinVehicle(ctx context.Context, vehicleID string, fn func(tx ViolationTx) error) error
}

type UserStore interface {
	// CreateUser fails with apperr.KindConflict when the username is taken.
	CreateUser(ctx context.Context, u *models.User) error
	UserByUsername(ctx context.Context, username string) (models.User, error)
	GetUser(ctx context.Context, id int64) (models.User, error)
}

type MessageStore interface {
	AppendMessage(ctx context.Context, m *models.Message) error
	// ListMessages returns a ride's messages oldest first.
	ListMessages(ctx context.Context, rideID int64) ([]models.Message, error)
}

type AlertStore interface {
	AppendAlert(ctx context.Context, a *models.SafetyAlert) error
	// ListAlerts returns the newest alerts first; zero ids match any.
	ListAlerts(ctx context.Context, rideID, userID int64, limit int) ([]models.SafetyAlert, error)
}

// Store is everything the API process needs from persistence.
type Store interface {
	LocationStore
	SensorStore
	RideStore
	ViolationStore
	UserStore
	MessageStore
	AlertStore
	Close() error
}
