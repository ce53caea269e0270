package carpool

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/example/ecoride/internal/apperr"
	"github.com/example/ecoride/internal/logging"
	"github.com/example/ecoride/internal/models"
	"github.com/example/ecoride/internal/observability"
	"github.com/example/ecoride/internal/storage"
)

// Event types pushed to ride channels.
const (
	EventJoined  = "ride_joined"
	EventMessage = "message"
)

// Publisher fans ride events out to live subscribers. Delivery is best effort.
type Publisher interface {
	Publish(rideID int64, eventType string, data any)
}

type Service struct {
	Rides     storage.RideStore
	Locations storage.LocationStore
	Messages  storage.MessageStore
	Events    Publisher
	Now       func() time.Time
	Logger    *slog.Logger
}

func NewService(rides storage.RideStore, locations storage.LocationStore, messages storage.MessageStore, events Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{Rides: rides, Locations: locations, Messages: messages, Events: events, Now: time.Now, Logger: logger}
}

type JoinResult struct {
	RideID      int64             `json:"ride_id"`
	UserID      int64             `json:"user_id"`
	NewCapacity int               `json:"newCapacity"`
	Status      models.RideStatus `json:"status"`
	BookingID   int64             `json:"booking_id"`
}

// Join books one seat on the ride for the user. Either the booking is created
// and capacity drops by one, or nothing changes.
func (s *Service) Join(ctx context.Context, rideID, userID int64) (JoinResult, error) {
	const op = "carpool.join"
	if rideID <= 0 {
		return JoinResult{}, apperr.Invalid(op, "rideId", "must be positive")
	}
	if userID <= 0 {
		return JoinResult{}, apperr.Invalid(op, "userId", "must be positive")
	}

	var res JoinResult
	err := s.Rides.WithinRide(ctx, rideID, func(tx storage.RideTx) error {
		booked, err := tx.BookingExists(ctx, rideID, userID)
		if err != nil {
			return err
		}
		if booked {
			return apperr.New(apperr.KindAlreadyBooked, op, "You have already joined this ride")
		}

		ride, ok, err := tx.TakeSeat(ctx, rideID)
		if err != nil {
			return err
		}
		if !ok {
			if _, err := tx.GetRide(ctx, rideID); err != nil {
				if apperr.Is(err, apperr.KindNotFound) {
					return apperr.New(apperr.KindRideNotFound, op, "Ride not found")
				}
				return err
			}
			return apperr.New(apperr.KindRideUnavailable, op, "Ride is full or no longer active")
		}

		b := &models.Booking{RideID: rideID, UserID: userID}
		if err := tx.InsertBooking(ctx, b); err != nil {
			if apperr.Is(err, apperr.KindConflict) {
				return apperr.New(apperr.KindAlreadyBooked, op, "You have already joined this ride")
			}
			return err
		}
		res = JoinResult{RideID: rideID, UserID: userID, NewCapacity: ride.Capacity, Status: ride.Status, BookingID: b.ID}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == "" {
			err = apperr.Wrap(apperr.KindStorageFailure, op, err)
		}
		observability.JoinOutcomesTotal.WithLabelValues(joinOutcome(err)).Inc()
		return JoinResult{}, err
	}

	observability.JoinOutcomesTotal.WithLabelValues("joined").Inc()
	s.Logger.Info("ride_joined", "ride_id", rideID, "user_id", userID, "capacity", res.NewCapacity, "status", res.Status)
	if s.Events != nil {
		s.Events.Publish(rideID, EventJoined, res)
	}
	return res, nil
}

func joinOutcome(err error) string {
	switch k := apperr.KindOf(err); k {
	case apperr.KindAlreadyBooked, apperr.KindRideNotFound, apperr.KindRideUnavailable, apperr.KindInvalidInput:
		return string(k)
	default:
		return "error"
	}
}

type Offer struct {
	Owner    string `json:"owner"`
	SrcID    int64  `json:"src_id"`
	DstID    int64  `json:"dst_id"`
	Capacity int    `json:"capacity"`
	Time     string `json:"time"`
}

func (s *Service) CreateOffer(ctx context.Context, in Offer) (models.Ride, error) {
	const op = "carpool.create_offer"
	owner := strings.TrimSpace(in.Owner)
	if owner == "" {
		return models.Ride{}, apperr.Invalid(op, "owner", "is required")
	}
	if in.Capacity <= 0 {
		return models.Ride{}, apperr.Invalid(op, "capacity", "must be at least 1")
	}
	if t := strings.TrimSpace(in.Time); t != "" {
		if _, ok := ParseDeparture(t); !ok {
			return models.Ride{}, apperr.Invalid(op, "time", "must be HH:MM")
		}
	}
	for field, id := range map[string]int64{"src_id": in.SrcID, "dst_id": in.DstID} {
		if _, err := s.Locations.GetLocation(ctx, id); err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return models.Ride{}, apperr.Invalid(op, field, "unknown location")
			}
			return models.Ride{}, err
		}
	}

	r := models.Ride{
		Owner:         owner,
		SrcID:         in.SrcID,
		DstID:         in.DstID,
		Capacity:      in.Capacity,
		DepartureTime: strings.TrimSpace(in.Time),
		Status:        models.RideActive,
	}
	if err := s.Rides.CreateRide(ctx, &r); err != nil {
		return models.Ride{}, err
	}
	s.Logger.Info("ride_offered", "ride_id", r.ID, "owner", owner, "capacity", r.Capacity, "time", r.DepartureTime)
	return r, nil
}

// Community lists joinable rides between the two locations (0 matches any)
// that have not departed yet today.
func (s *Service) Community(ctx context.Context, srcID, dstID int64) ([]models.RideListing, error) {
	rides, err := s.Rides.ListOpenRides(ctx, srcID, dstID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]models.RideListing, 0, len(rides))
	for _, r := range rides {
		if Visible(r.DepartureTime, now) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
