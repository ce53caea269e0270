package carpool

import (
	"context"
	"strings"

	"github.com/example/ecoride/internal/apperr"
	"github.com/example/ecoride/internal/models"
)

const maxMessageLen = 2000

// PostMessage stores a chat line for the ride and pushes it to subscribers.
func (s *Service) PostMessage(ctx context.Context, rideID, userID int64, content string) (models.Message, error) {
	const op = "carpool.post_message"
	content = strings.TrimSpace(content)
	switch {
	case rideID <= 0:
		return models.Message{}, apperr.Invalid(op, "rideId", "must be positive")
	case userID <= 0:
		return models.Message{}, apperr.Invalid(op, "userId", "must be positive")
	case content == "":
		return models.Message{}, apperr.Invalid(op, "content", "is required")
	case len(content) > maxMessageLen:
		return models.Message{}, apperr.Invalid(op, "content", "is too long")
	}
	if _, err := s.Rides.GetRide(ctx, rideID); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return models.Message{}, apperr.New(apperr.KindRideNotFound, op, "Ride not found")
		}
		return models.Message{}, err
	}

	m := models.Message{RideID: rideID, UserID: userID, Content: content}
	if err := s.Messages.AppendMessage(ctx, &m); err != nil {
		return models.Message{}, err
	}
	if s.Events != nil {
		s.Events.Publish(rideID, EventMessage, m)
	}
	return m, nil
}

func (s *Service) ListMessages(ctx context.Context, rideID int64) ([]models.Message, error) {
	if rideID <= 0 {
		return nil, apperr.Invalid("carpool.messages", "rideId", "must be positive")
	}
	return s.Messages.ListMessages(ctx, rideID)
}
