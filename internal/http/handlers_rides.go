package httpapi

import (
	"net/http"

	"github.com/example/ecoride/internal/carpool"
)

func (s *Server) handleCreateRideOffer(w http.ResponseWriter, r *http.Request) {
	var req carpool.Offer
	if !s.decode(w, r, &req) {
		return
	}
	ride, err := s.Carpool.CreateOffer(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Ride offer created", "id": ride.ID, "ride": ride})
}

func (s *Server) handleCommunity(w http.ResponseWriter, r *http.Request) {
	src, err := queryID(r, "src")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	dst, err := queryID(r, "dst")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rides, err := s.Carpool.Community(r.Context(), src, dst)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rides)
}

type postMessageRequest struct {
	RideID  int64  `json:"rideId"`
	UserID  int64  `json:"userId"`
	Content string `json:"content"`
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if !s.decode(w, r, &req) {
		return
	}
	msg, err := s.Carpool.PostMessage(r.Context(), req.RideID, req.UserID, req.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Message sent", "id": msg.ID})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	rideID, err := queryID(r, "rideId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	msgs, err := s.Carpool.ListMessages(r.Context(), rideID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// handleRideChannel attaches a websocket client to a ride's live channel.
func (s *Server) handleRideChannel(w http.ResponseWriter, r *http.Request) {
	rideID, err := pathID(r, "ride_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.Store.GetRide(r.Context(), rideID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Relay.ServeRide(w, r, rideID)
}
