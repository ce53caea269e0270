package httpapi

import (
	"net/http"

	"github.com/example/ecoride/internal/alerts"
)

type sosRequest struct {
	RideID           int64   `json:"rideId"`
	UserID           int64   `json:"userId"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	KeywordsDetected string  `json:"keywordsDetected"`
}

func (s *Server) handleTriggerSOS(w http.ResponseWriter, r *http.Request) {
	var req sosRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.Alerts.Trigger(r.Context(), alerts.SOS{
		RideID:    req.RideID,
		UserID:    req.UserID,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Keywords:  req.KeywordsDetected,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	annotate(r, "ride_id", req.RideID, "alert_id", res.Alert.ID, "notification", res.Notification)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "SOS alert triggered successfully",
		"alertId":      res.Alert.ID,
		"location":     res.Location,
		"notification": res.Notification,
	})
}

func (s *Server) handleSafetyAlerts(w http.ResponseWriter, r *http.Request) {
	rideID, err := queryID(r, "rideId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	userID, err := queryID(r, "userId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.Alerts.List(r.Context(), rideID, userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
