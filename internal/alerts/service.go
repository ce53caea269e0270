package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/ecoride/internal/apperr"
	"github.com/example/ecoride/internal/logging"
	"github.com/example/ecoride/internal/models"
	"github.com/example/ecoride/internal/routing"
	"github.com/example/ecoride/internal/storage"
)

// Notification outcomes reported to the caller.
const (
	NotifyQueued = "queued"
	NotifyLogged = "logged"
	NotifyFailed = "failed"
)

const listLimit = 50

// Notification is the payload handed to the dispatcher.
type Notification struct {
	AlertID  int64     `json:"alert_id"`
	RideID   int64     `json:"ride_id"`
	UserID   int64     `json:"user_id"`
	Username string    `json:"username"`
	Route    string    `json:"route"`
	MapLink  string    `json:"map_link"`
	Keywords string    `json:"keywords"`
	Text     string    `json:"text"`
	At       time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

type SOS struct {
	RideID    int64
	UserID    int64
	Latitude  float64
	Longitude float64
	Keywords  string
}

type Result struct {
	Alert        models.SafetyAlert `json:"alert"`
	Location     string             `json:"location"`
	Notification string             `json:"notification"`
}

type Service struct {
	Alerts    storage.AlertStore
	Users     storage.UserStore
	Rides     storage.RideStore
	Locations storage.LocationStore
	Publisher Publisher
	Logger    *slog.Logger
}

func NewService(store storage.Store, pub Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{Alerts: store, Users: store, Rides: store, Locations: store, Publisher: pub, Logger: logger}
}

func mapLink(lat, lng float64) string {
	return fmt.Sprintf("https://maps.google.com/?q=%g,%g", lat, lng)
}

// Trigger records the alert first; notification problems never lose it.
func (s *Service) Trigger(ctx context.Context, in SOS) (Result, error) {
	const op = "alerts.trigger"
	if in.UserID <= 0 {
		return Result{}, apperr.Invalid(op, "userId", "must be a positive id")
	}
	if err := routing.ValidateCoord("location", models.Coord{Lat: in.Latitude, Lng: in.Longitude}); err != nil {
		return Result{}, err
	}

	a := models.SafetyAlert{
		RideID:           in.RideID,
		UserID:           in.UserID,
		Latitude:         in.Latitude,
		Longitude:        in.Longitude,
		KeywordsDetected: strings.TrimSpace(in.Keywords),
	}
	if err := s.Alerts.AppendAlert(ctx, &a); err != nil {
		return Result{}, err
	}
	res := Result{Alert: a, Location: mapLink(a.Latitude, a.Longitude)}
	s.Logger.Warn("sos_triggered", "alert_id", a.ID, "ride_id", a.RideID, "user_id", a.UserID, "keywords", a.KeywordsDetected)

	u, err := s.Users.GetUser(ctx, in.UserID)
	if err != nil {
		s.Logger.Error("sos user lookup failed", "alert_id", a.ID, "user_id", in.UserID, "error", err)
		res.Notification = NotifyFailed
		return res, nil
	}
	res.Alert.Username = u.Username

	n := Notification{
		AlertID:  a.ID,
		RideID:   a.RideID,
		UserID:   u.ID,
		Username: u.Username,
		Route:    s.describeRide(ctx, in.RideID),
		MapLink:  res.Location,
		Keywords: a.KeywordsDetected,
		At:       a.Timestamp,
	}
	n.Text = fmt.Sprintf("EMERGENCY ALERT\nUser: %s\nRide: %s\nLocation: %s\nKeywords: %s\nTime: %s",
		n.Username, n.Route, n.MapLink, n.Keywords, n.At.Format(time.RFC1123))

	if s.Publisher == nil {
		s.Logger.Warn("sos notification not dispatched; no queue configured", "alert_id", a.ID, "text", n.Text)
		res.Notification = NotifyLogged
		return res, nil
	}
	if err := s.Publisher.Publish(ctx, n); err != nil {
		s.Logger.Error("sos notification failed", "alert_id", a.ID, "error", err)
		res.Notification = NotifyFailed
		return res, nil
	}
	res.Notification = NotifyQueued
	return res, nil
}

// describeRide renders "src -> dst", falling back to the bare id.
func (s *Service) describeRide(ctx context.Context, rideID int64) string {
	fallback := fmt.Sprintf("%d", rideID)
	if rideID <= 0 {
		return fallback
	}
	r, err := s.Rides.GetRide(ctx, rideID)
	if err != nil {
		return fallback
	}
	src, err1 := s.Locations.GetLocation(ctx, r.SrcID)
	dst, err2 := s.Locations.GetLocation(ctx, r.DstID)
	if err1 != nil || err2 != nil {
		return fallback
	}
	return src.Name + " -> " + dst.Name
}

func (s *Service) List(ctx context.Context, rideID, userID int64) ([]models.SafetyAlert, error) {
	return s.Alerts.ListAlerts(ctx, rideID, userID, listLimit)
}
