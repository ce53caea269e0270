package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ecoride/internal/alerts"
	"github.com/example/ecoride/internal/auth"
	"github.com/example/ecoride/internal/carpool"
	"github.com/example/ecoride/internal/emission"
	"github.com/example/ecoride/internal/geo"
	"github.com/example/ecoride/internal/logging"
	"github.com/example/ecoride/internal/payments"
	"github.com/example/ecoride/internal/relay"
	"github.com/example/ecoride/internal/routing"
	"github.com/example/ecoride/internal/sensors"
	"github.com/example/ecoride/internal/storage"
)

// Deps are the collaborators the API is wired with.
type Deps struct {
	Store    storage.Store
	Planner  *routing.Planner
	Emission *emission.Service
	Carpool  *carpool.Service
	Sensors  *sensors.Service
	Geo      geo.Locator
	Auth     *auth.Service
	Payments *payments.FinePayments
	Alerts   *alerts.Service
	Relay    *relay.Hub
	// Ready reports dependency health for /ready. Nil means always ready.
	Ready func(ctx context.Context) error
}

type Server struct {
	Deps
	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(d Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{Deps: d, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api").Subrouter()

	api.HandleFunc("/getRoute", s.handleGetRoute).Methods(http.MethodGet)
	api.HandleFunc("/checkEmission", s.handleCheckEmission).Methods(http.MethodPost)
	api.HandleFunc("/joinRide", s.handleJoinRide).Methods(http.MethodPost)

	api.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)

	api.HandleFunc("/locations", s.handleLocations).Methods(http.MethodGet)
	api.HandleFunc("/locations/nearby", s.handleNearby).Methods(http.MethodGet)

	api.HandleFunc("/updateSensor", s.handleUpdateSensor).Methods(http.MethodPost)
	api.HandleFunc("/sensor", s.handleSensor).Methods(http.MethodGet)
	api.HandleFunc("/sensor/window", s.handleSensorWindow).Methods(http.MethodGet)

	api.HandleFunc("/createRideOffer", s.handleCreateRideOffer).Methods(http.MethodPost)
	api.HandleFunc("/community", s.handleCommunity).Methods(http.MethodGet)
	api.HandleFunc("/messages", s.handlePostMessage).Methods(http.MethodPost)
	api.HandleFunc("/messages", s.handleListMessages).Methods(http.MethodGet)

	api.HandleFunc("/violations", s.handleViolations).Methods(http.MethodGet)
	api.HandleFunc("/reportFine", s.handleReportFine).Methods(http.MethodPost)
	api.HandleFunc("/violations/{id:[0-9]+}/pay", s.handlePayFine).Methods(http.MethodPost)
	api.HandleFunc("/violations/{id:[0-9]+}/notice", s.handleNotice).Methods(http.MethodGet)

	api.HandleFunc("/triggerSOS", s.handleTriggerSOS).Methods(http.MethodPost)
	api.HandleFunc("/safetyAlerts", s.handleSafetyAlerts).Methods(http.MethodGet)

	s.mux.HandleFunc("/ws/rides/{ride_id:[0-9]+}", s.handleRideChannel).Methods(http.MethodGet)

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	s.mux.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.Ready != nil {
		if err := s.Ready(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "error", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleGetRoute(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	origin, err := routing.ParseCoord("src", q.Get("srcLat"), q.Get("srcLng"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	dest, err := routing.ParseCoord("dst", q.Get("dstLat"), q.Get("dstLng"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	annotate(r, "route_source", s.Planner.Source.Name())
	cands, err := s.Planner.Plan(r.Context(), origin, dest)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	for _, c := range cands {
		if c.IsRecommended {
			annotate(r, "recommended", c.ID, "eco_score", c.EcoScore)
		}
	}
	writeJSON(w, http.StatusOK, cands)
}

type checkEmissionRequest struct {
	VehicleNo string `json:"vehicleNo"`
	AQI       *int   `json:"aqi"`
}

type emissionResponse struct {
	Status         string `json:"status"`
	AQI            int    `json:"aqi"`
	Vehicle        string `json:"vehicle"`
	Message        string `json:"message"`
	Action         string `json:"action,omitempty"`
	FineAmount     *int   `json:"fineAmount,omitempty"`
	IsBlocked      *bool  `json:"isBlocked,omitempty"`
	ViolationCount *int   `json:"violationCount,omitempty"`
	ViolationID    int64  `json:"violationId,omitempty"`
}

func (s *Server) handleCheckEmission(w http.ResponseWriter, r *http.Request) {
	var req checkEmissionRequest
	if !s.decode(w, r, &req) {
		return
	}
	d, err := s.Emission.Check(r.Context(), req.VehicleNo, req.AQI)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := emissionResponse{Status: "Pass", AQI: d.AQI, Vehicle: d.VehicleID, Message: d.Message}
	annotate(r, "vehicle", d.VehicleID, "aqi", d.AQI)
	if !d.Passed() {
		annotate(r, "action", string(d.Action), "violation_count", d.ViolationCount)
		resp.Status = "Fail"
		resp.Action = string(d.Action)
		resp.FineAmount = &d.Fine
		resp.IsBlocked = &d.Blocked
		resp.ViolationCount = &d.ViolationCount
		if d.Violation != nil {
			resp.ViolationID = d.Violation.ID
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type joinRideRequest struct {
	RideID int64 `json:"rideId"`
	UserID int64 `json:"userId"`
}

func (s *Server) handleJoinRide(w http.ResponseWriter, r *http.Request) {
	var req joinRideRequest
	if !s.decode(w, r, &req) {
		return
	}
	annotate(r, "ride_id", req.RideID, "user_id", req.UserID)
	res, err := s.Carpool.Join(r.Context(), req.RideID, req.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	annotate(r, "booking_id", res.BookingID, "seats_left", res.NewCapacity)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Joined ride successfully",
		"newCapacity": res.NewCapacity,
		"status":      res.Status,
		"bookingId":   res.BookingID,
	})
}
