package httpapi

import (
	"net/http"

	"github.com/example/ecoride/internal/geo"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	HasCar   bool   `json:"has_car"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !s.decode(w, r, &req) {
		return
	}
	u, err := s.Auth.Register(r.Context(), req.Username, req.Password, req.HasCar)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "User registered successfully", "id": u.ID})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !s.decode(w, r, &req) {
		return
	}
	sess, err := s.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Login successful", "token": sess.Token, "user": sess.User})
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := s.Store.ListLocations(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, locs)
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c, err := parseCoordQuery(q.Get("lat"), q.Get("lng"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	radius, err := queryFloat(r, "radius_m", geo.DefaultRadiusM)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	hits, err := s.Geo.Nearby(r.Context(), c.Lat, c.Lng, radius, 0)
	if err != nil {
		s.logger.Warn("geo lookup failed", "error", err)
		s.writeError(w, r, wrapUpstream("geo.nearby", err))
		return
	}
	writeJSON(w, http.StatusOK, hits)
}
