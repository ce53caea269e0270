package httpapi

import (
	"net/http"
	"time"

	"github.com/example/ecoride/internal/apperr"
	"github.com/example/ecoride/internal/models"
	"github.com/example/ecoride/internal/routing"
	"github.com/example/ecoride/internal/sensors"
)

type updateSensorRequest struct {
	LocationID   int64      `json:"locationId"`
	AQI          *int       `json:"aqi"`
	VehicleCount int        `json:"vehicle_count"`
	Timestamp    *time.Time `json:"timestamp"`
}

func (s *Server) handleUpdateSensor(w http.ResponseWriter, r *http.Request) {
	var req updateSensorRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.AQI == nil {
		s.writeError(w, r, apperr.Invalid("sensors.record", "aqi", "is required"))
		return
	}
	in := sensors.Input{LocationID: req.LocationID, AQI: *req.AQI, VehicleCount: req.VehicleCount}
	if req.Timestamp != nil {
		in.Timestamp = req.Timestamp.UTC()
	}
	reading, queued, err := s.Sensors.Record(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	annotate(r, "location_id", reading.LocationID, "queued", queued)
	if queued {
		writeJSON(w, http.StatusAccepted, map[string]any{"message": "Sensor data queued", "reading": reading})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Sensor data updated", "id": reading.ID, "reading": reading})
}

func (s *Server) handleSensor(w http.ResponseWriter, r *http.Request) {
	loc, err := queryID(r, "locationId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rs, err := s.Sensors.Recent(r.Context(), loc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func (s *Server) handleSensorWindow(w http.ResponseWriter, r *http.Request) {
	loc, err := queryID(r, "locationId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	from, err := queryTime(r, "from")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rs, err := s.Sensors.Window(r.Context(), loc, from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func parseCoordQuery(lat, lng string) (models.Coord, error) {
	return routing.ParseCoord("point", lat, lng)
}

func wrapUpstream(op string, err error) error {
	if apperr.KindOf(err) != "" {
		return err
	}
	return apperr.Wrap(apperr.KindUpstreamUnavailable, op, err)
}
