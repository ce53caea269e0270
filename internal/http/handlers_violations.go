package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/example/ecoride/internal/notice"
)

func (s *Server) handleViolations(w http.ResponseWriter, r *http.Request) {
	vs, err := s.Emission.History(r.Context(), r.URL.Query().Get("vehicleNo"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vs)
}

type reportFineRequest struct {
	VehicleID string `json:"vehicleId"`
	Amount    int    `json:"amount"`
	Reason    string `json:"reason"`
}

func (s *Server) handleReportFine(w http.ResponseWriter, r *http.Request) {
	var req reportFineRequest
	if !s.decode(w, r, &req) {
		return
	}
	v, err := s.Emission.Report(r.Context(), req.VehicleID, req.Amount, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Fine reported", "id": v.ID})
}

func (s *Server) handlePayFine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	annotate(r, "violation_id", id)
	pay, err := s.Payments.Pay(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pay)
}

func (s *Server) handleNotice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	v, err := s.Store.GetViolation(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	history, err := s.Store.ListViolations(r.Context(), v.VehicleID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pdf, err := notice.Render(v, history, time.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="violation-%d.pdf"`, v.ID))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
