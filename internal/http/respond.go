package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/ecoride/internal/apperr"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidInput, apperr.KindAlreadyBooked, apperr.KindRideUnavailable:
		return http.StatusBadRequest
	case apperr.KindRideNotFound, apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindNotConfigured:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage keeps storage and driver details out of responses.
func publicMessage(err error) string {
	var e *apperr.Error
	if !errors.As(err, &e) {
		return "internal error"
	}
	switch e.Kind {
	case apperr.KindStorageFailure:
		return "internal error"
	case apperr.KindUpstreamUnavailable:
		return "upstream service unavailable"
	}
	if e.Msg != "" {
		return e.Msg
	}
	return strings.ReplaceAll(string(e.Kind), "_", " ")
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	code := string(kind)
	if code == "" {
		code = string(apperr.KindStorageFailure)
	}
	annotate(r, "code", code)
	if status >= http.StatusInternalServerError {
		annotate(r, "error", err.Error())
	}
	writeJSON(w, status, errorBody{Error: publicMessage(err), Code: code, RequestID: requestIDFromContext(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into dst, answering 400 itself on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, r, apperr.Invalid("http.decode", "body", "malformed JSON"))
		return false
	}
	return true
}

// queryID parses an optional positive id; an absent value yields 0.
func queryID(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("http.query", name, "must be a positive integer")
	}
	return id, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("http.path", name, "must be a positive integer")
	}
	return id, nil
}

func queryFloat(r *http.Request, name string, def float64) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperr.Invalid("http.query", name, "must be a number")
	}
	return v, nil
}

func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, apperr.Invalid("http.query", name, "is required")
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperr.Invalid("http.query", name, "must be an RFC3339 timestamp")
	}
	return t, nil
}
