package httpapi

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/example/ecoride/internal/apperr"
	"github.com/example/ecoride/internal/observability"
)

type contextKey string

const (
	requestIDKey contextKey = "request-id"
	accessLogKey contextKey = "access-log"
)

func (s *Server) registerMiddleware() {
	s.mux.Use(s.requestIDMiddleware)
	s.mux.Use(s.accessLogMiddleware)
	s.mux.Use(s.recoverMiddleware)
}

// requestIDMiddleware keeps a caller supplied X-Request-ID and mints one otherwise.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, reqID)))
	})
}

// accessFields collects attributes a handler learns while serving a request,
// such as the vehicle checked or the ride joined, for the access log line.
type accessFields struct {
	mu    sync.Mutex
	attrs []any
}

// annotate adds key/value pairs to the request's access log line. It is a
// no-op outside the middleware chain.
func annotate(r *http.Request, kv ...any) {
	f, ok := r.Context().Value(accessLogKey).(*accessFields)
	if !ok {
		return
	}
	f.mu.Lock()
	f.attrs = append(f.attrs, kv...)
	f.mu.Unlock()
}

func (s *Server) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		fields := &accessFields{}
		ww := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), accessLogKey, fields)))

		elapsed := time.Since(start)
		route := routeTemplate(r)
		status := strconv.Itoa(ww.status)
		observability.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		observability.HTTPRequestDuration.WithLabelValues(r.Method, route, status).Observe(elapsed.Seconds())

		args := []any{
			"method", r.Method,
			"route", route,
			"status", ww.status,
			"duration_ms", elapsed.Milliseconds(),
			"request_id", requestIDFromContext(r.Context()),
		}
		fields.mu.Lock()
		args = append(args, fields.attrs...)
		fields.mu.Unlock()

		switch {
		case ww.status >= http.StatusInternalServerError:
			s.logger.Error("http_request", args...)
		case route == "/healthz" || route == "/ready" || route == "/metrics":
			s.logger.Debug("http_request", args...)
		default:
			s.logger.Info("http_request", args...)
		}
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				annotate(r, "panic", rec)
				s.writeError(w, r, apperr.New(apperr.KindStorageFailure, "http.recover", "panic"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the ride channel upgrade reach the underlying connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func requestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

func routeTemplate(r *http.Request) string {
	if current := mux.CurrentRoute(r); current != nil {
		if tmpl, err := current.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}
