package runtime

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/szaher/tutoragent/internal/telemetry"
)

// ResponseTimeHeader carries the whole milliseconds spent before the
// response headers were committed.
const ResponseTimeHeader = "X-Response-Time-Ms"

// statusRecorder stamps the timing header the first time the response is
// committed and remembers the status for logging.
type statusRecorder struct {
	http.ResponseWriter
	start       time.Time
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.Header().Set(ResponseTimeHeader, strconv.FormatInt(time.Since(r.start).Milliseconds(), 10))
	// An invalid code panics inside the inner writer; leave the response
	// uncommitted so the envelope can still answer with ErrorPayload.
	r.ResponseWriter.WriteHeader(code)
	r.wroteHeader = true
	r.status = code
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// envelope assigns the correlation id, times the request, converts panics
// into ErrorPayload and writes exactly one log line.
func (s *Server) envelope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(telemetry.RequestIDHeader)
		if id == "" {
			id = telemetry.NewCorrelationID()
		}
		r = r.WithContext(telemetry.WithCorrelationID(r.Context(), id))
		w.Header().Set(telemetry.RequestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, start: start, status: http.StatusOK}

		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}

			detail := panicDetail(v)
			if !rec.wroteHeader {
				writeJSON(rec, http.StatusInternalServerError, ErrorPayload{
					Error:     "internal_server_error",
					RequestID: id,
					Detail:    &detail,
				})
			}
			elapsed := time.Since(start)
			s.metrics.ObserveRequest(r.Method, s.routeLabel(r), http.StatusInternalServerError, elapsed)
			telemetry.RequestLogger(s.logger, r.Context()).Error("unhandled error",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int64("duration_ms", elapsed.Milliseconds()),
				zap.Int("status", http.StatusInternalServerError),
				zap.String("error", detail),
				zap.Stack("stack"),
			)
		}()

		next.ServeHTTP(rec, r)
		if !rec.wroteHeader {
			rec.WriteHeader(http.StatusOK)
		}

		elapsed := time.Since(start)
		s.metrics.ObserveRequest(r.Method, s.routeLabel(r), rec.status, elapsed)
		telemetry.RequestLogger(s.logger, r.Context()).Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int64("duration_ms", elapsed.Milliseconds()),
			zap.Int("status", rec.status),
		)
	})
}

func panicDetail(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(v)
}

// routeLabel maps a request to its route template so metric cardinality
// stays bounded.
func (s *Server) routeLabel(r *http.Request) string {
	var match mux.RouteMatch
	if !s.router.Match(r, &match) || match.Route == nil {
		return "unmatched"
	}
	if errors.Is(match.MatchErr, mux.ErrMethodMismatch) || errors.Is(match.MatchErr, mux.ErrNotFound) {
		return "unmatched"
	}
	tpl, err := match.Route.GetPathTemplate()
	if err != nil {
		return "unmatched"
	}
	return tpl
}

// cors applies the configured cross-origin policy. The wildcard reflects
// the caller's origin so credentialed requests are accepted. Every standard
// method is allowed.
func (s *Server) cors(next http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
			http.MethodConnect, http.MethodTrace,
		},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{telemetry.RequestIDHeader, ResponseTimeHeader},
		AllowCredentials: true,
	}
	switch {
	case s.config.CORSOrigins.Wildcard():
		opts.AllowOriginFunc = func(string) bool { return true }
	case len(s.config.CORSOrigins) == 0:
		// An empty list would otherwise mean "allow all" to rs/cors.
		opts.AllowOriginFunc = func(string) bool { return false }
	default:
		opts.AllowedOrigins = s.config.CORSOrigins
	}
	return cors.New(opts).Handler(next)
}
