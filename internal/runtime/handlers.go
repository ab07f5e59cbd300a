package runtime

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/szaher/tutoragent/internal/agent"
	"github.com/szaher/tutoragent/internal/manifest"
	"github.com/szaher/tutoragent/internal/telemetry"
)

// InvokeResponse is the body of a successful POST /invoke.
type InvokeResponse struct {
	Output    map[string]any `json:"output"`
	Metrics   InvokeMetrics  `json:"metrics"`
	Version   string         `json:"version"`
	RequestID string         `json:"request_id"`
}

// InvokeMetrics reports how long the agent ran.
type InvokeMetrics struct {
	LatencyMS int64 `json:"latency_ms"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.config.Version,
		"name":    s.config.Name,
	})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	problems := s.readiness.Problems(r.Context())
	status := "ok"
	if len(problems) > 0 {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   status,
		"version":  s.config.Version,
		"problems": problems,
	})
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	doc, err := s.manifest.Load()
	switch {
	case errors.Is(err, manifest.ErrNotFound):
		writeJSON(w, http.StatusOK, map[string]string{
			"warning": "manifest not found",
			"path":    s.manifest.Path(),
		})
	case err != nil:
		telemetry.RequestLogger(s.logger, r.Context()).Warn("manifest read failed",
			zap.String("path", s.manifest.Path()), zap.Error(err))
		writeDetail(w, r, http.StatusInternalServerError, fmt.Sprintf("manifest read failed: %v", err))
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(doc)
	}
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	req, issues := decodeInvokeRequest(w, r)
	if len(issues) > 0 {
		writeDetail(w, r, http.StatusUnprocessableEntity, issues)
		return
	}

	ctx := r.Context()
	id := telemetry.CorrelationID(ctx)
	log := telemetry.RequestLogger(s.logger, ctx)

	start := time.Now()
	outcome := telemetry.InvocationError
	defer func() { s.metrics.RecordInvocation(outcome, time.Since(start)) }()

	spanCtx, span := s.tracer.StartSpan(ctx, "agent.invoke", telemetry.InvocationTags(s.config.Agent.Kind, req.UserID))
	out, err := s.agent.Invoke(spanCtx, req.UserID, req.Input, req.Context)
	latency := time.Since(start)
	if err != nil {
		span.End(telemetry.SpanError)
		var ae *agent.Error
		if errors.As(err, &ae) {
			if !validErrorStatus(ae.Status) {
				log.Error("agent returned invalid status", zap.Int("status", ae.Status), zap.String("detail", ae.Detail))
				writeDetail(w, r, http.StatusInternalServerError, ae.Detail)
				return
			}
			outcome = telemetry.InvocationClientError
			log.Info("agent rejected request", zap.Int("status", ae.Status), zap.String("detail", ae.Detail))
			writeDetail(w, r, ae.Status, ae.Detail)
			return
		}
		log.Error("agent invocation failed", zap.String("user_id", req.UserID), zap.Error(err))
		writeDetail(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	span.End(telemetry.SpanOK)
	outcome = telemetry.InvocationOK
	if out == nil {
		out = map[string]any{}
	}
	writeJSON(w, http.StatusOK, InvokeResponse{
		Output:    out,
		Metrics:   InvokeMetrics{LatencyMS: latency.Milliseconds()},
		Version:   s.config.Version,
		RequestID: id,
	})
}

// validErrorStatus reports whether an agent error status can be sent as
// is. Anything outside the 4xx and 5xx classes becomes a 500.
func validErrorStatus(code int) bool {
	return code >= 400 && code <= 599
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	doc := map[string]any{
		"name":     s.config.Name,
		"version":  s.config.Version,
		"ui":       PathUI,
		"health":   PathHealth,
		"ready":    PathReady,
		"invoke":   PathInvoke,
		"manifest": PathManifest,
		"ok":       true,
	}
	if s.config.Metrics {
		doc["metrics"] = PathMetrics
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeDetail(w, r, http.StatusNotFound, "Not Found")
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeDetail(w, r, http.StatusMethodNotAllowed, "Method Not Allowed")
}
