package runtime

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/szaher/tutoragent/internal/agent"
	"github.com/szaher/tutoragent/internal/config"
	"github.com/szaher/tutoragent/internal/frontend"
	"github.com/szaher/tutoragent/internal/manifest"
	"github.com/szaher/tutoragent/internal/readiness"
	"github.com/szaher/tutoragent/internal/telemetry"
)

// Route paths advertised by the discovery document.
const (
	PathRoot     = "/"
	PathHealth   = "/healthz"
	PathReady    = "/readyz"
	PathManifest = "/manifest"
	PathInvoke   = "/invoke"
	PathUI       = "/ui"
	PathMetrics  = "/metrics"
)

// Server is the HTTP surface in front of a single agent.
type Server struct {
	config    config.Config
	agent     agent.Agent
	router    *mux.Router
	handler   http.Handler
	server    *http.Server
	logger    *zap.Logger
	metrics   *telemetry.Metrics
	manifest  *manifest.Source
	readiness *readiness.Checker
	tracer    *telemetry.Tracer
}

// ServerOption configures the Server.
type ServerOption func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics sets the collectors. When cfg.Metrics is false they are
// still updated but /metrics is not routed.
func WithMetrics(m *telemetry.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithManifest sets the manifest source, replacing the default file reader
// for cfg.Manifest.Path.
func WithManifest(src *manifest.Source) ServerOption {
	return func(s *Server) { s.manifest = src }
}

// WithReadiness sets the readiness checker.
func WithReadiness(c *readiness.Checker) ServerOption {
	return func(s *Server) { s.readiness = c }
}

// WithTracer wraps each agent invocation in a span. Without it no spans
// are recorded.
func WithTracer(t *telemetry.Tracer) ServerOption {
	return func(s *Server) { s.tracer = t }
}

// NewServer creates the HTTP server. The UI routes are fixed here: whether
// cfg.FrontendDir exists is checked once.
func NewServer(cfg config.Config, a agent.Agent, opts ...ServerOption) *Server {
	s := &Server{
		config: cfg,
		agent:  a,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.manifest == nil {
		s.manifest = manifest.NewSource(cfg.Manifest.Path)
	}
	if s.readiness == nil {
		s.readiness = readiness.New()
	}
	if s.metrics == nil && cfg.Metrics {
		s.metrics = telemetry.NewMetrics()
	}

	r := mux.NewRouter()
	r.HandleFunc(PathRoot, s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc(PathHealth, s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc(PathReady, s.handleReadyz).Methods(http.MethodGet)
	r.HandleFunc(PathManifest, s.handleManifest).Methods(http.MethodGet)
	r.HandleFunc(PathInvoke, s.handleInvoke).Methods(http.MethodPost)
	if cfg.Metrics {
		r.Handle(PathMetrics, s.metrics.Handler()).Methods(http.MethodGet)
	}

	ui := s.uiHandler()
	r.Handle(PathUI, ui).Methods(http.MethodGet, http.MethodHead)
	r.PathPrefix(PathUI + "/").Handler(ui).Methods(http.MethodGet, http.MethodHead)

	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)

	s.router = r
	s.handler = s.envelope(s.cors(r))
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler for use with httptest or custom servers.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe listens on addr and serves until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown. It returns
// http.ErrServerClosed after a graceful stop, even when Shutdown ran first.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("server starting",
		zap.String("addr", ln.Addr().String()),
		zap.String("name", s.config.Name),
		zap.String("version", s.config.Version),
	)
	return s.server.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) uiHandler() http.Handler {
	dir := s.config.FrontendDir
	if frontend.Available(dir) {
		return frontend.NewHandler(dir, PathUI, http.HandlerFunc(s.handleNotFound))
	}
	s.logger.Warn("ui build not found", zap.String("frontend_dir", dir))
	return frontend.Missing(dir)
}

// DetailPayload is the body of handler-level HTTP errors.
type DetailPayload struct {
	Detail    any    `json:"detail"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorPayload is the body written when a handler fails unexpectedly.
type ErrorPayload struct {
	Error     string  `json:"error"`
	RequestID string  `json:"request_id"`
	Detail    *string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, r *http.Request, status int, detail any) {
	writeJSON(w, status, DetailPayload{
		Detail:    detail,
		RequestID: telemetry.CorrelationID(r.Context()),
	})
}
