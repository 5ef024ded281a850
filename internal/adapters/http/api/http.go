// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/schema"

	service "github.com/okian/wearsense/internal/app"
	"github.com/okian/wearsense/internal/domain/apperr"
	"github.com/okian/wearsense/internal/domain/types"
	"github.com/okian/wearsense/pkg/logger"
)

const defaultMaxUploadBytes = 10 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	IngestImage(ctx context.Context, secret string, payload []byte) (types.Snapshot, error)
	IngestSensor(ctx context.Context, in service.SensorInput) (types.SensorView, error)
	IngestComfort(ctx context.Context, secret string, levels []string) ([]types.ComfortView, error)

	AverageComfortLevel(ctx context.Context, level string) (*float64, error)
	Distribution(ctx context.Context, level string) ([]types.DistributionEntry, error)
	Details(ctx context.Context, level string) (map[string]types.LevelDetail, error)
	LabelCounts(ctx context.Context) (map[string]int, error)
	LabelCount(ctx context.Context, label string) (int, error)
	Correlation(ctx context.Context, level string) ([]types.CorrelationPoint, error)
	Report(ctx context.Context) (types.Report, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps           Dependencies
	statsHandler   *StatsHandler
	healthHandler  *HealthHandler
	mediaRoot      string
	maxUploadBytes int64
	decoder        *schema.Decoder
	logger         logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithMediaRoot sets the directory served under /media/. Empty disables it.
func WithMediaRoot(root string) Option {
	return func(s *Server) { s.mediaRoot = root }
}

// WithMaxUploadBytes caps request bodies on the image endpoint.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithLogger sets the logger used for server errors and recovered panics.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	dec := schema.NewDecoder()
	dec.IgnoreUnknownKeys(true)

	s := &Server{
		deps:           deps,
		statsHandler:   NewStatsHandler(statsProvider),
		healthHandler:  NewHealthHandler(),
		maxUploadBytes: defaultMaxUploadBytes,
		decoder:        dec,
		logger:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// route is one row of the router table.
type route struct {
	name    string
	method  string
	path    string
	handler http.HandlerFunc
}

func (s *Server) routes() []route {
	return []route{
		{"image-ingest", http.MethodPost, "/api/predict", s.handlePredict},
		{"sensor-ingest", http.MethodPost, "/api/sensor", s.handleSensor},
		{"comfort-ingest", http.MethodPost, "/api/comfort", s.handleComfort},

		{"combined", http.MethodGet, "/api/integrate", s.handleReport},
		{"average", http.MethodGet, "/api/integrate/average-comfort-level", s.handleAverage},
		{"average", http.MethodGet, "/api/integrate/average-comfort-level/{level}", s.handleAverage},
		{"distribution", http.MethodGet, "/api/integrate/comfort-level-distribution", s.handleDistribution},
		{"distribution", http.MethodGet, "/api/integrate/comfort-level-distribution/{level}", s.handleDistribution},
		{"details", http.MethodGet, "/api/integrate/comfort-level-details", s.handleDetails},
		{"details", http.MethodGet, "/api/integrate/comfort-level-details/{level}", s.handleDetails},
		{"label-counts", http.MethodGet, "/api/integrate/label-counts", s.handleLabelCounts},
		{"label-counts", http.MethodGet, "/api/integrate/label-counts/{label}", s.handleLabelCounts},
		{"correlation", http.MethodGet, "/api/integrate/correlation", s.handleCorrelation},
		{"correlation", http.MethodGet, "/api/integrate/correlation/{level}", s.handleCorrelation},

		{"healthz", http.MethodGet, "/healthz", s.healthHandler.HandleHealth},
		{"stats", http.MethodGet, "/stats", s.statsHandler.HandleStats},
	}
}

// Register attaches all API routes to router.
func (s *Server) Register(_ context.Context, router *mux.Router) {
	if router == nil {
		panic("router is nil")
	}
	for _, rt := range s.routes() {
		router.Handle(rt.path, MetricsMiddleware(rt.handler, rt.name)).Methods(rt.method)
	}
	if s.mediaRoot != "" {
		router.PathPrefix(service.MediaPrefix).
			Handler(MetricsMiddleware(newMediaHandler(s.mediaRoot).ServeHTTP, "media")).
			Methods(http.MethodGet, http.MethodHead)
	}
}

// Handler wraps router with the process-wide middleware: trailing slash
// folding, CORS and panic recovery.
func (s *Server) Handler(router *mux.Router) http.Handler {
	var h http.Handler = router
	h = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{log: s.logger}),
		handlers.PrintRecoveryStack(false),
	)(h)
	return trimTrailingSlash(h)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrMissingRequiredData),
		errors.Is(err, apperr.ErrInvalidImageFormat),
		errors.Is(err, apperr.ErrInvalidSecret),
		errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrBackpressure):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperr.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, apperr.ErrService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {error}. Client errors carry their message
// verbatim; server errors are logged and replaced by the status text.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := apperr.Message(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Error(err))
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}
