package server

import (
	"log/slog"
	"net/http"

	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/metrics"
	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/tracker"
)

const (
	serviceName        = "ImageGen.AI Backend"
	defaultMaxBodySize = 1 << 20
)

// Options configures the HTTP API.
type Options struct {
	// AllowedOrigin is the single browser origin granted CORS access.
	AllowedOrigin string
	// MaxBodySize caps request bodies in bytes. Zero means 1 MiB.
	MaxBodySize int64
}

// Server exposes image generation and budget endpoints.
type Server struct {
	gen     *tracker.Generator
	metrics *metrics.Metrics
	opts    Options
	mux     *http.ServeMux
	logger  *slog.Logger
}

// NewServer creates an API server. m may be nil, in which case /metrics is
// not registered.
func NewServer(gen *tracker.Generator, m *metrics.Metrics, opts Options, logger *slog.Logger) *Server {
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = defaultMaxBodySize
	}
	s := &Server{
		gen:     gen,
		metrics: m,
		opts:    opts,
		mux:     http.NewServeMux(),
		logger:  logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/cost-status", s.handleCostStatus)
	s.mux.HandleFunc("POST /api/generate", s.handleGenerate)
	s.mux.HandleFunc("POST /api/calculate-cost", s.handleCalculateCost)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// Handler returns the HTTP handler for this server with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.requestID(s.accessLog(s.cors(s.mux)))
}
