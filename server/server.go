// server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"

	"github.com/sammcj/tripnow-mcp/journal"
	"github.com/sammcj/tripnow-mcp/logging"
	"github.com/sammcj/tripnow-mcp/metrics"
)

const (
	HealthPath      = "/health"
	MetricsPath     = "/metrics"
	InvocationsPath = "/invocations"

	defaultInvocationLimit = 20
	maxInvocationLimit     = 500
)

// InvocationLister reads recent journal entries
type InvocationLister interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

// Options wires the handlers served next to the MCP endpoint
type Options struct {
	EndpointPath string
	MCPHandler   http.Handler
	Metrics      *metrics.Metrics
	// Gatherer enables /metrics when set
	Gatherer prometheus.Gatherer
	// Journal enables /invocations when set
	Journal InvocationLister
}

// Server represents the streamable HTTP MCP server
type Server struct {
	srv *http.Server
}

// New creates a server listening on addr
func New(addr string, opts Options) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(opts),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// HTTPServer exposes the underlying server for shutdown handling
func (s *Server) HTTPServer() *http.Server {
	return s.srv
}

// Start serves until the server is shut down
func (s *Server) Start() error {
	klog.Background().Info("Starting server", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// NewRouter builds the chi router for the MCP endpoint and the operational routes
func NewRouter(opts Options) http.Handler {
	endpoint := opts.EndpointPath
	if endpoint == "" {
		endpoint = "/mcp"
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestMiddleware(opts.Metrics))

	r.Get(HealthPath, handleHealth)
	if opts.Gatherer != nil {
		r.Handle(MetricsPath, promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	if opts.Journal != nil {
		r.Get(InvocationsPath, handleInvocations(opts.Journal))
	}
	if opts.MCPHandler != nil {
		r.Handle(endpoint, opts.MCPHandler)
	}

	return r
}

// handleHealth provides a health check endpoint
func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleInvocations lists the most recent journal entries, newest first
func handleInvocations(j InvocationLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := klog.FromContext(r.Context())

		limit := defaultInvocationLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
				return
			}
			limit = min(n, maxInvocationLimit)
		}

		entries, err := j.Recent(r.Context(), limit)
		if err != nil {
			logger.Error(err, "Failed to read journal")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error":      "failed to read journal",
				"request_id": RequestIDFromContext(r.Context()),
			})
			return
		}
		if entries == nil {
			entries = []journal.Entry{}
		}

		logger.V(logging.TRACE).Info("Listed invocations", "count", len(entries))
		writeJSON(w, http.StatusOK, map[string]any{"invocations": entries})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
