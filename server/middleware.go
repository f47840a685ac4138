package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/sammcj/tripnow-mcp/logging"
	"github.com/sammcj/tripnow-mcp/metrics"
)

type contextKey string

const (
	requestIDHeader            = "X-Request-ID"
	requestIDKey    contextKey = "requestID"
)

// RequestMiddleware assigns a request ID, attaches a request logger and
// tracks in-flight requests. Health and metrics requests pass straight through.
func RequestMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == MetricsPath || r.URL.Path == HealthPath {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			m.RequestStart()
			defer m.RequestFinish()

			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, requestID)

			logger := klog.FromContext(r.Context()).WithValues("requestID", requestID)
			ctx := klog.NewContext(r.Context(), logger)
			ctx = context.WithValue(ctx, requestIDKey, requestID)

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			logger.V(logging.TRACE).Info("incoming request",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr,
			)

			next.ServeHTTP(rw, r.WithContext(ctx))

			logger.V(logging.DEBUG).Info("request finished",
				"status", rw.statusCode,
				"duration", time.Since(start),
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps streamed MCP responses working through the wrapper
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// RequestIDFromContext returns the request ID set by RequestMiddleware
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return "unknown"
}
