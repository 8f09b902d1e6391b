package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	apierrors "github.com/maropu/pg-stats-exporter/errors"
)

type contextKey int

const loggerKey contextKey = iota

// loggerFrom returns the request-scoped logger installed by span.
func loggerFrom(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// requestID extracts the caller-supplied X-Request-ID or mints a new one.
func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// handlerFunc is a request handler returning an error instead of writing
// error responses itself. span converts returned errors into uniform JSON
// bodies with the status of their error kind.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// responseRecorder tracks what the handler wrote so span can decide
// whether an error response is still possible and what to log.
type responseRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (rec *responseRecorder) WriteHeader(status int) {
	if !rec.wroteHeader {
		rec.status = status
		rec.wroteHeader = true
	}
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *responseRecorder) Write(p []byte) (int, error) {
	if !rec.wroteHeader {
		rec.status = http.StatusOK
		rec.wroteHeader = true
	}
	n, err := rec.ResponseWriter.Write(p)
	rec.bytes += n
	return n, err
}

// Flush forwards to the underlying writer when it supports flushing.
// Streaming depends on this; losing the Flusher here would buffer the
// whole response.
func (rec *responseRecorder) Flush() {
	if flusher, ok := rec.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// span wraps a handler with the per-request plumbing: a request-scoped
// logger carrying the request ID, error-to-JSON conversion, a cancellation
// guard and request metrics. Exactly one completion line is logged per
// request.
func (s *Server) span(name string, h handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := requestID(r)
		logger := s.logger.With(
			"request_id", id,
			"handler", name,
			"method", r.Method,
			"path", r.URL.Path,
		)

		ctx := context.WithValue(r.Context(), loggerKey, logger)
		rec := &responseRecorder{ResponseWriter: w}
		rec.Header().Set("X-Request-ID", id)

		// GETs are the high-frequency scrape traffic, keep them quiet.
		spanLevel := slog.LevelInfo
		if r.Method == http.MethodGet {
			spanLevel = slog.LevelDebug
		}

		logger.Log(r.Context(), spanLevel, "request started")

		err := h(rec, r.WithContext(ctx))

		// A canceled request that never produced a response gets a
		// warning instead of a completion line with a made-up status.
		if ctx.Err() != nil && !rec.wroteHeader {
			logger.Warn("request canceled before response started",
				"elapsed", time.Since(start))
			return
		}

		if err != nil {
			apiErr := apierrors.From(err)
			if rec.wroteHeader {
				// Too late for a status change; the stream carries
				// whatever was sent before the failure.
				logger.Error("handler failed after response started",
					"status", rec.status, "error", apiErr)
			} else {
				if apiErr.StatusCode() >= http.StatusInternalServerError {
					logger.Error("request failed", "error", apiErr)
				} else {
					logger.Info("request rejected", "error", apiErr)
				}
				apiErr.WriteResponse(rec)
			}
		}

		elapsed := time.Since(start)
		s.registry.Metrics.RecordRequest(rec.status, elapsed)
		s.registry.Metrics.RecordResponseBytes(rec.bytes)

		logger.Log(r.Context(), spanLevel, "request complete",
			"status", rec.status,
			"bytes", rec.bytes,
			"elapsed", elapsed)
	})
}
