package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/arvikar/glb/pkg/logger"
)

type contextKey string

const requestIDKey contextKey = "requestID"

// RequestIDFromContext returns the request ID the logging middleware
// attached to the request context, or "" if none was attached.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// generateRequestID produces a request-scoped identifier. Collisions are
// harmless here since the ID is only used for correlating log lines within
// one request's lifetime, never for routing decisions.
func generateRequestID() string {
	return time.Now().Format("20060102150405.000000000")
}

// LoggingMiddleware logs request start/completion with status code,
// duration, and response size, and attaches a request ID to the context for
// downstream handlers to include in their own log lines.
func LoggingMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := generateRequestID()
			r = r.WithContext(context.WithValue(r.Context(), requestIDKey, requestID))

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			requestLogger := log.RequestLogger(requestID, r.Method, r.URL.Path, r.RemoteAddr)
			requestLogger.Info("request started")

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			logEntry := requestLogger.WithFields(map[string]interface{}{
				"status_code":   wrapped.statusCode,
				"duration_ms":   duration.Milliseconds(),
				"response_size": wrapped.size,
			})

			switch {
			case wrapped.statusCode >= 500:
				logEntry.Error("request completed with error")
			case wrapped.statusCode >= 400:
				logEntry.Warn("request completed with client error")
			default:
				logEntry.Info("request completed")
			}
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code and
// response size written by the handler it wraps.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += int64(n)
	return n, err
}

// RecoveryMiddleware recovers a panicking handler, logs it, and responds
// with 500 instead of letting the connection die uncleanly.
func RecoveryMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	recoveryLog := log.MiddlewareLogger("recovery")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					recoveryLog.WithFields(map[string]interface{}{
						"request_id": RequestIDFromContext(r.Context()),
						"path":       r.URL.Path,
						"method":     r.Method,
						"panic":      err,
					}).Error("panic recovered in request handler")

					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
