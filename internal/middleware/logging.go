package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-dashboard/internal/metrics"
)

// statusRecorder remembers the status code written through it.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// RequestLogger logs every request and records it in rec. Routes are
// labelled with the chi pattern so ids don't explode metric cardinality.
func RequestLogger(rec metrics.Recorder) func(http.Handler) http.Handler {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			route := routePattern(r)
			rec.RecordRequest(r.Method, route, sr.statusCode, duration)

			entry := log.WithFields(log.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      sr.statusCode,
				"duration_ms": float64(duration.Microseconds()) / 1000.0,
				"client_ip":   getClientIP(r),
			})

			switch {
			case sr.statusCode >= 500:
				entry.Error("HTTP request")
			case sr.statusCode >= 400:
				entry.Warn("HTTP request")
			default:
				entry.Info("HTTP request")
			}
		})
	}
}

// Recoverer turns a panic into a 500 response.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				log.WithFields(log.Fields{
					"panic":  p,
					"method": r.Method,
					"path":   r.URL.Path,
					"stack":  string(debug.Stack()),
				}).Error("Panic recovered")
				writeJSONError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
