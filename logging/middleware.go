package logging

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// SlowRequestThreshold is the duration above which a request is logged at warn level
const SlowRequestThreshold = 2 * time.Second

var quietPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

var statusRecorderPool = sync.Pool{
	New: func() any {
		return &statusRecorder{status: http.StatusOK}
	},
}

// RequestLogger logs one structured line per request. Health check and scrape
// endpoints are not logged, 5xx responses are logged at error level and
// slow requests at warn level.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, quiet := quietPaths[r.URL.Path]; quiet {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()

			rec := statusRecorderPool.Get().(*statusRecorder)
			rec.ResponseWriter = w
			rec.status = http.StatusOK
			rec.written = 0
			defer statusRecorderPool.Put(rec)

			next.ServeHTTP(rec, r)

			elapsed := time.Since(start)

			requestID, ok := r.Context().Value(middleware.RequestIDKey).(string)
			if !ok || requestID == "" {
				requestID = "unknown"
			}

			attrs := []any{
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
			}
			if r.URL.RawQuery != "" {
				attrs = append(attrs, "query", r.URL.RawQuery)
			}
			if r.ContentLength > 0 {
				attrs = append(attrs, "content_length", r.ContentLength)
			}
			attrs = append(attrs,
				"remote_addr", r.RemoteAddr,
				"status_code", rec.status,
				"bytes_written", rec.written,
				"duration_ms", elapsed.Milliseconds(),
			)

			switch {
			case rec.status >= http.StatusInternalServerError:
				logger.ErrorContext(r.Context(), "HTTP request failed", attrs...)
			case elapsed > SlowRequestThreshold:
				logger.WarnContext(r.Context(), "Slow HTTP request", attrs...)
			default:
				logger.InfoContext(r.Context(), "HTTP request", attrs...)
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.written += n
	return n, err
}
