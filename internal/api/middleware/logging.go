package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// statusRecorder captures the status code and body size so the access log
// can report what was actually sent.
type statusRecorder struct {
	http.ResponseWriter
	code    int
	written int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.code = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(p []byte) (int, error) {
	// A handler that writes without calling WriteHeader gets an implicit 200.
	if rec.code == 0 {
		rec.code = http.StatusOK
	}
	n, err := rec.ResponseWriter.Write(p)
	rec.written += n
	return n, err
}

// RequestLogging emits one access-log line per request after the handler
// returns. Runs inside CorrelationID so the line carries the request id.
func RequestLogging(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			line := logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.code).
				Int("bytes", rec.written).
				Dur("elapsed", time.Since(start)).
				Str("remote", r.RemoteAddr)
			if id := GetRequestID(r.Context()); id != "" {
				line = line.Str("request_id", id)
			}
			line.Msg("http request")
		})
	}
}
