package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/calibrate/pkg/metrics"
)

// MetricsMiddleware records request count, latency and, for failed
// requests, the error code the handler answered with.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		ms := float64(time.Since(start).Microseconds()) / 1000
		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, ms)

		if rec.status >= http.StatusBadRequest {
			code := rec.errCode
			if code == "" {
				code = fallbackErrorCode(rec.status)
			}
			metrics.RecordErrorByEndpoint(endpoint, r.Method, code)
		}
	}
}

// fallbackErrorCode labels failures that did not go through writeError,
// such as the mux's own 404 and 405 answers.
func fallbackErrorCode(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error"
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusMethodNotAllowed:
		return "method_not_allowed"
	default:
		return "client_error"
	}
}

// statusRecorder captures the status and the API error code of a response.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	errCode string
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// recordErrorCode notes code on w when w is wrapped by MetricsMiddleware.
func recordErrorCode(w http.ResponseWriter, code string) {
	if rec, ok := w.(*statusRecorder); ok {
		rec.errCode = code
	}
}
