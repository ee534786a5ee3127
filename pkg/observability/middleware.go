package observability

import (
	"net/http"
	"strconv"
	"time"
)

// Classifier labels a request with the kind of publication it will get.
type Classifier func(r *http.Request) string

// MetricsMiddleware wraps an HTTP handler to record request metrics.
//
// It captures:
//   - pubgate_requests_total (counter): method, kind, and status class labels
//   - pubgate_request_duration_seconds (histogram): method and kind labels
//   - pubgate_requests_in_flight (gauge): incremented while the request is served
//
// A nil classifier labels every request "unknown".
func MetricsMiddleware(next http.Handler, classify Classifier) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		RequestsInFlight.Inc()
		defer RequestsInFlight.Dec()

		kind := "unknown"
		if classify != nil {
			kind = classify(r)
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		statusStr := strconv.Itoa(sw.status/100) + "xx"
		RequestsTotal.WithLabelValues(r.Method, kind, statusStr).Inc()
		RequestDuration.WithLabelValues(r.Method, kind).Observe(time.Since(start).Seconds())
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

// WriteHeader captures the status code and delegates to the underlying writer.
func (w *statusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
	}
	w.ResponseWriter.WriteHeader(status)
}

// Write delegates to the underlying writer and marks the status as written.
func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}

// Flush delegates to the underlying writer if it implements http.Flusher.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter, enabling http.ResponseController
// and similar utilities to access the original writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
