// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// staticRoutes are recorded under their own path label verbatim.
var staticRoutes = map[string]struct{}{
	"/":               {},
	"/anchors":        {},
	"/anchors/nearby": {},
	"/user/profile":   {},
	"/uploads/sign":   {},
	"/health":         {},
	"/ready":          {},
	"/metrics":        {},
}

// normalizePath collapses dynamic path segments into route patterns so the
// path label stays bounded: /anchors/9f3c... becomes /anchors/{id}.
func normalizePath(path string) string {
	if _, ok := staticRoutes[path]; ok {
		return path
	}

	parts := strings.Split(path, "/")
	switch {
	case strings.HasPrefix(path, "/anchors/") && len(parts) == 4 && parts[3] == "unlock":
		return "/anchors/{id}/unlock"
	case strings.HasPrefix(path, "/anchors/") && len(parts) == 3 && parts[2] != "":
		return "/anchors/{id}"
	case strings.HasPrefix(path, "/users/") && len(parts) == 3 && parts[2] != "":
		return "/users/{id}"
	}

	// Unknown routes pass through unchanged; a 404 path hits the metric once.
	return path
}

// metricsResponseWriter captures status code and body size for the recorder.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// HTTPMetrics records request duration, counts, and request/response sizes
// per method, normalized path, and status. Probe endpoints /health and /ready
// are skipped; load balancers hit them constantly and the samples are noise.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := newMetricsResponseWriter(w)

			var requestSize int64
			if cl := r.Header.Get("Content-Length"); cl != "" {
				if size, err := strconv.ParseInt(cl, 10, 64); err == nil {
					requestSize = size
				}
			}

			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				requestSize,
				mrw.size,
			)
		})
	}
}
