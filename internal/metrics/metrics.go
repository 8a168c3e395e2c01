package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbtrack_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orbtrack_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	datasetVectors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbtrack_dataset_state_vectors",
			Help: "Number of state vectors in the loaded ephemeris dataset.",
		},
	)

	datasetAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbtrack_dataset_age_seconds",
			Help: "Age of the loaded ephemeris dataset in seconds.",
		},
	)

	geocodeFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbtrack_geocode_failures_total",
			Help: "Reverse geocode lookups that failed or returned no place.",
		},
	)

	trackGenerationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orbtrack_track_generation_seconds",
			Help:    "Time spent generating the geodetic ground track.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(datasetVectors)
	prometheus.MustRegister(datasetAgeSeconds)
	prometheus.MustRegister(geocodeFailuresTotal)
	prometheus.MustRegister(trackGenerationSeconds)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetDatasetVectors records the size of the live dataset.
func SetDatasetVectors(n int) {
	datasetVectors.Set(float64(n))
}

// SetDatasetAge records the age of the live dataset in seconds.
func SetDatasetAge(seconds float64) {
	datasetAgeSeconds.Set(seconds)
}

// IncGeocodeFailure counts one failed reverse geocode lookup.
func IncGeocodeFailure() {
	geocodeFailuresTotal.Inc()
}

// ObserveTrackGeneration records one ground-track generation duration.
func ObserveTrackGeneration(d time.Duration) {
	trackGenerationSeconds.Observe(d.Seconds())
}

// knownRoutes are exact paths recorded under their own label.
var knownRoutes = map[string]bool{
	"/":            true,
	"/epochs":      true,
	"/now":         true,
	"/comment":     true,
	"/header":      true,
	"/metadata":    true,
	"/track":       true,
	"/passes":      true,
	"/stream":      true,
	"/delete-data": true,
	"/post-data":   true,
	"/help":        true,
	"/healthz":     true,
	"/readyz":      true,
	"/metrics":     true,
}

// normalizeRoute collapses parameterized epoch paths into a single label
// and folds everything unknown (bots, scanners) into "other" so the path
// label cardinality stays bounded.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/epochs/"); ok {
		switch {
		case strings.HasSuffix(rest, "/speed"):
			return "/epochs/{epoch}/speed"
		case strings.HasSuffix(rest, "/location"):
			return "/epochs/{epoch}/location"
		case !strings.Contains(rest, "/"):
			return "/epochs/{epoch}"
		}
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
