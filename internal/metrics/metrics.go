package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dial-a-ride/internal/scheduling"
)

var (
	// Registry is the dedicated Prometheus registry for the scheduler
	Registry = prometheus.NewRegistry()

	// Trips counts scheduled trips by outcome
	Trips = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "darp_trips_total", Help: "Trips scheduled, by outcome."},
		[]string{"outcome"},
	)
	// TripEvaluation records how long each trip took to place
	TripEvaluation = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "darp_trip_evaluation_seconds", Help: "Time to evaluate and commit or reject one trip.", Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14)},
		[]string{"outcome"},
	)
	// VehicleEvaluations counts per-vehicle search results
	VehicleEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "darp_vehicle_evaluations_total", Help: "Per-vehicle insertion searches, by result."},
		[]string{"result"},
	)
	// Positions counts pickup/dropoff position pairs checked
	Positions = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "darp_positions_evaluated_total", Help: "Candidate position pairs evaluated."},
	)
	// CacheBuild records travel time table build durations
	CacheBuild = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "darp_cache_build_seconds", Help: "Travel time table build duration in seconds.", Buckets: prometheus.ExponentialBuckets(0.01, 2, 14)},
	)
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)
)

var regOnce sync.Once

// Register adds every collector to Registry. Safe to call more than once.
func Register() {
	regOnce.Do(func() {
		Registry.MustRegister(Trips)
		Registry.MustRegister(TripEvaluation)
		Registry.MustRegister(VehicleEvaluations)
		Registry.MustRegister(Positions)
		Registry.MustRegister(CacheBuild)
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler serves Registry in the Prometheus exposition format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// EngineObserver feeds engine results into the collectors
type EngineObserver struct{}

func (EngineObserver) ObserveTrip(outcome scheduling.Outcome, elapsed time.Duration) {
	Trips.WithLabelValues(string(outcome)).Inc()
	TripEvaluation.WithLabelValues(string(outcome)).Observe(elapsed.Seconds())
}

func (EngineObserver) ObserveVehicle(c scheduling.Candidate) {
	result := "infeasible"
	switch {
	case c.TimedOut:
		result = "timed_out"
	case c.Feasible:
		result = "feasible"
	}
	VehicleEvaluations.WithLabelValues(result).Inc()
	Positions.Add(float64(c.Evaluated))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latencies. path should be the
// route pattern, not the raw URL, to keep label cardinality bounded.
func Middleware(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		status := strconv.Itoa(rec.status)
		HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
		HTTPDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}
