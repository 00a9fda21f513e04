package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// report batch.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	codesAllocated  prometheus.Counter
	reportsOutcome  *prometheus.CounterVec
	batchDuration   prometheus.Histogram
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	codesAllocated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "enrollment_codes_allocated_total",
		Help: "Total enrollment codes drawn from sequences",
	})

	reportsOutcome := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "student_reports_total",
		Help: "Student report deliveries by outcome",
	}, []string{"outcome"})

	batchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "report_batch_duration_seconds",
		Help:    "Duration of pending report batch runs",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, codesAllocated, reportsOutcome, batchDuration, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		codesAllocated:  codesAllocated,
		reportsOutcome:  reportsOutcome,
		batchDuration:   batchDuration,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// AddCodesAllocated counts codes drawn from enrollment sequences.
func (m *MetricsService) AddCodesAllocated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.codesAllocated.Add(float64(n))
}

// ObserveReportBatch records one pending report batch run.
func (m *MetricsService) ObserveReportBatch(result BatchResult, duration time.Duration) {
	if m == nil {
		return
	}
	m.reportsOutcome.WithLabelValues("delivered").Add(float64(result.Delivered))
	m.reportsOutcome.WithLabelValues("failed").Add(float64(result.Failed))
	m.batchDuration.Observe(duration.Seconds())
}
