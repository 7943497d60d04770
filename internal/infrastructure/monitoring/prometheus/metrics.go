package prometheus

import (
	"fmt"
	"time"
)

// AppMetrics holds every metric the service emits.
type AppMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Adjudication
	ClaimsAdjudicatedTotal CounterVec
	AdjudicationDuration   HistogramVec
	DeductionsTotal        CounterVec
	ApprovedAmountTotal    CounterVec
	FlagsRaisedTotal       CounterVec

	// Upload pipeline
	ClaimsReceivedTotal   CounterVec
	DocumentBytesTotal    CounterVec
	ExtractionCallsTotal  CounterVec
	ExtractionDuration    HistogramVec

	// Infrastructure
	EventsPublishedTotal CounterVec
	LockWaitDuration     HistogramVec

	// System health
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

var (
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultDBDurationBuckets   = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
	// Extraction is an external OCR-ish call; it can take a while.
	DefaultExtractionBuckets = []float64{.25, .5, 1, 2.5, 5, 10, 30, 60}
)

// NewAppMetrics registers all metrics against the collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	// HTTP
	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method")

	// Adjudication
	m.ClaimsAdjudicatedTotal = collector.RegisterCounter("claims_adjudicated_total", "Adjudicated claims by decision", "decision")
	m.AdjudicationDuration = collector.RegisterHistogram("adjudication_duration_seconds", "End-to-end adjudication duration", DefaultHTTPDurationBuckets)
	m.DeductionsTotal = collector.RegisterCounter("deductions_total", "Deductions applied by type", "type")
	m.ApprovedAmountTotal = collector.RegisterCounter("approved_amount_minor_units_total", "Approved amounts in minor units", "decision")
	m.FlagsRaisedTotal = collector.RegisterCounter("flags_raised_total", "Validation flags raised", "code", "severity")

	// Upload pipeline
	m.ClaimsReceivedTotal = collector.RegisterCounter("claims_received_total", "Claim uploads accepted")
	m.DocumentBytesTotal = collector.RegisterCounter("document_bytes_total", "Uploaded document bytes", "kind")
	m.ExtractionCallsTotal = collector.RegisterCounter("extraction_calls_total", "Extraction service calls", "status")
	m.ExtractionDuration = collector.RegisterHistogram("extraction_duration_seconds", "Extraction service call duration", DefaultExtractionBuckets)

	// Infrastructure
	m.EventsPublishedTotal = collector.RegisterCounter("events_published_total", "Domain events published", "topic", "status")
	m.LockWaitDuration = collector.RegisterHistogram("lock_wait_duration_seconds", "Member lock acquisition wait", DefaultDBDurationBuckets)

	// System health
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_type")

	return m
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(metrics *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	status := fmt.Sprintf("%d", statusCode)
	metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordAdjudication records a finished adjudication outcome.
func RecordAdjudication(metrics *AppMetrics, decision string, approvedMinorUnits int64, duration time.Duration) {
	metrics.ClaimsAdjudicatedTotal.WithLabelValues(decision).Inc()
	metrics.AdjudicationDuration.WithLabelValues().Observe(duration.Seconds())
	metrics.ApprovedAmountTotal.WithLabelValues(decision).Add(float64(approvedMinorUnits))
}

// RecordExtractionCall records a call to the extraction service.
func RecordExtractionCall(metrics *AppMetrics, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	metrics.ExtractionCallsTotal.WithLabelValues(status).Inc()
	metrics.ExtractionDuration.WithLabelValues().Observe(duration.Seconds())
}

// RecordEventPublished records a Kafka publish attempt.
func RecordEventPublished(metrics *AppMetrics, topic string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.EventsPublishedTotal.WithLabelValues(topic, status).Inc()
}

// RecordError counts an error by component.
func RecordError(metrics *AppMetrics, component, errorType string) {
	metrics.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
