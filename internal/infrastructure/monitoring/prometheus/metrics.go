package prometheus

import (
	"fmt"
	"time"
)

// AppMetrics holds all application metrics for the mapping pipeline.
type AppMetrics struct {
	// HTTP Layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Resolution Pipeline
	ResolveRequestsTotal  CounterVec
	ResolveDuration       HistogramVec
	ResolvePairsTotal     CounterVec
	PhaseRunsTotal        CounterVec
	PhaseDuration         HistogramVec
	PhaseUpgradesTotal    CounterVec
	MatchCandidatesPerRun HistogramVec

	// Dictionary
	DictionaryLookupsTotal CounterVec
	DictionaryHitsTotal    CounterVec
	DictionaryRecordsTotal CounterVec
	DictionaryEntriesTotal GaugeVec

	// Embedding / LLM Layer
	EmbeddingRequestsTotal CounterVec
	EmbeddingDuration      HistogramVec
	LLMRequestsTotal       CounterVec
	LLMRequestDuration     HistogramVec
	LLMBatchSize           HistogramVec

	// Infrastructure Layer
	DBConnectionPoolSize   GaugeVec
	DBConnectionPoolActive GaugeVec
	DBQueryDuration        HistogramVec
	CacheHitsTotal         CounterVec
	CacheMissesTotal       CounterVec
	SessionEventsTotal     CounterVec
	MessageProcessDuration HistogramVec

	// System Health
	ServiceUptime     GaugeVec
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

// Default Buckets
var (
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultAIDurationBuckets   = []float64{.1, .25, .5, 1, 2, 5, 10, 30, 60}
	DefaultDBDurationBuckets   = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
	DefaultCountBuckets        = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000}
)

// NewAppMetrics registers all metrics and returns AppMetrics struct.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	// HTTP
	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method", "path")

	// Resolution pipeline
	m.ResolveRequestsTotal = collector.RegisterCounter("resolve_requests_total", "Mapping resolution requests", "status")
	m.ResolveDuration = collector.RegisterHistogram("resolve_duration_seconds", "End-to-end resolution duration", DefaultHTTPDurationBuckets)
	m.ResolvePairsTotal = collector.RegisterCounter("resolve_pairs_total", "Resolved pairs by confidence tier", "tier")
	m.PhaseRunsTotal = collector.RegisterCounter("phase_runs_total", "Pipeline phase runs", "phase", "status")
	m.PhaseDuration = collector.RegisterHistogram("phase_duration_seconds", "Pipeline phase duration", DefaultAIDurationBuckets, "phase")
	m.PhaseUpgradesTotal = collector.RegisterCounter("phase_upgrades_total", "Pairs upgraded by escalation phase", "phase")
	m.MatchCandidatesPerRun = collector.RegisterHistogram("match_candidates_per_run", "Candidate pairs scored per resolution", DefaultCountBuckets)

	// Dictionary
	m.DictionaryLookupsTotal = collector.RegisterCounter("dictionary_lookups_total", "Dictionary lookups", "method")
	m.DictionaryHitsTotal = collector.RegisterCounter("dictionary_hits_total", "Dictionary hits by match method", "method")
	m.DictionaryRecordsTotal = collector.RegisterCounter("dictionary_records_total", "Dictionary confirmations recorded", "event_source")
	m.DictionaryEntriesTotal = collector.RegisterGauge("dictionary_entries_total", "Total dictionary entries", "vendor")

	// Embedding / LLM
	m.EmbeddingRequestsTotal = collector.RegisterCounter("embedding_requests_total", "Embedding requests", "status")
	m.EmbeddingDuration = collector.RegisterHistogram("embedding_request_duration_seconds", "Embedding request duration", DefaultAIDurationBuckets)
	m.LLMRequestsTotal = collector.RegisterCounter("llm_requests_total", "LLM adjudication requests", "model", "status")
	m.LLMRequestDuration = collector.RegisterHistogram("llm_request_duration_seconds", "LLM request duration", DefaultAIDurationBuckets, "model")
	m.LLMBatchSize = collector.RegisterHistogram("llm_batch_size", "Pairs per LLM adjudication batch", []float64{1, 2, 5, 10, 15, 20})

	// Infrastructure
	m.DBConnectionPoolSize = collector.RegisterGauge("db_pool_size", "Database connection pool size", "db")
	m.DBConnectionPoolActive = collector.RegisterGauge("db_pool_active", "Database active connections", "db")
	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "db", "operation")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.SessionEventsTotal = collector.RegisterCounter("session_events_total", "Session events processed", "status")
	m.MessageProcessDuration = collector.RegisterHistogram("mq_process_duration_seconds", "Message processing duration", DefaultHTTPDurationBuckets, "queue", "message_type")

	// System Health
	m.ServiceUptime = collector.RegisterGauge("service_uptime_seconds", "Service uptime", "service")
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_type", "severity")

	return m
}

// RegisterAppMetrics is an alias for NewAppMetrics.
func RegisterAppMetrics(collector MetricsCollector) *AppMetrics {
	return NewAppMetrics(collector)
}

// Helpers

func RecordHTTPRequest(metrics *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	if metrics == nil {
		return
	}
	status := fmt.Sprintf("%d", statusCode)
	metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func RecordResolve(metrics *AppMetrics, success bool, duration time.Duration, tierCounts map[string]int) {
	if metrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	metrics.ResolveRequestsTotal.WithLabelValues(status).Inc()
	metrics.ResolveDuration.WithLabelValues().Observe(duration.Seconds())
	for tier, count := range tierCounts {
		metrics.ResolvePairsTotal.WithLabelValues(tier).Add(float64(count))
	}
}

func RecordPhase(metrics *AppMetrics, phase string, success bool, upgraded int, duration time.Duration) {
	if metrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	metrics.PhaseRunsTotal.WithLabelValues(phase, status).Inc()
	metrics.PhaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
	if upgraded > 0 {
		metrics.PhaseUpgradesTotal.WithLabelValues(phase).Add(float64(upgraded))
	}
}

func RecordDictionaryLookup(metrics *AppMetrics, method string, hit bool) {
	if metrics == nil {
		return
	}
	metrics.DictionaryLookupsTotal.WithLabelValues(method).Inc()
	if hit {
		metrics.DictionaryHitsTotal.WithLabelValues(method).Inc()
	}
}

func RecordLLMCall(metrics *AppMetrics, model string, success bool, batchSize int, duration time.Duration) {
	if metrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	metrics.LLMRequestsTotal.WithLabelValues(model, status).Inc()
	metrics.LLMRequestDuration.WithLabelValues(model).Observe(duration.Seconds())
	metrics.LLMBatchSize.WithLabelValues().Observe(float64(batchSize))
}

func RecordDBQuery(metrics *AppMetrics, db, operation string, duration time.Duration, err error) {
	if metrics == nil {
		return
	}
	metrics.DBQueryDuration.WithLabelValues(db, operation).Observe(duration.Seconds())
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues(db, "query_error", "error").Inc()
	}
}

func RecordCacheAccess(metrics *AppMetrics, cache string, hit bool) {
	if metrics == nil {
		return
	}
	if hit {
		metrics.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

func RecordError(metrics *AppMetrics, component, errorType, severity string) {
	if metrics == nil {
		return
	}
	metrics.ErrorsTotal.WithLabelValues(component, errorType, severity).Inc()
}
