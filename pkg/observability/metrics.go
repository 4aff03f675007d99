// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the research server.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for model latencies,
// ranging from 100ms to 10 minutes.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600}

// StageBuckets covers whole-stage durations, which include several
// provider round trips.
var StageBuckets = []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1200}

var (
	// RequestsTotal counts HTTP requests by method, status class and route.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openresearch_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "openresearch_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// TasksStarted counts research tasks by requested depth.
	TasksStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openresearch_tasks_started_total",
			Help: "Research tasks started",
		},
		[]string{"depth"},
	)

	// TaskTransitions counts status transitions by target status.
	TaskTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openresearch_task_transitions_total",
			Help: "Task status transitions",
		},
		[]string{"status"},
	)

	// StageDuration records how long each stage unit ran.
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "openresearch_stage_duration_seconds",
			Help:    "Stage execution duration",
			Buckets: StageBuckets,
		},
		[]string{"stage"},
	)

	// ProviderRequestsTotal counts reasoner calls by provider, operation and outcome.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openresearch_provider_requests_total",
			Help: "Reasoner provider requests",
		},
		[]string{"provider", "op", "status"},
	)

	// ProviderLatency records reasoner call latency in seconds.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "openresearch_provider_latency_seconds",
			Help:    "Reasoner provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "op"},
	)

	// SearchQueriesTotal counts searcher calls by provider and outcome.
	SearchQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openresearch_search_queries_total",
			Help: "Web search queries",
		},
		[]string{"provider", "status"},
	)

	// SearchResultsReturned records the number of hits per search.
	SearchResultsReturned = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "openresearch_search_results_returned",
			Help:    "Number of web search results returned",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 10, 20},
		},
		[]string{"provider"},
	)

	// ArchiveWritesTotal counts report archive writes by outcome.
	ArchiveWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openresearch_archive_writes_total",
			Help: "Report archive writes",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		TasksStarted,
		TaskTransitions,
		StageDuration,
		ProviderRequestsTotal,
		ProviderLatency,
		SearchQueriesTotal,
		SearchResultsReturned,
		ArchiveWritesTotal,
	)
}
