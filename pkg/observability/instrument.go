package observability

import "time"

// ObserveProviderCall records the outcome and latency of one reasoner call.
func ObserveProviderCall(provider, op string, start time.Time, err error) {
	ProviderRequestsTotal.WithLabelValues(provider, op, outcome(err)).Inc()
	ProviderLatency.WithLabelValues(provider, op).Observe(time.Since(start).Seconds())
}

// ObserveSearch records the outcome of one searcher call and, on success,
// the number of hits it returned.
func ObserveSearch(provider string, hits int, err error) {
	SearchQueriesTotal.WithLabelValues(provider, outcome(err)).Inc()
	if err == nil {
		SearchResultsReturned.WithLabelValues(provider).Observe(float64(hits))
	}
}

// ObserveStage records the run time of one stage unit.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
