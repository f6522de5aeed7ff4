package verification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// validContributionsTotal counts contributions whose worker output
	// carried the validity marker.
	validContributionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "coordinator",
			Name:      "valid_contributions_total",
			Help:      "Count of contributions that verified successfully.",
		},
	)
	// invalidContributionsTotal counts rejected contributions, including
	// worker failures.
	invalidContributionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "coordinator",
			Name:      "invalid_contributions_total",
			Help:      "Count of contributions that failed verification.",
		},
	)
	// verifyContributionMilliseconds observes the total duration of
	// verification handling, worker time included.
	verifyContributionMilliseconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "coordinator",
			Name:      "verify_contribution_milliseconds",
			Help:      "Total duration of contribution verification handling.",
			Buckets:   []float64{1000, 5000, 15000, 60000, 300000, 900000, 3600000},
		},
	)
)
