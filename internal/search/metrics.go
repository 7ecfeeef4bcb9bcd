package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	permutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goalreach_search_permutations_total",
			Help: "Number assignments joined, by search pass.",
		},
		[]string{"pass"},
	)

	candidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goalreach_search_join_candidates_total",
			Help: "Matching value pairs examined by the joiners, by search pass.",
		},
		[]string{"pass"},
	)

	solutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goalreach_search_solutions_total",
			Help: "Improving solutions reported, by search pass.",
		},
		[]string{"pass"},
	)

	passDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "goalreach_search_pass_duration_seconds",
			Help:    "Wall time of each search pass.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 12),
		},
		[]string{"pass"},
	)

	memoValues = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "goalreach_search_memo_values",
			Help:    "Values held by a worker's memo when its task finishes.",
			Buckets: prometheus.ExponentialBuckets(16, 4, 12),
		},
	)
)
