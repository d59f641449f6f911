package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Commits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "icetx",
		Name:      "commits_total",
		Help:      "Transactions published by ledger writers.",
	})
	CommitFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "icetx",
		Name:      "commit_failures_total",
		Help:      "Commits that failed during the publish protocol.",
	})
	CommitLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "icetx",
		Name:      "commit_duration_seconds",
		Help:      "Time spent writing, syncing and publishing a transaction.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
	})
	Snapshots = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "icetx",
		Name:      "snapshots_total",
		Help:      "Snapshot resolutions by readers, by outcome.",
	}, []string{"outcome"})
	ReclaimedGenerations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "icetx",
		Name:      "reclaimed_generations_total",
		Help:      "Old transaction states deleted once no reader referenced them.",
	})
	OpenReaders = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "icetx",
		Name:      "open_snapshot_references",
		Help:      "Snapshot references currently held by readers.",
	})
)
