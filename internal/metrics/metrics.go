// Package metrics holds the prometheus collectors shared by the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrapecast_pages_fetched_total",
			Help: "Pages fetched, by HTTP status code",
		},
		[]string{"status_code"},
	)
	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrapecast_fetch_errors_total",
			Help: "Fetch failures, by kind (transport, status, robots)",
		},
		[]string{"type"},
	)
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scrapecast_fetch_duration_seconds",
			Help:    "Time taken to download a page",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
	MirrorProbes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrapecast_mirror_probes_total",
			Help: "Mirror health probes, by result",
		},
		[]string{"result"},
	)
	Candidates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrapecast_candidate_links_total",
			Help: "Candidate links produced by the extractor, by source hint",
		},
		[]string{"hint"},
	)
	LinksEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrapecast_links_emitted_total",
			Help: "Links offered to a result sink, by outcome (accepted, duplicate)",
		},
		[]string{"outcome"},
	)
)
