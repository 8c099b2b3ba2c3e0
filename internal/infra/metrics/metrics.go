// Package metrics Prometheus-метрики трекера.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SnapshotsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bom_snapshots_received_total",
			Help: "Full collection snapshots delivered by the remote feed",
		},
	)

	SnapshotsSuperseded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bom_snapshots_superseded_total",
			Help: "Snapshots dropped because a newer one arrived before normalization finished",
		},
	)

	SubscriptionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bom_subscription_errors_total",
			Help: "Remote feed errors reported to the collection store",
		},
	)

	NormalizeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bom_normalize_duration_seconds",
			Help:    "Time to normalize one snapshot including image lookups",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	Items = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bom_items",
			Help: "Items in the current snapshot by transfer status",
		},
		[]string{"status"},
	)

	Writes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bom_remote_writes_total",
			Help: "Partial remote writes by field group and result",
		},
		[]string{"group", "result"},
	)

	ImageLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bom_image_lookups_total",
			Help: "Per-item image resolutions by result (hit, miss, error)",
		},
		[]string{"result"},
	)
)
