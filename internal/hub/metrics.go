package hub

import "github.com/prometheus/client_golang/prometheus"

var (
	downloadBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "poemd",
		Subsystem: "hub",
		Name:      "download_bytes_total",
		Help:      "Bytes downloaded from the model hub",
	})

	listingsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "poemd",
		Subsystem: "hub",
		Name:      "listings_total",
		Help:      "Repository listings fetched from the hub (cache misses)",
	})

	requestErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poemd",
		Subsystem: "hub",
		Name:      "request_errors_total",
		Help:      "Hub responses with a non-2xx status",
	}, []string{"status"})

	snapshotDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "poemd",
		Subsystem: "hub",
		Name:      "snapshot_duration_seconds",
		Help:      "Duration of completed snapshot downloads",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(downloadBytesTotal, listingsTotal, requestErrorsTotal, snapshotDuration)
}
