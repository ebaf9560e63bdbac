package session

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poemd",
		Subsystem: "session",
		Name:      "loads_total",
		Help:      "Model load attempts by result",
	}, []string{"result"})

	loadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "poemd",
		Subsystem: "session",
		Name:      "load_duration_seconds",
		Help:      "Duration of successful model loads, including downloads",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
	})

	generationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poemd",
		Subsystem: "session",
		Name:      "generations_total",
		Help:      "Generations by result (ok, error, dropped)",
	}, []string{"result"})

	generationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "poemd",
		Subsystem: "session",
		Name:      "generation_duration_seconds",
		Help:      "Wall-clock duration of completed generations",
		Buckets:   prometheus.DefBuckets,
	})

	tokensTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "poemd",
		Subsystem: "session",
		Name:      "tokens_total",
		Help:      "Tokens produced by the runtime",
	})

	tokensPerSecond = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "poemd",
		Subsystem: "session",
		Name:      "tokens_per_second",
		Help:      "Throughput of the last generation",
	})

	subscribersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "poemd",
		Subsystem: "session",
		Name:      "subscribers",
		Help:      "Active in-process event subscribers",
	})

	eventsDiscardedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "poemd",
		Subsystem: "session",
		Name:      "events_discarded_total",
		Help:      "Events discarded because a subscriber fell behind",
	})
)

func init() {
	prometheus.MustRegister(loadsTotal, loadDuration, generationsTotal, generationDuration,
		tokensTotal, tokensPerSecond, subscribersGauge, eventsDiscardedTotal)
}
