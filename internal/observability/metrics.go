package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	moveCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "itinerary_service",
		Subsystem: "reorder",
		Name:      "moves_total",
		Help:      "Activity moves grouped by renumbering kind.",
	}, []string{"kind"})
	moveDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "itinerary_service",
		Subsystem: "reorder",
		Name:      "move_transaction_seconds",
		Help:      "Duration of the reorder transaction including commit.",
		Buckets:   prometheus.DefBuckets,
	})
	lastMoveGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "itinerary_service",
		Subsystem: "reorder",
		Name:      "last_move_committed_timestamp_seconds",
		Help:      "Unix timestamp of the most recent committed activity move.",
	})
)

func init() {
	prometheus.MustRegister(moveCounter, moveDuration, lastMoveGauge)
}

// RecordMove updates the reorder counters after a committed move.
func RecordMove(kind string, took time.Duration) {
	moveCounter.WithLabelValues(kind).Inc()
	moveDuration.Observe(took.Seconds())
	lastMoveGauge.Set(float64(time.Now().Unix()))
}
