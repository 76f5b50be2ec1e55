package assoc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	actionEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assoc_action_evaluations_total",
		Help: "Action evaluations by body kind and result.",
	}, []string{"kind", "result"})

	actionEvaluationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "assoc_action_evaluation_seconds",
		Help:    "Time spent in action bodies.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"kind"})
)

func observeEvaluation(kind string, err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	actionEvaluations.WithLabelValues(kind, result).Inc()
	actionEvaluationSeconds.WithLabelValues(kind).Observe(d.Seconds())
}
