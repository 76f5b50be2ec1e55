package array

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var itemsMaterialized = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "assoc_items_materialized_total",
	Help: "Item entities created, moved or erased by array and modify actions.",
}, []string{"op"})
