package tasks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var tasksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fjord_tasks_total",
		Help: "Total executed tasks by outcome (succeeded, failed, unknown, skipped)",
	},
	[]string{"outcome"},
)
