package graph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rebuildTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipes_graph_rebuilds_total",
		Help: "Full adjacency rebuilds",
	})

	selfHealPipes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipes_graph_self_heal_pipes_total",
		Help: "Pipe blocks inserted into the cache by live reconciliation scans",
	})

	validOutputChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipes_graph_valid_output_checks_total",
		Help: "HasValidOutput results by deciding tier",
	}, []string{"tier"})
)
