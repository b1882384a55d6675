package routing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reservedUnits = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pipes_reserved_units",
		Help: "Item units promised to destinations and not yet delivered",
	})

	// Labels: "selected", "no_candidates", "no_capacity"
	selections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipes_selections_total",
		Help: "Destination selections by result",
	}, []string{"result"})

	routeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipes_route_outcomes_total",
		Help: "Session routing results",
	}, []string{"outcome"})
)
