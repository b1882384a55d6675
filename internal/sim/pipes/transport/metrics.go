package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	packetsSpawned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipes_packets_spawned_total",
		Help: "Packets handed to a transport manager",
	})

	// Labels: INSERTED, PARTIAL, DROPPED_UNLOADED, DROPPED_NO_INVENTORY
	packetsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipes_packets_finished_total",
		Help: "Delivered packets by outcome",
	}, []string{"outcome"})

	packetErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipes_packet_errors_total",
		Help: "Packets discarded after a failed tick",
	})

	packetsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pipes_packets_in_flight",
		Help: "Packets currently travelling",
	})

	itemsInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipes_items_inserted_total",
		Help: "Item units inserted into inventories",
	})

	itemsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipes_items_dropped_total",
		Help: "Item units dropped into the world",
	})
)
