package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesRequested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chalo_rides_requested_total",
		Help: "Total number of ride requests accepted by the dispatch engine.",
	})

	RidesAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chalo_rides_accepted_total",
		Help: "Total number of rides claimed by a driver.",
	})

	RidesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chalo_rides_completed_total",
		Help: "Total number of rides that reached completed.",
	})

	RidesCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chalo_rides_cancelled_total",
		Help: "Total number of rides cancelled before completion.",
	})

	AcceptConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chalo_accept_conflicts_total",
		Help: "Accept attempts that lost the claim race or hit a busy driver.",
	})

	WebsocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chalo_websocket_connections",
		Help: "Currently registered realtime connections.",
	})
)
