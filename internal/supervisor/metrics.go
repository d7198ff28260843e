package supervisor

import "github.com/prometheus/client_golang/prometheus"

var (
	workerStartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "llamactl",
			Subsystem: "supervisor",
			Name:      "worker_starts_total",
			Help:      "Total worker launch attempts that reached spawn",
		},
	)

	workerEarlyExitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "llamactl",
			Subsystem: "supervisor",
			Name:      "worker_early_exits_total",
			Help:      "Workers that died inside the start grace window",
		},
	)

	workerStopsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llamactl",
			Subsystem: "supervisor",
			Name:      "worker_stops_total",
			Help:      "Stop sequences by outcome",
		},
		[]string{"outcome"},
	)

	sweepKilledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "llamactl",
			Subsystem: "supervisor",
			Name:      "sweep_killed_total",
			Help:      "Orphan processes killed by the stop sweep",
		},
	)
)

func init() {
	prometheus.MustRegister(workerStartsTotal, workerEarlyExitsTotal, workerStopsTotal, sweepKilledTotal)
}
