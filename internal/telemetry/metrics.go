package telemetry

import "github.com/prometheus/client_golang/prometheus"

var (
	samplesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "llamactl",
			Subsystem: "telemetry",
			Name:      "samples_total",
			Help:      "Total telemetry collection cycles",
		},
	)

	sampleErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "llamactl",
			Subsystem: "telemetry",
			Name:      "sample_errors_total",
			Help:      "Total per-field read failures across collection cycles",
		},
	)

	diagnosesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llamactl",
			Subsystem: "telemetry",
			Name:      "diagnoses_total",
			Help:      "Crash diagnoses run by the sampling loop, by severity",
		},
		[]string{"severity"},
	)
)

func init() {
	prometheus.MustRegister(samplesTotal, sampleErrorsTotal, diagnosesTotal)
}
