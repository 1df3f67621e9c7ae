// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counters
	RegisterOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mra4_register_operations_total",
		Help: "Register reads and coil writes sent to the relay",
	}, []string{"op", "space", "status"})

	RegisterErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mra4_register_errors_total",
		Help: "Failed register operations by error kind",
	}, []string{"op", "kind"})

	Pulses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mra4_coil_pulses_total",
		Help: "Coil pulses by coil and outcome",
	}, []string{"coil", "status"})

	Polls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mra4_polls_total",
		Help: "Poll cycles by outcome",
	}, []string{"status"})

	// Gauges
	Connected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mra4_device_connected",
		Help: "1 while the relay session is connected",
	})

	PulsesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mra4_coil_pulses_in_flight",
		Help: "Coupling pulses currently running",
	})

	Health = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mra4_link_health",
		Help: "Link health code (0 unknown, 1 ok, 2 error, 3 stale, 4 simulator)",
	})

	// Histograms
	PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mra4_poll_duration_seconds",
		Help:    "Duration of one aggregate read",
		Buckets: prometheus.DefBuckets,
	})
)

// Status constants
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusPartial = "partial"
)

// IncRegisterOp counts one register operation.
func IncRegisterOp(op, space, status string) {
	RegisterOps.WithLabelValues(op, space, status).Inc()
}

// IncRegisterError counts one failed register operation.
func IncRegisterError(op, kind string) {
	RegisterErrors.WithLabelValues(op, kind).Inc()
}

// IncPulse counts one finished pulse.
func IncPulse(coil, status string) {
	Pulses.WithLabelValues(coil, status).Inc()
}

// IncPoll counts one poll cycle.
func IncPoll(status string) {
	Polls.WithLabelValues(status).Inc()
}

// SetConnected mirrors the session state.
func SetConnected(connected bool) {
	if connected {
		Connected.Set(1)
		return
	}
	Connected.Set(0)
}

// SetPulsesInFlight sets the number of running pulses.
func SetPulsesInFlight(n int64) {
	PulsesInFlight.Set(float64(n))
}

// SetHealth sets the link health code.
func SetHealth(code uint16) {
	Health.Set(float64(code))
}

// ObservePoll records the duration of one poll in seconds.
func ObservePoll(seconds float64) {
	PollDuration.Observe(seconds)
}
