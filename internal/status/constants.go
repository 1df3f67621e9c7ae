// internal/status/constants.go
package status

// Link health codes.
// These values are published on MQTT and /metrics and MUST NOT be renumbered.

// ---- HEALTH CODES ----

// HealthUnknown represents an unknown or boot state.
const HealthUnknown uint16 = 0

// HealthOK represents a healthy device: every read of the last poll succeeded.
const HealthOK uint16 = 1

// HealthError represents a device error state: the last poll produced no data.
const HealthError uint16 = 2

// HealthStale represents a partial poll: some fields are missing.
const HealthStale uint16 = 3

// HealthSimulator represents a healthy simulated device.
const HealthSimulator uint16 = 4

// ---- LIMITS ----

// MaxSecondsInError is where SecondsInError saturates.
const MaxSecondsInError uint16 = 65535

// ---- LINK MODES ----

// Link modes as shown to operators.
const (
	LinkSimulator = "simulator"
	LinkOnline    = "online"
	LinkOffline   = "offline"
)

// HealthName returns the lower-case name of a health code.
func HealthName(code uint16) string {
	switch code {
	case HealthOK:
		return "ok"
	case HealthError:
		return "error"
	case HealthStale:
		return "stale"
	case HealthSimulator:
		return "simulator"
	default:
		return "unknown"
	}
}
