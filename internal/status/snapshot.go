// internal/status/snapshot.go
package status

import "time"

// Snapshot represents exactly what the publishers are allowed to deliver.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Health         uint16 `json:"health"`
	LastErrorCode  uint16 `json:"last_error_code"`
	SecondsInError uint16 `json:"seconds_in_error"`

	Link       string    `json:"link"`
	LastError  string    `json:"last_error,omitempty"`
	LastPollAt time.Time `json:"last_poll_at"`
}

// HealthName is the readable form of Health.
func (s Snapshot) HealthName() string { return HealthName(s.Health) }

// Equal compares the fields that matter for change detection.
// LastPollAt is ignored.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.Health == o.Health &&
		s.LastErrorCode == o.LastErrorCode &&
		s.SecondsInError == o.SecondsInError &&
		s.Link == o.Link &&
		s.LastError == o.LastError
}
