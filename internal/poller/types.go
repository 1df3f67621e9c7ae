// internal/poller/types.go
package poller

import (
	"errors"
	"time"

	"github.com/tamzrod/mra4-gateway/internal/device"
)

// ErrNoData marks a poll in which every sub-read failed.
var ErrNoData = errors.New("poller: every read failed")

// Factory builds a fresh, unconnected device for a mode.
// One attempt per call. No retries.
type Factory func(mode device.Mode) (device.Device, error)

// PollResult is a snapshot produced by one poll cycle.
type PollResult struct {
	At        time.Time
	Mode      device.Mode
	Connected bool

	// Reading holds whatever could be read. Absent fields are nil.
	Reading device.Reading

	// Err is non-nil when the cycle produced no data at all:
	// the reconnect failed or every sub-read failed.
	Err error
}

// OK reports a cycle in which every read succeeded.
func (r PollResult) OK() bool {
	return r.Err == nil && r.Reading.Complete()
}
