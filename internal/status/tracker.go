// internal/status/tracker.go
package status

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tamzrod/mra4-gateway/internal/device"
	"github.com/tamzrod/mra4-gateway/internal/poller"
)

// Tracker folds poll results and a 1 Hz tick into a Snapshot.
// It is the only owner of link health state.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker starts in HealthUnknown.
func NewTracker() *Tracker {
	return &Tracker{
		snap: Snapshot{
			Health: HealthUnknown,
			Link:   LinkOffline,
		},
	}
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

// Observe applies one poll result and reports whether the snapshot changed.
func (t *Tracker) Observe(res poller.PollResult) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.snap
	s := &t.snap

	s.LastPollAt = res.At
	s.Link = linkOf(res)

	switch {
	case res.Err != nil:
		s.Health = HealthError
		s.LastErrorCode = ErrorCode(res.Err)
		s.LastError = res.Err.Error()
		// NOTE: seconds_in_error increments on the 1Hz tick only.

	case res.Reading.Failed > 0:
		s.Health = HealthStale
		s.LastErrorCode = 0
		s.LastError = fmt.Sprintf("%d of %d reads failed", res.Reading.Failed, device.ReadingFields)

	default:
		// Recovery / OK
		s.Health = HealthOK
		if res.Mode == device.ModeSimulator {
			s.Health = HealthSimulator
		}
		s.LastErrorCode = 0
		s.LastError = ""
		s.SecondsInError = 0
	}

	return !prev.Equal(*s)
}

// Tick advances SecondsInError while the link is degraded.
// It saturates at MaxSecondsInError and never wraps.
func (t *Tracker) Tick() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap.Health != HealthError && t.snap.Health != HealthStale {
		return false
	}
	if t.snap.SecondsInError >= MaxSecondsInError {
		return false
	}
	t.snap.SecondsInError++
	return true
}

func linkOf(res poller.PollResult) string {
	switch {
	case res.Mode == device.ModeSimulator:
		return LinkSimulator
	case res.Connected:
		return LinkOnline
	default:
		return LinkOffline
	}
}

// ErrorCode extracts a best-effort uint16 code from an error without assuming concrete types.
// If the error does not expose a code, returns 1 (generic error).
func ErrorCode(err error) uint16 {
	if err == nil {
		return 0
	}

	type coder interface{ Code() uint16 }

	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return 1
}
