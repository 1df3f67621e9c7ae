// internal/control/dispatcher.go
package control

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"k8s.io/klog/v2"

	"github.com/tamzrod/mra4-gateway/internal/codec"
	"github.com/tamzrod/mra4-gateway/internal/device"
	"github.com/tamzrod/mra4-gateway/internal/metrics"
)

// ErrLocked is returned when a coupling pulse is requested outside the unlock window.
var ErrLocked = errors.New("control: coupling command is locked")

// DeviceSource hands out the device currently in use.
type DeviceSource interface {
	Device() device.Device
}

// Config holds the dispatcher timings.
type Config struct {
	// Pulse is the default coupling pulse on-time.
	Pulse time.Duration
	// UnlockWindow is how long an Unlock arms the coupling command.
	// Zero leaves the command permanently armed.
	UnlockWindow time.Duration
}

// Dispatcher runs coupling pulses in the background.
//
// A pulse is started on its own goroutine and never joined: the caller gets a
// job id back immediately. Pulses are not cancelled and overlapping pulses
// are not rejected; they are counted and logged.
type Dispatcher struct {
	cfg Config
	src DeviceSource
	now func() time.Time

	inFlight atomic.Int64

	mu            sync.Mutex
	unlockedUntil time.Time
}

// New creates a dispatcher over src.
func New(cfg Config, src DeviceSource) *Dispatcher {
	if cfg.Pulse <= 0 {
		cfg.Pulse = codec.CouplingPulse
	}
	return &Dispatcher{cfg: cfg, src: src, now: time.Now}
}

// Unlock arms the coupling command for the unlock window and returns its expiry.
func (d *Dispatcher) Unlock() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cfg.UnlockWindow <= 0 {
		return time.Time{}
	}
	d.unlockedUntil = d.now().Add(d.cfg.UnlockWindow)
	klog.InfoS("Coupling command unlocked", "until", d.unlockedUntil)
	return d.unlockedUntil
}

// Lock disarms the coupling command.
func (d *Dispatcher) Lock() {
	d.mu.Lock()
	d.unlockedUntil = time.Time{}
	d.mu.Unlock()
}

// Remaining is the time left in the unlock window.
// ok is true while a pulse would be accepted.
func (d *Dispatcher) Remaining() (left time.Duration, ok bool) {
	if d.cfg.UnlockWindow <= 0 {
		return 0, true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	left = d.unlockedUntil.Sub(d.now())
	if left <= 0 {
		return 0, false
	}
	return left, true
}

// InFlight is the number of pulses still running.
func (d *Dispatcher) InFlight() int64 { return d.inFlight.Load() }

// CouplingPulse starts a pulse of dur (the default if dur <= 0) and returns
// its job id without waiting for it.
func (d *Dispatcher) CouplingPulse(dur time.Duration) (string, error) {
	if _, ok := d.Remaining(); !ok {
		return "", ErrLocked
	}
	if dur <= 0 {
		dur = d.cfg.Pulse
	}

	dev := d.src.Device()
	id := uuid.NewString()

	n := d.inFlight.Inc()
	metrics.SetPulsesInFlight(n)
	if n > 1 {
		klog.InfoS("Coupling pulse overlaps a running pulse", "job", id, "inFlight", n)
	}

	go func() {
		err := dev.SendCouplingPulse(dur)

		metrics.SetPulsesInFlight(d.inFlight.Dec())
		if err != nil {
			klog.ErrorS(err, "Coupling pulse failed", "job", id, "mode", dev.Mode())
			return
		}
		klog.InfoS("Coupling pulse finished", "job", id, "mode", dev.Mode(), "duration", dur)
	}()

	return id, nil
}
