// internal/poller/poller.go
package poller

import (
	"errors"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/tamzrod/mra4-gateway/internal/device"
	"github.com/tamzrod/mra4-gateway/internal/metrics"
)

// Config is the minimal runtime config the poller needs.
type Config struct {
	Interval time.Duration
}

// Poller is a clock-driven reader of one device.
// It owns the device lifecycle: reconnects and mode switches happen
// between polls, never in the middle of one.
type Poller struct {
	cfg     Config
	factory Factory
	now     func() time.Time

	mu  sync.RWMutex
	dev device.Device

	pendingMu sync.Mutex
	pending   *device.Mode

	// retired devices are disconnected in the background once their
	// pulses complete. Close waits for them.
	retireMu sync.Mutex
	closed   bool
	retiring sync.WaitGroup
}

// New creates a poller with immutable config.
// factory may be nil, in which case mode switches are rejected.
func New(cfg Config, dev device.Device, factory Factory) (*Poller, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if dev == nil {
		return nil, errors.New("poller: device required")
	}
	return &Poller{
		cfg:     cfg,
		factory: factory,
		now:     time.Now,
		dev:     dev,
	}, nil
}

// Device returns the device currently in use.
func (p *Poller) Device() device.Device {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dev
}

// RequestMode queues a switch to mode, applied before the next poll.
// The latest request wins.
func (p *Poller) RequestMode(mode device.Mode) error {
	if p.factory == nil {
		return errors.New("poller: mode switch not supported")
	}
	if mode != device.ModeReal && mode != device.ModeSimulator {
		return errors.New("poller: unknown mode " + string(mode))
	}

	p.pendingMu.Lock()
	p.pending = &mode
	p.pendingMu.Unlock()
	return nil
}

// PollOnce performs exactly one poll cycle.
// Individual read failures blank single fields; the cycle only fails as a
// whole when the device cannot be reached.
func (p *Poller) PollOnce() PollResult {
	p.applyPendingMode()

	dev := p.Device()
	res := PollResult{
		At:   p.now(),
		Mode: dev.Mode(),
	}

	// Reconnect between polls only. One attempt.
	if !dev.Connected() {
		if err := dev.Connect(); err != nil {
			metrics.IncPoll(metrics.StatusFailed)
			res.Err = err
			return res
		}
	}

	start := time.Now()
	res.Reading = dev.ReadAllData()
	metrics.ObservePoll(time.Since(start).Seconds())
	res.Connected = dev.Connected()

	switch {
	case res.Reading.Failed >= device.ReadingFields:
		res.Err = ErrNoData
		metrics.IncPoll(metrics.StatusFailed)
	case res.Reading.Failed > 0:
		metrics.IncPoll(metrics.StatusPartial)
	default:
		metrics.IncPoll(metrics.StatusSuccess)
	}

	return res
}

// Close disconnects the current device and waits for retired ones.
// A pulse still running on any of them completes first.
func (p *Poller) Close() error {
	p.retireMu.Lock()
	p.closed = true
	p.retireMu.Unlock()

	err := p.Device().Disconnect()
	p.retiring.Wait()
	return err
}

func (p *Poller) applyPendingMode() {
	p.pendingMu.Lock()
	mode := p.pending
	p.pending = nil
	p.pendingMu.Unlock()

	if mode == nil {
		return
	}

	old := p.Device()
	if old.Mode() == *mode {
		return
	}

	p.retireMu.Lock()
	defer p.retireMu.Unlock()
	if p.closed {
		return
	}

	next, err := p.factory(*mode)
	if err != nil {
		klog.ErrorS(err, "Failed to build device for mode switch", "mode", *mode)
		return
	}

	p.mu.Lock()
	p.dev = next
	p.mu.Unlock()

	p.retiring.Add(1)
	go p.retire(old)
	klog.InfoS("Device mode switched", "from", old.Mode(), "to", *mode)
}

// retire disconnects a replaced device without blocking the poll loop.
func (p *Poller) retire(old device.Device) {
	defer p.retiring.Done()

	if err := old.Disconnect(); err != nil {
		klog.V(2).InfoS("Failed to disconnect previous device", "mode", old.Mode(), "error", err)
		return
	}
	klog.V(1).InfoS("Previous device disconnected", "mode", old.Mode())
}
