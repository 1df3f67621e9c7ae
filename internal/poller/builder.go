// internal/poller/builder.go
package poller

import (
	"context"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"

	"github.com/tamzrod/mra4-gateway/internal/config"
	"github.com/tamzrod/mra4-gateway/internal/device"
	"github.com/tamzrod/mra4-gateway/internal/transport"
)

// NewFactory returns the device factory for cfg.
// Each call builds a fresh instance; nothing is connected here.
func NewFactory(cfg config.DeviceConfig) Factory {
	return func(mode device.Mode) (device.Device, error) {
		if mode == device.ModeSimulator {
			return device.NewSimulator(nil), nil
		}
		s := transport.New(transport.Config{
			Host:        cfg.Host,
			Port:        cfg.Port,
			UnitID:      cfg.UnitID,
			Timeout:     cfg.Timeout(),
			IdleTimeout: cfg.IdleTimeout(),
		})
		return device.NewReal(s, device.WithAckPulse(cfg.AckPulse())), nil
	}
}

// Probe retries dev.Connect until it succeeds or timeout elapses.
// Each attempt is bounded by the device's own connect timeout.
func Probe(ctx context.Context, dev device.Device, timeout, interval time.Duration) error {
	if timeout <= 0 {
		return dev.Connect()
	}
	if interval <= 0 {
		interval = time.Second
	}

	attempt := 0
	return wait.PollUntilContextTimeout(ctx, interval, timeout, true, func(context.Context) (bool, error) {
		attempt++
		if err := dev.Connect(); err != nil {
			klog.V(1).InfoS("Startup probe attempt failed", "attempt", attempt, "error", err)
			return false, nil
		}
		return true, nil
	})
}

// Build constructs a Poller and wires the device lifecycle.
// A real device is probed first; on failure it either falls back to the
// simulator or starts disconnected and is reconnected by the poller.
func Build(ctx context.Context, cfg *config.Config) (*Poller, error) {
	factory := NewFactory(cfg.Device)

	mode := device.Mode(cfg.Device.Mode)
	dev, err := factory(mode)
	if err != nil {
		return nil, err
	}

	if err := Probe(ctx, dev, cfg.Probe.Timeout(), cfg.Probe.Interval()); err != nil {
		if mode == device.ModeReal && cfg.Device.FallbackToSimulator {
			klog.InfoS("Relay unreachable, falling back to simulator", "error", err)
			dev, err = factory(device.ModeSimulator)
			if err != nil {
				return nil, err
			}
			_ = dev.Connect()
		} else {
			klog.ErrorS(err, "Relay unreachable at startup, polling will keep trying")
		}
	}

	return New(Config{Interval: cfg.Poll.Interval()}, dev, factory)
}
