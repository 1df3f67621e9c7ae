// internal/poller/builder_test.go
package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tamzrod/mra4-gateway/internal/config"
	"github.com/tamzrod/mra4-gateway/internal/device"
)

func configForTest() config.DeviceConfig {
	return config.Default().Device
}

func TestNewFactory_Modes(t *testing.T) {
	f := NewFactory(configForTest())

	sim, err := f(device.ModeSimulator)
	if err != nil || sim.Mode() != device.ModeSimulator {
		t.Fatalf("simulator: mode=%v err=%v", sim, err)
	}

	relay, err := f(device.ModeReal)
	if err != nil || relay.Mode() != device.ModeReal {
		t.Fatalf("real: mode=%v err=%v", relay, err)
	}
	if relay.Connected() {
		t.Fatalf("factory must not connect")
	}
}

func TestProbe_RetriesUntilConnected(t *testing.T) {
	dev := &flakyDevice{failures: 2}

	err := Probe(context.Background(), dev, time.Second, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("Probe err=%v", err)
	}
	if dev.attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", dev.attempts)
	}
}

func TestProbe_TimesOut(t *testing.T) {
	dev := &flakyDevice{failures: 1 << 30}

	if err := Probe(context.Background(), dev, 30*time.Millisecond, 5*time.Millisecond); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestBuild_FallsBackToSimulator(t *testing.T) {
	cfg := config.Default()
	cfg.Device.Host = "127.0.0.1"
	cfg.Device.Port = 1
	cfg.Device.TimeoutMs = 50
	cfg.Device.FallbackToSimulator = true
	cfg.Probe.TimeoutMs = 100
	cfg.Probe.IntervalMs = 20

	p, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build err=%v", err)
	}
	if p.Device().Mode() != device.ModeSimulator {
		t.Fatalf("expected simulator fallback, got %s", p.Device().Mode())
	}
}

type flakyDevice struct {
	device.Device
	failures int
	attempts int
}

func (f *flakyDevice) Connect() error {
	f.attempts++
	if f.attempts <= f.failures {
		return errors.New("refused")
	}
	return nil
}
