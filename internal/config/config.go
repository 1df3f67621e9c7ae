// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Probe   ProbeConfig   `yaml:"probe"`
	Poll    PollConfig    `yaml:"poll"`
	History HistoryConfig `yaml:"history"`
	Alarm   AlarmConfig   `yaml:"alarm"`
	API     APIConfig     `yaml:"api"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	Mode          string `yaml:"mode" validate:"oneof=real simulator"`
	Host          string `yaml:"host" validate:"omitempty,hostname|ip"`
	Port          int    `yaml:"port" validate:"min=1,max=65535"`
	UnitID        uint8  `yaml:"unit_id"`
	TimeoutMs     int    `yaml:"timeout_ms" validate:"min=0"`
	IdleTimeoutMs int    `yaml:"idle_timeout_ms" validate:"min=0"`

	// Fall back to the simulator when the startup probe fails.
	FallbackToSimulator bool `yaml:"fallback_to_simulator"`

	CouplingPulseMs int `yaml:"coupling_pulse_ms" validate:"min=0"`
	AckPulseMs      int `yaml:"ack_pulse_ms" validate:"min=0"`

	// Seconds the coupling command stays armed after an unlock. 0 disables the lock.
	CouplingUnlockS int `yaml:"coupling_unlock_timeout_s" validate:"min=0,max=300"`
}

// ---- STARTUP PROBE ----

type ProbeConfig struct {
	TimeoutMs  int `yaml:"timeout_ms" validate:"min=0"`
	IntervalMs int `yaml:"interval_ms" validate:"min=0"`
}

// ---- POLL ----

type PollConfig struct {
	IntervalMs int `yaml:"interval_ms" validate:"min=100"`
}

// ---- HISTORY ----

type HistoryConfig struct {
	Points int `yaml:"points" validate:"min=1,max=86400"`
}

// ---- ALARM ----

type AlarmConfig struct {
	MaxPowerKW  float64 `yaml:"max_power_kw" validate:"gt=0"`
	WarnPercent float64 `yaml:"warn_percent" validate:"gt=0,lte=100"`
}

// ---- API ----

type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen" validate:"required_if=Enabled true"`
}

// ---- MQTT ----

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker" validate:"required_if=Enabled true"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	Topic       string `yaml:"topic" validate:"required_if=Enabled true"`
	StatusTopic string `yaml:"status_topic"`
	QOS         byte   `yaml:"qos" validate:"max=2"`
	TimeoutMs   int    `yaml:"timeout_ms" validate:"min=0"`
}

// Default returns the configuration used for every field a file leaves out.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Mode:            "real",
			Host:            "192.168.1.100",
			Port:            502,
			UnitID:          1,
			TimeoutMs:       3000,
			IdleTimeoutMs:   60000,
			CouplingPulseMs: 2000,
			AckPulseMs:      100,
			CouplingUnlockS: 30,
		},
		Probe: ProbeConfig{
			TimeoutMs:  30000,
			IntervalMs: 1000,
		},
		Poll:    PollConfig{IntervalMs: 1000},
		History: HistoryConfig{Points: 60},
		Alarm: AlarmConfig{
			MaxPowerKW:  12.0,
			WarnPercent: 90,
		},
		API: APIConfig{
			Enabled: true,
			Listen:  ":8050",
		},
		MQTT: MQTTConfig{
			Broker:    "tcp://127.0.0.1:1883",
			Topic:     "mra4/reading",
			TimeoutMs: 5000,
		},
	}
}

// Load reads a YAML file on top of Default().
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ---- durations ----

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func (d DeviceConfig) Timeout() time.Duration       { return ms(d.TimeoutMs) }
func (d DeviceConfig) IdleTimeout() time.Duration   { return ms(d.IdleTimeoutMs) }
func (d DeviceConfig) CouplingPulse() time.Duration { return ms(d.CouplingPulseMs) }
func (d DeviceConfig) AckPulse() time.Duration      { return ms(d.AckPulseMs) }
func (d DeviceConfig) CouplingUnlock() time.Duration {
	return time.Duration(d.CouplingUnlockS) * time.Second
}

func (p ProbeConfig) Timeout() time.Duration  { return ms(p.TimeoutMs) }
func (p ProbeConfig) Interval() time.Duration { return ms(p.IntervalMs) }

func (p PollConfig) Interval() time.Duration { return ms(p.IntervalMs) }

func (m MQTTConfig) Timeout() time.Duration { return ms(m.TimeoutMs) }
