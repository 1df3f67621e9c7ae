// internal/config/normalize.go
package config

import (
	"strings"

	"github.com/google/uuid"
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	cfg.Device.Host = strings.TrimSpace(cfg.Device.Host)

	// ------------------------------------------------------------
	// MQTT IDENTITY (OPT-IN)
	// ------------------------------------------------------------

	if !cfg.MQTT.Enabled {
		return
	}

	// Brokers drop the older session on a client id clash.
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "mra4d-" + uuid.NewString()[:8]
	}

	cfg.MQTT.Topic = strings.TrimSuffix(cfg.MQTT.Topic, "/")
	if cfg.MQTT.StatusTopic == "" {
		cfg.MQTT.StatusTopic = cfg.MQTT.Topic + "/status"
	}
}
