// internal/config/validate.go
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

var validate = newValidator()

// newValidator reports fields by their yaml names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
// Every problem is reported, not just the first.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}

	var errs []error

	// ------------------------------------------------------------
	// FIELD RULES (struct tags)
	// ------------------------------------------------------------

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, fmt.Errorf(
				"%s: failed %q (value=%v)",
				fieldPath(fe.Namespace()),
				fe.Tag(),
				fe.Value(),
			))
		}
	}

	// ------------------------------------------------------------
	// CROSS-FIELD RULES
	// ------------------------------------------------------------

	// a real device, or a fallback from one, needs somewhere to dial
	if cfg.Device.Mode == "real" && cfg.Device.Host == "" {
		errs = append(errs, errors.New("device.host: required when device.mode is real"))
	}

	if cfg.Probe.TimeoutMs > 0 && cfg.Probe.IntervalMs > cfg.Probe.TimeoutMs {
		errs = append(errs, fmt.Errorf(
			"probe.interval_ms (%d) must not exceed probe.timeout_ms (%d)",
			cfg.Probe.IntervalMs,
			cfg.Probe.TimeoutMs,
		))
	}

	if cfg.MQTT.Enabled && cfg.MQTT.StatusTopic != "" && cfg.MQTT.StatusTopic == cfg.MQTT.Topic {
		errs = append(errs, errors.New("mqtt.status_topic: must differ from mqtt.topic"))
	}

	return utilerrors.NewAggregate(errs)
}

// fieldPath turns "Config.device.port" into "device.port".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
