// internal/publish/builder.go
package publish

import (
	mqtt "github.com/eclipse/paho.mqtt.golang"
	pkgerrors "github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/tamzrod/mra4-gateway/internal/config"
)

// disconnectQuiesceMs is how long Disconnect lets in-flight work finish.
const disconnectQuiesceMs = 250

// Set is the publishers built from one MQTT config.
type Set struct {
	Readings Publisher
	Status   StatusPublisher

	close func()
}

// Close disconnects from the broker. Safe on a nil or disabled Set.
func (s *Set) Close() {
	if s == nil || s.close == nil {
		return
	}
	s.close()
}

// Build connects to the broker and returns the publishers.
// A disabled config returns (nil, nil).
// Assumes the config has been validated and normalized.
func Build(cfg config.MQTTConfig) (*Set, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectTimeout(cfg.Timeout())
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		klog.ErrorS(err, "MQTT connection lost", "broker", cfg.Broker)
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		klog.InfoS("MQTT connected", "broker", cfg.Broker, "clientID", cfg.ClientID)
	})

	cli := mqtt.NewClient(opts)
	tok := cli.Connect()
	if !tok.WaitTimeout(cfg.Timeout()) {
		cli.Disconnect(0)
		return nil, pkgerrors.Wrapf(ErrTimeout, "mqtt: connect %s", cfg.Broker)
	}
	if err := tok.Error(); err != nil {
		return nil, pkgerrors.Wrapf(err, "mqtt: connect %s", cfg.Broker)
	}

	return newSet(cli, cfg, func() { cli.Disconnect(disconnectQuiesceMs) }), nil
}

func newSet(cli brokerClient, cfg config.MQTTConfig, closeFn func()) *Set {
	return &Set{
		Readings: newReadingPublisher(cli, cfg.Topic, cfg.QOS, cfg.Timeout()),
		Status:   newStatusPublisher(cli, cfg.StatusTopic, cfg.QOS, cfg.Timeout()),
		close:    closeFn,
	}
}
