// internal/publish/types.go
package publish

import (
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tamzrod/mra4-gateway/internal/poller"
	"github.com/tamzrod/mra4-gateway/internal/status"
)

// Publisher delivers poll results. Delivery only: no retries, no buffering.
type Publisher interface {
	Publish(res poller.PollResult) error
}

// StatusPublisher delivers link status snapshots verbatim.
type StatusPublisher interface {
	PublishStatus(s status.Snapshot) error
}

// brokerClient is the slice of the paho client the publishers use.
type brokerClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// send publishes payload and waits at most timeout for the broker.
func send(cli brokerClient, topic string, qos byte, retained bool, payload []byte, timeout time.Duration) error {
	tok := cli.Publish(topic, qos, retained, payload)
	if !tok.WaitTimeout(timeout) {
		return ErrTimeout
	}
	return tok.Error()
}
