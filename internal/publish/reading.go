// internal/publish/reading.go
package publish

import (
	"encoding/json"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/tamzrod/mra4-gateway/internal/device"
	"github.com/tamzrod/mra4-gateway/internal/poller"
)

// ErrTimeout is returned when the broker does not acknowledge in time.
var ErrTimeout = errors.New("publish: broker did not acknowledge in time")

// Message is the JSON document sent for every poll.
type Message struct {
	At        time.Time       `json:"at"`
	Mode      device.Mode     `json:"mode"`
	Connected bool            `json:"connected"`
	Reading   *device.Reading `json:"reading,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// NewMessage converts one poll result. A failed poll carries no reading.
func NewMessage(res poller.PollResult) Message {
	m := Message{
		At:        res.At,
		Mode:      res.Mode,
		Connected: res.Connected,
	}
	if res.Err != nil {
		m.Error = res.Err.Error()
		return m
	}
	r := res.Reading
	m.Reading = &r
	return m
}

type readingPublisher struct {
	cli     brokerClient
	topic   string
	qos     byte
	timeout time.Duration
}

func newReadingPublisher(cli brokerClient, topic string, qos byte, timeout time.Duration) *readingPublisher {
	return &readingPublisher{cli: cli, topic: topic, qos: qos, timeout: timeout}
}

// Publish sends res to the reading topic. Failed polls are published too,
// so subscribers see the outage.
func (p *readingPublisher) Publish(res poller.PollResult) error {
	payload, err := json.Marshal(NewMessage(res))
	if err != nil {
		return pkgerrors.Wrap(err, "publish: encode reading")
	}
	if err := send(p.cli, p.topic, p.qos, false, payload, p.timeout); err != nil {
		return pkgerrors.Wrapf(err, "publish: topic %s", p.topic)
	}
	return nil
}
