// internal/publish/status.go
package publish

import (
	"encoding/json"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/tamzrod/mra4-gateway/internal/status"
)

// statusPayload is the retained status document.
type statusPayload struct {
	status.Snapshot
	HealthName string `json:"health_name"`
}

// statusPublisher keeps the retained status topic in sync with the tracker.
// Unchanged snapshots are not sent again.
type statusPublisher struct {
	cli     brokerClient
	topic   string
	qos     byte
	timeout time.Duration

	needFull bool
	last     status.Snapshot
}

func newStatusPublisher(cli brokerClient, topic string, qos byte, timeout time.Duration) *statusPublisher {
	return &statusPublisher{
		cli:      cli,
		topic:    topic,
		qos:      qos,
		timeout:  timeout,
		needFull: true, // re-assert on first successful publish
		last: status.Snapshot{
			Health: status.HealthUnknown,
		},
	}
}

// PublishStatus sends s as a retained message when it differs from the last
// delivered snapshot. After any failure the next call publishes regardless.
func (sp *statusPublisher) PublishStatus(s status.Snapshot) error {
	if s.SecondsInError > status.MaxSecondsInError {
		s.SecondsInError = status.MaxSecondsInError
	}

	if !sp.needFull && sp.last.Equal(s) {
		return nil
	}

	payload, err := json.Marshal(statusPayload{Snapshot: s, HealthName: s.HealthName()})
	if err != nil {
		return pkgerrors.Wrap(err, "status publisher: encode")
	}

	if err := send(sp.cli, sp.topic, sp.qos, true, payload, sp.timeout); err != nil {
		sp.needFull = true
		return pkgerrors.Wrapf(err, "status publisher: topic %s", sp.topic)
	}

	sp.needFull = false
	sp.last = s
	return nil
}
