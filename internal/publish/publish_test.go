// internal/publish/publish_test.go
package publish

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tamzrod/mra4-gateway/internal/config"
	"github.com/tamzrod/mra4-gateway/internal/device"
	"github.com/tamzrod/mra4-gateway/internal/poller"
	"github.com/tamzrod/mra4-gateway/internal/status"
)

// ---- fake broker ----

type fakeToken struct {
	err     error
	pending bool
}

func (t *fakeToken) Wait() bool                     { return !t.pending }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.pending }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !t.pending {
		close(ch)
	}
	return ch
}

type sentMessage struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeBroker struct {
	sent    []sentMessage
	err     error
	pending bool
}

func (f *fakeBroker) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	if f.err == nil && !f.pending {
		f.sent = append(f.sent, sentMessage{
			topic:    topic,
			qos:      qos,
			retained: retained,
			payload:  payload.([]byte),
		})
	}
	return &fakeToken{err: f.err, pending: f.pending}
}

func testMQTTConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled:     true,
		Topic:       "mra4/reading",
		StatusTopic: "mra4/reading/status",
		QOS:         1,
		TimeoutMs:   100,
	}
}

// ---- readings ----

func TestReadingPublishedAsJSON(t *testing.T) {
	cli := &fakeBroker{}
	set := newSet(cli, testMQTTConfig(), nil)

	f := 50.01
	res := poller.PollResult{
		At:        time.Unix(1700000000, 0).UTC(),
		Mode:      device.ModeReal,
		Connected: true,
		Reading:   device.Reading{Mode: device.ModeReal, Frequency: &f},
	}

	if err := set.Readings.Publish(res); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if len(cli.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(cli.sent))
	}

	msg := cli.sent[0]
	if msg.topic != "mra4/reading" || msg.qos != 1 || msg.retained {
		t.Fatalf("unexpected envelope: %+v", msg)
	}

	var got Message
	if err := json.Unmarshal(msg.payload, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got.Reading == nil || got.Reading.Frequency == nil || *got.Reading.Frequency != 50.01 {
		t.Fatalf("frequency lost in payload: %s", msg.payload)
	}
	if got.Error != "" {
		t.Fatalf("unexpected error field: %q", got.Error)
	}
}

func TestFailedPollPublishedWithoutReading(t *testing.T) {
	m := NewMessage(poller.PollResult{Mode: device.ModeReal, Err: poller.ErrNoData})

	if m.Reading != nil {
		t.Fatalf("failed poll must not carry a reading")
	}
	if m.Error != poller.ErrNoData.Error() {
		t.Fatalf("unexpected error text %q", m.Error)
	}
}

func TestReadingPublishTimeout(t *testing.T) {
	cli := &fakeBroker{pending: true}
	set := newSet(cli, testMQTTConfig(), nil)

	err := set.Readings.Publish(poller.PollResult{Mode: device.ModeSimulator})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

// ---- status ----

func TestStatusPublishedOnlyOnChange(t *testing.T) {
	cli := &fakeBroker{}
	set := newSet(cli, testMQTTConfig(), nil)

	ok := status.Snapshot{Health: status.HealthOK, Link: status.LinkOnline}

	// first publish: full re-assert, even if equal to the boot state
	if err := set.Status.PublishStatus(ok); err != nil {
		t.Fatalf("initial publish failed: %v", err)
	}
	if err := set.Status.PublishStatus(ok); err != nil {
		t.Fatalf("repeat publish failed: %v", err)
	}
	if len(cli.sent) != 1 {
		t.Fatalf("unchanged snapshot must not be resent, got %d messages", len(cli.sent))
	}
	if !cli.sent[0].retained || cli.sent[0].topic != "mra4/reading/status" {
		t.Fatalf("status must be retained on the status topic: %+v", cli.sent[0])
	}

	bad := status.Snapshot{Health: status.HealthError, LastErrorCode: 4, SecondsInError: 1, Link: status.LinkOffline}
	if err := set.Status.PublishStatus(bad); err != nil {
		t.Fatalf("change publish failed: %v", err)
	}
	if len(cli.sent) != 2 {
		t.Fatalf("changed snapshot must be sent, got %d messages", len(cli.sent))
	}

	var got statusPayload
	if err := json.Unmarshal(cli.sent[1].payload, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got.HealthName != "error" || got.LastErrorCode != 4 {
		t.Fatalf("unexpected payload %s", cli.sent[1].payload)
	}
}

func TestStatusReassertedAfterFailure(t *testing.T) {
	cli := &fakeBroker{}
	set := newSet(cli, testMQTTConfig(), nil)

	ok := status.Snapshot{Health: status.HealthOK, Link: status.LinkOnline}
	if err := set.Status.PublishStatus(ok); err != nil {
		t.Fatalf("initial publish failed: %v", err)
	}

	cli.err = errors.New("broker gone")
	bad := status.Snapshot{Health: status.HealthError, LastErrorCode: 1, Link: status.LinkOffline}
	if err := set.Status.PublishStatus(bad); err == nil {
		t.Fatalf("expected publish error")
	}

	// recovery back to the last delivered state still re-asserts
	cli.err = nil
	if err := set.Status.PublishStatus(ok); err != nil {
		t.Fatalf("re-assert failed: %v", err)
	}
	if len(cli.sent) != 2 {
		t.Fatalf("expected re-assert after failure, got %d messages", len(cli.sent))
	}
}

func TestBuildDisabled(t *testing.T) {
	set, err := Build(config.MQTTConfig{})
	if err != nil || set != nil {
		t.Fatalf("disabled mqtt must build nothing: set=%v err=%v", set, err)
	}
	set.Close()
}
