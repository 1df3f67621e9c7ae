// internal/gateway/orchestrator.go
package gateway

import (
	"context"
	"time"

	"k8s.io/klog/v2"

	"github.com/tamzrod/mra4-gateway/internal/alarm"
	"github.com/tamzrod/mra4-gateway/internal/history"
	"github.com/tamzrod/mra4-gateway/internal/metrics"
	"github.com/tamzrod/mra4-gateway/internal/poller"
	"github.com/tamzrod/mra4-gateway/internal/publish"
	"github.com/tamzrod/mra4-gateway/internal/status"
)

// Orchestrator owns everything downstream of the poller: link status,
// history, alarm logging and publishing. One goroutine drives it.
type Orchestrator struct {
	tracker   *status.Tracker
	history   *history.Buffer
	evaluator alarm.Evaluator

	readings publish.Publisher
	status   publish.StatusPublisher

	last alarm.Evaluation
}

// New wires an orchestrator. pubs may be nil when MQTT is disabled.
func New(tracker *status.Tracker, hist *history.Buffer, ev alarm.Evaluator, pubs *publish.Set) *Orchestrator {
	o := &Orchestrator{
		tracker:   tracker,
		history:   hist,
		evaluator: ev,
		last:      alarm.Evaluation{Protection: alarm.ProtectionUnknown},
	}
	if pubs != nil {
		o.readings = pubs.Readings
		o.status = pubs.Status
	}
	return o
}

// Run consumes poll results and the 1 Hz seconds ticker until ctx is done.
func (o *Orchestrator) Run(ctx context.Context, in <-chan poller.PollResult) {
	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	// Re-assert the boot state.
	o.publishStatus()

	for {
		select {
		case <-ctx.Done():
			return

		case res := <-in:
			o.Handle(res)

		case <-secTicker.C:
			o.Tick()
		}
	}
}

// Handle processes one poll result.
func (o *Orchestrator) Handle(res poller.PollResult) {
	// --- data delivery ---
	if o.readings != nil {
		if err := o.readings.Publish(res); err != nil {
			klog.ErrorS(err, "Failed to publish reading")
		}
	}

	if res.Err == nil {
		o.history.Add(res.Reading)
		o.logAlarms(o.evaluator.Evaluate(res.Reading))
	} else {
		klog.V(1).InfoS("Poll failed", "mode", res.Mode, "error", res.Err)
	}

	// --- link status ---
	if o.tracker.Observe(res) {
		o.publishStatus()
	}
}

// Tick advances seconds-in-error once.
func (o *Orchestrator) Tick() {
	if o.tracker.Tick() {
		o.publishStatus()
	}
}

func (o *Orchestrator) publishStatus() {
	snap := o.tracker.Snapshot()
	metrics.SetHealth(snap.Health)

	if o.status == nil {
		return
	}
	if err := o.status.PublishStatus(snap); err != nil {
		klog.ErrorS(err, "Failed to publish status", "health", snap.HealthName())
	}
}

// logAlarms logs transitions only. Absent fields keep the previous state.
func (o *Orchestrator) logAlarms(ev alarm.Evaluation) {
	if ev.Protection != alarm.ProtectionUnknown && ev.Protection != o.last.Protection {
		klog.InfoS("Protection state changed", "from", o.last.Protection, "to", ev.Protection)
		o.last.Protection = ev.Protection
	}

	if ev.Fault != nil && (o.last.Fault == nil || o.last.Fault.Code != ev.Fault.Code) {
		if ev.Fault.Active {
			klog.InfoS("Cause of trip reported", "cot", ev.Fault.Code, "name", ev.Fault.Name, "description", ev.Fault.Description)
		}
		o.last.Fault = ev.Fault
	}

	if ev.Power != nil {
		prevWarn := o.last.Power != nil && o.last.Power.Warning
		if ev.Power.Warning && !prevWarn {
			klog.InfoS("Power above warning threshold", "kw", ev.Power.TotalKW, "percent", ev.Power.Percent)
		}
		o.last.Power = ev.Power
	}
}
