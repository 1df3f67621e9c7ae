// internal/alarm/alarm.go
package alarm

import "github.com/tamzrod/mra4-gateway/internal/device"

// ProtectionState is the operator-facing protection summary.
type ProtectionState string

const (
	ProtectionUnknown  ProtectionState = "unknown"
	ProtectionInactive ProtectionState = "inactive"
	ProtectionActive   ProtectionState = "active"
	ProtectionAlarm    ProtectionState = "alarm"
	ProtectionTripped  ProtectionState = "tripped"
)

// LoadLevel buckets the total power against the configured maximum.
type LoadLevel string

const (
	LoadNormal   LoadLevel = "normal"   // < 50 %
	LoadElevated LoadLevel = "elevated" // 50..80 %
	LoadHigh     LoadLevel = "high"     // >= 80 %
)

// PowerLoad is the total power relative to MaxPowerKW.
type PowerLoad struct {
	TotalKW float64   `json:"total_kw"`
	Percent float64   `json:"percent"`
	Level   LoadLevel `json:"level"`
	Warning bool      `json:"warning"`
}

// Fault describes the current cause of trip.
type Fault struct {
	Active      bool   `json:"active"`
	Code        uint16 `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Evaluation is everything derived from one Reading.
type Evaluation struct {
	Protection ProtectionState `json:"protection"`
	Power      *PowerLoad      `json:"power,omitempty"`
	Fault      *Fault          `json:"fault,omitempty"`
}

// Evaluator turns readings into alarm state. Pure. No IO.
type Evaluator struct {
	MaxPowerKW  float64
	WarnPercent float64
}

// Evaluate derives the alarm state of r. Absent inputs give absent outputs.
func (e Evaluator) Evaluate(r device.Reading) Evaluation {
	ev := Evaluation{Protection: EvaluateProtection(r.Protection)}

	if r.Power.Total != nil {
		p := e.EvaluatePower(*r.Power.Total)
		ev.Power = &p
	}
	if r.CauseOfTrip != nil {
		f := EvaluateFault(*r.CauseOfTrip)
		ev.Fault = &f
	}
	return ev
}

// EvaluateProtection applies TRIPPED > ALARM > ACTIVE > INACTIVE.
func EvaluateProtection(ps *device.ProtectionStatus) ProtectionState {
	switch {
	case ps == nil:
		return ProtectionUnknown
	case ps.Trip:
		return ProtectionTripped
	case ps.Alarm:
		return ProtectionAlarm
	case ps.Active:
		return ProtectionActive
	default:
		return ProtectionInactive
	}
}

// EvaluatePower classifies totalW (in W).
func (e Evaluator) EvaluatePower(totalW float64) PowerLoad {
	kw := totalW / 1000
	var pct float64
	if e.MaxPowerKW > 0 {
		pct = kw / e.MaxPowerKW * 100
	}

	level := LoadHigh
	switch {
	case pct < 50:
		level = LoadNormal
	case pct < 80:
		level = LoadElevated
	}

	return PowerLoad{
		TotalKW: kw,
		Percent: pct,
		Level:   level,
		Warning: e.WarnPercent > 0 && pct >= e.WarnPercent,
	}
}

// EvaluateFault looks code up in the cause-of-trip catalogue.
func EvaluateFault(code uint16) Fault {
	f := Fault{
		Active: device.IsFaultCOT(code),
		Code:   code,
		Name:   device.DescribeCOT(code),
	}
	if c, ok := device.LookupCOT(code); ok {
		f.Description = c.Description
	}
	return f
}
