// internal/device/types.go
package device

import (
	"fmt"
	"time"
)

// Phase is one of the three line phases.
type Phase uint8

const (
	L1 Phase = iota
	L2
	L3
)

// Phases lists L1..L3 in order.
var Phases = []Phase{L1, L2, L3}

func (p Phase) String() string {
	switch p {
	case L1:
		return "L1"
	case L2:
		return "L2"
	case L3:
		return "L3"
	default:
		return fmt.Sprintf("Phase(%d)", uint8(p))
	}
}

// Valid reports whether p is L1, L2 or L3.
func (p Phase) Valid() bool { return p <= L3 }

// Mode identifies which Device variant is in use.
type Mode string

const (
	ModeReal      Mode = "real"
	ModeSimulator Mode = "simulator"
)

// ProtectionStatus is the decoded protection status word.
type ProtectionStatus struct {
	Active  bool `json:"active"`
	Alarm   bool `json:"alarm"`
	AlarmL1 bool `json:"alarm_l1"`
	AlarmL2 bool `json:"alarm_l2"`
	AlarmL3 bool `json:"alarm_l3"`
	Trip    bool `json:"trip"`
	TripL1  bool `json:"trip_l1"`
	TripL2  bool `json:"trip_l2"`
	TripL3  bool `json:"trip_l3"`

	Raw uint16 `json:"raw"`
}

// DecodeProtectionStatus splits word into its named flags.
func DecodeProtectionStatus(word uint16) ProtectionStatus {
	return ProtectionStatus{
		Active:  word&MaskActive != 0,
		Alarm:   word&MaskAlarm != 0,
		AlarmL1: word&MaskAlarmL1 != 0,
		AlarmL2: word&MaskAlarmL2 != 0,
		AlarmL3: word&MaskAlarmL3 != 0,
		Trip:    word&MaskTrip != 0,
		TripL1:  word&MaskTripL1 != 0,
		TripL2:  word&MaskTripL2 != 0,
		TripL3:  word&MaskTripL3 != 0,
		Raw:     word,
	}
}

// DigitalInputs is the DI1..DI8 word of slot X1.
type DigitalInputs uint16

// Input reports DI n (1..8). Out-of-range inputs read as false.
func (d DigitalInputs) Input(n int) bool {
	if n < 1 || n > DigitalInputCount {
		return false
	}
	return uint16(d)&(1<<(n-1)) != 0
}

// PhaseValues holds one optional value per phase. Nil means the read failed.
type PhaseValues struct {
	L1 *float64 `json:"L1"`
	L2 *float64 `json:"L2"`
	L3 *float64 `json:"L3"`
}

// Set stores v for phase p.
func (pv *PhaseValues) Set(p Phase, v *float64) {
	switch p {
	case L1:
		pv.L1 = v
	case L2:
		pv.L2 = v
	case L3:
		pv.L3 = v
	}
}

// Get returns the value for phase p.
func (pv PhaseValues) Get(p Phase) *float64 {
	switch p {
	case L1:
		return pv.L1
	case L2:
		return pv.L2
	case L3:
		return pv.L3
	}
	return nil
}

// PowerValues is PhaseValues plus the measured total.
type PowerValues struct {
	PhaseValues
	Total *float64 `json:"total"`

	// PerPhaseApproximated is set when L1..L3 are total/3 rather than measured.
	PerPhaseApproximated bool `json:"per_phase_approximated"`
}

// ReadingFields is the number of sub-reads behind one Reading.
const ReadingFields = 17

// Reading is one aggregate snapshot of the device.
// Every field is optional: nil means that single read failed.
type Reading struct {
	At   time.Time `json:"at"`
	Mode Mode      `json:"mode"`

	Voltage   PhaseValues `json:"voltage"`
	Current   PhaseValues `json:"current"`
	Power     PowerValues `json:"power"`
	Frequency *float64    `json:"frequency"`

	CouplingSwitch *bool             `json:"coupling_switch"`
	DigitalInput1  *bool             `json:"di_status"`
	Protection     *ProtectionStatus `json:"protection_status"`
	CauseOfTrip    *uint16           `json:"cause_of_trip"`
	FaultNumber    *uint16           `json:"fault_number"`
	FaultRecording *bool             `json:"fault_recording"`

	// Failed counts the sub-reads that came back absent.
	Failed int `json:"failed"`
}

// Complete reports whether every sub-read succeeded.
func (r Reading) Complete() bool { return r.Failed == 0 }
