// internal/device/simulator.go
package device

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/tamzrod/mra4-gateway/internal/codec"
)

// DefaultTripCOT is the cause used by SimulateTrip(0): phase overcurrent I[1].
const DefaultTripCOT uint16 = 3201

// maxStep is the largest relative change of one random-walk step.
const maxStep = 0.10

// bounds is the clamp range of one simulated quantity.
type bounds struct {
	min, max float64
}

var (
	voltageBounds   = bounds{210, 240}
	currentBounds   = bounds{0, 20}
	powerBounds     = bounds{0, 4600}
	frequencyBounds = bounds{49.8, 50.2}
)

// Simulator is an in-memory MRA 4 with plausible wandering measurements.
// It is safe for concurrent use.
type Simulator struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time

	connected bool

	voltage   [3]float64
	current   [3]float64
	power     [3]float64
	frequency float64

	coupling       bool
	faultRecording bool
	inputs         [DigitalInputCount]bool
	tripped        bool
	cot            uint16
	faultNumber    uint16
}

// NewSimulator returns a simulator driven by src.
// A nil src is seeded from the clock.
func NewSimulator(src rand.Source) *Simulator {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Simulator{
		rnd:       rand.New(src),
		now:       time.Now,
		voltage:   [3]float64{225.0, 228.0, 223.0},
		current:   [3]float64{8.0, 9.0, 7.5},
		power:     [3]float64{1800.0, 2050.0, 1675.0},
		frequency: 50.0,
		cot:       COTNormal,
	}
}

// step moves cur by at most ±10% of itself, then clamps to b.
func (s *Simulator) step(cur float64, b bounds) float64 {
	limit := math.Abs(cur) * maxStep
	next := cur + (s.rnd.Float64()*2-1)*limit
	return math.Max(b.min, math.Min(b.max, next))
}

func (s *Simulator) Mode() Mode { return ModeSimulator }

func (s *Simulator) Connect() error {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()

	klog.InfoS("Simulator connected")
	return nil
}

func (s *Simulator) Disconnect() error {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()

	klog.V(1).InfoS("Simulator disconnected")
	return nil
}

func (s *Simulator) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// ---- measurements ----

func (s *Simulator) ReadVoltage(p Phase) (float64, error) {
	if !p.Valid() {
		return 0, ErrInvalidPhase
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.voltage[p] = s.step(s.voltage[p], voltageBounds)
	return codec.Round(s.voltage[p], 2), nil
}

func (s *Simulator) ReadCurrent(p Phase) (float64, error) {
	if !p.Valid() {
		return 0, ErrInvalidPhase
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current[p] = s.step(s.current[p], currentBounds)
	return codec.Round(s.current[p], 3), nil
}

func (s *Simulator) ReadPower(p Phase) (float64, error) {
	if !p.Valid() {
		return 0, ErrInvalidPhase
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.power[p] = s.step(s.power[p], powerBounds)
	return codec.Round(s.power[p], 2), nil
}

// ReadTotalPower sums the per-phase trackers without stepping them.
func (s *Simulator) ReadTotalPower() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return codec.Round(s.power[0]+s.power[1]+s.power[2], 2), nil
}

func (s *Simulator) ReadFrequency() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frequency = s.step(s.frequency, frequencyBounds)
	return codec.Round(s.frequency, 2), nil
}

// ---- status ----

func (s *Simulator) ReadCouplingSwitchCommand() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coupling, nil
}

func (s *Simulator) ReadDigitalInputs() (DigitalInputs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var w uint16
	for i, on := range s.inputs {
		if on {
			w |= 1 << i
		}
	}
	return DigitalInputs(w), nil
}

func (s *Simulator) ReadDigitalInput(n int) (bool, error) {
	if n < 1 || n > DigitalInputCount {
		return false, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputs[n-1], nil
}

// ReadProtectionStatus always reports an active protection.
func (s *Simulator) ReadProtectionStatus() (ProtectionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw := MaskActive
	if s.tripped {
		raw |= MaskTrip
	}
	return DecodeProtectionStatus(raw), nil
}

func (s *Simulator) ReadCauseOfTrip() (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cot, nil
}

func (s *Simulator) ReadFaultNumber() (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faultNumber, nil
}

func (s *Simulator) ReadFaultRecordingStatus() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faultRecording, nil
}

// ---- commands ----

// SendCouplingPulse toggles the coupling state immediately.
// d is accepted but not timed; DI1 follows the new state.
func (s *Simulator) SendCouplingPulse(d time.Duration) error {
	s.mu.Lock()
	s.coupling = !s.coupling
	s.inputs[0] = s.coupling
	state := s.coupling
	s.mu.Unlock()

	klog.InfoS("Simulator coupling pulse", "duration", d, "on", state)
	return nil
}

func (s *Simulator) WriteCouplingSwitch(on bool) error {
	s.mu.Lock()
	s.coupling = on
	s.inputs[0] = on
	s.mu.Unlock()

	klog.InfoS("Simulator coupling switch written", "on", on)
	return nil
}

func (s *Simulator) WriteFaultRecordingTrigger(on bool) error {
	s.mu.Lock()
	s.faultRecording = on
	s.mu.Unlock()

	klog.InfoS("Simulator fault recording trigger written", "on", on)
	return nil
}

func (s *Simulator) AcknowledgeAll() error {
	s.resetTrip(true)
	klog.InfoS("Simulator acknowledged all")
	return nil
}

func (s *Simulator) AcknowledgeDevice() error {
	s.resetTrip(true)
	klog.InfoS("Simulator acknowledged device")
	return nil
}

// AcknowledgeTripCommand clears the trip but keeps the cause of trip.
func (s *Simulator) AcknowledgeTripCommand() error {
	s.resetTrip(false)
	klog.InfoS("Simulator acknowledged trip command")
	return nil
}

// SimulateTrip trips the protection with code and bumps the fault number.
// Code 0 means DefaultTripCOT.
func (s *Simulator) SimulateTrip(code uint16) {
	if code == 0 {
		code = DefaultTripCOT
	}

	s.mu.Lock()
	s.tripped = true
	s.cot = code
	s.faultNumber++
	s.mu.Unlock()

	klog.InfoS("Simulator trip", "cot", code, "cause", DescribeCOT(code))
}

func (s *Simulator) ReadAllData() Reading {
	return readAll(s, s.now())
}

func (s *Simulator) resetTrip(resetCOT bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tripped = false
	if resetCOT {
		s.cot = COTNormal
	}
}
