// internal/device/real.go
package device

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/tamzrod/mra4-gateway/internal/codec"
	"github.com/tamzrod/mra4-gateway/internal/metrics"
	"github.com/tamzrod/mra4-gateway/internal/transport"
)

var (
	ErrInvalidPhase = errors.New("device: phase must be L1, L2 or L3")
	ErrInvalidInput = errors.New("device: digital input must be 1..8")
)

// Session is the transport contract Real depends on.
// *transport.Session satisfies it.
type Session interface {
	Connect() error
	Disconnect() error
	Connected() bool
	ReadInputRegisters(addr, qty uint16) ([]uint16, error)   // FC 4
	ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) // FC 3
	WriteSingleCoil(addr uint16, on bool) error              // FC 5
}

// Real talks to a physical MRA 4 over one Session.
type Real struct {
	session  Session
	sleep    func(time.Duration)
	now      func() time.Time
	ackPulse time.Duration

	// pulses is read-held by every running pulse and write-held by Disconnect,
	// so the link stays up until each pulse has written its off state.
	pulses sync.RWMutex
}

// Option customizes a Real.
type Option func(*Real)

// WithSleep replaces time.Sleep inside pulses.
func WithSleep(fn func(time.Duration)) Option {
	return func(r *Real) { r.sleep = fn }
}

// WithClock replaces time.Now for reading timestamps.
func WithClock(fn func() time.Time) Option {
	return func(r *Real) { r.now = fn }
}

// WithAckPulse overrides the acknowledge pulse on-time.
func WithAckPulse(d time.Duration) Option {
	return func(r *Real) {
		if d > 0 {
			r.ackPulse = d
		}
	}
}

// NewReal wraps s. The session is not connected here.
func NewReal(s Session, opts ...Option) *Real {
	r := &Real{
		session:  s,
		sleep:    time.Sleep,
		now:      time.Now,
		ackPulse: codec.AckPulse,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Real) Mode() Mode { return ModeReal }

func (r *Real) Connected() bool { return r.session.Connected() }

func (r *Real) Connect() error {
	err := r.session.Connect()
	metrics.SetConnected(err == nil)
	if err != nil {
		klog.ErrorS(err, "Failed to connect to relay")
		return err
	}
	klog.InfoS("Connected to relay")
	return nil
}

// Disconnect waits for running pulses to finish, then closes the session.
func (r *Real) Disconnect() error {
	r.pulses.Lock()
	defer r.pulses.Unlock()

	err := r.session.Disconnect()
	metrics.SetConnected(false)
	klog.V(1).InfoS("Disconnected from relay")
	return err
}

// ---- measurements ----

func (r *Real) ReadVoltage(p Phase) (float64, error) {
	if !p.Valid() {
		return 0, ErrInvalidPhase
	}
	return r.readFloat("voltage", voltageAddr[p], 2)
}

func (r *Real) ReadCurrent(p Phase) (float64, error) {
	if !p.Valid() {
		return 0, ErrInvalidPhase
	}
	return r.readFloat("current", currentAddr[p], 3)
}

// ReadPower approximates the phase power as total/3.
// The relay exposes no per-phase active power register.
func (r *Real) ReadPower(p Phase) (float64, error) {
	if !p.Valid() {
		return 0, ErrInvalidPhase
	}
	total, err := r.ReadTotalPower()
	if err != nil {
		return 0, err
	}
	return r.phasePower(total), nil
}

func (r *Real) phasePower(total float64) float64 { return codec.Round(total/3, 2) }

func (r *Real) ReadTotalPower() (float64, error) {
	return r.readFloat("active_power", AddrActivePower, 2)
}

func (r *Real) ReadFrequency() (float64, error) {
	return r.readFloat("frequency", AddrFrequency, 2)
}

// ---- status ----

func (r *Real) ReadCouplingSwitchCommand() (bool, error) {
	w, err := r.readWord("remote_commands", AddrRemoteCommands)
	if err != nil {
		return false, err
	}
	return codec.DecodeBitFlag(w, BitCouplingCommand), nil
}

func (r *Real) ReadFaultRecordingStatus() (bool, error) {
	w, err := r.readWord("remote_commands", AddrRemoteCommands)
	if err != nil {
		return false, err
	}
	return codec.DecodeBitFlag(w, BitFaultRecording), nil
}

func (r *Real) ReadDigitalInputs() (DigitalInputs, error) {
	w, err := r.readWord("digital_inputs", AddrDigitalInputs)
	if err != nil {
		return 0, err
	}
	return DigitalInputs(w), nil
}

func (r *Real) ReadDigitalInput(n int) (bool, error) {
	if n < 1 || n > DigitalInputCount {
		return false, ErrInvalidInput
	}
	di, err := r.ReadDigitalInputs()
	if err != nil {
		return false, err
	}
	return di.Input(n), nil
}

func (r *Real) ReadProtectionStatus() (ProtectionStatus, error) {
	w, err := r.readWord("protection_status", AddrProtectionStatus)
	if err != nil {
		return ProtectionStatus{}, err
	}
	return DecodeProtectionStatus(w), nil
}

func (r *Real) ReadCauseOfTrip() (uint16, error) {
	return r.readWord("cause_of_trip", AddrCauseOfTrip)
}

func (r *Real) ReadFaultNumber() (uint16, error) {
	return r.readWord("fault_number", AddrFaultNumber)
}

// ---- commands ----

// SendCouplingPulse holds the coupling coil on for d, then releases it.
// Blocks for d. Callers that must not block run it on their own goroutine.
func (r *Real) SendCouplingPulse(d time.Duration) error {
	if d <= 0 {
		d = codec.CouplingPulse
	}
	return r.pulse("coupling_pulse", CoilCouplingSwitch, d)
}

func (r *Real) WriteCouplingSwitch(on bool) error {
	return r.writeLevel("coupling_switch", CoilCouplingSwitch, on)
}

// WriteFaultRecordingTrigger is a level write, not a pulse.
func (r *Real) WriteFaultRecordingTrigger(on bool) error {
	return r.writeLevel("fault_recording", CoilFaultRecording, on)
}

func (r *Real) AcknowledgeAll() error {
	return r.pulse("acknowledge_all", CoilAcknowledgeAll, r.ackPulse)
}

func (r *Real) AcknowledgeDevice() error {
	return r.pulse("acknowledge_device", CoilAcknowledgeDevice, r.ackPulse)
}

func (r *Real) AcknowledgeTripCommand() error {
	return r.pulse("acknowledge_trip_command", CoilAcknowledgeTripCommand, r.ackPulse)
}

func (r *Real) ReadAllData() Reading {
	return readAll(r, r.now())
}

// ---- internal helpers ----

func (r *Real) readFloat(op string, addr uint16, decimals int) (float64, error) {
	regs, err := r.session.ReadInputRegisters(addr, 2)
	if err != nil {
		r.logFailure("read", op, transport.InputRegister, addr, err)
		return 0, err
	}
	metrics.IncRegisterOp("read", transport.InputRegister.String(), metrics.StatusSuccess)
	return codec.Round(codec.Float32FromRegisters(regs), decimals), nil
}

func (r *Real) readWord(op string, addr uint16) (uint16, error) {
	regs, err := r.session.ReadHoldingRegisters(addr, 1)
	if err != nil {
		r.logFailure("read", op, transport.HoldingRegister, addr, err)
		return 0, err
	}
	if len(regs) != 1 {
		err = &transport.Error{
			Op: "read", Space: transport.HoldingRegister, Address: addr,
			Kind: transport.KindProtocol, Err: fmt.Errorf("expected 1 register, got %d", len(regs)),
		}
		r.logFailure("read", op, transport.HoldingRegister, addr, err)
		return 0, err
	}
	metrics.IncRegisterOp("read", transport.HoldingRegister.String(), metrics.StatusSuccess)
	return regs[0], nil
}

func (r *Real) writeLevel(op string, coil uint16, on bool) error {
	if err := r.writeCoil(op, coil, on); err != nil {
		return err
	}
	klog.InfoS("Coil written", "op", op, "coil", coil, "on", on)
	return nil
}

func (r *Real) writeCoil(op string, coil uint16, on bool) error {
	if err := r.session.WriteSingleCoil(coil, on); err != nil {
		r.logFailure("write", op, transport.Coil, coil, err)
		return err
	}
	metrics.IncRegisterOp("write", transport.Coil.String(), metrics.StatusSuccess)
	return nil
}

// pulse writes on, waits d, writes off. The off write is skipped if on failed.
func (r *Real) pulse(op string, coil uint16, d time.Duration) error {
	r.pulses.RLock()
	defer r.pulses.RUnlock()

	label := strconv.Itoa(int(coil))

	for i, on := range codec.PulseWrites() {
		if i > 0 {
			r.sleep(d)
		}
		if err := r.writeCoil(op, coil, on); err != nil {
			metrics.IncPulse(label, metrics.StatusFailed)
			return err
		}
	}

	metrics.IncPulse(label, metrics.StatusSuccess)
	klog.InfoS("Coil pulse sent", "op", op, "coil", coil, "duration", d)
	return nil
}

func (r *Real) logFailure(op, what string, space transport.Space, addr uint16, err error) {
	kind := "unknown"
	var te *transport.Error
	if errors.As(err, &te) {
		kind = te.Kind.String()
	}
	metrics.IncRegisterOp(op, space.String(), metrics.StatusFailed)
	metrics.IncRegisterError(op, kind)
	if !r.session.Connected() {
		metrics.SetConnected(false)
	}
	klog.ErrorS(err, "Register operation failed", "op", op, "value", what, "space", space, "address", addr)
}
