// internal/device/real_test.go
package device

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/mra4-gateway/internal/codec"
	"github.com/tamzrod/mra4-gateway/internal/transport"
)

// ---- fake clock + session ----

type fakeClock struct {
	elapsed time.Duration
}

func (c *fakeClock) Sleep(d time.Duration) { c.elapsed += d }

type coilEvent struct {
	addr uint16
	on   bool
	at   time.Duration
}

type fakeSession struct {
	clock     *fakeClock
	connected bool

	input   map[uint16]float32
	holding map[uint16]uint16

	failRead  map[uint16]error
	failWrite map[bool]error

	reads  map[uint16]int
	writes []coilEvent
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		clock:     &fakeClock{},
		connected: true,
		input:     map[uint16]float32{},
		holding:   map[uint16]uint16{},
		failRead:  map[uint16]error{},
		failWrite: map[bool]error{},
		reads:     map[uint16]int{},
	}
}

func (f *fakeSession) Connect() error {
	f.connected = true
	return nil
}

func (f *fakeSession) Disconnect() error {
	f.connected = false
	return nil
}

func (f *fakeSession) Connected() bool { return f.connected }

func (f *fakeSession) ReadInputRegisters(addr, qty uint16) ([]uint16, error) {
	f.reads[addr]++
	if err := f.failRead[addr]; err != nil {
		return nil, err
	}
	hi, lo := codec.EncodeFloat32(f.input[addr])
	return []uint16{hi, lo}, nil
}

func (f *fakeSession) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	if err := f.failRead[addr]; err != nil {
		return nil, err
	}
	return []uint16{f.holding[addr]}, nil
}

func (f *fakeSession) WriteSingleCoil(addr uint16, on bool) error {
	if err := f.failWrite[on]; err != nil {
		return err
	}
	f.writes = append(f.writes, coilEvent{addr: addr, on: on, at: f.clock.elapsed})
	return nil
}

func newTestReal(s *fakeSession) *Real {
	return NewReal(s, WithSleep(s.clock.Sleep))
}

func connErr(addr uint16) error {
	return &transport.Error{
		Op: "read", Space: transport.InputRegister, Address: addr,
		Kind: transport.KindConnection, Err: errors.New("i/o timeout"),
	}
}

// ---- measurements ----

func TestReal_ReadVoltageRounds(t *testing.T) {
	s := newFakeSession()
	s.input[AddrVoltageL3] = 229.87654

	v, err := newTestReal(s).ReadVoltage(L3)
	require.NoError(t, err)
	assert.Equal(t, 229.88, v)
}

func TestReal_ReadCurrentRounds(t *testing.T) {
	s := newFakeSession()
	s.input[AddrCurrentL1] = 8.12345

	v, err := newTestReal(s).ReadCurrent(L1)
	require.NoError(t, err)
	assert.InDelta(t, 8.123, v, 1e-9)
}

func TestReal_PowerPerPhaseIsTotalThird(t *testing.T) {
	s := newFakeSession()
	s.input[AddrActivePower] = 3000.0

	d := newTestReal(s)
	for _, p := range Phases {
		v, err := d.ReadPower(p)
		require.NoError(t, err)
		assert.Equal(t, 1000.0, v, "phase %s", p)
	}

	r := d.ReadAllData()
	assert.True(t, r.Power.PerPhaseApproximated)
	require.NotNil(t, r.Power.Total)
	assert.Equal(t, 3000.0, *r.Power.Total)
}

func TestReal_InvalidPhase(t *testing.T) {
	_, err := newTestReal(newFakeSession()).ReadVoltage(Phase(7))
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestReal_ReadFailureKeepsKind(t *testing.T) {
	s := newFakeSession()
	s.failRead[AddrFrequency] = connErr(AddrFrequency)

	_, err := newTestReal(s).ReadFrequency()
	require.Error(t, err)
	assert.True(t, transport.IsConnection(err))
}

// ---- status ----

func TestReal_ProtectionStatusBits(t *testing.T) {
	s := newFakeSession()
	s.holding[AddrProtectionStatus] = 0x2104

	ps, err := newTestReal(s).ReadProtectionStatus()
	require.NoError(t, err)

	assert.True(t, ps.Active)
	assert.True(t, ps.Alarm)
	assert.True(t, ps.Trip)
	assert.False(t, ps.AlarmL1)
	assert.False(t, ps.AlarmL2)
	assert.False(t, ps.AlarmL3)
	assert.False(t, ps.TripL1)
	assert.False(t, ps.TripL2)
	assert.False(t, ps.TripL3)
	assert.Equal(t, uint16(0x2104), ps.Raw)
}

func TestReal_RemoteCommandBits(t *testing.T) {
	s := newFakeSession()
	s.holding[AddrRemoteCommands] = 0x0004
	d := newTestReal(s)

	coupling, err := d.ReadCouplingSwitchCommand()
	require.NoError(t, err)
	assert.False(t, coupling)

	recording, err := d.ReadFaultRecordingStatus()
	require.NoError(t, err)
	assert.True(t, recording)
}

func TestReal_DigitalInputs(t *testing.T) {
	s := newFakeSession()
	s.holding[AddrDigitalInputs] = 0x81
	d := newTestReal(s)

	for n, want := range map[int]bool{1: true, 2: false, 7: false, 8: true} {
		got, err := d.ReadDigitalInput(n)
		require.NoError(t, err)
		assert.Equal(t, want, got, "DI%d", n)
	}

	_, err := d.ReadDigitalInput(9)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// ---- aggregate ----

func TestReal_ReadAllData_PartialFailure(t *testing.T) {
	s := newFakeSession()
	s.input[AddrVoltageL1] = 230
	s.input[AddrVoltageL2] = 231
	s.input[AddrVoltageL3] = 232
	s.input[AddrActivePower] = 3000
	s.input[AddrFrequency] = 50
	s.holding[AddrCauseOfTrip] = 1
	s.failRead[AddrVoltageL2] = connErr(AddrVoltageL2)

	r := newTestReal(s).ReadAllData()

	assert.Nil(t, r.Voltage.L2)
	assert.Equal(t, 1, r.Failed)

	require.NotNil(t, r.Voltage.L1)
	require.NotNil(t, r.Voltage.L3)
	assert.Equal(t, 230.0, *r.Voltage.L1)
	assert.Equal(t, 232.0, *r.Voltage.L3)
	for _, p := range Phases {
		assert.NotNil(t, r.Current.Get(p), "current %s", p)
		assert.NotNil(t, r.Power.Get(p), "power %s", p)
	}
	assert.NotNil(t, r.Power.Total)
	assert.NotNil(t, r.Frequency)
	assert.NotNil(t, r.CouplingSwitch)
	assert.NotNil(t, r.DigitalInput1)
	assert.NotNil(t, r.Protection)
	assert.NotNil(t, r.CauseOfTrip)
	assert.NotNil(t, r.FaultNumber)
	assert.NotNil(t, r.FaultRecording)
	assert.Equal(t, ModeReal, r.Mode)
}

func TestReal_ReadAllData_TotalPowerReadOnce(t *testing.T) {
	s := newFakeSession()
	s.input[AddrActivePower] = 3000

	r := newTestReal(s).ReadAllData()

	assert.Equal(t, 1, s.reads[AddrActivePower])
	require.NotNil(t, r.Power.Total)
	for _, p := range Phases {
		require.NotNil(t, r.Power.Get(p), "power %s", p)
		assert.Equal(t, *r.Power.Total/3, *r.Power.Get(p), "power %s", p)
	}
	assert.Zero(t, r.Failed)
}

func TestReal_ReadAllData_TotalPowerFailureBlanksPhases(t *testing.T) {
	s := newFakeSession()
	s.failRead[AddrActivePower] = connErr(AddrActivePower)

	r := newTestReal(s).ReadAllData()

	assert.Nil(t, r.Power.Total)
	for _, p := range Phases {
		assert.Nil(t, r.Power.Get(p), "power %s", p)
	}
	assert.Equal(t, 4, r.Failed)
	assert.NotNil(t, r.Frequency)
}

// ---- commands ----

func TestReal_CouplingPulseOrdering(t *testing.T) {
	s := newFakeSession()

	err := newTestReal(s).SendCouplingPulse(2 * time.Second)
	require.NoError(t, err)

	require.Len(t, s.writes, 2)
	assert.Equal(t, CoilCouplingSwitch, s.writes[0].addr)
	assert.Equal(t, CoilCouplingSwitch, s.writes[1].addr)
	assert.True(t, s.writes[0].on)
	assert.False(t, s.writes[1].on)
	assert.GreaterOrEqual(t, s.writes[1].at-s.writes[0].at, 2*time.Second)
}

func TestReal_CouplingPulseDefaultDuration(t *testing.T) {
	s := newFakeSession()

	require.NoError(t, newTestReal(s).SendCouplingPulse(0))
	require.Len(t, s.writes, 2)
	assert.Equal(t, codec.CouplingPulse, s.writes[1].at-s.writes[0].at)
}

func TestReal_CouplingPulseFailsOnEitherWrite(t *testing.T) {
	for _, failOn := range []bool{true, false} {
		s := newFakeSession()
		s.failWrite[failOn] = errors.New("exception 4")

		err := newTestReal(s).SendCouplingPulse(2 * time.Second)
		assert.Error(t, err, "fail on=%v", failOn)
	}
}

func TestReal_CouplingPulseSkipsOffWhenOnFails(t *testing.T) {
	s := newFakeSession()
	s.failWrite[true] = errors.New("exception 4")

	require.Error(t, newTestReal(s).SendCouplingPulse(time.Second))
	assert.Empty(t, s.writes)
	assert.Zero(t, s.clock.elapsed)
}

func TestReal_AcknowledgePulses(t *testing.T) {
	cases := map[uint16]func(*Real) error{
		CoilAcknowledgeAll:         (*Real).AcknowledgeAll,
		CoilAcknowledgeDevice:      (*Real).AcknowledgeDevice,
		CoilAcknowledgeTripCommand: (*Real).AcknowledgeTripCommand,
	}

	for coil, ack := range cases {
		s := newFakeSession()
		require.NoError(t, ack(newTestReal(s)))

		require.Len(t, s.writes, 2)
		assert.Equal(t, []coilEvent{
			{addr: coil, on: true, at: 0},
			{addr: coil, on: false, at: codec.AckPulse},
		}, s.writes)
	}
}

func TestReal_LevelWrites(t *testing.T) {
	s := newFakeSession()
	d := newTestReal(s)

	require.NoError(t, d.WriteFaultRecordingTrigger(true))
	require.NoError(t, d.WriteCouplingSwitch(false))

	assert.Equal(t, []coilEvent{
		{addr: CoilFaultRecording, on: true},
		{addr: CoilCouplingSwitch, on: false},
	}, s.writes)
	assert.Zero(t, s.clock.elapsed)
}
