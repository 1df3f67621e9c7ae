// internal/device/device.go
package device

import "time"

// Device is the relay façade consumed by the poller, the API and the pulse
// dispatcher. Real and Simulator are the two implementations.
//
// Value reads return the classified transport error on failure.
// Commands return nil only if every coil write succeeded.
type Device interface {
	Connect() error
	Disconnect() error
	Connected() bool
	Mode() Mode

	// ---- measurements ----
	ReadVoltage(p Phase) (float64, error)
	ReadCurrent(p Phase) (float64, error)
	ReadPower(p Phase) (float64, error)
	ReadTotalPower() (float64, error)
	ReadFrequency() (float64, error)

	// ---- status ----
	ReadCouplingSwitchCommand() (bool, error)
	ReadDigitalInput(n int) (bool, error)
	ReadDigitalInputs() (DigitalInputs, error)
	ReadProtectionStatus() (ProtectionStatus, error)
	ReadCauseOfTrip() (uint16, error)
	ReadFaultNumber() (uint16, error)
	ReadFaultRecordingStatus() (bool, error)

	// ---- commands ----
	SendCouplingPulse(d time.Duration) error
	WriteCouplingSwitch(on bool) error
	WriteFaultRecordingTrigger(on bool) error
	AcknowledgeAll() error
	AcknowledgeDevice() error
	AcknowledgeTripCommand() error

	// ReadAllData attempts every read above. A failed read blanks only its field.
	ReadAllData() Reading
}

// Tripper is implemented by devices that can fake a protection trip.
type Tripper interface {
	SimulateTrip(code uint16)
}

// readAll assembles a Reading from d. Shared by both implementations.
func readAll(d Device, now time.Time) Reading {
	r := Reading{At: now, Mode: d.Mode()}
	failed := &r.Failed

	for _, p := range Phases {
		v, err := d.ReadVoltage(p)
		r.Voltage.Set(p, present(v, err, failed))
	}
	for _, p := range Phases {
		v, err := d.ReadCurrent(p)
		r.Current.Set(p, present(v, err, failed))
	}
	readPower(d, &r.Power, failed)

	freq, err := d.ReadFrequency()
	r.Frequency = present(freq, err, failed)

	coupling, err := d.ReadCouplingSwitchCommand()
	r.CouplingSwitch = present(coupling, err, failed)

	di1, err := d.ReadDigitalInput(1)
	r.DigitalInput1 = present(di1, err, failed)

	prot, err := d.ReadProtectionStatus()
	r.Protection = present(prot, err, failed)

	cot, err := d.ReadCauseOfTrip()
	r.CauseOfTrip = present(cot, err, failed)

	fault, err := d.ReadFaultNumber()
	r.FaultNumber = present(fault, err, failed)

	recording, err := d.ReadFaultRecordingStatus()
	r.FaultRecording = present(recording, err, failed)

	return r
}

// phaseSplitter derives per-phase power from the total.
type phaseSplitter interface {
	phasePower(total float64) float64
}

// readPower fills pv. A device that only measures the total is read once,
// so the phases and the total always agree.
func readPower(d Device, pv *PowerValues, failed *int) {
	if ps, ok := d.(phaseSplitter); ok {
		total, err := d.ReadTotalPower()
		pv.Total = present(total, err, failed)
		for _, p := range Phases {
			if pv.Total == nil {
				*failed++
				continue
			}
			v := ps.phasePower(*pv.Total)
			pv.Set(p, &v)
		}
		pv.PerPhaseApproximated = true
		return
	}

	for _, p := range Phases {
		v, err := d.ReadPower(p)
		pv.Set(p, present(v, err, failed))
	}
	total, err := d.ReadTotalPower()
	pv.Total = present(total, err, failed)
}

// present returns &v, or nil and counts a failure.
func present[T any](v T, err error, failed *int) *T {
	if err != nil {
		*failed++
		return nil
	}
	return &v
}
