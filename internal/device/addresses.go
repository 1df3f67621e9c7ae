// internal/device/addresses.go
package device

// MRA 4 Modbus address map.
// These values are fixed by the device firmware and MUST NOT be configurable.

// ---- INPUT REGISTERS (FC 4, float32, 2 registers each) ----

// Phase currents IL1..IL3 in A.
const (
	AddrCurrentL1 uint16 = 20100
	AddrCurrentL2 uint16 = 20102
	AddrCurrentL3 uint16 = 20104
)

// AddrFrequency holds the line frequency in Hz.
const AddrFrequency uint16 = 20128

// Phase voltages UL1..UL3 in V.
const (
	AddrVoltageL1 uint16 = 20136
	AddrVoltageL2 uint16 = 20138
	AddrVoltageL3 uint16 = 20140
)

// AddrActivePower holds the total active power P in W.
const AddrActivePower uint16 = 20154

// ---- HOLDING REGISTERS (FC 3, 1 register each) ----

// AddrProtectionStatus holds the protection status word.
const AddrProtectionStatus uint16 = 1

// AddrFaultNumber holds the running fault number.
const AddrFaultNumber uint16 = 57

// AddrDigitalInputs holds DI1..DI8 of slot X1 in bits 0..7.
const AddrDigitalInputs uint16 = 1000

// AddrRemoteCommands holds the remote-command status bits.
const AddrRemoteCommands uint16 = 1005

// AddrCauseOfTrip holds the cause-of-trip code.
const AddrCauseOfTrip uint16 = 5004

// ---- COILS (FC 5) ----

// CoilAcknowledgeDevice is pulsed to acknowledge the device.
const CoilAcknowledgeDevice uint16 = 22003

// CoilAcknowledgeTripCommand is pulsed to acknowledge the trip command.
const CoilAcknowledgeTripCommand uint16 = 22005

// CoilCouplingSwitch is the coupling switch command (remote command 1).
const CoilCouplingSwitch uint16 = 22020

// CoilAcknowledgeAll is pulsed to acknowledge everything (remote command 2).
const CoilAcknowledgeAll uint16 = 22021

// CoilFaultRecording is the level-driven fault recording trigger (remote command 3).
const CoilFaultRecording uint16 = 22022

// ---- BITS ----

// Bits of AddrRemoteCommands.
const (
	BitCouplingCommand uint8 = 0
	BitFaultRecording  uint8 = 2
)

// Masks of AddrProtectionStatus.
const (
	MaskActive  uint16 = 0x0004
	MaskAlarmL1 uint16 = 0x0010
	MaskAlarmL2 uint16 = 0x0020
	MaskAlarmL3 uint16 = 0x0040
	MaskAlarm   uint16 = 0x0100
	MaskTripL1  uint16 = 0x0200
	MaskTripL2  uint16 = 0x0400
	MaskTripL3  uint16 = 0x0800
	MaskTrip    uint16 = 0x2000
)

// DigitalInputCount is the number of inputs on slot X1.
const DigitalInputCount = 8

// voltageAddr, currentAddr index by Phase.
var (
	voltageAddr = [...]uint16{L1: AddrVoltageL1, L2: AddrVoltageL2, L3: AddrVoltageL3}
	currentAddr = [...]uint16{L1: AddrCurrentL1, L2: AddrCurrentL2, L3: AddrCurrentL3}
)
