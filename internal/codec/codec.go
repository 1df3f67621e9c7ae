// internal/codec/codec.go
package codec

import (
	"fmt"
	"math"
	"time"
)

// Register codec for the relay's wire values.
// Pure functions. No IO. No side effects.

// ---- COIL VALUES (FC 5) ----

// CoilOn is the FC5 payload that switches a coil on.
const CoilOn uint16 = 0xFF00

// CoilOff is the FC5 payload that switches a coil off.
const CoilOff uint16 = 0x0000

// ---- PULSE DEFAULTS ----

// CouplingPulse is the default on-time of the coupling switch pulse.
const CouplingPulse = 2 * time.Second

// AckPulse is the on-time used for acknowledge pulses.
const AckPulse = 100 * time.Millisecond

// ---- FLOAT32 ----

// DecodeFloat32 joins two registers (high word first) into an IEEE-754 float.
// NaN and Inf pass through unchanged.
func DecodeFloat32(hi, lo uint16) float64 {
	return float64(math.Float32frombits(uint32(hi)<<16 | uint32(lo)))
}

// EncodeFloat32 is the inverse of DecodeFloat32.
func EncodeFloat32(v float32) (hi, lo uint16) {
	bits := math.Float32bits(v)
	return uint16(bits >> 16), uint16(bits)
}

// Float32FromRegisters decodes exactly two registers.
// Any other count is a programming error and panics.
func Float32FromRegisters(regs []uint16) float64 {
	if len(regs) != 2 {
		panic(fmt.Sprintf("codec: float32 needs 2 registers, got %d", len(regs)))
	}
	return DecodeFloat32(regs[0], regs[1])
}

// ---- BITS ----

// DecodeBitFlag reports whether bit (0 = LSB) is set in word.
func DecodeBitFlag(word uint16, bit uint8) bool {
	if bit > 15 {
		return false
	}
	return word&(1<<bit) != 0
}

// CoilValue maps a boolean to its FC5 payload.
func CoilValue(on bool) uint16 {
	if on {
		return CoilOn
	}
	return CoilOff
}

// PulseWrites is the ordered coil states of one pulse: on, then off.
func PulseWrites() []bool {
	return []bool{true, false}
}

// ---- RAW PAYLOAD ----

// RegistersFromBytes unpacks a big-endian register payload.
// A trailing odd byte is ignored.
func RegistersFromBytes(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}

// BitsFromBytes unpacks count LSB-first bits from a coil/discrete payload.
func BitsFromBytes(data []byte, count int) []bool {
	out := make([]bool, count)
	for i := 0; i < count; i++ {
		byteIdx := i / 8
		if byteIdx >= len(data) {
			continue
		}
		out[i] = data[byteIdx]&(1<<(i%8)) != 0
	}
	return out
}

// ---- ROUNDING ----

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}
