// internal/transport/errors.go
package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/goburrow/modbus"
)

// ErrNotConnected is returned by every register operation on a closed session.
var ErrNotConnected = errors.New("transport: not connected")

// Kind separates link failures from device answers.
type Kind uint8

const (
	// KindConnection: dial, IO, timeout or no session.
	KindConnection Kind = iota + 1
	// KindProtocol: exception response or malformed reply.
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Space is the Modbus address space an operation targeted.
type Space uint8

const (
	Coil Space = iota + 1
	DiscreteInput
	HoldingRegister
	InputRegister
)

func (s Space) String() string {
	switch s {
	case Coil:
		return "coil"
	case DiscreteInput:
		return "discrete_input"
	case HoldingRegister:
		return "holding_register"
	case InputRegister:
		return "input_register"
	default:
		return "none"
	}
}

// Error is the single error type surfaced by a Session.
type Error struct {
	Op      string
	Space   Space
	Address uint16
	Kind    Kind
	Err     error
}

func (e *Error) Error() string {
	if e.Space == 0 {
		return fmt.Sprintf("transport: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("transport: %s %s %d: %s: %v", e.Op, e.Space, e.Address, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Code exposes the Modbus exception code of a protocol error.
// Errors without an exception code report 1.
func (e *Error) Code() uint16 {
	var mbErr *modbus.ModbusError
	if errors.As(e.Err, &mbErr) {
		return uint16(mbErr.ExceptionCode)
	}
	return 1
}

// IsConnection reports whether err is a transport connection failure.
func IsConnection(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == KindConnection
}

// IsProtocol reports whether err is a device protocol failure.
func IsProtocol(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == KindProtocol
}

// classify maps a raw client error to a Kind.
// Exception responses are protocol errors; anything that looks like the
// socket going away is a connection error; the rest is a malformed reply.
func classify(err error) Kind {
	var mbErr *modbus.ModbusError
	if errors.As(err, &mbErr) {
		return KindProtocol
	}

	var netErr net.Error
	switch {
	case errors.As(err, &netErr),
		errors.Is(err, ErrNotConnected),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return KindConnection
	}

	return KindProtocol
}
