// internal/transport/session_test.go
package transport

import (
	"errors"
	"io"
	"net"
	"testing"

	"github.com/goburrow/modbus"
)

type fakeHandler struct {
	connectErr error
	connects   int
	closes     int
}

func (h *fakeHandler) Connect() error {
	h.connects++
	return h.connectErr
}

func (h *fakeHandler) Close() error {
	h.closes++
	return nil
}

type coilWrite struct {
	addr  uint16
	value uint16
}

type fakeClient struct {
	regs   []byte
	bits   []byte
	err    error
	writes []coilWrite
}

func (f *fakeClient) ReadCoils(address, quantity uint16) ([]byte, error) {
	return f.bits, f.err
}

func (f *fakeClient) ReadDiscreteInputs(address, quantity uint16) ([]byte, error) {
	return f.bits, f.err
}

func (f *fakeClient) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	return f.regs, f.err
}

func (f *fakeClient) ReadInputRegisters(address, quantity uint16) ([]byte, error) {
	return f.regs, f.err
}

func (f *fakeClient) WriteSingleCoil(address, value uint16) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.writes = append(f.writes, coilWrite{addr: address, value: value})
	return []byte{byte(address >> 8), byte(address), byte(value >> 8), byte(value)}, nil
}

func connected(t *testing.T, cli *fakeClient) (*Session, *fakeHandler) {
	t.Helper()
	h := &fakeHandler{}
	s := newSession(Config{Host: "10.0.0.1", Port: 502, UnitID: 1}, h, cli)
	if err := s.Connect(); err != nil {
		t.Fatalf("Connect() err=%v", err)
	}
	return s, h
}

func TestConnect_FailureLeavesDisconnected(t *testing.T) {
	h := &fakeHandler{connectErr: &net.OpError{Op: "dial", Err: errors.New("refused")}}
	s := newSession(Config{Host: "10.0.0.1", Port: 502}, h, &fakeClient{})

	err := s.Connect()
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !IsConnection(err) {
		t.Fatalf("expected connection error, got %v", err)
	}
	if s.Connected() {
		t.Fatalf("session must stay disconnected")
	}
}

func TestConnect_Idempotent(t *testing.T) {
	s, h := connected(t, &fakeClient{})
	if err := s.Connect(); err != nil {
		t.Fatalf("second Connect() err=%v", err)
	}
	if h.connects != 1 {
		t.Fatalf("expected 1 dial, got %d", h.connects)
	}
}

func TestDisconnect_Idempotent(t *testing.T) {
	s, h := connected(t, &fakeClient{})

	for i := 0; i < 3; i++ {
		if err := s.Disconnect(); err != nil {
			t.Fatalf("Disconnect() err=%v", err)
		}
	}
	if h.closes != 1 {
		t.Fatalf("expected 1 close, got %d", h.closes)
	}
	if s.Connected() {
		t.Fatalf("expected disconnected")
	}
}

func TestReadInputRegisters_Success(t *testing.T) {
	s, _ := connected(t, &fakeClient{regs: []byte{0x43, 0x66, 0x00, 0x00}})

	regs, err := s.ReadInputRegisters(20100, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(regs) != 2 || regs[0] != 0x4366 || regs[1] != 0 {
		t.Fatalf("unexpected registers %v", regs)
	}
}

func TestRead_NotConnected(t *testing.T) {
	s := newSession(Config{Host: "10.0.0.1", Port: 502}, &fakeHandler{}, &fakeClient{})

	_, err := s.ReadHoldingRegisters(1, 1)
	if !IsConnection(err) {
		t.Fatalf("expected connection error, got %v", err)
	}
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestRead_ExceptionIsProtocolError(t *testing.T) {
	cli := &fakeClient{err: &modbus.ModbusError{FunctionCode: 0x83, ExceptionCode: 2}}
	s, _ := connected(t, cli)

	_, err := s.ReadHoldingRegisters(5004, 1)
	if !IsProtocol(err) {
		t.Fatalf("expected protocol error, got %v", err)
	}
	if !s.Connected() {
		t.Fatalf("protocol error must not drop the session")
	}

	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if te.Address != 5004 || te.Space != HoldingRegister || te.Code() != 2 {
		t.Fatalf("unexpected error fields %+v code=%d", te, te.Code())
	}
}

func TestRead_IOErrorDropsSession(t *testing.T) {
	cli := &fakeClient{err: io.EOF}
	s, h := connected(t, cli)

	_, err := s.ReadInputRegisters(20128, 2)
	if !IsConnection(err) {
		t.Fatalf("expected connection error, got %v", err)
	}
	if s.Connected() {
		t.Fatalf("session should be marked disconnected")
	}
	if h.closes != 1 {
		t.Fatalf("expected handler close, got %d", h.closes)
	}
}

func TestRead_ShortPayloadIsProtocolError(t *testing.T) {
	s, _ := connected(t, &fakeClient{regs: []byte{0x43}})

	_, err := s.ReadInputRegisters(20136, 2)
	if !IsProtocol(err) {
		t.Fatalf("expected protocol error, got %v", err)
	}
}

func TestWriteSingleCoil_Encoding(t *testing.T) {
	cli := &fakeClient{}
	s, _ := connected(t, cli)

	if err := s.WriteSingleCoil(22020, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.WriteSingleCoil(22020, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []coilWrite{{22020, 0xFF00}, {22020, 0x0000}}
	if len(cli.writes) != len(want) {
		t.Fatalf("expected %d writes, got %d", len(want), len(cli.writes))
	}
	for i := range want {
		if cli.writes[i] != want[i] {
			t.Fatalf("write %d: got %+v want %+v", i, cli.writes[i], want[i])
		}
	}
}

func TestReadCoils_Unpacks(t *testing.T) {
	s, _ := connected(t, &fakeClient{bits: []byte{0x03}})

	bits, err := s.ReadCoils(22020, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bits[0] || !bits[1] || bits[2] {
		t.Fatalf("unexpected bits %v", bits)
	}
}

func TestConfigAddress(t *testing.T) {
	if got := (Config{Host: "192.168.1.100", Port: 502}).Address(); got != "192.168.1.100:502" {
		t.Fatalf("got %q", got)
	}
}
