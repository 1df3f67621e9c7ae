// internal/transport/session.go
package transport

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/tamzrod/mra4-gateway/internal/codec"
)

// Config is minimal transport config.
type Config struct {
	Host        string
	Port        int
	UnitID      uint8
	Timeout     time.Duration
	IdleTimeout time.Duration
}

// Address is host:port of the device.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// handler is the lifecycle half of goburrow's TCPClientHandler.
type handler interface {
	Connect() error
	Close() error
}

// registerClient is the subset of modbus.Client a Session uses.
type registerClient interface {
	ReadCoils(address, quantity uint16) ([]byte, error)            // FC 1
	ReadDiscreteInputs(address, quantity uint16) ([]byte, error)   // FC 2
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error) // FC 3
	ReadInputRegisters(address, quantity uint16) ([]byte, error)   // FC 4
	WriteSingleCoil(address, value uint16) ([]byte, error)         // FC 5
}

// Session is one logical Modbus TCP session to one unit.
// Requests are serialized. Nothing is retried.
// A connection error closes the session; reconnecting is the caller's job.
type Session struct {
	cfg Config

	mu        sync.Mutex
	handler   handler
	client    registerClient
	connected atomic.Bool
}

// New creates a disconnected session.
func New(cfg Config) *Session {
	h := modbus.NewTCPClientHandler(cfg.Address())
	h.SlaveId = cfg.UnitID
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}
	h.IdleTimeout = cfg.IdleTimeout

	return newSession(cfg, h, modbus.NewClient(h))
}

func newSession(cfg Config, h handler, c registerClient) *Session {
	return &Session{cfg: cfg, handler: h, client: c}
}

// Config returns the immutable session config.
func (s *Session) Config() Config { return s.cfg }

// Connected reports the last known link state.
func (s *Session) Connected() bool { return s.connected.Load() }

// Connect opens the TCP session. One attempt, bounded by Timeout.
func (s *Session) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected.Load() {
		return nil
	}
	if s.cfg.Host == "" {
		return &Error{Op: "connect", Kind: KindConnection, Err: fmt.Errorf("host required")}
	}

	if err := s.handler.Connect(); err != nil {
		return &Error{
			Op:   "connect",
			Kind: KindConnection,
			Err:  pkgerrors.Wrapf(err, "dial %s", s.cfg.Address()),
		}
	}

	s.connected.Store(true)
	return nil
}

// Disconnect closes the session. Safe to call repeatedly.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected.Swap(false) {
		return nil
	}
	return s.handler.Close()
}

// ---- register operations ----

// ReadInputRegisters reads qty input registers (FC 4).
func (s *Session) ReadInputRegisters(addr, qty uint16) ([]uint16, error) {
	return s.readRegisters(InputRegister, addr, qty, s.client.ReadInputRegisters)
}

// ReadHoldingRegisters reads qty holding registers (FC 3).
func (s *Session) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	return s.readRegisters(HoldingRegister, addr, qty, s.client.ReadHoldingRegisters)
}

// ReadCoils reads qty coils (FC 1). Diagnostics only.
func (s *Session) ReadCoils(addr, qty uint16) ([]bool, error) {
	return s.readBits(Coil, addr, qty, s.client.ReadCoils)
}

// ReadDiscreteInputs reads qty discrete inputs (FC 2). Diagnostics only.
func (s *Session) ReadDiscreteInputs(addr, qty uint16) ([]bool, error) {
	return s.readBits(DiscreteInput, addr, qty, s.client.ReadDiscreteInputs)
}

// WriteSingleCoil writes one coil (FC 5).
func (s *Session) WriteSingleCoil(addr uint16, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected.Load() {
		return s.fail("write", Coil, addr, ErrNotConnected)
	}

	if _, err := s.client.WriteSingleCoil(addr, codec.CoilValue(on)); err != nil {
		return s.fail("write", Coil, addr, err)
	}
	return nil
}

// ---- internal helpers ----

type readFunc func(address, quantity uint16) ([]byte, error)

func (s *Session) readRegisters(space Space, addr, qty uint16, read readFunc) ([]uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected.Load() {
		return nil, s.fail("read", space, addr, ErrNotConnected)
	}

	raw, err := read(addr, qty)
	if err != nil {
		return nil, s.fail("read", space, addr, err)
	}
	if len(raw) != int(qty)*2 {
		return nil, s.fail("read", space, addr,
			fmt.Errorf("payload size %d does not match %d registers", len(raw), qty))
	}
	return codec.RegistersFromBytes(raw), nil
}

func (s *Session) readBits(space Space, addr, qty uint16, read readFunc) ([]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected.Load() {
		return nil, s.fail("read", space, addr, ErrNotConnected)
	}

	raw, err := read(addr, qty)
	if err != nil {
		return nil, s.fail("read", space, addr, err)
	}
	if len(raw) < (int(qty)+7)/8 {
		return nil, s.fail("read", space, addr,
			fmt.Errorf("payload size %d too short for %d bits", len(raw), qty))
	}
	return codec.BitsFromBytes(raw, int(qty)), nil
}

// fail wraps err and drops the link on connection errors.
// Caller holds s.mu.
func (s *Session) fail(op string, space Space, addr uint16, err error) error {
	kind := classify(err)
	if kind == KindConnection && s.connected.Swap(false) {
		_ = s.handler.Close()
	}
	return &Error{Op: op, Space: space, Address: addr, Kind: kind, Err: err}
}
