// internal/transport/i2c/i2c.go
package i2c

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/tamzrod/isp-bridge/internal/transport"
)

// txer is the part of periph's conn.Conn the transport needs.
type txer interface {
	Tx(w, r []byte) error
}

// Transport talks to one I2C client using 16-bit big-endian register
// addresses and 8-bit values.
type Transport struct {
	mu     sync.Mutex
	dev    txer
	bus    i2c.BusCloser
	name   string
	closed bool
}

// Config is minimal transport config.
type Config struct {
	Bus     string // e.g. "/dev/i2c-1" or "1"; empty selects the first bus
	Address uint16
}

var hostInit sync.Once
var hostErr error

// Open initialises periph host drivers once, opens the bus and binds the
// client address.
func Open(cfg Config) (*Transport, error) {
	if cfg.Address == 0 || cfg.Address > 0x7F {
		return nil, fmt.Errorf("i2c transport: invalid address 0x%02X", cfg.Address)
	}

	hostInit.Do(func() {
		_, hostErr = host.Init()
	})
	if hostErr != nil {
		return nil, fmt.Errorf("i2c transport: host init: %w", hostErr)
	}

	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("i2c transport: open %q: %w", cfg.Bus, err)
	}

	return &Transport{
		dev:  &i2c.Dev{Bus: bus, Addr: cfg.Address},
		bus:  bus,
		name: fmt.Sprintf("%s@0x%02X", bus.String(), cfg.Address),
	}, nil
}

// newWithConn wraps an already-bound connection (tests).
func newWithConn(dev txer, name string) *Transport {
	return &Transport{dev: dev, name: name}
}

func (t *Transport) String() string { return t.name }

// ReadU8 writes the register address then reads one byte in a single
// combined transaction.
func (t *Transport) ReadU8(addr uint16) (byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, &transport.AccessError{Op: "read", Addr: addr, Err: transport.ErrClosed}
	}

	w := [2]byte{byte(addr >> 8), byte(addr)}
	var r [1]byte
	if err := t.dev.Tx(w[:], r[:]); err != nil {
		return 0, &transport.AccessError{Op: "read", Addr: addr, Err: err}
	}
	return r[0], nil
}

// WriteU8 writes address and value in one transaction.
func (t *Transport) WriteU8(addr uint16, val byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return &transport.AccessError{Op: "write", Addr: addr, Err: transport.ErrClosed}
	}

	w := [3]byte{byte(addr >> 8), byte(addr), val}
	if err := t.dev.Tx(w[:], nil); err != nil {
		return &transport.AccessError{Op: "write", Addr: addr, Err: err}
	}
	return nil
}

// Close releases the bus. Safe to call more than once.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if t.bus == nil {
		return nil
	}
	if err := t.bus.Close(); err != nil {
		return errors.Join(transport.ErrClosed, err)
	}
	return nil
}
