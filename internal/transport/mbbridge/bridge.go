// internal/transport/mbbridge/bridge.go
package mbbridge

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/isp-bridge/internal/transport"
)

// registerClient is the subset of modbus.Client the bridge uses.
type registerClient interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	WriteSingleRegister(address, value uint16) ([]byte, error)
}

// Transport reaches an ISP register space exposed by a Modbus TCP gateway:
// each ISP register maps 1:1 onto a holding register whose low byte carries
// the value.
type Transport struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  registerClient
}

// Config is minimal transport config.
type Config struct {
	Endpoint string
	UnitID   uint8
	Timeout  time.Duration
}

// Open connects to the gateway.
func Open(cfg Config) (*Transport, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("mbbridge: endpoint required")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("mbbridge: connect %s: %w", cfg.Endpoint, err)
	}

	return &Transport{
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

func (t *Transport) ReadU8(addr uint16) (byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	res, err := t.client.ReadHoldingRegisters(addr, 1)
	if err != nil {
		return 0, &transport.AccessError{Op: "read", Addr: addr, Err: err}
	}
	// payload is one big-endian register
	if len(res) != 2 {
		return 0, &transport.AccessError{
			Op:   "read",
			Addr: addr,
			Err:  fmt.Errorf("short register payload (%d bytes)", len(res)),
		}
	}
	return res[1], nil
}

func (t *Transport) WriteU8(addr uint16, val byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.client.WriteSingleRegister(addr, uint16(val)); err != nil {
		return &transport.AccessError{Op: "write", Addr: addr, Err: err}
	}
	return nil
}

// Close closes the TCP connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.handler == nil {
		return nil
	}
	return t.handler.Close()
}
