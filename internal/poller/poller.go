// internal/poller/poller.go
package poller

import (
	"errors"
	"fmt"
	"time"

	"github.com/tamzrod/isp-bridge/internal/config"
	"github.com/tamzrod/isp-bridge/internal/protocol"
)

// Client is the part of the ISP operation catalog the poller needs.
type Client interface {
	ReadHWRegisters(addr uint16, dst []byte) error
	ReadFWRegister(sub byte) (byte, error)
	GetProperty(entity byte, req protocol.Request, selector byte) (uint32, error)
	LastError() uint16
}

// Config is the minimal runtime config the poller needs.
type Config struct {
	UnitID   string
	Interval time.Duration
	Reads    []ReadBlock
}

// Poller is a dumb, clock-driven reader.
type Poller struct {
	cfg    Config
	client Client
}

// New creates a poller with immutable config.
func New(cfg Config, client Client) (*Poller, error) {
	if cfg.UnitID == "" {
		return nil, errors.New("poller: unit id required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if len(cfg.Reads) == 0 {
		return nil, errors.New("poller: at least one read block required")
	}
	if client == nil {
		return nil, errors.New("poller: client required")
	}
	return &Poller{cfg: cfg, client: client}, nil
}

// PollOnce performs exactly one poll cycle.
// All-or-nothing: any failure aborts the cycle.
func (p *Poller) PollOnce() PollResult {
	res := PollResult{
		UnitID: p.cfg.UnitID,
		At:     time.Now(),
	}

	blocks := make([]BlockResult, 0, len(p.cfg.Reads))

	for _, rb := range p.cfg.Reads {
		var regs []uint16

		switch rb.Kind {
		case config.ReadHW:
			buf := make([]byte, rb.Length)
			if err := p.client.ReadHWRegisters(rb.Address, buf); err != nil {
				return p.fail(res, err)
			}
			regs = PackBytes(buf)

		case config.ReadFW:
			v, err := p.client.ReadFWRegister(byte(rb.Address))
			if err != nil {
				return p.fail(res, err)
			}
			regs = []uint16{uint16(v)}

		case config.ReadProperty:
			v, err := p.client.GetProperty(rb.Entity, rb.Request, rb.Selector)
			if err != nil {
				return p.fail(res, err)
			}
			regs = []uint16{uint16(v >> 16), uint16(v)}

		default:
			res.Err = fmt.Errorf("poller: unsupported read kind %q", rb.Kind)
			res.RawErrorCode = protocol.CodeInvalidArgument
			return res
		}

		blocks = append(blocks, BlockResult{Kind: rb.Kind, Dest: rb.Dest, Registers: regs})
	}

	// Commit only if all reads succeeded
	res.Blocks = blocks
	return res
}

func (p *Poller) fail(res PollResult, err error) PollResult {
	res.Err = err
	res.RawErrorCode = p.client.LastError()
	if res.RawErrorCode == 0 {
		res.RawErrorCode = protocol.CodeUnknown
	}
	return res
}

// PackBytes packs bytes big-endian into registers.
func PackBytes(b []byte) []uint16 {
	out := make([]uint16, (len(b)+1)/2)
	for i, v := range b {
		if i%2 == 0 {
			out[i/2] = uint16(v) << 8
		} else {
			out[i/2] |= uint16(v)
		}
	}
	return out
}
