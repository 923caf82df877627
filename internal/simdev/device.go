// internal/simdev/device.go
package simdev

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tamzrod/isp-bridge/internal/protocol"
	"github.com/tamzrod/isp-bridge/internal/transport"
)

// Options configures a simulated device.
type Options struct {
	Registers protocol.RegisterMap

	// LegacySensorFormat decodes the sensor format byte with the data width
	// in the high nibble.
	LegacySensorFormat bool

	// PropertyNoise fills the bytes of a property answer the host is
	// expected to mask with this value instead of zero.
	PropertyNoise byte

	// Record keeps every register access in the recorder.
	Record bool
}

// Device is a functional register-level model of an eSP876 host interface.
// It answers the status handshakes, decodes commands from the virtual
// registers and serves the data phase from its memories. Timing is not
// modeled: every handshake is answered on the first read.
type Device struct {
	mu   sync.Mutex
	opts Options
	regs protocol.RegisterMap

	status byte
	window uint16
	virt   map[uint16]byte

	active  *command
	fifo    []byte
	pending []byte

	stall map[byte]int
	fault error

	mem *memory
	rec *Recorder
}

// New creates a device with empty memories.
func New(opts Options) *Device {
	if opts.Registers == (protocol.RegisterMap{}) {
		opts.Registers = protocol.ESP876Registers
	}
	return &Device{
		opts:  opts,
		regs:  opts.Registers,
		virt:  make(map[uint16]byte),
		stall: make(map[byte]int),
		mem:   newMemory(),
		rec:   &Recorder{},
	}
}

var _ transport.Transport = (*Device)(nil)

// ErrUnplugged is returned by every access after Unplug.
var ErrUnplugged = errors.New("simdev: device not responding")

// Recorder returns the access recorder.
func (d *Device) Recorder() *Recorder { return d.rec }

// Stall makes the device ignore the next n writes of trigger. n < 0 stalls
// forever.
func (d *Device) Stall(trigger byte, n int) {
	d.mu.Lock()
	d.stall[trigger] = n
	d.mu.Unlock()
}

// Unplug makes every following access fail. Plug restores the device.
func (d *Device) Unplug() {
	d.mu.Lock()
	d.fault = ErrUnplugged
	d.mu.Unlock()
}

func (d *Device) Plug() {
	d.mu.Lock()
	d.fault = nil
	d.mu.Unlock()
}

func (d *Device) ReadU8(addr uint16) (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fault != nil {
		return 0, d.fault
	}

	var v byte
	switch addr {
	case d.regs.Status:
		v = d.status
	case d.regs.AddrHigh:
		v = byte(d.window >> 8)
	case d.regs.AddrLow:
		v = byte(d.window)
	case d.regs.Data:
		v = d.readData()
	default:
		d.rec.violate("read of unmapped register 0x%04X", addr)
	}

	if d.opts.Record {
		d.rec.add(Access{Addr: addr, Val: v})
	}
	return v, nil
}

func (d *Device) WriteU8(addr uint16, val byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fault != nil {
		return d.fault
	}
	if d.opts.Record {
		d.rec.add(Access{Write: true, Addr: addr, Val: val})
	}

	switch addr {
	case d.regs.Status:
		d.writeStatus(val)
	case d.regs.AddrHigh:
		d.window = uint16(val)<<8 | d.window&0x00FF
	case d.regs.AddrLow:
		d.window = d.window&0xFF00 | uint16(val)
	case d.regs.Data:
		d.writeData(val)
	default:
		d.rec.violate("write of unmapped register 0x%04X", addr)
	}
	return nil
}

func (d *Device) stalled(trigger byte) bool {
	n, ok := d.stall[trigger]
	if !ok || n == 0 {
		return false
	}
	if n > 0 {
		d.stall[trigger] = n - 1
	}
	return true
}

func (d *Device) writeStatus(trigger byte) {
	d.status = trigger
	if d.stalled(trigger) {
		return
	}

	switch trigger {
	case protocol.StatusReadyEnter:
		if d.active != nil {
			d.rec.violate("device-ready while %s is active", d.active.cmd)
		}
		d.reset()
		d.status = protocol.StatusReadyLeave

	case protocol.StatusAcceptedEnter:
		if d.active != nil && d.active.write {
			// first-window acknowledgement of a write in progress
			if len(d.pending) == 0 {
				d.rec.violate("%s acknowledged before any data", d.active.cmd)
			}
			d.status = protocol.StatusAcceptedLeave
			return
		}
		c, err := decode(d.virt, d.regs, d.opts.LegacySensorFormat)
		if err != nil {
			// never accepted: the host times out with busy
			d.rec.violate("rejected command: %v", err)
			return
		}
		if err := d.accept(c); err != nil {
			d.rec.violate("rejected command: %v", err)
			return
		}
		d.status = protocol.StatusAcceptedLeave

	case protocol.StatusContinue:
		if d.active == nil {
			d.rec.violate("continuation without a command")
		}
		d.status = protocol.StatusAcceptedLeave

	case protocol.StatusCloseEnter:
		if d.active != nil {
			d.commit()
		}
		d.status = protocol.StatusCloseLeave

	default:
		d.rec.violate("unknown status trigger 0x%02X", trigger)
	}
}

func (d *Device) reset() {
	d.active = nil
	d.fifo = nil
	d.pending = nil
	for k := range d.virt {
		delete(d.virt, k)
	}
}

func (d *Device) readData() byte {
	if d.window != d.regs.VData {
		return d.virt[d.window]
	}
	if d.active == nil || len(d.fifo) == 0 {
		d.rec.violate("data read outside a read data phase")
		return 0
	}
	v := d.fifo[0]
	d.fifo = d.fifo[1:]
	return v
}

func (d *Device) writeData(val byte) {
	if d.window != d.regs.VData {
		d.virt[d.window] = val
		return
	}
	if d.active == nil || !d.active.write {
		d.rec.violate("data write outside a write data phase")
		return
	}
	d.pending = append(d.pending, val)
}

// accept prepares the data phase of c.
func (d *Device) accept(c *command) error {
	d.active = c
	d.pending = nil
	d.fifo = nil

	if c.write || c.length == 0 {
		return nil
	}
	data, err := d.mem.read(c, d.opts.PropertyNoise)
	if err != nil {
		d.active = nil
		return err
	}
	d.fifo = data
	return nil
}

// commit finishes the active command on close.
func (d *Device) commit() {
	c := d.active
	d.active = nil

	switch {
	case c.write:
		if len(d.pending) != c.length {
			d.rec.violate("%s wrote %d of %d bytes", c.cmd, len(d.pending), c.length)
			break
		}
		if err := d.mem.write(c, d.pending); err != nil {
			d.rec.violate("%s: %v", c.cmd, err)
		}
	case c.length > 0:
		if len(d.fifo) != 0 {
			d.rec.violate("%s left %d bytes unread", c.cmd, len(d.fifo))
		}
	default:
		d.mem.exec(c)
	}

	d.pending = nil
	d.fifo = nil
	d.rec.done(c.cmd, c.mem)
}

func (c *command) String() string {
	return fmt.Sprintf("%s/%s", c.cmd, c.mem)
}
