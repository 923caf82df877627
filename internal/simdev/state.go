// internal/simdev/state.go
package simdev

import "github.com/tamzrod/isp-bridge/internal/protocol"

// Memory accessors used to seed and inspect the model.

func (d *Device) SetFWRegister(sub, v byte) {
	d.mu.Lock()
	d.mem.fw[sub] = v
	d.mu.Unlock()
}

func (d *Device) FWRegister(sub byte) byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mem.fw[sub]
}

func (d *Device) SetHWRegisters(addr uint16, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, b := range data {
		d.mem.hw[addr+uint16(i)] = b
	}
}

func (d *Device) HWRegisters(addr uint16, n int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, n)
	for i := range out {
		out[i] = d.mem.hw[addr+uint16(i)]
	}
	return out
}

func (d *Device) SetFSTable(id byte, off uint16, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, b := range data {
		d.mem.fs[fsKey(id, uint32(off)+uint32(i))] = b
	}
}

// FSTable returns table contents; persisted selects the synced copy.
func (d *Device) FSTable(id byte, off uint16, n int, persisted bool) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	src := d.mem.fs
	if persisted {
		src = d.mem.fsPersisted
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = src[fsKey(id, uint32(off)+uint32(i))]
	}
	return out
}

func (d *Device) SetFlash(off uint32, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, b := range data {
		d.mem.flash[(off+uint32(i))&protocol.MaxFlashOffset] = b
	}
}

// Flash returns flash contents; persisted selects the synced copy.
// Unwritten bytes read as 0xFF.
func (d *Device) Flash(off uint32, n int, persisted bool) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, n)
	for i := range out {
		a := (off + uint32(i)) & protocol.MaxFlashOffset
		if !persisted {
			out[i] = d.mem.flashByte(a)
			continue
		}
		v, ok := d.mem.flashPersisted[a]
		if !ok {
			v = 0xFF
		}
		out[i] = v
	}
	return out
}

func (d *Device) SetSensorRegister(slave byte, addr uint16, v uint16) {
	d.mu.Lock()
	d.mem.sensor[sensorKey(slave, uint32(addr))] = v
	d.mu.Unlock()
}

func (d *Device) SensorRegister(slave byte, addr uint16) uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mem.sensor[sensorKey(slave, uint32(addr))]
}

// SetControl installs a property-bar control.
func (d *Device) SetControl(entity, selector byte, c Control) {
	d.mu.Lock()
	cc := c
	d.mem.controls[controlKey(entity, selector)] = &cc
	d.mu.Unlock()
}

// Control returns a copy of a control.
func (d *Device) Control(entity, selector byte) (Control, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.mem.controls[controlKey(entity, selector)]
	if !ok {
		return Control{}, false
	}
	return *c, true
}

func (d *Device) SetSupport(entity byte, mask uint16) {
	d.mu.Lock()
	d.mem.support[entity] = mask
	d.mu.Unlock()
}

// VideoMode reports the last selected mode and whether streaming is on.
func (d *Device) VideoMode() (mode uint32, streaming bool, switches int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mem.mode, d.mem.streaming, d.mem.switches
}

// Syncs returns how many sync commands mem received.
func (d *Device) Syncs(mem protocol.MemoryType) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mem.syncs[mem]
}
