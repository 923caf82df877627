// internal/simdev/memory.go
package simdev

import (
	"encoding/binary"
	"fmt"

	"github.com/tamzrod/isp-bridge/internal/protocol"
)

// Control is one UVC control of the property bar.
type Control struct {
	Width int // answer bytes that carry the value, 0 = all four
	Info  byte
	Cur   uint32
	Min   uint32
	Max   uint32
	Res   uint32
	Def   uint32
	Len   uint32
}

// UVC request codes understood by the property bar.
const (
	setCur  = 0x01
	getCur  = 0x81
	getMin  = 0x82
	getMax  = 0x83
	getRes  = 0x84
	getLen  = 0x85
	getInfo = 0x86
	getDef  = 0x87
)

type memory struct {
	fw [256]byte
	hw map[uint16]byte

	fs          map[uint32]byte
	fsPersisted map[uint32]byte

	flash          map[uint32]byte
	flashPersisted map[uint32]byte

	sensor map[uint32]uint16

	controls map[uint16]*Control
	support  map[byte]uint16

	mode      uint32
	streaming bool
	switches  int

	syncs map[protocol.MemoryType]int
}

func newMemory() *memory {
	return &memory{
		hw:             make(map[uint16]byte),
		fs:             make(map[uint32]byte),
		fsPersisted:    make(map[uint32]byte),
		flash:          make(map[uint32]byte),
		flashPersisted: make(map[uint32]byte),
		sensor:         make(map[uint32]uint16),
		controls:       make(map[uint16]*Control),
		support:        make(map[byte]uint16),
		syncs:          make(map[protocol.MemoryType]int),
	}
}

func fsKey(id byte, off uint32) uint32      { return uint32(id)<<16 | off&0xFFFF }
func sensorKey(slave byte, a uint32) uint32 { return uint32(slave)<<16 | a&0xFFFF }
func controlKey(entity, sel byte) uint16    { return uint16(entity)<<8 | uint16(sel) }

func (m *memory) flashByte(off uint32) byte {
	if v, ok := m.flash[off&protocol.MaxFlashOffset]; ok {
		return v
	}
	return 0xFF
}

func (m *memory) read(c *command, noise byte) ([]byte, error) {
	out := make([]byte, c.length)

	switch c.cmd {
	case protocol.CmdRead:
		switch c.mem {
		case protocol.MemFWReg:
			out[0] = m.fw[c.sub]
		case protocol.MemHWReg:
			for i := range out {
				out[i] = m.hw[uint16(c.offset)+uint16(i)]
			}
		case protocol.MemFSTable:
			for i := range out {
				out[i] = m.fs[fsKey(c.sub, c.offset+uint32(i))]
			}
		case protocol.MemSPIFlash:
			for i := range out {
				out[i] = m.flashByte(c.offset + uint32(i))
			}
		case protocol.MemSensorReg:
			v := m.sensor[sensorKey(c.sub, c.offset)]
			if c.length == 1 {
				out[0] = byte(v)
			} else {
				binary.BigEndian.PutUint16(out, v)
			}
		}
		return out, nil

	case protocol.CmdPropertyGet:
		ctl, ok := m.controls[controlKey(c.sub, c.selector)]
		if !ok {
			return nil, fmt.Errorf("no control %02X/%02X", c.sub, c.selector)
		}
		width := ctl.Width
		var v uint32
		switch c.request {
		case getCur:
			v = ctl.Cur
		case getMin:
			v = ctl.Min
		case getMax:
			v = ctl.Max
		case getRes:
			v = ctl.Res
		case getDef:
			v = ctl.Def
		case getLen:
			v = ctl.Len
		case getInfo:
			v = uint32(ctl.Info)
			width = 1
		default:
			return nil, fmt.Errorf("property request 0x%02X", c.request)
		}
		binary.LittleEndian.PutUint32(out, v)
		if width > 0 {
			for i := width; i < len(out); i++ {
				out[i] = noise
			}
		}
		return out, nil

	case protocol.CmdPropertySupport:
		binary.LittleEndian.PutUint16(out, m.support[c.sub])
		return out, nil
	}
	return nil, fmt.Errorf("%s has no read data", c.cmd)
}

func (m *memory) write(c *command, data []byte) error {
	switch c.cmd {
	case protocol.CmdWrite:
		switch c.mem {
		case protocol.MemFWReg:
			m.fw[c.sub] = data[0]
		case protocol.MemHWReg:
			for i, b := range data {
				m.hw[uint16(c.offset)+uint16(i)] = b
			}
		case protocol.MemFSTable:
			for i, b := range data {
				m.fs[fsKey(c.sub, c.offset+uint32(i))] = b
			}
		case protocol.MemSPIFlash:
			for i, b := range data {
				m.flash[(c.offset+uint32(i))&protocol.MaxFlashOffset] = b
			}
		case protocol.MemSensorReg:
			var v uint16
			if len(data) == 1 {
				v = uint16(data[0])
			} else {
				v = binary.BigEndian.Uint16(data)
			}
			m.sensor[sensorKey(c.sub, c.offset)] = v
		}
		return nil

	case protocol.CmdPropertySet:
		if c.request != setCur {
			return fmt.Errorf("property set with request 0x%02X", c.request)
		}
		ctl, ok := m.controls[controlKey(c.sub, c.selector)]
		if !ok {
			return fmt.Errorf("no control %02X/%02X", c.sub, c.selector)
		}
		ctl.Cur = binary.LittleEndian.Uint32(data)
		return nil
	}
	return fmt.Errorf("%s has no write data", c.cmd)
}

// exec runs a command without data phase.
func (m *memory) exec(c *command) {
	switch c.cmd {
	case protocol.CmdVideo:
		if c.closeVideo {
			m.streaming = false
			return
		}
		m.mode = c.mode
		m.streaming = true
		m.switches++
	case protocol.CmdSync:
		m.syncs[c.mem]++
		switch c.mem {
		case protocol.MemFSTable:
			for k, v := range m.fs {
				m.fsPersisted[k] = v
			}
		case protocol.MemSPIFlash:
			for k, v := range m.flash {
				m.flashPersisted[k] = v
			}
		}
	}
}
