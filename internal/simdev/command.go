// internal/simdev/command.go
package simdev

import (
	"fmt"

	"github.com/tamzrod/isp-bridge/internal/protocol"
)

// command is a decoded request.
type command struct {
	cmd   protocol.CommandType
	mem   protocol.MemoryType
	write bool

	sub    byte // fw sub-register, fs table id, sensor slave, property entity
	offset uint32
	length int

	// sensor passthrough
	addrWidth int

	// property bar
	request  byte
	selector byte

	// video
	mode       uint32
	closeVideo bool
}

func decode(virt map[uint16]byte, regs protocol.RegisterMap, legacySensor bool) (*command, error) {
	opt := func(i int) byte { return virt[regs.VOptionBase+uint16(i)] }
	be16 := func(i int) uint32 { return uint32(opt(i))<<8 | uint32(opt(i+1)) }

	c := &command{cmd: protocol.CommandType(virt[regs.VRequest])}

	switch c.cmd {
	case protocol.CmdVideo:
		if opt(1) == protocol.VideoCloseMarker {
			c.closeVideo = true
			return c, nil
		}
		c.mode = be16(2)<<16 | be16(4)
		return c, nil

	case protocol.CmdRead, protocol.CmdWrite:
		c.write = c.cmd == protocol.CmdWrite
		c.mem = protocol.MemoryType(opt(1))
		return c, decodeMemory(c, opt, be16, legacySensor)

	case protocol.CmdSync:
		c.mem = protocol.MemoryType(opt(1))
		if c.mem != protocol.MemFSTable && c.mem != protocol.MemSPIFlash {
			return nil, fmt.Errorf("sync of %s", c.mem)
		}
		return c, nil

	case protocol.CmdPropertyGet, protocol.CmdPropertySet:
		c.write = c.cmd == protocol.CmdPropertySet
		c.sub, c.request, c.selector = opt(1), opt(2), opt(3)
		c.length = protocol.PropertyLength
		return c, nil

	case protocol.CmdPropertySupport:
		c.sub = opt(1)
		c.length = protocol.PropertySupportLength
		return c, nil

	default:
		return nil, fmt.Errorf("unknown request 0x%02X", byte(c.cmd))
	}
}

func decodeMemory(c *command, opt func(int) byte, be16 func(int) uint32, legacySensor bool) error {
	switch c.mem {
	case protocol.MemFWReg:
		c.sub = opt(4)
		c.length = int(be16(5))
		if c.length != 1 {
			return fmt.Errorf("fw register length %d", c.length)
		}
	case protocol.MemHWReg:
		c.offset = be16(3)
		c.length = int(be16(5))
		if c.length > protocol.MaxHWRegLength {
			return fmt.Errorf("hw register length %d", c.length)
		}
	case protocol.MemFSTable:
		c.sub = opt(2)
		c.offset = be16(3)
		c.length = int(be16(5))
		if c.length > protocol.MaxFSTableLength {
			return fmt.Errorf("fs table length %d", c.length)
		}
	case protocol.MemSPIFlash:
		c.offset = uint32(opt(2))<<16 | be16(3)
		c.length = int(be16(5))
		if c.length > protocol.MaxFlashLength {
			return fmt.Errorf("flash length %d", c.length)
		}
	case protocol.MemSensorReg:
		aw, dw, err := sensorWidths(opt(2), legacySensor)
		if err != nil {
			return err
		}
		c.sub = opt(3)
		c.offset = be16(4)
		if aw == 1 {
			c.offset &= 0xFF
		}
		c.addrWidth = aw
		c.length = dw
	default:
		return fmt.Errorf("unknown memory 0x%02X", byte(c.mem))
	}
	return nil
}

// sensorWidths returns address and data widths in bytes.
func sensorWidths(format byte, legacy bool) (int, int, error) {
	addr, data := format>>4, format&0x0F
	if legacy {
		addr, data = data, addr
	}
	if addr > 1 || data > 1 {
		return 0, 0, fmt.Errorf("sensor format 0x%02X", format)
	}
	return int(addr) + 1, int(data) + 1, nil
}
