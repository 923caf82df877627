// internal/isp/isp.go
package isp

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/tamzrod/isp-bridge/internal/isp/esp876"
	"github.com/tamzrod/isp-bridge/internal/protocol"
)

// Controller is the operation catalog every supported ISP exposes.
type Controller interface {
	SwitchVideoMode(idx int, m protocol.VideoMode) error
	CloseVideoMode() error

	ReadFWRegister(sub byte) (byte, error)
	WriteFWRegister(sub, v byte) error

	ReadHWRegisters(addr uint16, dst []byte) error
	WriteHWRegisters(addr uint16, src []byte) error

	ReadFSTable(id byte, off uint16, dst []byte) error
	WriteFSTable(id byte, off uint16, src []byte) error
	ReadFlash(off uint32, dst []byte) error
	WriteFlash(off uint32, src []byte) error
	Sync(mem protocol.MemoryType) error

	// Range helpers page large buffers through the per-command limits.
	// Writes are followed by exactly one Sync.
	ReadFlashRange(off uint32, dst []byte) error
	WriteFlashRange(off uint32, src []byte) error
	ReadFSTableRange(id byte, off uint16, dst []byte) error
	WriteFSTableRange(id byte, off uint16, src []byte) error

	ReadSensorRegister(slave byte, addr uint16, format byte) (uint16, error)
	WriteSensorRegister(slave byte, addr uint16, format byte, v uint16) error

	GetProperty(entity byte, req protocol.Request, selector byte) (uint32, error)
	SetProperty(entity, selector byte, v uint32) error
	PropertySupport(entity byte) (uint16, error)

	// LastError returns the result code of the most recent operation.
	LastError() uint16
}

var _ Controller = (*esp876.Device)(nil)

// Options are chip-independent construction parameters.
type Options struct {
	VirtualChannel int
	SensorProtocol string // "rev1.9" or "legacy"; required
	Logger         zerolog.Logger
}

type factory func(link *protocol.Link, opts Options) (Controller, error)

var families = map[string]factory{
	"esp876": func(link *protocol.Link, opts Options) (Controller, error) {
		sp, err := esp876.ParseSensorProtocol(opts.SensorProtocol)
		if err != nil {
			return nil, err
		}
		return esp876.New(link, esp876.Options{
			VirtualChannel: opts.VirtualChannel,
			Sensor:         sp,
			Logger:         opts.Logger,
		}), nil
	},
}

// Families lists the chip families Open accepts.
func Families() []string {
	out := make([]string, 0, len(families))
	for name := range families {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Open builds the controller for chip family on link.
func Open(family string, link *protocol.Link, opts Options) (Controller, error) {
	f, ok := families[family]
	if !ok {
		return nil, fmt.Errorf("isp: unsupported chip family %q", family)
	}
	return f(link, opts)
}
