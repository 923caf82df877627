// internal/protocol/descriptor.go
package protocol

import (
	"errors"
	"fmt"
)

// Direction of a descriptor's data phase.
type Direction int

const (
	DirNone Direction = iota
	DirRead
	DirWrite
)

// Descriptor fully determines the option bytes of one command.
//
// Field use by command:
//
//	video:    SubID = VideoCloseMarker for close, Offset = 4 packed mode bytes
//	read/write: Memory, SubID (FW sub-register, FS table id, sensor slave),
//	          Offset (register/table/flash address), Length, Format (sensor)
//	sync:     Memory
//	property: SubID = entity, Format = UVC request, Selector = control
type Descriptor struct {
	Command  CommandType
	Memory   MemoryType
	SubID    byte
	Offset   uint32
	Length   uint16
	Format   byte
	Selector byte
}

// Direction reports whether the command has a read or write data phase.
func (d Descriptor) Direction() Direction {
	if d.Length == 0 {
		return DirNone
	}
	switch d.Command {
	case CmdRead, CmdPropertyGet, CmdPropertySupport:
		return DirRead
	case CmdWrite, CmdPropertySet:
		return DirWrite
	default:
		return DirNone
	}
}

var errUnsupportedMemory = errors.New("unsupported memory type")

// Options returns the option bytes, opt01 first.
func (d Descriptor) Options() ([]byte, error) {
	switch d.Command {
	case CmdVideo:
		if d.Length != 0 {
			return nil, fmt.Errorf("video command carries no data (length %d)", d.Length)
		}
		if d.SubID == VideoCloseMarker {
			return []byte{VideoCloseMarker, 0, 0, 0, 0}, nil
		}
		return []byte{
			0x00,
			byte(d.Offset >> 24), byte(d.Offset >> 16), byte(d.Offset >> 8), byte(d.Offset),
		}, nil

	case CmdRead, CmdWrite:
		return d.memoryOptions()

	case CmdSync:
		if d.Memory != MemFSTable && d.Memory != MemSPIFlash {
			return nil, fmt.Errorf("sync %s: %w", d.Memory, errUnsupportedMemory)
		}
		return []byte{byte(d.Memory)}, nil

	case CmdPropertyGet, CmdPropertySet:
		if err := checkEntity(d.SubID); err != nil {
			return nil, err
		}
		if d.Length != PropertyLength {
			return nil, fmt.Errorf("property length must be %d, got %d", PropertyLength, d.Length)
		}
		return []byte{d.SubID, d.Format, d.Selector}, nil

	case CmdPropertySupport:
		if err := checkEntity(d.SubID); err != nil {
			return nil, err
		}
		if d.Length != PropertySupportLength {
			return nil, fmt.Errorf("support list length must be %d, got %d", PropertySupportLength, d.Length)
		}
		return []byte{d.SubID}, nil

	default:
		return nil, fmt.Errorf("unknown command type 0x%02X", byte(d.Command))
	}
}

func (d Descriptor) memoryOptions() ([]byte, error) {
	lenHi, lenLo := byte(d.Length>>8), byte(d.Length)

	switch d.Memory {
	case MemFWReg:
		if d.Length != 1 {
			return nil, fmt.Errorf("fw register length must be 1, got %d", d.Length)
		}
		return []byte{byte(MemFWReg), 0, 0, d.SubID, lenHi, lenLo}, nil

	case MemHWReg:
		if d.Length > MaxHWRegLength {
			return nil, fmt.Errorf("hw register length %d exceeds %d", d.Length, MaxHWRegLength)
		}
		if d.Offset > 0xFFFF {
			return nil, fmt.Errorf("hw register address 0x%X exceeds 16 bits", d.Offset)
		}
		return []byte{byte(MemHWReg), 0, byte(d.Offset >> 8), byte(d.Offset), lenHi, lenLo}, nil

	case MemFSTable:
		if d.Length > MaxFSTableLength {
			return nil, fmt.Errorf("fs table length %d exceeds %d", d.Length, MaxFSTableLength)
		}
		if d.Offset > 0xFFFF {
			return nil, fmt.Errorf("fs table offset 0x%X exceeds 16 bits", d.Offset)
		}
		return []byte{byte(MemFSTable), d.SubID, byte(d.Offset >> 8), byte(d.Offset), lenHi, lenLo}, nil

	case MemSPIFlash:
		if d.Length > MaxFlashLength {
			return nil, fmt.Errorf("flash length %d exceeds %d", d.Length, MaxFlashLength)
		}
		if d.Offset > MaxFlashOffset {
			return nil, fmt.Errorf("flash offset 0x%X exceeds 24 bits", d.Offset)
		}
		return []byte{
			byte(MemSPIFlash),
			byte(d.Offset >> 16), byte(d.Offset >> 8), byte(d.Offset),
			lenHi, lenLo,
		}, nil

	case MemSensorReg:
		if d.Length != 1 && d.Length != 2 {
			return nil, fmt.Errorf("sensor data length must be 1 or 2, got %d", d.Length)
		}
		if d.Offset > 0xFFFF {
			return nil, fmt.Errorf("sensor register address 0x%X exceeds 16 bits", d.Offset)
		}
		return []byte{byte(MemSensorReg), d.Format, d.SubID, byte(d.Offset >> 8), byte(d.Offset)}, nil

	default:
		return nil, fmt.Errorf("%s 0x%02X: %w", d.Command, byte(d.Memory), errUnsupportedMemory)
	}
}

func checkEntity(id byte) error {
	if id != EntityCT && id != EntityPU {
		return fmt.Errorf("entity 0x%02X is neither CT nor PU", id)
	}
	return nil
}
