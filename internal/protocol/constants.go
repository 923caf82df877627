// internal/protocol/constants.go
package protocol

// Status register handshake values.
// Each phase is a (trigger written by host, target answered by device) pair.
const (
	StatusReadyEnter    byte = 0x80
	StatusReadyLeave    byte = 0x81
	StatusAcceptedEnter byte = 0x01
	StatusAcceptedLeave byte = 0x02
	StatusContinue      byte = 0x03
	StatusCloseEnter    byte = 0xF0
	StatusCloseLeave    byte = 0x00
)

// RegisterMap locates the host interface of one chip.
// Status/AddrHigh/AddrLow/Data are physical registers; the V* fields are
// virtual registers reached through the AddrHigh/AddrLow window.
type RegisterMap struct {
	Status   uint16
	AddrHigh uint16
	AddrLow  uint16
	Data     uint16

	VRequest    uint16
	VOptionBase uint16 // opt01 lives at VOptionBase+1
	VData       uint16
}

// ESP876Registers is the eSP876 host interface.
var ESP876Registers = RegisterMap{
	Status:   0xF000,
	AddrHigh: 0xF001,
	AddrLow:  0xF002,
	Data:     0xF003,

	VRequest:    0x0100,
	VOptionBase: 0x0110,
	VData:       0x0120,
}

// CommandType is the byte written to the request virtual register.
type CommandType byte

const (
	CmdVideo           CommandType = 0x01
	CmdRead            CommandType = 0x02
	CmdWrite           CommandType = 0x03
	CmdSync            CommandType = 0x04
	CmdPropertyGet     CommandType = 0x05
	CmdPropertySet     CommandType = 0x06
	CmdPropertySupport CommandType = 0x07
)

func (c CommandType) String() string {
	switch c {
	case CmdVideo:
		return "video"
	case CmdRead:
		return "read"
	case CmdWrite:
		return "write"
	case CmdSync:
		return "sync"
	case CmdPropertyGet:
		return "property-get"
	case CmdPropertySet:
		return "property-set"
	case CmdPropertySupport:
		return "property-support"
	default:
		return "unknown"
	}
}

// MemoryType selects the device memory a read/write/sync targets.
type MemoryType byte

const (
	MemNone      MemoryType = 0x00
	MemFWReg     MemoryType = 0x01
	MemHWReg     MemoryType = 0x02
	MemFSTable   MemoryType = 0x03
	MemSPIFlash  MemoryType = 0x04
	MemSensorReg MemoryType = 0x05
)

func (m MemoryType) String() string {
	switch m {
	case MemNone:
		return "none"
	case MemFWReg:
		return "fw-reg"
	case MemHWReg:
		return "hw-reg"
	case MemFSTable:
		return "fs-table"
	case MemSPIFlash:
		return "spi-flash"
	case MemSensorReg:
		return "sensor-reg"
	default:
		return "unknown"
	}
}

// Transfer limits.
const (
	// WindowSize is the largest data-phase slice between two status handshakes.
	WindowSize = 32

	MaxHWRegLength   = 128
	MaxFSTableLength = 32
	MaxFlashLength   = 32
	MaxFlashOffset   = 0xFFFFFF

	PropertyLength        = 4
	PropertySupportLength = 2
)

// VideoCloseMarker in Descriptor.SubID turns a video command into "close".
const VideoCloseMarker byte = 0xFF

// UVC entity ids accepted by the property-bar commands.
const (
	EntityCT byte = 0x01
	EntityPU byte = 0x03
)
