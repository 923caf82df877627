// internal/config/config.go
package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Bridge BridgeConfig `yaml:"bridge"`
}

type BridgeConfig struct {
	Protocol     ProtocolConfig     `yaml:"protocol"`
	StatusMemory StatusMemoryConfig `yaml:"status_memory"`
	Units        []UnitConfig       `yaml:"units"`
}

// ---- PROTOCOL ----

// ProtocolConfig tunes the handshake budgets shared by every link.
// Zero values take the engine defaults.
type ProtocolConfig struct {
	PollIntervalUs int `yaml:"poll_interval_us"`
	PollBudget     int `yaml:"poll_budget"`
	ReadyRetries   int `yaml:"ready_retries"`
}

type StatusMemoryConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// ---- UNIT ----

type UnitConfig struct {
	ID      string         `yaml:"id"`
	Source  SourceConfig   `yaml:"source"`
	Reads   []ReadConfig   `yaml:"reads"`
	Targets []TargetConfig `yaml:"targets"`
	Poll    PollConfig     `yaml:"poll"`
}

// ---- SOURCE ----

// Transport kinds.
const (
	TransportI2C    = "i2c"
	TransportModbus = "modbus"
	TransportSim    = "sim"
)

type SourceConfig struct {
	Transport string `yaml:"transport"`

	// i2c / sim
	Bus            string `yaml:"bus"`
	Address        uint16 `yaml:"address"` // base (VC0) 7-bit address
	VirtualChannel int    `yaml:"virtual_channel"`

	// modbus register gateway
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	TimeoutMs int    `yaml:"timeout_ms"`

	Chip           string `yaml:"chip"`
	SensorProtocol string `yaml:"sensor_protocol"`

	// Device status block (optional, opt-in)
	StatusSlot *uint16 `yaml:"status_slot"`
	DeviceName string  `yaml:"device_name"`
}

// LinkKey names the physical device behind the source. Units with the same
// key share one link and therefore one lock.
func (s SourceConfig) LinkKey() string {
	switch s.Transport {
	case TransportModbus:
		return fmt.Sprintf("modbus://%s/%d", s.Endpoint, s.UnitID)
	case TransportSim:
		return fmt.Sprintf("sim:%s@0x%02X", s.Bus, s.Address)
	default:
		return fmt.Sprintf("%s@0x%02X", s.Bus, s.Address)
	}
}

// ---- READS ----

// Read kinds.
const (
	ReadHW       = "hw"
	ReadFW       = "fw"
	ReadProperty = "property"
)

type ReadConfig struct {
	Kind    string `yaml:"kind"`
	Address uint16 `yaml:"address"` // hw register or fw sub-register
	Length  uint16 `yaml:"length"`  // hw only

	// property
	Entity   string `yaml:"entity"` // ct | pu
	Selector uint8  `yaml:"selector"`
	Request  string `yaml:"request"` // get_cur, get_min, ...
}

// EntityID returns the UVC entity byte, 0 if unknown.
func (r ReadConfig) EntityID() byte {
	switch strings.ToLower(r.Entity) {
	case "ct":
		return 0x01
	case "pu":
		return 0x03
	default:
		return 0
	}
}

// DestAddress is the register offset of this read inside a target memory,
// before the per-kind offset is added. Property values take two registers
// at selector*2; PU controls sit 0x100 above CT controls.
func (r ReadConfig) DestAddress() uint16 {
	if r.Kind == ReadProperty {
		base := uint16(r.Selector) * 2
		if r.EntityID() == 0x03 {
			base += 0x100
		}
		return base
	}
	return r.Address
}

// Registers is the number of 16-bit registers the read produces.
func (r ReadConfig) Registers() uint16 {
	switch r.Kind {
	case ReadHW:
		return (r.Length + 1) / 2
	case ReadFW:
		return 1
	case ReadProperty:
		return 2
	default:
		return 0
	}
}

// ---- TARGET ----

// Target protocols.
const (
	TargetModbus = "modbus"
	TargetIngest = "ingest"
)

type TargetConfig struct {
	ID           uint32         `yaml:"id"`
	Endpoint     string         `yaml:"endpoint"`
	Protocol     string         `yaml:"protocol"`       // modbus (default) | ingest
	UnitID       uint8          `yaml:"unit_id"`        // data memory
	StatusUnitID *uint8         `yaml:"status_unit_id"` // per-target status memory (optional)
	Memories     []MemoryConfig `yaml:"memories"`
}

type MemoryConfig struct {
	MemoryID uint16            `yaml:"memory_id"`
	Offsets  map[string]uint16 `yaml:"offsets"` // delta map keyed by read kind; missing => 0
}

// OffsetFor returns the delta for a read kind.
func (m MemoryConfig) OffsetFor(kind string) uint16 {
	if m.Offsets == nil {
		return 0
	}
	return m.Offsets[kind]
}

// ---- POLL ----

type PollConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}
