// internal/config/validate_test.go
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// helper to build a unit quickly: one hw read of length bytes (length/2
// registers) mirrored into memoryID at offset.
func unit(id string, endpoint string, memoryID uint16, addr, length uint16, offset uint16) UnitConfig {
	return UnitConfig{
		ID: id,
		Source: SourceConfig{
			Transport: TransportSim,
			Bus:       id,
			Address:   0x48,
		},
		Reads: []ReadConfig{
			{
				Kind:    ReadHW,
				Address: addr,
				Length:  length,
			},
		},
		Targets: []TargetConfig{
			{
				ID:       1,
				Endpoint: endpoint,
				Memories: []MemoryConfig{
					{
						MemoryID: memoryID,
						Offsets: map[string]uint16{
							ReadHW: offset,
						},
					},
				},
			},
		},
	}
}

func units(us ...UnitConfig) *Config {
	return &Config{Bridge: BridgeConfig{Units: us}}
}

func u8(v uint8) *uint8    { return &v }
func u16(v uint16) *uint16 { return &v }

// ---- tests ----

func TestValidate_NoOverlapDifferentEndpoints(t *testing.T) {
	cfg := units(
		unit("u1", "ep1", 0, 0, 20, 0),
		unit("u2", "ep2", 0, 0, 20, 0),
	)

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_NoOverlapDifferentMemory(t *testing.T) {
	cfg := units(
		unit("u1", "ep1", 0, 0, 20, 0),
		unit("u2", "ep1", 1, 0, 20, 0),
	)

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_TouchingRangesAllowed(t *testing.T) {
	cfg := units(
		unit("u1", "ep1", 0, 0, 20, 0),  // 0-9
		unit("u2", "ep1", 0, 10, 20, 0), // 10-19
	)

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_OverlapDetected(t *testing.T) {
	cfg := units(
		unit("u1", "ep1", 0, 0, 20, 0), // 0-9
		unit("u2", "ep1", 0, 5, 20, 0), // 5-14 -> overlap
	)

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected overlap error, got nil")
	}
}

func TestValidate_OverlapViaOffsetDetected(t *testing.T) {
	cfg := units(
		unit("u1", "ep1", 0, 0, 20, 0), // 0-9
		unit("u2", "ep1", 0, 0, 20, 5), // 5-14 -> overlap
	)

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected overlap error, got nil")
	}
}

func TestValidate_ReadLimits(t *testing.T) {
	tests := []struct {
		name string
		r    ReadConfig
		ok   bool
	}{
		{"hw max", ReadConfig{Kind: ReadHW, Length: 128}, true},
		{"hw too long", ReadConfig{Kind: ReadHW, Length: 129}, false},
		{"hw empty", ReadConfig{Kind: ReadHW}, false},
		{"fw", ReadConfig{Kind: ReadFW, Address: 0x12}, true},
		{"fw wide", ReadConfig{Kind: ReadFW, Address: 0x12, Length: 2}, false},
		{"fw sub overflow", ReadConfig{Kind: ReadFW, Address: 0x100}, false},
		{"property", ReadConfig{Kind: ReadProperty, Entity: "pu", Selector: 2, Request: "get_max"}, true},
		{"property bad entity", ReadConfig{Kind: ReadProperty, Entity: "xu", Selector: 2}, false},
		{"property set request", ReadConfig{Kind: ReadProperty, Entity: "ct", Selector: 2, Request: "set_cur"}, false},
		{"unknown kind", ReadConfig{Kind: "nand"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := unit("u1", "ep1", 0, 0, 2, 0)
			u.Reads = []ReadConfig{tt.r}
			err := Validate(units(u))
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatalf("expected error, got nil")
			}
		})
	}
}

func TestValidate_SharedDeviceChannels(t *testing.T) {
	a := unit("cam0", "ep1", 0, 0, 2, 0)
	b := unit("cam1", "ep1", 1, 0, 2, 0)
	b.Source.Bus = a.Source.Bus
	b.Source.VirtualChannel = 1

	if err := Validate(units(a, b)); err != nil {
		t.Fatalf("two channels of one device rejected: %v", err)
	}

	b.Source.VirtualChannel = 0
	if err := Validate(units(a, b)); err == nil {
		t.Fatalf("expected duplicate virtual channel error")
	}

	b.Source.VirtualChannel = 1
	b.Source.SensorProtocol = "legacy"
	if err := Validate(units(a, b)); err == nil {
		t.Fatalf("expected sensor protocol disagreement error")
	}

	b.Source.SensorProtocol = "rev1.9" // same as a's default
	if err := Validate(units(a, b)); err != nil {
		t.Fatalf("explicit default rejected: %v", err)
	}
}

func TestValidate_Source(t *testing.T) {
	u := unit("u1", "ep1", 0, 0, 2, 0)
	u.Source = SourceConfig{Transport: TransportI2C, Bus: "/dev/i2c-1", Address: 0x80}
	if err := Validate(units(u)); err == nil {
		t.Fatalf("expected 7-bit address error")
	}

	u.Source = SourceConfig{Transport: TransportModbus}
	if err := Validate(units(u)); err == nil {
		t.Fatalf("expected missing endpoint error")
	}

	u.Source = SourceConfig{Transport: TransportSim, Chip: "esp999"}
	if err := Validate(units(u)); err == nil {
		t.Fatalf("expected unsupported chip error")
	}

	u.Source = SourceConfig{Transport: "usb"}
	if err := Validate(units(u)); err == nil {
		t.Fatalf("expected unknown transport error")
	}
}

func TestValidate_StatusSlotCollision(t *testing.T) {
	a := unit("u1", "ep1", 0, 0, 2, 0)
	b := unit("u2", "ep2", 0, 0, 2, 0)
	for _, u := range []*UnitConfig{&a, &b} {
		u.Source.StatusSlot = u16(3)
		u.Targets[0].StatusUnitID = u8(9)
	}

	cfg := units(a, b)
	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "status_memory") {
		t.Fatalf("expected missing status endpoint error, got %v", err)
	}

	cfg.Bridge.StatusMemory.Endpoint = "status:502"
	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "collision") {
		t.Fatalf("expected collision error, got %v", err)
	}

	cfg.Bridge.Units[1].Source.StatusSlot = u16(4)
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_DeviceNameASCII(t *testing.T) {
	u := unit("u1", "ep1", 0, 0, 2, 0)
	u.Source.DeviceName = "CAMÉRA"
	if err := Validate(units(u)); err == nil {
		t.Fatalf("expected ASCII error")
	}
}

func TestNormalize_Defaults(t *testing.T) {
	u := unit("u1", "ep1", 0, 0, 2, 0)
	u.Reads = append(u.Reads,
		ReadConfig{Kind: ReadFW, Address: 1},
		ReadConfig{Kind: ReadProperty, Entity: "ct", Selector: 4},
	)
	u.Source.StatusSlot = u16(0)
	u.Source.DeviceName = "A-VERY-LONG-CAMERA-NAME"
	cfg := units(u)

	Normalize(cfg)

	got := cfg.Bridge.Units[0]
	if got.Source.Chip != DefaultChip || got.Source.SensorProtocol != DefaultSensorProtocol {
		t.Fatalf("source defaults not applied: %+v", got.Source)
	}
	if got.Poll.IntervalMs != DefaultPollIntervalMs || got.Source.TimeoutMs != DefaultTimeoutMs {
		t.Fatalf("timing defaults not applied")
	}
	if got.Reads[1].Length != 1 || got.Reads[2].Request != DefaultRequest {
		t.Fatalf("read defaults not applied: %+v", got.Reads)
	}
	if got.Targets[0].Protocol != TargetModbus {
		t.Fatalf("target protocol default not applied")
	}
	if len(got.Source.DeviceName) != 16 {
		t.Fatalf("device name not truncated: %q", got.Source.DeviceName)
	}
}

func TestLoad(t *testing.T) {
	const doc = `
bridge:
  protocol:
    poll_budget: 500
  status_memory:
    endpoint: "127.0.0.1:1502"
  units:
    - id: cam0
      source:
        transport: i2c
        bus: /dev/i2c-1
        address: 0x48
        virtual_channel: 1
        sensor_protocol: legacy
        status_slot: 2
        device_name: CAM-0
      reads:
        - {kind: hw, address: 0x0100, length: 40}
        - {kind: property, entity: pu, selector: 2}
      targets:
        - id: 1
          endpoint: "127.0.0.1:502"
          unit_id: 1
          status_unit_id: 9
          memories:
            - memory_id: 0
              offsets: {hw: 100}
      poll:
        interval_ms: 250
`
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate err=%v", err)
	}

	u := cfg.Bridge.Units[0]
	if u.Source.Address != 0x48 || u.Source.VirtualChannel != 1 || *u.Source.StatusSlot != 2 {
		t.Fatalf("source decoded wrong: %+v", u.Source)
	}
	if u.Reads[0].Address != 0x0100 || u.Reads[0].Length != 40 {
		t.Fatalf("hw read decoded wrong: %+v", u.Reads[0])
	}
	if u.Targets[0].Memories[0].OffsetFor(ReadHW) != 100 {
		t.Fatalf("offsets decoded wrong")
	}
	if cfg.Bridge.Protocol.PollBudget != 500 {
		t.Fatalf("protocol decoded wrong: %+v", cfg.Bridge.Protocol)
	}
	if u.Source.LinkKey() != "/dev/i2c-1@0x48" {
		t.Fatalf("link key got=%q", u.Source.LinkKey())
	}
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	if _, err := Parse([]byte("bridge:\n  unitz: []\n")); err == nil {
		t.Fatalf("expected unknown key error")
	}
	if _, err := Parse(nil); err == nil {
		t.Fatalf("expected empty config error")
	}
}
