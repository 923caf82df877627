// internal/config/validate.go
package config

import (
	"fmt"
	"slices"

	"github.com/tamzrod/isp-bridge/internal/isp"
	"github.com/tamzrod/isp-bridge/internal/protocol"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	type span struct {
		start uint16
		end   uint16
		unit  string
	}

	p := cfg.Bridge.Protocol
	if p.PollIntervalUs < 0 || p.PollBudget < 0 || p.ReadyRetries < 0 {
		return fmt.Errorf("protocol: budgets must not be negative")
	}

	seenID := make(map[string]struct{})

	for _, u := range cfg.Bridge.Units {
		if u.ID == "" {
			return fmt.Errorf("unit without id")
		}
		if _, dup := seenID[u.ID]; dup {
			return fmt.Errorf("unit %q: duplicate id", u.ID)
		}
		seenID[u.ID] = struct{}{}

		if err := validateSource(u); err != nil {
			return err
		}
		for i, r := range u.Reads {
			if err := validateRead(r); err != nil {
				return fmt.Errorf("unit %q: read %d: %w", u.ID, i, err)
			}
		}
		if u.Poll.IntervalMs < 0 {
			return fmt.Errorf("unit %q: poll interval must not be negative", u.ID)
		}
		for _, t := range u.Targets {
			if t.Endpoint == "" {
				return fmt.Errorf("unit %q: target %d has no endpoint", u.ID, t.ID)
			}
			switch t.Protocol {
			case "", TargetModbus, TargetIngest:
			default:
				return fmt.Errorf("unit %q: target %d: unknown protocol %q", u.ID, t.ID, t.Protocol)
			}
		}
	}

	// ------------------------------------------------------------
	// SHARED LINKS (VIRTUAL CHANNELS)
	// ------------------------------------------------------------

	// key = link key; all channels of one physical device must agree
	type linkOwner struct {
		unit string
		src  SourceConfig
		vcs  map[int]string
	}
	links := make(map[string]*linkOwner)

	for _, u := range cfg.Bridge.Units {
		key := u.Source.LinkKey()
		owner, ok := links[key]
		if !ok {
			links[key] = &linkOwner{
				unit: u.ID,
				src:  u.Source,
				vcs:  map[int]string{u.Source.VirtualChannel: u.ID},
			}
			continue
		}

		s := u.Source
		o := owner.src
		if orDefault(s.Chip, DefaultChip) != orDefault(o.Chip, DefaultChip) ||
			orDefault(s.SensorProtocol, DefaultSensorProtocol) != orDefault(o.SensorProtocol, DefaultSensorProtocol) ||
			s.TimeoutMs != o.TimeoutMs {
			return fmt.Errorf(
				"units %q and %q share device %s but disagree on chip, sensor_protocol or timeout",
				owner.unit,
				u.ID,
				key,
			)
		}
		if prev, dup := owner.vcs[s.VirtualChannel]; dup {
			return fmt.Errorf(
				"units %q and %q both drive virtual channel %d of %s",
				prev,
				u.ID,
				s.VirtualChannel,
				key,
			)
		}
		owner.vcs[s.VirtualChannel] = u.ID
	}

	// ------------------------------------------------------------
	// DEVICE STATUS BLOCK VALIDATION (PER-TARGET, OPT-IN)
	// ------------------------------------------------------------

	// key = endpoint | status_unit_id | status_slot
	statusOwner := make(map[string]string)
	statusEndpoint := cfg.Bridge.StatusMemory.Endpoint

	for _, u := range cfg.Bridge.Units {
		// device_name sanity (ASCII only)
		if u.Source.DeviceName != "" {
			for i := 0; i < len(u.Source.DeviceName); i++ {
				if u.Source.DeviceName[i] > 0x7F {
					return fmt.Errorf(
						"unit %q: device_name must contain ASCII characters only",
						u.ID,
					)
				}
			}
		}

		// status is opt-in
		if u.Source.StatusSlot == nil {
			continue
		}

		if statusEndpoint == "" {
			return fmt.Errorf(
				"unit %q: status_slot is set but bridge.status_memory.endpoint is empty",
				u.ID,
			)
		}

		// status requires at least one target
		if len(u.Targets) == 0 {
			return fmt.Errorf(
				"unit %q: status_slot is set but no targets are defined",
				u.ID,
			)
		}

		slot := *u.Source.StatusSlot

		for _, t := range u.Targets {
			// each target must declare status_unit_id
			if t.StatusUnitID == nil {
				return fmt.Errorf(
					"unit %q: status_slot is set but target %q has no status_unit_id",
					u.ID,
					t.Endpoint,
				)
			}

			key := fmt.Sprintf(
				"%s|%d|%d",
				statusEndpoint,
				*t.StatusUnitID,
				slot,
			)

			if prev, exists := statusOwner[key]; exists {
				return fmt.Errorf(
					"status_slot collision: endpoint=%s status_unit_id=%d slot=%d used by units %q and %q",
					statusEndpoint,
					*t.StatusUnitID,
					slot,
					prev,
					u.ID,
				)
			}

			statusOwner[key] = u.ID
		}
	}

	// ------------------------------------------------------------
	// DESTINATION MEMORY GEOMETRY VALIDATION
	// ------------------------------------------------------------

	// key = endpoint | unit_id | memory_id
	spans := make(map[string][]span)

	for _, u := range cfg.Bridge.Units {
		for _, t := range u.Targets {
			for _, m := range t.Memories {
				for _, r := range u.Reads {
					start := m.OffsetFor(r.Kind) + r.DestAddress()
					end := start + r.Registers() - 1
					if end < start {
						return fmt.Errorf(
							"unit %q: %s read at %d overflows the register space of memory %d",
							u.ID,
							r.Kind,
							start,
							m.MemoryID,
						)
					}

					key := fmt.Sprintf("%s|%d|%d", t.Endpoint, t.UnitID, m.MemoryID)

					existing := spans[key]
					for _, s := range existing {
						// overlap check (inclusive)
						if !(end < s.start || start > s.end) {
							return fmt.Errorf(
								"memory overlap: endpoint=%s memory_id=%d range=%d-%d overlaps with unit=%s range=%d-%d",
								t.Endpoint,
								m.MemoryID,
								start,
								end,
								s.unit,
								s.start,
								s.end,
							)
						}
					}

					spans[key] = append(spans[key], span{
						start: start,
						end:   end,
						unit:  u.ID,
					})
				}
			}
		}
	}

	return nil
}

func validateSource(u UnitConfig) error {
	s := u.Source

	switch s.Transport {
	case TransportI2C:
		if s.Bus == "" {
			return fmt.Errorf("unit %q: i2c source needs a bus", u.ID)
		}
		if s.Address == 0 || s.Address > 0x7F {
			return fmt.Errorf("unit %q: i2c address 0x%X is not a 7-bit address", u.ID, s.Address)
		}
	case TransportModbus:
		if s.Endpoint == "" {
			return fmt.Errorf("unit %q: modbus source needs an endpoint", u.ID)
		}
	case TransportSim:
	default:
		return fmt.Errorf("unit %q: unknown transport %q", u.ID, s.Transport)
	}

	if s.VirtualChannel < 0 {
		return fmt.Errorf("unit %q: negative virtual_channel", u.ID)
	}
	if s.TimeoutMs < 0 {
		return fmt.Errorf("unit %q: negative timeout_ms", u.ID)
	}
	if s.Chip != "" && !slices.Contains(isp.Families(), s.Chip) {
		return fmt.Errorf("unit %q: unsupported chip %q", u.ID, s.Chip)
	}
	switch s.SensorProtocol {
	case "", "rev1.9", "legacy":
	default:
		return fmt.Errorf("unit %q: unknown sensor_protocol %q", u.ID, s.SensorProtocol)
	}
	return nil
}

func validateRead(r ReadConfig) error {
	switch r.Kind {
	case ReadHW:
		if r.Length == 0 || r.Length > protocol.MaxHWRegLength {
			return fmt.Errorf("hw length %d outside 1..%d", r.Length, protocol.MaxHWRegLength)
		}
	case ReadFW:
		if r.Address > 0xFF {
			return fmt.Errorf("fw sub-register 0x%X exceeds 8 bits", r.Address)
		}
		if r.Length > 1 {
			return fmt.Errorf("fw reads are one byte, got length %d", r.Length)
		}
	case ReadProperty:
		if r.EntityID() == 0 {
			return fmt.Errorf("entity %q is neither ct nor pu", r.Entity)
		}
		if r.Request != "" {
			req, err := protocol.ParseRequest(r.Request)
			if err != nil {
				return err
			}
			if !req.IsGet() {
				return fmt.Errorf("request %s cannot be polled", req)
			}
		}
	default:
		return fmt.Errorf("unknown kind %q", r.Kind)
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
