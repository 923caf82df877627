// internal/config/normalize.go
package config

// Defaults applied by Normalize.
const (
	DefaultChip           = "esp876"
	DefaultSensorProtocol = "rev1.9"
	DefaultTimeoutMs      = 500
	DefaultPollIntervalMs = 1000
	DefaultRequest        = "get_cur"
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	for ui := range cfg.Bridge.Units {
		u := &cfg.Bridge.Units[ui]

		if u.Source.Chip == "" {
			u.Source.Chip = DefaultChip
		}
		if u.Source.SensorProtocol == "" {
			u.Source.SensorProtocol = DefaultSensorProtocol
		}
		if u.Source.TimeoutMs == 0 {
			u.Source.TimeoutMs = DefaultTimeoutMs
		}
		if u.Poll.IntervalMs == 0 {
			u.Poll.IntervalMs = DefaultPollIntervalMs
		}

		for ri := range u.Reads {
			r := &u.Reads[ri]
			switch r.Kind {
			case ReadFW:
				r.Length = 1
			case ReadProperty:
				if r.Request == "" {
					r.Request = DefaultRequest
				}
			}
		}

		for ti := range u.Targets {
			if u.Targets[ti].Protocol == "" {
				u.Targets[ti].Protocol = TargetModbus
			}
		}

		// ------------------------------------------------------------
		// DEVICE STATUS BLOCK NORMALIZATION (OPT-IN)
		// ------------------------------------------------------------

		// Skip units that did not opt in
		if u.Source.StatusSlot == nil {
			continue
		}

		// Normalize device_name:
		// - ASCII already validated
		// - Truncate to max 16 characters
		if len(u.Source.DeviceName) > 16 {
			u.Source.DeviceName = u.Source.DeviceName[:16]
		}
	}
}
