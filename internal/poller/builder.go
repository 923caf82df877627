// internal/poller/builder.go
package poller

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/isp-bridge/internal/config"
	"github.com/tamzrod/isp-bridge/internal/isp"
	"github.com/tamzrod/isp-bridge/internal/protocol"
	"github.com/tamzrod/isp-bridge/internal/simdev"
	"github.com/tamzrod/isp-bridge/internal/transport"
	"github.com/tamzrod/isp-bridge/internal/transport/i2c"
	"github.com/tamzrod/isp-bridge/internal/transport/mbbridge"
)

// Opener returns the transport factory for a source. The factory runs at
// most once per physical device; later units on the same device reuse the
// registry's link.
func Opener(src config.SourceConfig) func() (transport.Transport, error) {
	return func() (transport.Transport, error) {
		switch src.Transport {
		case config.TransportI2C:
			return i2c.Open(i2c.Config{Bus: src.Bus, Address: src.Address})
		case config.TransportModbus:
			return mbbridge.Open(mbbridge.Config{
				Endpoint: src.Endpoint,
				UnitID:   src.UnitID,
				Timeout:  time.Duration(src.TimeoutMs) * time.Millisecond,
			})
		case config.TransportSim:
			return simdev.New(simdev.Options{}), nil
		default:
			return nil, fmt.Errorf("unsupported transport %q", src.Transport)
		}
	}
}

// Attach joins the source's virtual channel to its device link and builds
// the chip controller on top.
func Attach(reg *protocol.Registry, src config.SourceConfig, log zerolog.Logger) (isp.Controller, error) {
	link, err := reg.Attach(src.LinkKey(), src.VirtualChannel, Opener(src))
	if err != nil {
		return nil, err
	}
	return isp.Open(src.Chip, link, isp.Options{
		VirtualChannel: src.VirtualChannel,
		SensorProtocol: src.SensorProtocol,
		Logger:         log,
	})
}

// Build constructs a Poller for one unit.
// The link outlives the poller and is closed by the registry owner.
// No retries, no loops, no semantics.
func Build(u config.UnitConfig, reg *protocol.Registry, log zerolog.Logger) (*Poller, error) {
	ctl, err := Attach(reg, u.Source, log.With().Str("unit", u.ID).Logger())
	if err != nil {
		return nil, fmt.Errorf("unit %s: %w", u.ID, err)
	}

	reads, err := Blocks(u.Reads)
	if err != nil {
		return nil, fmt.Errorf("unit %s: %w", u.ID, err)
	}

	return New(
		Config{
			UnitID:   u.ID,
			Interval: time.Duration(u.Poll.IntervalMs) * time.Millisecond,
			Reads:    reads,
		},
		ctl,
	)
}

// Blocks converts configured reads into poller geometry.
func Blocks(rs []config.ReadConfig) ([]ReadBlock, error) {
	reads := make([]ReadBlock, 0, len(rs))
	for _, r := range rs {
		rb := ReadBlock{
			Kind:    r.Kind,
			Address: r.Address,
			Length:  r.Length,
			Dest:    r.DestAddress(),
		}
		if r.Kind == config.ReadProperty {
			req, err := protocol.ParseRequest(r.Request)
			if err != nil {
				return nil, err
			}
			rb.Entity = r.EntityID()
			rb.Selector = r.Selector
			rb.Request = req
		}
		reads = append(reads, rb)
	}
	return reads, nil
}
