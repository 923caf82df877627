// internal/isp/esp876/device.go
package esp876

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/tamzrod/isp-bridge/internal/protocol"
)

// Options configures a Device.
type Options struct {
	// VirtualChannel is the logical camera this handle drives.
	VirtualChannel int

	// Sensor selects how sensor passthrough format bytes are decoded.
	Sensor SensorProtocol

	Logger zerolog.Logger
}

// Device is one logical eSP876 (one virtual channel). Several devices may
// share a *protocol.Link; every operation holds the link lock from the
// device-ready handshake through the close handshake.
type Device struct {
	link   *protocol.Link
	vc     int
	sensor SensorProtocol
	log    zerolog.Logger

	lastErr atomic.Uint32

	modeMu sync.Mutex
	mode   ModeState
}

// New binds a device handle to link. link may be nil; operations then fail
// with protocol.ErrInvalidArgument.
func New(link *protocol.Link, opts Options) *Device {
	key := ""
	if link != nil {
		key = link.Key()
	}
	return &Device{
		link:   link,
		vc:     opts.VirtualChannel,
		sensor: opts.Sensor,
		log:    opts.Logger.With().Str("link", key).Int("vc", opts.VirtualChannel).Logger(),
		mode:   ModeState{Current: -1, Previous: -1},
	}
}

// VirtualChannel returns the channel id.
func (d *Device) VirtualChannel() int { return d.vc }

// SensorProtocol returns the sensor format revision in use.
func (d *Device) SensorProtocol() SensorProtocol { return d.sensor }

// LastError returns the result code of the most recently completed
// operation. It never blocks on an operation in flight.
func (d *Device) LastError() uint16 {
	return uint16(d.lastErr.Load())
}

// exec runs one operation and records its result code once the link lock
// has been released.
func (d *Device) exec(op string, desc protocol.Descriptor, buf []byte) error {
	err := d.link.Exec(op, desc, buf)
	d.finish(op, err)
	return err
}

func (d *Device) finish(op string, err error) {
	d.lastErr.Store(uint32(protocol.Code(err)))
	if err != nil {
		d.log.Warn().Err(err).Str("op", op).Msg("operation failed")
		return
	}
	d.log.Debug().Str("op", op).Msg("operation done")
}

// reject records an argument error detected before the link is touched.
func (d *Device) reject(op string, err error) error {
	oe := &protocol.OpError{Op: op, Phase: protocol.PhaseIdle, Kind: protocol.ErrInvalidArgument, Err: err}
	d.finish(op, oe)
	return oe
}
