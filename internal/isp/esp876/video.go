// internal/isp/esp876/video.go
package esp876

import (
	"encoding/binary"

	"github.com/tamzrod/isp-bridge/internal/protocol"
)

// ModeState tracks video mode selection.
type ModeState struct {
	Current   int  // -1 before the first switch
	Previous  int  // -1 until a second switch
	Switched  bool // at least one switch succeeded
	Streaming bool // last mode command was a switch, not a close
}

// ModeState returns a snapshot of the mode bookkeeping.
func (d *Device) ModeState() ModeState {
	d.modeMu.Lock()
	defer d.modeMu.Unlock()
	return d.mode
}

// SwitchVideoMode selects mode index idx whose table entry is m.
// Re-selecting the active mode while streaming is a no-op.
func (d *Device) SwitchVideoMode(idx int, m protocol.VideoMode) error {
	const op = "video-switch"

	d.modeMu.Lock()
	defer d.modeMu.Unlock()

	if idx < 0 {
		return d.reject(op, errNegativeMode)
	}
	if d.mode.Switched && d.mode.Streaming && d.mode.Current == idx {
		d.log.Debug().Int("mode", idx).Msg("mode already active")
		d.finish(op, nil)
		return nil
	}

	desc := protocol.Descriptor{
		Command: protocol.CmdVideo,
		Offset:  binary.BigEndian.Uint32(m[:]),
	}
	if err := d.exec(op, desc, nil); err != nil {
		return err
	}

	if d.mode.Switched {
		d.mode.Previous = d.mode.Current
	}
	d.mode.Current = idx
	d.mode.Switched = true
	d.mode.Streaming = true
	return nil
}

// CloseVideoMode stops the active mode.
func (d *Device) CloseVideoMode() error {
	d.modeMu.Lock()
	defer d.modeMu.Unlock()

	desc := protocol.Descriptor{
		Command: protocol.CmdVideo,
		SubID:   protocol.VideoCloseMarker,
	}
	if err := d.exec("video-close", desc, nil); err != nil {
		return err
	}
	d.mode.Streaming = false
	return nil
}
