// internal/isp/esp876/property.go
package esp876

import (
	"encoding/binary"
	"fmt"

	"github.com/tamzrod/isp-bridge/internal/protocol"
)

// Camera-terminal control selectors.
const (
	CTScanningMode         byte = 0x01
	CTAEMode               byte = 0x02
	CTAEPriority           byte = 0x03
	CTExposureTimeAbsolute byte = 0x04
	CTExposureTimeRelative byte = 0x05
	CTFocusAbsolute        byte = 0x06
	CTFocusRelative        byte = 0x07
	CTFocusAuto            byte = 0x08
	CTIrisAbsolute         byte = 0x09
	CTIrisRelative         byte = 0x0A
	CTZoomAbsolute         byte = 0x0B
	CTZoomRelative         byte = 0x0C
	CTPanTiltAbsolute      byte = 0x0D
	CTPanTiltRelative      byte = 0x0E
	CTRollAbsolute         byte = 0x0F
	CTRollRelative         byte = 0x10
	CTPrivacy              byte = 0x11
)

// Processing-unit control selectors.
const (
	PUBacklightCompensation   byte = 0x01
	PUBrightness              byte = 0x02
	PUContrast                byte = 0x03
	PUGain                    byte = 0x04
	PUPowerLineFrequency      byte = 0x05
	PUHue                     byte = 0x06
	PUSaturation              byte = 0x07
	PUSharpness               byte = 0x08
	PUGamma                   byte = 0x09
	PUWhiteBalanceTemperature byte = 0x0A
	PUWhiteBalanceTempAuto    byte = 0x0B
	PUWhiteBalanceComponent   byte = 0x0C
	PUWhiteBalanceCompAuto    byte = 0x0D
	PUDigitalMultiplier       byte = 0x0E
	PUDigitalMultiplierLimit  byte = 0x0F
	PUHueAuto                 byte = 0x10
	PUAnalogVideoStandard     byte = 0x11
	PUAnalogLockStatus        byte = 0x12
	PUContrastAuto            byte = 0x13
)

// Value widths in bytes. Controls wider than the 4-byte answer
// (pan/tilt absolute) are listed as 0 and left unmasked.
var ctWidths = map[byte]int{
	CTScanningMode:         1,
	CTAEMode:               1,
	CTAEPriority:           1,
	CTExposureTimeAbsolute: 4,
	CTExposureTimeRelative: 1,
	CTFocusAbsolute:        2,
	CTFocusRelative:        2,
	CTFocusAuto:            1,
	CTIrisAbsolute:         2,
	CTIrisRelative:         1,
	CTZoomAbsolute:         2,
	CTZoomRelative:         3,
	CTPanTiltAbsolute:      0,
	CTPanTiltRelative:      4,
	CTRollAbsolute:         2,
	CTRollRelative:         2,
	CTPrivacy:              1,
}

var puWidths = map[byte]int{
	PUBacklightCompensation:   2,
	PUBrightness:              2,
	PUContrast:                2,
	PUGain:                    2,
	PUPowerLineFrequency:      1,
	PUHue:                     2,
	PUSaturation:              2,
	PUSharpness:               2,
	PUGamma:                   2,
	PUWhiteBalanceTemperature: 2,
	PUWhiteBalanceTempAuto:    1,
	PUWhiteBalanceComponent:   4,
	PUWhiteBalanceCompAuto:    1,
	PUDigitalMultiplier:       2,
	PUDigitalMultiplierLimit:  2,
	PUHueAuto:                 1,
	PUAnalogVideoStandard:     1,
	PUAnalogLockStatus:        1,
	PUContrastAuto:            1,
}

// PropertyWidth returns the value width of a control, 0 if unknown.
func PropertyWidth(entity, selector byte) int {
	switch entity {
	case protocol.EntityCT:
		return ctWidths[selector]
	case protocol.EntityPU:
		return puWidths[selector]
	default:
		return 0
	}
}

// MaskProperty trims a raw 32-bit answer to the control's width.
// GET_INFO answers are always one byte.
func MaskProperty(entity, selector byte, req protocol.Request, v uint32) uint32 {
	width := PropertyWidth(entity, selector)
	if req == protocol.RequestGetInfo {
		width = 1
	}
	if width <= 0 || width >= 4 {
		return v
	}
	return v & (1<<(8*uint(width)) - 1)
}

// GetProperty issues a GET_* request for a CT or PU control and returns
// the value masked to the control's width.
func (d *Device) GetProperty(entity byte, req protocol.Request, selector byte) (uint32, error) {
	const op = "property-get"

	if !req.IsGet() {
		return 0, d.reject(op, fmt.Errorf("%s is not a get request", req))
	}

	buf := make([]byte, protocol.PropertyLength)
	desc := protocol.Descriptor{
		Command:  protocol.CmdPropertyGet,
		SubID:    entity,
		Format:   byte(req),
		Selector: selector,
		Length:   protocol.PropertyLength,
	}
	if err := d.exec(op, desc, buf); err != nil {
		return 0, err
	}
	return MaskProperty(entity, selector, req, binary.LittleEndian.Uint32(buf)), nil
}

// SetProperty issues SET_CUR for a CT or PU control.
func (d *Device) SetProperty(entity, selector byte, v uint32) error {
	buf := make([]byte, protocol.PropertyLength)
	binary.LittleEndian.PutUint32(buf, v)

	desc := protocol.Descriptor{
		Command:  protocol.CmdPropertySet,
		SubID:    entity,
		Format:   byte(protocol.RequestSetCur),
		Selector: selector,
		Length:   protocol.PropertyLength,
	}
	return d.exec("property-set", desc, buf)
}

// PropertySupport returns the bitmap of controls the entity supports.
func (d *Device) PropertySupport(entity byte) (uint16, error) {
	buf := make([]byte, protocol.PropertySupportLength)
	desc := protocol.Descriptor{
		Command: protocol.CmdPropertySupport,
		SubID:   entity,
		Length:  protocol.PropertySupportLength,
	}
	if err := d.exec("property-support", desc, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}
