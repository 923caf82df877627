// internal/isp/esp876/sensor.go
package esp876

import (
	"fmt"

	"github.com/tamzrod/isp-bridge/internal/protocol"
)

// SensorProtocol selects the firmware revision's sensor format encoding.
// Both revisions are deployed; the caller must say which one the firmware
// speaks.
type SensorProtocol int

const (
	// SensorRev19: high nibble is the address width, low nibble the data
	// width (0 = 8 bit, 1 = 16 bit).
	SensorRev19 SensorProtocol = iota
	// SensorLegacy: high nibble is the data width, low nibble the address
	// width.
	SensorLegacy
)

func (p SensorProtocol) String() string {
	switch p {
	case SensorRev19:
		return "rev1.9"
	case SensorLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// ParseSensorProtocol accepts "rev1.9" or "legacy". The revision must be
// named; an empty string is an error.
func ParseSensorProtocol(s string) (SensorProtocol, error) {
	switch s {
	case "":
		return 0, fmt.Errorf("sensor protocol not set")
	case "rev1.9", "rev19":
		return SensorRev19, nil
	case "legacy":
		return SensorLegacy, nil
	default:
		return 0, fmt.Errorf("unknown sensor protocol %q", s)
	}
}

// SensorFormat is a decoded format byte.
type SensorFormat struct {
	AddrBits int // 8 or 16
	DataBits int // 8 or 16
}

// DataLen is the data phase length in bytes.
func (f SensorFormat) DataLen() int { return f.DataBits / 8 }

func nibbleBits(n byte) (int, bool) {
	switch n {
	case 0:
		return 8, true
	case 1:
		return 16, true
	default:
		return 0, false
	}
}

// DecodeFormat interprets a format byte under protocol p.
func DecodeFormat(p SensorProtocol, b byte) (SensorFormat, error) {
	hi, lo := b>>4, b&0x0F

	var addrNib, dataNib byte
	switch p {
	case SensorRev19:
		addrNib, dataNib = hi, lo
	case SensorLegacy:
		addrNib, dataNib = lo, hi
	default:
		return SensorFormat{}, fmt.Errorf("unknown sensor protocol %d", p)
	}

	ab, ok1 := nibbleBits(addrNib)
	db, ok2 := nibbleBits(dataNib)
	if !ok1 || !ok2 {
		return SensorFormat{}, fmt.Errorf("format 0x%02X is not valid under %s", b, p)
	}
	return SensorFormat{AddrBits: ab, DataBits: db}, nil
}

// EncodeFormat builds the format byte for f under protocol p.
func EncodeFormat(p SensorProtocol, f SensorFormat) (byte, error) {
	var a, dn byte
	switch f.AddrBits {
	case 8:
	case 16:
		a = 1
	default:
		return 0, fmt.Errorf("address width %d", f.AddrBits)
	}
	switch f.DataBits {
	case 8:
	case 16:
		dn = 1
	default:
		return 0, fmt.Errorf("data width %d", f.DataBits)
	}

	switch p {
	case SensorRev19:
		return a<<4 | dn, nil
	case SensorLegacy:
		return dn<<4 | a, nil
	default:
		return 0, fmt.Errorf("unknown sensor protocol %d", p)
	}
}

func (d *Device) sensorDescriptor(cmd protocol.CommandType, slave byte, addr uint16, format byte) (protocol.Descriptor, SensorFormat, error) {
	f, err := DecodeFormat(d.sensor, format)
	if err != nil {
		return protocol.Descriptor{}, f, err
	}
	if f.AddrBits == 8 && addr > 0xFF {
		return protocol.Descriptor{}, f, fmt.Errorf("address 0x%04X does not fit 8 bits", addr)
	}
	return protocol.Descriptor{
		Command: cmd,
		Memory:  protocol.MemSensorReg,
		SubID:   slave,
		Offset:  uint32(addr),
		Length:  uint16(f.DataLen()),
		Format:  format,
	}, f, nil
}

// ReadSensorRegister reads one sensor register through the ISP's I2C
// master. The value is 8 or 16 bits wide as selected by format.
func (d *Device) ReadSensorRegister(slave byte, addr uint16, format byte) (uint16, error) {
	const op = "sensor-read"

	desc, f, err := d.sensorDescriptor(protocol.CmdRead, slave, addr, format)
	if err != nil {
		return 0, d.reject(op, err)
	}

	buf := make([]byte, f.DataLen())
	if err := d.exec(op, desc, buf); err != nil {
		return 0, err
	}
	if len(buf) == 1 {
		return uint16(buf[0]), nil
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

// WriteSensorRegister writes one sensor register, MSB first.
func (d *Device) WriteSensorRegister(slave byte, addr uint16, format byte, v uint16) error {
	const op = "sensor-write"

	desc, f, err := d.sensorDescriptor(protocol.CmdWrite, slave, addr, format)
	if err != nil {
		return d.reject(op, err)
	}

	var buf []byte
	if f.DataLen() == 1 {
		if v > 0xFF {
			return d.reject(op, fmt.Errorf("value 0x%04X does not fit 8 bits", v))
		}
		buf = []byte{byte(v)}
	} else {
		buf = []byte{byte(v >> 8), byte(v)}
	}
	return d.exec(op, desc, buf)
}
