// internal/isp/esp876/memory.go
package esp876

import (
	"errors"
	"fmt"

	"github.com/tamzrod/isp-bridge/internal/protocol"
)

var (
	errNegativeMode = errors.New("negative mode index")
	errEmptyBuffer  = errors.New("empty buffer")
)

// ReadFWRegister reads one firmware register.
func (d *Device) ReadFWRegister(sub byte) (byte, error) {
	buf := make([]byte, 1)
	desc := protocol.Descriptor{Command: protocol.CmdRead, Memory: protocol.MemFWReg, SubID: sub, Length: 1}
	if err := d.exec("fw-read", desc, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// WriteFWRegister writes one firmware register.
func (d *Device) WriteFWRegister(sub, v byte) error {
	desc := protocol.Descriptor{Command: protocol.CmdWrite, Memory: protocol.MemFWReg, SubID: sub, Length: 1}
	return d.exec("fw-write", desc, []byte{v})
}

// ReadHWRegisters reads len(dst) consecutive ASIC registers starting at
// addr. At most MaxHWRegLength bytes per call; longer reads are chunked on
// the wire.
func (d *Device) ReadHWRegisters(addr uint16, dst []byte) error {
	desc := protocol.Descriptor{
		Command: protocol.CmdRead,
		Memory:  protocol.MemHWReg,
		Offset:  uint32(addr),
		Length:  clampLength(len(dst)),
	}
	return d.exec("hw-read", desc, dst)
}

// WriteHWRegisters writes src to consecutive ASIC registers from addr.
func (d *Device) WriteHWRegisters(addr uint16, src []byte) error {
	desc := protocol.Descriptor{
		Command: protocol.CmdWrite,
		Memory:  protocol.MemHWReg,
		Offset:  uint32(addr),
		Length:  clampLength(len(src)),
	}
	return d.exec("hw-write", desc, src)
}

// ReadFSTable reads up to MaxFSTableLength bytes of table id at off.
func (d *Device) ReadFSTable(id byte, off uint16, dst []byte) error {
	desc := protocol.Descriptor{
		Command: protocol.CmdRead,
		Memory:  protocol.MemFSTable,
		SubID:   id,
		Offset:  uint32(off),
		Length:  clampLength(len(dst)),
	}
	return d.exec("fs-read", desc, dst)
}

// WriteFSTable writes up to MaxFSTableLength bytes to table id at off.
// The data is not persisted until Sync(MemFSTable).
func (d *Device) WriteFSTable(id byte, off uint16, src []byte) error {
	desc := protocol.Descriptor{
		Command: protocol.CmdWrite,
		Memory:  protocol.MemFSTable,
		SubID:   id,
		Offset:  uint32(off),
		Length:  clampLength(len(src)),
	}
	return d.exec("fs-write", desc, src)
}

// ReadFlash reads up to MaxFlashLength bytes of SPI flash at off.
func (d *Device) ReadFlash(off uint32, dst []byte) error {
	desc := protocol.Descriptor{
		Command: protocol.CmdRead,
		Memory:  protocol.MemSPIFlash,
		Offset:  off,
		Length:  clampLength(len(dst)),
	}
	return d.exec("flash-read", desc, dst)
}

// WriteFlash writes up to MaxFlashLength bytes of SPI flash at off.
// The data is not persisted until Sync(MemSPIFlash).
func (d *Device) WriteFlash(off uint32, src []byte) error {
	desc := protocol.Descriptor{
		Command: protocol.CmdWrite,
		Memory:  protocol.MemSPIFlash,
		Offset:  off,
		Length:  clampLength(len(src)),
	}
	return d.exec("flash-write", desc, src)
}

// Sync commits pending FS-table or flash writes on the device.
func (d *Device) Sync(mem protocol.MemoryType) error {
	desc := protocol.Descriptor{Command: protocol.CmdSync, Memory: mem}
	return d.exec("sync", desc, nil)
}

// ReadFlashRange reads len(dst) bytes of flash as a series of whole
// operations of at most MaxFlashLength bytes.
func (d *Device) ReadFlashRange(off uint32, dst []byte) error {
	return d.paged("flash-read-range", off, dst, protocol.MaxFlashLength, protocol.MaxFlashOffset, d.ReadFlash)
}

// WriteFlashRange writes src as a series of whole operations and syncs
// flash once at the end.
func (d *Device) WriteFlashRange(off uint32, src []byte) error {
	if err := d.paged("flash-write-range", off, src, protocol.MaxFlashLength, protocol.MaxFlashOffset, d.WriteFlash); err != nil {
		return err
	}
	return d.Sync(protocol.MemSPIFlash)
}

// ReadFSTableRange reads len(dst) bytes of table id in page-sized steps.
func (d *Device) ReadFSTableRange(id byte, off uint16, dst []byte) error {
	fn := func(o uint32, b []byte) error { return d.ReadFSTable(id, uint16(o), b) }
	return d.paged("fs-read-range", uint32(off), dst, protocol.MaxFSTableLength, 0xFFFF, fn)
}

// WriteFSTableRange writes src to table id in page-sized steps and syncs
// the table once at the end.
func (d *Device) WriteFSTableRange(id byte, off uint16, src []byte) error {
	fn := func(o uint32, b []byte) error { return d.WriteFSTable(id, uint16(o), b) }
	if err := d.paged("fs-write-range", uint32(off), src, protocol.MaxFSTableLength, 0xFFFF, fn); err != nil {
		return err
	}
	return d.Sync(protocol.MemFSTable)
}

// paged splits buf into page-sized operations. Each page is its own locked
// operation, so other channels may run between pages.
func (d *Device) paged(op string, off uint32, buf []byte, page int, maxOff uint32, fn func(uint32, []byte) error) error {
	if len(buf) == 0 {
		return d.reject(op, errEmptyBuffer)
	}
	if uint64(off)+uint64(len(buf))-1 > uint64(maxOff) {
		return d.reject(op, fmt.Errorf("range 0x%X+%d exceeds 0x%X", off, len(buf), maxOff))
	}

	for start := 0; start < len(buf); start += page {
		end := start + page
		if end > len(buf) {
			end = len(buf)
		}
		if err := fn(off+uint32(start), buf[start:end]); err != nil {
			return fmt.Errorf("%s at 0x%X: %w", op, off+uint32(start), err)
		}
	}
	return nil
}

// clampLength narrows a buffer length. Anything above 0xFFFF no longer
// matches its buffer and is rejected by Exec.
func clampLength(n int) uint16 {
	if n > 0xFFFF {
		return 0xFFFF
	}
	return uint16(n)
}
