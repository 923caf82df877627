// internal/protocol/fake_test.go
package protocol

import (
	"errors"
	"time"
)

type access struct {
	write bool
	addr  uint16
	val   byte
}

// fakeTransport answers status triggers with their handshake target and
// records every register access.
type fakeTransport struct {
	regs RegisterMap

	log []access

	trigger      byte
	sinceTrigger int
	triggers     []byte
	triggerCount map[byte]int
	// writtenAt[i] = data bytes written before triggers[i]
	writtenAt []int

	// ignore[t] = number of writes of trigger t that are never answered
	ignore map[byte]int
	// stuck triggers are never answered
	stuck map[byte]bool
	// stuckAfter[t] = writes of trigger t answered before it sticks
	stuckAfter map[byte]int

	window  uint16
	virt    map[uint16]byte
	written []byte

	data    []byte
	dataPos int

	writes    int
	failWrite int // 1-based write index that fails, 0 = never
	readErr   error
}

var handshake = map[byte]byte{
	StatusReadyEnter:    StatusReadyLeave,
	StatusAcceptedEnter: StatusAcceptedLeave,
	StatusContinue:      StatusAcceptedLeave,
	StatusCloseEnter:    StatusCloseLeave,
}

func newFake() *fakeTransport {
	return &fakeTransport{
		regs:         ESP876Registers,
		triggerCount: map[byte]int{},
		ignore:       map[byte]int{},
		stuck:        map[byte]bool{},
		stuckAfter:   map[byte]int{},
		virt:         map[uint16]byte{},
	}
}

func (f *fakeTransport) ReadU8(addr uint16) (byte, error) {
	f.log = append(f.log, access{addr: addr})
	if f.readErr != nil {
		return 0, f.readErr
	}

	switch addr {
	case f.regs.Status:
		f.sinceTrigger++
		if f.stuck[f.trigger] || f.triggerCount[f.trigger] <= f.ignore[f.trigger] {
			return f.trigger, nil
		}
		if n, ok := f.stuckAfter[f.trigger]; ok && f.triggerCount[f.trigger] > n {
			return f.trigger, nil
		}
		return handshake[f.trigger], nil
	case f.regs.Data:
		if len(f.data) == 0 {
			return 0, nil
		}
		v := f.data[f.dataPos%len(f.data)]
		f.dataPos++
		return v, nil
	}
	return 0, nil
}

func (f *fakeTransport) WriteU8(addr uint16, val byte) error {
	f.log = append(f.log, access{write: true, addr: addr, val: val})
	f.writes++
	if f.failWrite != 0 && f.writes == f.failWrite {
		return errors.New("nack")
	}

	switch addr {
	case f.regs.Status:
		f.trigger = val
		f.sinceTrigger = 0
		f.triggerCount[val]++
		f.triggers = append(f.triggers, val)
		f.writtenAt = append(f.writtenAt, len(f.written))
	case f.regs.AddrHigh:
		f.window = uint16(val)<<8 | f.window&0x00FF
	case f.regs.AddrLow:
		f.window = f.window&0xFF00 | uint16(val)
	case f.regs.Data:
		if f.window == f.regs.VData {
			f.written = append(f.written, val)
		} else {
			f.virt[f.window] = val
		}
	}
	return nil
}

func (f *fakeTransport) count(write bool, addr uint16) int {
	n := 0
	for _, a := range f.log {
		if a.write == write && a.addr == addr {
			n++
		}
	}
	return n
}

type sleepCounter struct{ n int }

func (c *sleepCounter) sleep(time.Duration) { c.n++ }

func testConfig(sc *sleepCounter) Config {
	cfg := DefaultConfig()
	cfg.Sleep = sc.sleep
	return cfg
}
