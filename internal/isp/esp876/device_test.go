// internal/isp/esp876/device_test.go
package esp876

import (
	"bytes"
	"errors"
	"testing"

	"github.com/tamzrod/isp-bridge/internal/protocol"
	"github.com/tamzrod/isp-bridge/internal/simdev"
)

func newLink(dev *simdev.Device) *protocol.Link {
	cfg := protocol.DefaultConfig()
	cfg.PollInterval = 0
	cfg.PollBudget = 4
	return protocol.NewLink("sim", dev, cfg)
}

func TestNilLink(t *testing.T) {
	d := New(nil, Options{})

	_, err := d.ReadFWRegister(0x01)
	if !errors.Is(err, protocol.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if d.LastError() != protocol.CodeInvalidArgument {
		t.Fatalf("last error got=%d", d.LastError())
	}
}

func TestSwitchVideoMode_State(t *testing.T) {
	dev := simdev.New(simdev.Options{})
	d := New(newLink(dev), Options{})

	if st := d.ModeState(); st.Switched || st.Current != -1 {
		t.Fatalf("initial state %+v", st)
	}

	m1 := protocol.VideoMode{0x00, 0x01, 0x02, 0x03}
	m2 := protocol.VideoMode{0x10, 0x11, 0x12, 0x13}

	if err := d.SwitchVideoMode(1, m1); err != nil {
		t.Fatalf("switch 1 err=%v", err)
	}
	if err := d.SwitchVideoMode(1, m1); err != nil {
		t.Fatalf("repeat switch err=%v", err)
	}
	if _, _, n := dev.VideoMode(); n != 1 {
		t.Fatalf("repeat switch reached the device: switches=%d", n)
	}

	if err := d.SwitchVideoMode(2, m2); err != nil {
		t.Fatalf("switch 2 err=%v", err)
	}
	st := d.ModeState()
	if st.Current != 2 || st.Previous != 1 || !st.Switched || !st.Streaming {
		t.Fatalf("state after two switches %+v", st)
	}

	if err := d.CloseVideoMode(); err != nil {
		t.Fatalf("close err=%v", err)
	}
	if err := d.SwitchVideoMode(2, m2); err != nil {
		t.Fatalf("reopen err=%v", err)
	}
	if _, streaming, n := dev.VideoMode(); n != 3 || !streaming {
		t.Fatalf("reopen after close: switches=%d streaming=%v", n, streaming)
	}

	if err := d.SwitchVideoMode(-1, m1); !errors.Is(err, protocol.ErrInvalidArgument) {
		t.Fatalf("negative index: expected ErrInvalidArgument, got %v", err)
	}
}

func TestSwitchVideoMode_FailureKeepsState(t *testing.T) {
	dev := simdev.New(simdev.Options{})
	d := New(newLink(dev), Options{})

	dev.Stall(protocol.StatusAcceptedEnter, 1)
	if err := d.SwitchVideoMode(4, protocol.VideoMode{}); !errors.Is(err, protocol.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if st := d.ModeState(); st.Switched || st.Current != -1 {
		t.Fatalf("failed switch changed state %+v", st)
	}
}

func TestFlashRange_PagesAndSyncsOnce(t *testing.T) {
	dev := simdev.New(simdev.Options{})
	d := New(newLink(dev), Options{})

	src := make([]byte, 100)
	for i := range src {
		src[i] = byte(255 - i)
	}
	if err := d.WriteFlashRange(0x2000, src); err != nil {
		t.Fatalf("WriteFlashRange err=%v", err)
	}

	writes := 0
	for _, op := range dev.Recorder().Ops() {
		if op.Command == protocol.CmdWrite && op.Memory == protocol.MemSPIFlash {
			writes++
		}
	}
	if writes != 4 {
		t.Fatalf("flash write operations got=%d want=4", writes)
	}
	if n := dev.Syncs(protocol.MemSPIFlash); n != 1 {
		t.Fatalf("syncs got=%d want=1", n)
	}
	if got := dev.Flash(0x2000, len(src), true); !bytes.Equal(got, src) {
		t.Fatalf("persisted flash mismatch")
	}

	dst := make([]byte, len(src))
	if err := d.ReadFlashRange(0x2000, dst); err != nil {
		t.Fatalf("ReadFlashRange err=%v", err)
	}
	if !bytes.Equal(dst, src) {
		t.Fatalf("read back mismatch")
	}
}

func TestFSTableRange(t *testing.T) {
	dev := simdev.New(simdev.Options{})
	d := New(newLink(dev), Options{})

	src := bytes.Repeat([]byte{1, 2, 3}, 20)
	if err := d.WriteFSTableRange(9, 0x0100, src); err != nil {
		t.Fatalf("WriteFSTableRange err=%v", err)
	}
	if n := dev.Syncs(protocol.MemFSTable); n != 1 {
		t.Fatalf("syncs got=%d want=1", n)
	}

	dst := make([]byte, len(src))
	if err := d.ReadFSTableRange(9, 0x0100, dst); err != nil {
		t.Fatalf("ReadFSTableRange err=%v", err)
	}
	if !bytes.Equal(dst, src) {
		t.Fatalf("read back mismatch")
	}
}

func TestRange_Rejects(t *testing.T) {
	dev := simdev.New(simdev.Options{Record: true})
	d := New(newLink(dev), Options{})

	if err := d.WriteFlashRange(protocol.MaxFlashOffset, []byte{1, 2}); !errors.Is(err, protocol.ErrInvalidArgument) {
		t.Fatalf("range past flash end: expected ErrInvalidArgument, got %v", err)
	}
	if err := d.ReadFSTableRange(1, 0, nil); !errors.Is(err, protocol.ErrInvalidArgument) {
		t.Fatalf("empty range: expected ErrInvalidArgument, got %v", err)
	}
	if len(dev.Recorder().Accesses()) != 0 {
		t.Fatalf("device touched by rejected ranges")
	}
}

func TestFlashWindowLimit(t *testing.T) {
	dev := simdev.New(simdev.Options{Record: true})
	d := New(newLink(dev), Options{})

	err := d.WriteFlash(0, make([]byte, protocol.MaxFlashLength+1))
	if !errors.Is(err, protocol.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if len(dev.Recorder().Accesses()) != 0 {
		t.Fatalf("device touched by rejected write")
	}
}
