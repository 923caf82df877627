// internal/isp/isptest/suite.go

// Package isptest is the conformance suite every isp.Controller
// implementation runs against the simulated device.
package isptest

import (
	"bytes"
	"errors"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/isp-bridge/internal/isp"
	"github.com/tamzrod/isp-bridge/internal/protocol"
	"github.com/tamzrod/isp-bridge/internal/simdev"
	"github.com/tamzrod/isp-bridge/internal/transport"
)

// Factory builds the controller under test for virtual channel vc.
// The controller must use sensor protocol rev1.9.
type Factory func(t *testing.T, link *protocol.Link, vc int) isp.Controller

type rig struct {
	dev  *simdev.Device
	reg  *protocol.Registry
	link *protocol.Link
}

func newRig(t *testing.T) *rig {
	t.Helper()

	dev := simdev.New(simdev.Options{Record: true, PropertyNoise: 0xEE})

	cfg := protocol.DefaultConfig()
	cfg.PollInterval = 0
	cfg.PollBudget = 4

	reg := protocol.NewRegistry(cfg)
	link, err := reg.Attach("sim@0x48", 0, func() (transport.Transport, error) { return dev, nil })
	if err != nil {
		t.Fatalf("Attach err=%v", err)
	}
	t.Cleanup(func() { _ = reg.Close() })

	return &rig{dev: dev, reg: reg, link: link}
}

func (r *rig) noViolations(t *testing.T) {
	t.Helper()
	if v := r.dev.Recorder().Violations(); len(v) != 0 {
		t.Fatalf("protocol violations: %v", v)
	}
}

// Run executes the suite.
func Run(t *testing.T, newController Factory) {
	t.Run("FWRegister", func(t *testing.T) {
		r := newRig(t)
		c := newController(t, r.link, 0)

		r.dev.SetFWRegister(0x12, 0x5A)
		v, err := c.ReadFWRegister(0x12)
		if err != nil {
			t.Fatalf("ReadFWRegister err=%v", err)
		}
		if v != 0x5A {
			t.Fatalf("value got=0x%02X want=0x5A", v)
		}

		if err := c.WriteFWRegister(0x13, 0xA5); err != nil {
			t.Fatalf("WriteFWRegister err=%v", err)
		}
		if got := r.dev.FWRegister(0x13); got != 0xA5 {
			t.Fatalf("device register got=0x%02X", got)
		}
		r.noViolations(t)
	})

	t.Run("HWRegistersChunked", func(t *testing.T) {
		r := newRig(t)
		c := newController(t, r.link, 0)

		src := make([]byte, 100)
		for i := range src {
			src[i] = byte(i * 3)
		}
		if err := c.WriteHWRegisters(0x0100, src); err != nil {
			t.Fatalf("WriteHWRegisters err=%v", err)
		}
		if got := r.dev.HWRegisters(0x0100, len(src)); !bytes.Equal(got, src) {
			t.Fatalf("device registers got=% X", got)
		}

		dst := make([]byte, len(src))
		if err := c.ReadHWRegisters(0x0100, dst); err != nil {
			t.Fatalf("ReadHWRegisters err=%v", err)
		}
		if !bytes.Equal(dst, src) {
			t.Fatalf("read back got=% X", dst)
		}
		r.noViolations(t)
	})

	t.Run("HWRegistersTooLong", func(t *testing.T) {
		r := newRig(t)
		c := newController(t, r.link, 0)

		err := c.ReadHWRegisters(0, make([]byte, protocol.MaxHWRegLength+1))
		if !errors.Is(err, protocol.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
		if len(r.dev.Recorder().Accesses()) != 0 {
			t.Fatalf("device touched by a rejected operation")
		}
		if c.LastError() != protocol.CodeInvalidArgument {
			t.Fatalf("last error got=%d", c.LastError())
		}
	})

	t.Run("FlashNeedsSync", func(t *testing.T) {
		r := newRig(t)
		c := newController(t, r.link, 0)

		src := []byte("calibration block")
		if err := c.WriteFlash(0x010000, src); err != nil {
			t.Fatalf("WriteFlash err=%v", err)
		}
		if got := r.dev.Flash(0x010000, len(src), true); bytes.Equal(got, src) {
			t.Fatalf("flash persisted without sync")
		}
		if err := c.Sync(protocol.MemSPIFlash); err != nil {
			t.Fatalf("Sync err=%v", err)
		}
		if got := r.dev.Flash(0x010000, len(src), true); !bytes.Equal(got, src) {
			t.Fatalf("persisted flash got=%q", got)
		}

		dst := make([]byte, len(src))
		if err := c.ReadFlash(0x010000, dst); err != nil {
			t.Fatalf("ReadFlash err=%v", err)
		}
		if !bytes.Equal(dst, src) {
			t.Fatalf("read back got=%q", dst)
		}

		if err := c.Sync(protocol.MemHWReg); !errors.Is(err, protocol.ErrInvalidArgument) {
			t.Fatalf("sync of hw registers: expected ErrInvalidArgument, got %v", err)
		}
		r.noViolations(t)
	})

	t.Run("FSTable", func(t *testing.T) {
		r := newRig(t)
		c := newController(t, r.link, 0)

		src := bytes.Repeat([]byte{0xC3}, protocol.MaxFSTableLength)
		if err := c.WriteFSTable(4, 0x0020, src); err != nil {
			t.Fatalf("WriteFSTable err=%v", err)
		}
		if err := c.Sync(protocol.MemFSTable); err != nil {
			t.Fatalf("Sync err=%v", err)
		}
		if got := r.dev.FSTable(4, 0x0020, len(src), true); !bytes.Equal(got, src) {
			t.Fatalf("persisted table got=% X", got)
		}

		dst := make([]byte, len(src))
		if err := c.ReadFSTable(4, 0x0020, dst); err != nil {
			t.Fatalf("ReadFSTable err=%v", err)
		}
		if !bytes.Equal(dst, src) {
			t.Fatalf("read back got=% X", dst)
		}
		r.noViolations(t)
	})

	t.Run("SensorPassthrough", func(t *testing.T) {
		r := newRig(t)
		c := newController(t, r.link, 0)

		// 0x10 under rev1.9: 16-bit address, 8-bit data
		r.dev.SetSensorRegister(0x36, 0x300A, 0x56)
		v, err := c.ReadSensorRegister(0x36, 0x300A, 0x10)
		if err != nil {
			t.Fatalf("ReadSensorRegister err=%v", err)
		}
		if v != 0x56 {
			t.Fatalf("value got=0x%X want=0x56", v)
		}

		// 0x11: 16-bit address, 16-bit data, MSB first
		if err := c.WriteSensorRegister(0x36, 0x3500, 0x11, 0x1234); err != nil {
			t.Fatalf("WriteSensorRegister err=%v", err)
		}
		if got := r.dev.SensorRegister(0x36, 0x3500); got != 0x1234 {
			t.Fatalf("device register got=0x%04X", got)
		}

		if _, err := c.ReadSensorRegister(0x36, 0x0001, 0x22); !errors.Is(err, protocol.ErrInvalidArgument) {
			t.Fatalf("bad format: expected ErrInvalidArgument, got %v", err)
		}
		r.noViolations(t)
	})

	t.Run("PropertyMasking", func(t *testing.T) {
		r := newRig(t)
		c := newController(t, r.link, 0)

		r.dev.SetControl(protocol.EntityPU, 0x02, simdev.Control{Width: 2, Cur: 0x1234, Info: 0x03})
		v, err := c.GetProperty(protocol.EntityPU, protocol.RequestGetCur, 0x02)
		if err != nil {
			t.Fatalf("GetProperty err=%v", err)
		}
		if v != 0x1234 {
			t.Fatalf("brightness got=0x%X want=0x1234", v)
		}

		info, err := c.GetProperty(protocol.EntityPU, protocol.RequestGetInfo, 0x02)
		if err != nil {
			t.Fatalf("GET_INFO err=%v", err)
		}
		if info != 0x03 {
			t.Fatalf("info got=0x%X want=0x03", info)
		}

		if err := c.SetProperty(protocol.EntityPU, 0x02, 0x0080); err != nil {
			t.Fatalf("SetProperty err=%v", err)
		}
		if ctl, _ := r.dev.Control(protocol.EntityPU, 0x02); ctl.Cur != 0x0080 {
			t.Fatalf("device value got=0x%X", ctl.Cur)
		}

		r.dev.SetSupport(protocol.EntityCT, 0x0A0F)
		mask, err := c.PropertySupport(protocol.EntityCT)
		if err != nil {
			t.Fatalf("PropertySupport err=%v", err)
		}
		if mask != 0x0A0F {
			t.Fatalf("support got=0x%04X", mask)
		}
		r.noViolations(t)
	})

	t.Run("VideoMode", func(t *testing.T) {
		r := newRig(t)
		c := newController(t, r.link, 0)

		if err := c.SwitchVideoMode(3, protocol.VideoMode{0x01, 0x02, 0x03, 0x04}); err != nil {
			t.Fatalf("SwitchVideoMode err=%v", err)
		}
		mode, streaming, _ := r.dev.VideoMode()
		if mode != 0x01020304 || !streaming {
			t.Fatalf("device mode got=0x%08X streaming=%v", mode, streaming)
		}

		if err := c.CloseVideoMode(); err != nil {
			t.Fatalf("CloseVideoMode err=%v", err)
		}
		if _, streaming, _ := r.dev.VideoMode(); streaming {
			t.Fatalf("still streaming after close")
		}
		r.noViolations(t)
	})

	t.Run("BusyOnClose", func(t *testing.T) {
		r := newRig(t)
		c := newController(t, r.link, 0)

		r.dev.Stall(protocol.StatusCloseEnter, 1)
		err := c.WriteFWRegister(0x01, 0x01)
		if !errors.Is(err, protocol.ErrBusy) {
			t.Fatalf("expected ErrBusy, got %v", err)
		}
		if c.LastError() != protocol.CodeBusy {
			t.Fatalf("last error got=%d", c.LastError())
		}

		if _, err := c.ReadFWRegister(0x01); err != nil {
			t.Fatalf("next operation err=%v", err)
		}
		if c.LastError() != protocol.CodeOK {
			t.Fatalf("last error not cleared: %d", c.LastError())
		}
	})

	t.Run("IOError", func(t *testing.T) {
		r := newRig(t)
		c := newController(t, r.link, 0)

		r.dev.Unplug()
		_, err := c.ReadFWRegister(0x01)
		if !errors.Is(err, protocol.ErrIO) {
			t.Fatalf("expected ErrIO, got %v", err)
		}
		if c.LastError() != protocol.CodeIO {
			t.Fatalf("last error got=%d", c.LastError())
		}
	})

	t.Run("VirtualChannelsDoNotInterleave", func(t *testing.T) {
		r := newRig(t)

		shared, err := r.reg.Attach("sim@0x48", 1, nil)
		if err != nil {
			t.Fatalf("Attach vc1 err=%v", err)
		}
		if shared != r.link {
			t.Fatalf("vc1 did not share the vc0 link")
		}

		c0 := newController(t, r.link, 0)
		c1 := newController(t, shared, 1)

		const rounds = 20
		var g errgroup.Group
		for i, c := range []isp.Controller{c0, c1} {
			c := c
			base := uint16(0x1000 * (i + 1))
			g.Go(func() error {
				buf := make([]byte, 48)
				for j := 0; j < rounds; j++ {
					for k := range buf {
						buf[k] = byte(j + k)
					}
					if err := c.WriteHWRegisters(base, buf); err != nil {
						return err
					}
					if err := c.ReadHWRegisters(base, buf); err != nil {
						return err
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatalf("concurrent operations err=%v", err)
		}

		r.noViolations(t)
		if got := len(r.dev.Recorder().Ops()); got != 2*2*rounds {
			t.Fatalf("completed operations got=%d want=%d", got, 4*rounds)
		}
		checkFraming(t, r.dev.Recorder().StatusTriggers(protocol.ESP876Registers.Status))
	})
}

// checkFraming asserts the status triggers form whole operations:
// 0x80 0x01 [0x01] (0x03)* 0xF0, repeated. The optional second 0x01 is a
// write acknowledging its first window.
func checkFraming(t *testing.T, triggers []byte) {
	t.Helper()

	want := protocol.StatusReadyEnter
	acked := false
	for i, v := range triggers {
		switch {
		case v == want:
		case want == protocol.StatusContinue && v == protocol.StatusCloseEnter:
		case want == protocol.StatusContinue && v == protocol.StatusAcceptedEnter && !acked:
		default:
			t.Fatalf("trigger %d: got 0x%02X want 0x%02X (%X)", i, v, want, triggers)
		}

		switch v {
		case protocol.StatusReadyEnter:
			want = protocol.StatusAcceptedEnter
			acked = false
		case protocol.StatusAcceptedEnter:
			if want == protocol.StatusContinue {
				acked = true
			}
			want = protocol.StatusContinue
		case protocol.StatusContinue:
			acked = true
			want = protocol.StatusContinue
		case protocol.StatusCloseEnter:
			want = protocol.StatusReadyEnter
		}
	}
	if want != protocol.StatusReadyEnter {
		t.Fatalf("trailing open operation in %X", triggers)
	}
}
