// internal/protocol/wait_test.go
package protocol

import (
	"errors"
	"testing"
)

func TestWaitFor_FirstReadHit(t *testing.T) {
	f := newFake()
	sc := &sleepCounter{}
	l := NewLink("fake", f, testConfig(sc))

	err := l.Do("wait", func(s *Session) error {
		return s.WaitFor(f.regs.Status, StatusAcceptedEnter, StatusAcceptedLeave)
	})
	if err != nil {
		t.Fatalf("WaitFor err=%v", err)
	}
	if got := f.count(true, f.regs.Status); got != 1 {
		t.Fatalf("status writes got=%d want=1", got)
	}
	if got := f.count(false, f.regs.Status); got != 1 {
		t.Fatalf("status reads got=%d want=1", got)
	}
	// only the sleep before the trigger write
	if sc.n != 1 {
		t.Fatalf("sleeps got=%d want=1", sc.n)
	}
}

func TestWaitFor_NonReadyTriggerFailsBusyOnce(t *testing.T) {
	f := newFake()
	f.stuck[StatusAcceptedEnter] = true
	sc := &sleepCounter{}
	cfg := testConfig(sc)
	cfg.PollBudget = 5
	l := NewLink("fake", f, cfg)

	err := l.Do("wait", func(s *Session) error {
		return s.WaitFor(f.regs.Status, StatusAcceptedEnter, StatusAcceptedLeave)
	})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if got := f.count(true, f.regs.Status); got != 1 {
		t.Fatalf("trigger re-issued: writes=%d", got)
	}
	if got := f.count(false, f.regs.Status); got != 5 {
		t.Fatalf("status reads got=%d want=5", got)
	}
	// one before the write, four between reads
	if sc.n != 5 {
		t.Fatalf("sleeps got=%d want=5", sc.n)
	}
}

func TestWaitFor_DeviceReadyRetriesThenBusy(t *testing.T) {
	f := newFake()
	f.stuck[StatusReadyEnter] = true
	cfg := testConfig(&sleepCounter{})
	cfg.PollBudget = 3
	l := NewLink("fake", f, cfg)

	err := l.Do("wait", func(s *Session) error {
		return s.WaitFor(f.regs.Status, StatusReadyEnter, StatusReadyLeave)
	})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if got := f.count(true, f.regs.Status); got != DefaultReadyRetries {
		t.Fatalf("ready trigger writes got=%d want=%d", got, DefaultReadyRetries)
	}
	if got := f.count(false, f.regs.Status); got != 3*DefaultReadyRetries {
		t.Fatalf("status reads got=%d want=%d", got, 3*DefaultReadyRetries)
	}
	if Code(err) != CodeBusy {
		t.Fatalf("code got=%d want=%d", Code(err), CodeBusy)
	}
}

func TestWaitFor_DeviceReadyRecoversOnRetry(t *testing.T) {
	f := newFake()
	f.ignore[StatusReadyEnter] = 2
	cfg := testConfig(&sleepCounter{})
	cfg.PollBudget = 4
	l := NewLink("fake", f, cfg)

	err := l.Do("wait", func(s *Session) error {
		return s.WaitFor(f.regs.Status, StatusReadyEnter, StatusReadyLeave)
	})
	if err != nil {
		t.Fatalf("WaitFor err=%v", err)
	}
	if got := f.count(true, f.regs.Status); got != 3 {
		t.Fatalf("ready trigger writes got=%d want=3", got)
	}
}

func TestWaitFor_WriteErrorIsFatal(t *testing.T) {
	f := newFake()
	f.failWrite = 1
	l := NewLink("fake", f, testConfig(&sleepCounter{}))

	err := l.Do("wait", func(s *Session) error {
		return s.WaitFor(f.regs.Status, StatusReadyEnter, StatusReadyLeave)
	})
	if !errors.Is(err, ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
	if len(f.log) != 1 {
		t.Fatalf("expected a single access, got %d", len(f.log))
	}
	if Code(err) != CodeIO {
		t.Fatalf("code got=%d want=%d", Code(err), CodeIO)
	}
}

func TestWaitFor_ReadErrorIsFatal(t *testing.T) {
	f := newFake()
	f.readErr = errors.New("bus stuck")
	l := NewLink("fake", f, testConfig(&sleepCounter{}))

	err := l.Do("wait", func(s *Session) error {
		return s.WaitFor(f.regs.Status, StatusReadyEnter, StatusReadyLeave)
	})
	if !errors.Is(err, ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
	if !errors.Is(err, f.readErr) {
		t.Fatalf("cause not wrapped: %v", err)
	}
	if got := f.count(false, f.regs.Status); got != 1 {
		t.Fatalf("read retried: reads=%d", got)
	}
}

func TestWaitFor_NilTransport(t *testing.T) {
	l := NewLink("none", nil, DefaultConfig())

	called := false
	err := l.Do("wait", func(s *Session) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if called {
		t.Fatalf("operation ran without a transport")
	}

	var s *Session
	if err := s.WaitFor(0xF000, StatusReadyEnter, StatusReadyLeave); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("nil session: expected ErrInvalidArgument, got %v", err)
	}
}
