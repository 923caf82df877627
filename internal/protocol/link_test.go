// internal/protocol/link_test.go
package protocol

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/isp-bridge/internal/transport"
)

type closingFake struct {
	*fakeTransport
	closed int
}

func (c *closingFake) Close() error {
	c.closed++
	return nil
}

func TestRegistry_SharesLinkAcrossChannels(t *testing.T) {
	r := NewRegistry(DefaultConfig())

	opens := 0
	tr := &closingFake{fakeTransport: newFake()}
	open := func() (transport.Transport, error) {
		opens++
		return tr, nil
	}

	l0, err := r.Attach("i2c-1@0x48", 0, open)
	if err != nil {
		t.Fatalf("Attach vc0 err=%v", err)
	}
	l1, err := r.Attach("i2c-1@0x48", 1, open)
	if err != nil {
		t.Fatalf("Attach vc1 err=%v", err)
	}

	if l0 != l1 {
		t.Fatalf("virtual channels got distinct links")
	}
	if opens != 1 {
		t.Fatalf("transport opened %d times", opens)
	}
	if got := l0.Channels(); len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Fatalf("channels got=%v", got)
	}

	other, err := r.Attach("i2c-1@0x49", 0, open)
	if err != nil {
		t.Fatalf("Attach other err=%v", err)
	}
	if other == l0 {
		t.Fatalf("distinct devices share a link")
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close err=%v", err)
	}
	if tr.closed != 2 {
		t.Fatalf("transport closed %d times, want 2", tr.closed)
	}
	if _, err := r.Attach("i2c-1@0x48", 0, open); err == nil {
		t.Fatalf("attach after close succeeded")
	}
}

func TestRegistry_OpenFailure(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	cause := errors.New("no such bus")

	_, err := r.Attach("i2c-9@0x48", 0, func() (transport.Transport, error) { return nil, cause })
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if _, ok := r.Lookup("i2c-9@0x48"); ok {
		t.Fatalf("failed attach left a link behind")
	}
}

func TestLinkDo_Serializes(t *testing.T) {
	l := NewLink("fake", newFake(), testConfig(&sleepCounter{}))

	var inside, overlaps int32
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			for j := 0; j < 50; j++ {
				err := l.Do(fmt.Sprintf("op-%d", j), func(s *Session) error {
					if atomic.AddInt32(&inside, 1) != 1 {
						atomic.AddInt32(&overlaps, 1)
					}
					defer atomic.AddInt32(&inside, -1)
					return s.WaitFor(s.regs.Status, StatusAcceptedEnter, StatusAcceptedLeave)
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Do err=%v", err)
	}
	if overlaps != 0 {
		t.Fatalf("%d overlapping operations", overlaps)
	}
}

func TestLinkDo_ReleasesOnPanic(t *testing.T) {
	l := NewLink("fake", newFake(), testConfig(&sleepCounter{}))

	func() {
		defer func() { _ = recover() }()
		_ = l.Do("boom", func(*Session) error { panic("boom") })
	}()

	done := make(chan struct{})
	go func() {
		_ = l.Do("after", func(*Session) error { return nil })
		close(done)
	}()
	<-done
}

func TestOpErrorUnwrap(t *testing.T) {
	cause := errors.New("nack")
	err := error(&OpError{Op: "hw-read", Phase: PhaseOpenCommand, Reg: 0xF001, Kind: ErrIO, Err: cause})

	if !errors.Is(err, ErrIO) || !errors.Is(err, cause) {
		t.Fatalf("unwrap failed for %v", err)
	}
	if errors.Is(err, ErrBusy) {
		t.Fatalf("wrong kind matched")
	}
	if Code(err) != CodeIO {
		t.Fatalf("code got=%d", Code(err))
	}
	if Code(nil) != CodeOK {
		t.Fatalf("nil code got=%d", Code(nil))
	}
	if Code(errors.New("other")) != CodeUnknown {
		t.Fatalf("foreign error code got=%d", Code(errors.New("other")))
	}
}
