// internal/simdev/recorder.go
package simdev

import (
	"fmt"
	"sync"

	"github.com/tamzrod/isp-bridge/internal/protocol"
)

// Access is one register access seen by the device.
type Access struct {
	Write bool
	Addr  uint16
	Val   byte
}

func (a Access) String() string {
	if a.Write {
		return fmt.Sprintf("W %04X=%02X", a.Addr, a.Val)
	}
	return fmt.Sprintf("R %04X=%02X", a.Addr, a.Val)
}

// Op is a completed command.
type Op struct {
	Command protocol.CommandType
	Memory  protocol.MemoryType
}

// Recorder collects accesses, completed commands and protocol violations.
// A violation is anything a correctly serialized host never does, such as
// starting a command while another one is still open.
type Recorder struct {
	mu         sync.Mutex
	accesses   []Access
	ops        []Op
	violations []string
}

func (r *Recorder) add(a Access) {
	r.mu.Lock()
	r.accesses = append(r.accesses, a)
	r.mu.Unlock()
}

func (r *Recorder) done(cmd protocol.CommandType, mem protocol.MemoryType) {
	r.mu.Lock()
	r.ops = append(r.ops, Op{Command: cmd, Memory: mem})
	r.mu.Unlock()
}

func (r *Recorder) violate(format string, args ...any) {
	r.mu.Lock()
	r.violations = append(r.violations, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

// Accesses returns a copy of the recorded accesses.
func (r *Recorder) Accesses() []Access {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Access(nil), r.accesses...)
}

// Ops returns the completed commands in order.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Op(nil), r.ops...)
}

// Violations returns the protocol violations seen so far.
func (r *Recorder) Violations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.violations...)
}

// StatusTriggers returns the values written to reg, in order.
func (r *Recorder) StatusTriggers(reg uint16) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []byte
	for _, a := range r.accesses {
		if a.Write && a.Addr == reg {
			out = append(out, a.Val)
		}
	}
	return out
}

// Reset clears everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.accesses = nil
	r.ops = nil
	r.violations = nil
	r.mu.Unlock()
}
