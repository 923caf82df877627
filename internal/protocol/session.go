// internal/protocol/session.go
package protocol

import (
	"github.com/rs/zerolog"

	"github.com/tamzrod/isp-bridge/internal/transport"
)

// Session is the protocol view of a Link while its lock is held.
// It lives for exactly one operation; retry counters are never shared.
type Session struct {
	tr   transport.Transport
	cfg  Config
	regs RegisterMap
	op   string
	log  zerolog.Logger

	phase        Phase
	readyRetries int
}

// Phase reports where the operation currently is.
func (s *Session) Phase() Phase { return s.phase }

func (s *Session) enter(p Phase) {
	s.phase = p
	s.log.Trace().Str("phase", p.String()).Msg("phase")
}

func (s *Session) sleep() {
	if s.cfg.PollInterval > 0 {
		s.cfg.Sleep(s.cfg.PollInterval)
	}
}

func (s *Session) fail(kind error, reg uint16, cause error) error {
	failedIn := s.phase
	s.phase = PhaseFailed
	return &OpError{
		Op:    s.op,
		Phase: failedIn,
		Reg:   reg,
		Kind:  kind,
		Err:   cause,
	}
}

// Close waits for the device to acknowledge the end of the operation.
func (s *Session) Close() error {
	s.enter(PhaseWaitClose)
	if err := s.WaitFor(s.regs.Status, StatusCloseEnter, StatusCloseLeave); err != nil {
		return err
	}
	s.enter(PhaseDone)
	return nil
}
