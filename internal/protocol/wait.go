// internal/protocol/wait.go
package protocol

import "fmt"

// WaitFor writes trigger to reg and polls reg until it reads target.
//
// A transport failure is fatal and never retried. When the poll budget runs
// out, only the device-ready trigger is re-issued (up to ReadyRetries
// attempts); any other trigger means a command is mid-flight and fails
// with ErrBusy at once.
func (s *Session) WaitFor(reg uint16, trigger, target byte) error {
	if s == nil || s.tr == nil {
		return &OpError{Op: "wait", Kind: ErrInvalidArgument, Err: fmt.Errorf("nil transport")}
	}

	for {
		s.sleep()
		if err := s.tr.WriteU8(reg, trigger); err != nil {
			return s.fail(ErrIO, reg, err)
		}

		ok, err := s.poll(reg, target)
		if err != nil {
			return s.fail(ErrIO, reg, err)
		}
		if ok {
			return nil
		}

		if trigger != StatusReadyEnter {
			return s.fail(ErrBusy, reg, fmt.Errorf(
				"trigger 0x%02X: no 0x%02X after %d polls", trigger, target, s.cfg.PollBudget))
		}

		s.readyRetries++
		if s.readyRetries >= s.cfg.ReadyRetries {
			return s.fail(ErrBusy, reg, fmt.Errorf(
				"device not ready after %d attempts of %d polls", s.readyRetries, s.cfg.PollBudget))
		}
		s.log.Debug().Int("attempt", s.readyRetries).Msg("device-ready timeout, re-issuing")
	}
}

// poll reads reg up to PollBudget times.
func (s *Session) poll(reg uint16, target byte) (bool, error) {
	for i := 0; i < s.cfg.PollBudget; i++ {
		if i > 0 {
			s.sleep()
		}
		v, err := s.tr.ReadU8(reg)
		if err != nil {
			return false, err
		}
		if v == target {
			return true, nil
		}
	}
	return false, nil
}
