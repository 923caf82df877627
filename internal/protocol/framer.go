// internal/protocol/framer.go
package protocol

// Open frames the command described by d: device-ready handshake, command
// byte, option bytes, command-accepted handshake. Bytes already written are
// not rolled back on failure; the device drops a half-issued command on its
// next device-ready cycle.
func (s *Session) Open(d Descriptor) error {
	opts, err := d.Options()
	if err != nil {
		return s.fail(ErrInvalidArgument, 0, err)
	}

	s.readyRetries = 0

	s.enter(PhaseWaitDevReady)
	if err := s.WaitFor(s.regs.Status, StatusReadyEnter, StatusReadyLeave); err != nil {
		return err
	}

	s.enter(PhaseOpenCommand)
	if err := s.writeVirtual(s.regs.VRequest, byte(d.Command)); err != nil {
		return err
	}
	for i, b := range opts {
		if err := s.writeVirtual(s.regs.VOptionBase+uint16(i+1), b); err != nil {
			return err
		}
	}

	s.enter(PhaseWaitAccepted)
	return s.WaitFor(s.regs.Status, StatusAcceptedEnter, StatusAcceptedLeave)
}

// selectVirtual points the address window at vreg.
func (s *Session) selectVirtual(vreg uint16) error {
	if err := s.tr.WriteU8(s.regs.AddrHigh, byte(vreg>>8)); err != nil {
		return s.fail(ErrIO, s.regs.AddrHigh, err)
	}
	if err := s.tr.WriteU8(s.regs.AddrLow, byte(vreg)); err != nil {
		return s.fail(ErrIO, s.regs.AddrLow, err)
	}
	return nil
}

func (s *Session) writeVirtual(vreg uint16, v byte) error {
	if err := s.selectVirtual(vreg); err != nil {
		return err
	}
	if err := s.tr.WriteU8(s.regs.Data, v); err != nil {
		return s.fail(ErrIO, s.regs.Data, err)
	}
	return nil
}
