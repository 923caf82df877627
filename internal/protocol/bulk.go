// internal/protocol/bulk.go
package protocol

// Window is one contiguous slice of a data-phase buffer.
type Window struct {
	Off     int
	Len     int
	HasNext bool
}

// Windows splits n bytes into windows of at most size bytes.
// n == 0 yields no windows.
func Windows(n, size int) []Window {
	if n <= 0 || size <= 0 {
		return nil
	}

	count := n / size
	rem := n % size

	out := make([]Window, 0, count+1)
	for i := 0; i < count; i++ {
		out = append(out, Window{
			Off:     i * size,
			Len:     size,
			HasNext: i < count-1 || rem != 0,
		})
	}
	if rem != 0 {
		out = append(out, Window{Off: count * size, Len: rem})
	}
	return out
}

// ReadData fills dst from the data virtual register, window by window.
func (s *Session) ReadData(dst []byte) error {
	return s.transfer(dst, false)
}

// WriteData streams src into the data virtual register, window by window.
func (s *Session) WriteData(src []byte) error {
	return s.transfer(src, true)
}

// transfer runs the data phase. The first window of a write is
// acknowledged with a command-accepted handshake; any other window that is
// not the last is followed by a continuation handshake. The caller closes
// after the last window.
func (s *Session) transfer(buf []byte, write bool) error {
	s.enter(PhaseData)
	if len(buf) == 0 {
		return nil
	}

	if err := s.selectVirtual(s.regs.VData); err != nil {
		return err
	}

	for n, w := range Windows(len(buf), WindowSize) {
		for i := w.Off; i < w.Off+w.Len; i++ {
			if write {
				if err := s.tr.WriteU8(s.regs.Data, buf[i]); err != nil {
					return s.fail(ErrIO, s.regs.Data, err)
				}
				continue
			}
			v, err := s.tr.ReadU8(s.regs.Data)
			if err != nil {
				return s.fail(ErrIO, s.regs.Data, err)
			}
			buf[i] = v
		}
		s.sleep()

		s.log.Trace().Int("off", w.Off).Int("len", w.Len).Msg("window done")
		switch {
		case write && n == 0:
			if err := s.WaitFor(s.regs.Status, StatusAcceptedEnter, StatusAcceptedLeave); err != nil {
				return err
			}
		case w.HasNext:
			if err := s.WaitFor(s.regs.Status, StatusContinue, StatusAcceptedLeave); err != nil {
				return err
			}
		}
	}
	return nil
}
