// internal/protocol/errors.go
package protocol

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure returned by the engine matches exactly one of
// these with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrBusy            = errors.New("device busy")
	ErrIO              = errors.New("i/o error")
)

// Result codes reported through LastError and the status block.
// Values follow the Linux errno numbers the device driver historically used.
const (
	CodeOK              uint16 = 0
	CodeIO              uint16 = 5
	CodeBusy            uint16 = 16
	CodeInvalidArgument uint16 = 22
	CodeUnknown         uint16 = 1
)

// OpError describes a failed logical operation.
type OpError struct {
	Op    string // catalog operation, e.g. "hw-read"
	Phase Phase  // phase the operation was in when it failed
	Reg   uint16 // register involved, 0 if none
	Kind  error  // ErrInvalidArgument, ErrBusy or ErrIO
	Err   error  // underlying cause, may be nil
}

func (e *OpError) Error() string {
	msg := fmt.Sprintf("%s: %v in %s", e.Op, e.Kind, e.Phase)
	if e.Reg != 0 {
		msg += fmt.Sprintf(" (reg 0x%04X)", e.Reg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Code returns the numeric result code for the error kind.
func (e *OpError) Code() uint16 {
	return kindCode(e.Kind)
}

func kindCode(kind error) uint16 {
	switch {
	case errors.Is(kind, ErrInvalidArgument):
		return CodeInvalidArgument
	case errors.Is(kind, ErrBusy):
		return CodeBusy
	case errors.Is(kind, ErrIO):
		return CodeIO
	default:
		return CodeUnknown
	}
}

// Code maps any error to a result code. nil is CodeOK.
func Code(err error) uint16 {
	if err == nil {
		return CodeOK
	}
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Code()
	}
	return kindCode(err)
}

func invalid(op string, format string, args ...any) *OpError {
	return &OpError{
		Op:    op,
		Phase: PhaseIdle,
		Kind:  ErrInvalidArgument,
		Err:   fmt.Errorf(format, args...),
	}
}
