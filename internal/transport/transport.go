// internal/transport/transport.go
package transport

import (
	"errors"
	"fmt"
)

// Transport is the single-register access contract the protocol engine runs on.
// Addresses are 16-bit, values are 8-bit. There is no multi-byte primitive.
type Transport interface {
	ReadU8(addr uint16) (byte, error)
	WriteU8(addr uint16, val byte) error
}

// Closer is implemented by transports that own an OS or network resource.
type Closer interface {
	Transport
	Close() error
}

// ErrClosed is returned by transports used after Close.
var ErrClosed = errors.New("transport: closed")

// AccessError describes a failed single-register access.
type AccessError struct {
	Op   string // "read" or "write"
	Addr uint16
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("transport: %s 0x%04X: %v", e.Op, e.Addr, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }
