// internal/protocol/doc.go

// Package protocol implements the eSP876 host command protocol on top of a
// single-register transport.
//
// A logical operation is built from three primitives, all run while the
// owning Link's lock is held:
//
//	WaitFor   write a trigger to the status register, poll for the answer
//	Open      device-ready, command byte, option bytes, command-accepted
//	ReadData / WriteData
//	          data phase in windows of WindowSize bytes, each followed by a
//	          continuation handshake except the last
//	Close     close handshake
//
// Multi-byte values never go over the wire directly: every virtual register
// is reached by writing its address to AddrHigh/AddrLow and then accessing
// Data.
//
// Link.Exec runs a whole operation from a Descriptor. Several virtual
// channels of one device share a *Link obtained from a Registry.
package protocol
