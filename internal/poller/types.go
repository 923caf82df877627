// internal/poller/types.go
package poller

import (
	"time"

	"github.com/tamzrod/isp-bridge/internal/protocol"
)

// ReadBlock describes one ISP read and where its registers land.
// Geometry only: no semantics.
type ReadBlock struct {
	Kind string // hw | fw | property

	// hw: register address and byte length; fw: sub-register in Address
	Address uint16
	Length  uint16

	// property
	Entity   byte
	Selector byte
	Request  protocol.Request

	// Dest is the register offset inside the target memory, before the
	// per-kind memory offset.
	Dest uint16
}

// BlockResult is the raw result of a single read.
type BlockResult struct {
	Kind string
	Dest uint16

	// Bytes are packed big-endian two per register; an odd trailing byte
	// lands in the high half.
	Registers []uint16
}

// PollResult is a snapshot produced by one poll cycle.
type PollResult struct {
	UnitID string
	At     time.Time

	// RawErrorCode is the protocol result code of the failed operation.
	// 0 means success.
	RawErrorCode uint16

	Blocks []BlockResult
	Err    error // non-nil means the poll cycle failed
}
