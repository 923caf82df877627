// internal/writer/types.go
package writer

import "github.com/tamzrod/isp-bridge/internal/poller"

// MemoryDest is one memory destination inside a target.
type MemoryDest struct {
	MemoryID uint16
	Offsets  map[string]uint16 // per-kind offset deltas; missing kind => 0
}

// TargetEndpoint is one target endpoint with one or more memory destinations.
type TargetEndpoint struct {
	TargetID uint32
	Endpoint string
	Protocol string
	UnitID   uint8
	Memories []MemoryDest
}

// StatusPlan places one unit's status block in one status memory.
type StatusPlan struct {
	Endpoint   string
	UnitID     uint8
	BaseSlot   uint16
	DeviceName string
}

// Plan is the fully-built write plan for one unit.
type Plan struct {
	UnitID  string
	Targets []TargetEndpoint

	// Status has one entry per target that opted into a status memory;
	// empty when the unit has no status slot.
	Status []StatusPlan
}

// Writer writes poll snapshots into targets.
type Writer interface {
	Write(res poller.PollResult) error
}
