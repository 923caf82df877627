// internal/status/tracker.go
package status

// Tracker owns the status state of one unit: it folds poll outcomes and
// the 1 Hz clock into a Snapshot and reports whether anything changed.
// Not safe for concurrent use; the unit's orchestrator goroutine owns it.
type Tracker struct {
	snap Snapshot
}

// NewTracker starts in HealthUnknown.
func NewTracker(vc int) *Tracker {
	return &Tracker{snap: Snapshot{
		Health:         HealthUnknown,
		VirtualChannel: uint16(vc),
	}}
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot { return t.snap }

// Observe records one poll cycle. code is 0 on success.
func (t *Tracker) Observe(code uint16) bool {
	t.snap.Operations++

	if code == 0 {
		// Recovery / OK
		changed := t.snap.Health != HealthOK || t.snap.LastErrorCode != 0 || t.snap.SecondsInError != 0
		t.snap.Health = HealthOK
		t.snap.LastErrorCode = 0
		t.snap.SecondsInError = 0
		return changed
	}

	// seconds_in_error only moves on Tick
	changed := t.snap.Health != HealthError || t.snap.LastErrorCode != code
	t.snap.Health = HealthError
	t.snap.LastErrorCode = code
	return changed
}

// Tick advances seconds_in_error while the unit is not OK. It saturates
// at 65535 and never wraps. A disabled unit does not count.
func (t *Tracker) Tick() bool {
	if t.snap.Health == HealthOK || t.snap.Health == HealthDisabled || t.snap.SecondsInError == 0xFFFF {
		return false
	}
	t.snap.SecondsInError++
	return true
}

// Disable marks the unit as disabled: it is never polled, so only its
// identity and health are published.
func (t *Tracker) Disable() {
	t.snap.Health = HealthDisabled
	t.snap.LastErrorCode = 0
	t.snap.SecondsInError = 0
}
