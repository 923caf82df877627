// internal/protocol/phase.go
package protocol

// Phase is a step of the per-operation state machine:
//
//	Idle -> WaitDevReady -> OpenCommand -> WaitAccepted -> [Data] -> WaitClose -> Done
//
// Any failed wait moves straight to Failed.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseWaitDevReady
	PhaseOpenCommand
	PhaseWaitAccepted
	PhaseData
	PhaseWaitClose
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseWaitDevReady:
		return "wait-dev-ready"
	case PhaseOpenCommand:
		return "open-command"
	case PhaseWaitAccepted:
		return "wait-accepted"
	case PhaseData:
		return "data"
	case PhaseWaitClose:
		return "wait-close"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}
