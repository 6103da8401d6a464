package core

// State is the phase of a suite run.
type State int

const (
	StateIdle State = iota
	StateBaselineExecuting
	StateBaselineFailed
	StatePayloadLoop
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBaselineExecuting:
		return "baseline_executing"
	case StateBaselineFailed:
		return "baseline_failed"
	case StatePayloadLoop:
		return "payload_loop"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Observer receives progress from a run. Calls happen on the run's
// goroutine, in order.
type Observer interface {
	OnState(runID string, s State)
	OnResult(runID string, index, total int, r *TestResult)
}
