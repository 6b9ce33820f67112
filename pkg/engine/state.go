package engine

// State is the lifecycle state of the engine's worker.
type State int

const (
	StateIdle State = iota
	StateStartRequested
	StateRunning
	StateStopRequested
	StateRestartRequested
	// StateFailed follows a failed bind. Start with a new configuration
	// leaves it; Restart does not. Configuration errors return to Idle.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStartRequested:
		return "start requested"
	case StateRunning:
		return "running"
	case StateStopRequested:
		return "stop requested"
	case StateRestartRequested:
		return "restart requested"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Settled reports whether no transition is in progress.
func (s State) Settled() bool {
	return s == StateIdle || s == StateRunning || s == StateFailed
}
