package replay

// State is the lifecycle stage of a Driver.
type State int32

// A Driver moves Idle -> Loaded -> Running and ends in Finished or Aborted.
const (
	StateIdle State = iota
	StateLoaded
	StateRunning
	StateFinished
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoaded:
		return "loaded"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateAborted
}
