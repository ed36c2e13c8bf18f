package ingest

// State is the lifecycle stage of a run.
type State string

const (
	StateIdle              State = "idle"
	StateFetching          State = "fetching"
	StateNormalizing       State = "normalizing"
	StateValidating        State = "validating"
	StateCheckingIntegrity State = "checking_integrity"
	StateDone              State = "done"
	StateAborted           State = "aborted"
)

var transitions = map[State][]State{
	StateIdle:              {StateFetching},
	StateFetching:          {StateNormalizing, StateAborted},
	StateNormalizing:       {StateValidating, StateAborted},
	StateValidating:        {StateCheckingIntegrity, StateAborted},
	StateCheckingIntegrity: {StateDone},
}

// CanTransition reports whether a run may move from s to next.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true for Done and Aborted.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateAborted
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}
