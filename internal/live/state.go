package live

import "fmt"

// State is the connection state of a live session.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether the state ends a session.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateErrored
}

// Active reports whether a session holds resources in this state.
func (s State) Active() bool {
	return s == StateConnecting || s == StateOpen
}

var transitions = map[State][]State{
	StateIdle:       {StateConnecting},
	StateConnecting: {StateOpen, StateClosed, StateErrored},
	StateOpen:       {StateClosed, StateErrored},
	StateClosed:     {StateConnecting},
	StateErrored:    {StateConnecting},
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
