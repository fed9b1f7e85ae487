package stream

import "slices"

type State int

const (
	StateUninitialized State = iota
	StateActive
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateActive:
		return "Active"
	case StateFinished:
		return "Finished"
	default:
		return "Unknown"
	}
}

// validTransitions Finished 是终态
var validTransitions = map[State][]State{
	StateUninitialized: {StateActive, StateFinished},
	StateActive:        {StateFinished},
}

// CanTransition reports whether from -> to is legal.
func CanTransition(from, to State) bool {
	validTo, ok := validTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(validTo, to)
}
