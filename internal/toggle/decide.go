// Package toggle implements the create / remove / switch state machine shared by
// reactions, follows and bookmarks.
package toggle

// State is the current presence of a relation row.
type State struct {
	Present bool
	Payload string
}

// Absent is the state of a relation with no row.
var Absent = State{}

// Present builds a present state carrying payload.
func Present(payload string) State {
	return State{Present: true, Payload: payload}
}

// Transition names the effect of applying a request to a State.
type Transition string

// Known transitions.
const (
	TransitionCreated  Transition = "created"
	TransitionRemoved  Transition = "removed"
	TransitionSwitched Transition = "switched"
	TransitionNone     Transition = "none"
)

// Decide maps the existing state and the requested payload to a transition.
// Relations without a payload always request the empty payload, so they only
// ever create or remove.
func Decide(existing State, payload string) Transition {
	switch {
	case !existing.Present:
		return TransitionCreated
	case existing.Payload == payload:
		return TransitionRemoved
	default:
		return TransitionSwitched
	}
}

// CounterDelta returns the counter change implied by a transition.
func (t Transition) CounterDelta() int64 {
	switch t {
	case TransitionCreated:
		return 1
	case TransitionRemoved:
		return -1
	default:
		return 0
	}
}
