package settlement

import "finco/settlement/errors"

// State is a settlement's position in the two-phase flow.
type State string

const (
	StateQuoted    State = "quoted"
	StatePrepared  State = "prepared"
	StateProposed  State = "proposed"
	StateExecuting State = "executing"
	StateFinalized State = "finalized"
	StateFailed    State = "failed"
	StateExpired   State = "expired"
)

var transitions = map[State][]State{
	StateQuoted:    {StatePrepared},
	StatePrepared:  {StateProposed, StateFailed, StateExpired},
	StateProposed:  {StateExecuting, StateFailed, StateExpired},
	StateExecuting: {StateFinalized, StateFailed},
}

func (s State) CanTransition(to State) bool {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition returns to if the move is allowed, else InvalidStateTransition.
func (s State) Transition(to State) (State, error) {
	if !s.CanTransition(to) {
		return s, errors.InvalidStateTransition(string(s), string(to))
	}
	return to, nil
}
