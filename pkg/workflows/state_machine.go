package workflows

import "fmt"

// StateMachine enforces status transitions over a closed set of states.
// The table is asymmetric and not transitively closed: a move is valid only
// if the target is listed directly under the current state.
type StateMachine[S ~string] struct {
	allowedTransitions map[S][]S
}

// NewStateMachine creates a state machine from an adjacency table. The table
// is copied so callers cannot mutate it afterwards.
func NewStateMachine[S ~string](table map[S][]S) *StateMachine[S] {
	allowed := make(map[S][]S, len(table))
	for from, targets := range table {
		allowed[from] = append([]S(nil), targets...)
	}
	return &StateMachine[S]{allowedTransitions: allowed}
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine[S]) CanTransition(from, to S) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine[S]) GetAllowedTransitions(from S) []S {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []S{}
	}
	return append([]S(nil), allowed...)
}

// IsTerminal reports whether no transition leaves the given status.
func (sm *StateMachine[S]) IsTerminal(from S) bool {
	return len(sm.allowedTransitions[from]) == 0
}

// Validate returns a *TransitionError when from -> to is not in the table.
func (sm *StateMachine[S]) Validate(from, to S) error {
	if sm.CanTransition(from, to) {
		return nil
	}
	return &TransitionError{From: string(from), To: string(to)}
}

// TransitionError describes a move that is not in the adjacency table.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition %s -> %s is not allowed", e.From, e.To)
}
