package booking

import "courtbook/internal/model"

// transitions is the complete status table. Cancelled and Completed have no
// outgoing edges, so repeating a terminal transition is rejected.
var transitions = map[model.Status][]model.Status{
	model.StatusPending:   {model.StatusConfirmed, model.StatusCancelled},
	model.StatusConfirmed: {model.StatusCompleted, model.StatusCancelled},
	model.StatusCancelled: nil,
	model.StatusCompleted: nil,
}

// CanTransition checks if the transition is allowed.
func CanTransition(from, to model.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s model.Status) bool {
	return len(transitions[s]) == 0
}
