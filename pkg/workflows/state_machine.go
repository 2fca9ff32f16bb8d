package workflows

// StateMachine enforces status transitions from a closed transition table.
// Each domain entity (proposal, CCR, milestone, contribution) builds one with
// its own table instead of scattering guard conditions across services.
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewStateMachine creates a state machine from an explicit transition table.
func NewStateMachine(transitions map[string][]string) *StateMachine {
	return &StateMachine{allowedTransitions: transitions}
}

// CanTransition checks if a status transition is allowed.
func (sm *StateMachine) CanTransition(from, to string) bool {
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

// GetAllowedTransitions returns the allowed next statuses for a given status.
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}

// IsKnown reports whether the status appears in the transition table at all.
func (sm *StateMachine) IsKnown(status string) bool {
	_, exists := sm.allowedTransitions[status]
	return exists
}
