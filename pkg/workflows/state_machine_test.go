package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	sm := NewStateMachine(map[string][]string{
		"DRAFT":   {"PENDING", "DELETED"},
		"PENDING": {"LIVE"},
		"LIVE":    {},
	})

	assert.True(t, sm.CanTransition("DRAFT", "PENDING"))
	assert.True(t, sm.CanTransition("DRAFT", "DELETED"))
	assert.False(t, sm.CanTransition("DRAFT", "LIVE"))
	assert.False(t, sm.CanTransition("LIVE", "DRAFT"), "terminal states allow nothing")
	assert.False(t, sm.CanTransition("UNKNOWN", "PENDING"))
}

func TestGetAllowedTransitions(t *testing.T) {
	sm := NewStateMachine(map[string][]string{"DRAFT": {"PENDING"}})

	assert.Equal(t, []string{"PENDING"}, sm.GetAllowedTransitions("DRAFT"))
	assert.Empty(t, sm.GetAllowedTransitions("UNKNOWN"))
}

func TestIsKnown(t *testing.T) {
	sm := NewStateMachine(map[string][]string{"DRAFT": {}})

	assert.True(t, sm.IsKnown("DRAFT"))
	assert.False(t, sm.IsKnown("BOGUS"))
}
