package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerificationStateMachine(t *testing.T) {
	sm := NewVerificationStateMachine()

	assert.True(t, sm.CanTransition("pending", "approved"))
	assert.True(t, sm.CanTransition("pending", "rejected"))
	assert.False(t, sm.CanTransition("approved", "rejected"))
	assert.False(t, sm.CanTransition("rejected", "approved"))
	assert.False(t, sm.CanTransition("rejected", "pending"))
	assert.False(t, sm.CanTransition("unknown", "approved"))

	assert.False(t, sm.IsTerminal("pending"))
	assert.True(t, sm.IsTerminal("approved"))
	assert.True(t, sm.IsTerminal("rejected"))
	assert.False(t, sm.IsTerminal("unknown"))

	assert.ElementsMatch(t, []string{"approved", "rejected"}, sm.GetAllowedTransitions("pending"))
	assert.Empty(t, sm.GetAllowedTransitions("missing"))
}
