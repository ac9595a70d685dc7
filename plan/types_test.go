package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_IsValid(t *testing.T) {
	valid := []Status{
		StatusCreating, StatusAwaitingApproval, StatusInProgress,
		StatusAwaitingClarification, StatusCompleted, StatusError, StatusCancelled,
	}
	for _, s := range valid {
		assert.True(t, s.IsValid(), "status %s should be valid", s)
	}

	assert.False(t, Status("PENDING").IsValid())
	assert.False(t, Status("").IsValid())
}

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"creating to awaiting approval", StatusCreating, StatusAwaitingApproval, true},
		{"creating to error", StatusCreating, StatusError, true},
		{"creating cannot skip to in progress", StatusCreating, StatusInProgress, false},
		{"awaiting approval to in progress", StatusAwaitingApproval, StatusInProgress, true},
		{"awaiting approval to cancelled", StatusAwaitingApproval, StatusCancelled, true},
		{"awaiting approval to error", StatusAwaitingApproval, StatusError, true},
		{"awaiting approval cannot complete", StatusAwaitingApproval, StatusCompleted, false},
		{"in progress to clarification", StatusInProgress, StatusAwaitingClarification, true},
		{"in progress to completed", StatusInProgress, StatusCompleted, true},
		{"in progress to error", StatusInProgress, StatusError, true},
		{"clarification back to in progress", StatusAwaitingClarification, StatusInProgress, true},
		{"clarification cannot complete directly", StatusAwaitingClarification, StatusCompleted, false},
		{"completed is terminal", StatusCompleted, StatusInProgress, false},
		{"error is terminal", StatusError, StatusCreating, false},
		{"cancelled is terminal", StatusCancelled, StatusAwaitingApproval, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusError.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusInProgress.IsTerminal())
	assert.False(t, StatusAwaitingClarification.IsTerminal())
}

func TestNewMessage(t *testing.T) {
	m := NewMessage("planner", KindAgent, "hello", nil)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "planner", m.Agent)
	assert.Equal(t, KindAgent, m.Kind)
	assert.Equal(t, "hello", m.Content)
	assert.False(t, m.Timestamp.IsZero())
	assert.Empty(t, m.Steps)
}
