// Package plan defines the task-planning domain model: plans, approval
// requests, the conversation log, and clarification requests. Types here
// carry no behavior beyond status transitions; all mutation flows through
// the session state machine.
package plan

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of a plan in its lifecycle.
type Status string

const (
	// StatusCreating indicates a goal was submitted but no approval
	// request has arrived yet.
	StatusCreating Status = "CREATING"
	// StatusAwaitingApproval indicates an approval request is live and
	// waiting for a human decision.
	StatusAwaitingApproval Status = "AWAITING_APPROVAL"
	// StatusInProgress indicates the orchestrator is executing the plan.
	StatusInProgress Status = "IN_PROGRESS"
	// StatusAwaitingClarification indicates execution is paused on a
	// question that needs a human answer.
	StatusAwaitingClarification Status = "AWAITING_CLARIFICATION"
	// StatusCompleted indicates a terminal final result arrived.
	StatusCompleted Status = "COMPLETED"
	// StatusError indicates an unrecoverable protocol or backend error.
	StatusError Status = "ERROR"
	// StatusCancelled indicates the user rejected the approval request.
	StatusCancelled Status = "CANCELLED"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if the status is a known lifecycle status.
func (s Status) IsValid() bool {
	switch s {
	case StatusCreating, StatusAwaitingApproval, StatusInProgress,
		StatusAwaitingClarification, StatusCompleted, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if no further transitions leave the status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// CanTransitionTo returns true if the status may transition to target.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusCreating:
		return target == StatusAwaitingApproval || target == StatusError
	case StatusAwaitingApproval:
		// in_progress on approve success, cancelled on reject
		return target == StatusInProgress || target == StatusCancelled || target == StatusError
	case StatusInProgress:
		return target == StatusAwaitingClarification || target == StatusCompleted || target == StatusError
	case StatusAwaitingClarification:
		// back to in_progress once the answer is accepted
		return target == StatusInProgress || target == StatusError
	default:
		// completed / error / cancelled are terminal
		return false
	}
}

// Plan identifies one task-planning session, tracked end to end from goal
// submission to completion or cancellation. It is never deleted client
// side; it is dropped from memory when the user navigates away.
type Plan struct {
	// ID uniquely identifies the plan (format: p-{uuid})
	ID string `json:"id"`

	// Goal is the user-submitted goal text.
	Goal string `json:"goal"`

	// Status is the current lifecycle state. Mutated only by session
	// transitions.
	Status Status `json:"status"`

	// SessionID ties the plan to its orchestrator session.
	SessionID string `json:"session_id"`

	// TeamID references the agent team executing the plan.
	TeamID string `json:"team_id,omitempty"`
}

// NewID returns a fresh plan identifier.
func NewID() string {
	return "p-" + uuid.NewString()
}

// Step is one entry in a proposed plan.
type Step struct {
	// Action is the free-text description of what the step does.
	Action string `json:"action"`

	// Agent is the owning agent, if assigned.
	Agent string `json:"agent,omitempty"`

	// Heading marks the step as a section heading rather than a substep.
	Heading bool `json:"heading,omitempty"`
}

// Participant describes one member of the executing team.
type Participant struct {
	Agent       string `json:"agent"`
	Description string `json:"description,omitempty"`
}

// ApprovalRequest is an orchestrator-proposed plan awaiting human sign-off.
// It is immutable once received; a newly arriving request fully replaces
// the previous one, and at most one is live per plan.
type ApprovalRequest struct {
	// MPlanID is the orchestrator-side identifier of the proposed plan,
	// echoed back on approve/reject.
	MPlanID string `json:"m_plan_id"`

	// PlanID is the client-side plan this request belongs to.
	PlanID string `json:"plan_id"`

	// Steps is the ordered proposed step sequence.
	Steps []Step `json:"steps"`

	// Facts is optional supporting context gathered by the orchestrator.
	Facts string `json:"facts,omitempty"`

	// Participants describes the team members, if provided.
	Participants []Participant `json:"participants,omitempty"`
}

// MessageKind tags the origin of an AgentMessage.
type MessageKind string

const (
	// KindHuman marks messages authored by the user.
	KindHuman MessageKind = "human"
	// KindAgent marks messages authored by an AI agent.
	KindAgent MessageKind = "agent"
	// KindSystem marks client-synthesized status messages.
	KindSystem MessageKind = "system"
	// KindSystemError marks client-synthesized error messages.
	KindSystemError MessageKind = "system_error"
)

// AgentMessage is one durable, ordered entry in the conversation log.
// Once appended it is never mutated or removed; display order equals
// append order.
type AgentMessage struct {
	// ID uniquely identifies the message (format: m-{uuid})
	ID string `json:"id"`

	// Agent identifies the author (agent name, "user", or "system").
	Agent string `json:"agent"`

	// Kind tags the author type.
	Kind MessageKind `json:"kind"`

	// Timestamp is when the message was appended.
	Timestamp time.Time `json:"timestamp"`

	// Content is the rendered message text.
	Content string `json:"content"`

	// Raw is the opaque originating payload, retained for persistence
	// and replay.
	Raw json.RawMessage `json:"raw,omitempty"`

	// Steps is reserved for future per-message step attachments and is
	// always empty today.
	Steps []Step `json:"steps,omitempty"`
}

// NewMessage constructs an AgentMessage with a fresh ID and timestamp.
func NewMessage(agent string, kind MessageKind, content string, raw json.RawMessage) AgentMessage {
	return AgentMessage{
		ID:        "m-" + uuid.NewString(),
		Agent:     agent,
		Kind:      kind,
		Timestamp: time.Now(),
		Content:   content,
		Raw:       raw,
	}
}

// ClarificationRequest is a pending question from the orchestrator. At
// most one is pending per plan; it is cleared when the user's answer is
// accepted by the backend or superseded by a new request.
type ClarificationRequest struct {
	// RequestID identifies the question for the answer round-trip.
	RequestID string `json:"request_id"`

	// Question is the question text shown to the user.
	Question string `json:"question"`
}
