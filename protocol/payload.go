package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/c360studio/planwire/plan"
)

// Sentinel errors for payload decoding.
var (
	ErrEmptyPayload   = errors.New("empty payload")
	ErrNoApprovalPlan = errors.New("approval payload has no steps")
)

// StreamingPayload carries one partial "thinking" token fragment for the
// currently executing step.
type StreamingPayload struct {
	Agent   string `json:"agent,omitempty"`
	Content string `json:"content"`
}

// ClarificationPayload carries a mid-execution question from the
// orchestrator.
type ClarificationPayload struct {
	RequestID string `json:"request_id"`
	Question  string `json:"question"`
}

// FinalResultPayload carries the terminal result of a plan.
type FinalResultPayload struct {
	Status  string `json:"status"`
	Agent   string `json:"agent,omitempty"`
	Content string `json:"content,omitempty"`
}

// Terminal reports whether the final result status ends the plan.
func (p FinalResultPayload) Terminal() bool {
	switch strings.ToUpper(p.Status) {
	case "COMPLETED", "DONE", "SUCCESS":
		return true
	default:
		return false
	}
}

// AgentMessagePayload carries a complete (non-streaming) agent message.
type AgentMessagePayload struct {
	Agent   string `json:"agent"`
	Content string `json:"content"`
}

// approvalWire is the wire shape of an approval request. Steps arrive
// either under "steps" or nested under "plan.steps" depending on backend
// version.
type approvalWire struct {
	MPlanID      string             `json:"m_plan_id"`
	Facts        string             `json:"facts,omitempty"`
	Steps        []plan.Step        `json:"steps,omitempty"`
	Participants []plan.Participant `json:"participants,omitempty"`
	Plan         *struct {
		ID    string      `json:"id"`
		Steps []plan.Step `json:"steps"`
	} `json:"plan,omitempty"`
}

// DecodeApproval parses a PLAN_APPROVAL_REQUEST payload into the domain
// ApprovalRequest. Unparsable payloads return an error; the caller drops
// them with a diagnostic rather than failing dispatch.
func DecodeApproval(planID string, raw json.RawMessage) (*plan.ApprovalRequest, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyPayload
	}

	var wire approvalWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode approval payload: %w", err)
	}

	steps := wire.Steps
	mPlanID := wire.MPlanID
	if len(steps) == 0 && wire.Plan != nil {
		steps = wire.Plan.Steps
		if mPlanID == "" {
			mPlanID = wire.Plan.ID
		}
	}
	if len(steps) == 0 {
		return nil, ErrNoApprovalPlan
	}

	return &plan.ApprovalRequest{
		MPlanID:      mPlanID,
		PlanID:       planID,
		Steps:        steps,
		Facts:        wire.Facts,
		Participants: wire.Participants,
	}, nil
}

// DecodeStreaming parses an AGENT_MESSAGE_STREAMING payload. A bare JSON
// string is accepted as the fragment itself.
func DecodeStreaming(raw json.RawMessage) (StreamingPayload, error) {
	if len(raw) == 0 {
		return StreamingPayload{}, ErrEmptyPayload
	}
	var p StreamingPayload
	if err := json.Unmarshal(raw, &p); err == nil && p.Content != "" {
		return p, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return StreamingPayload{Content: s}, nil
	}
	return StreamingPayload{}, fmt.Errorf("decode streaming payload: %s", truncate(raw, 80))
}

// DecodeClarification parses a USER_CLARIFICATION_REQUEST payload.
func DecodeClarification(raw json.RawMessage) (ClarificationPayload, error) {
	var p ClarificationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return ClarificationPayload{}, fmt.Errorf("decode clarification payload: %w", err)
	}
	if p.Question == "" {
		return ClarificationPayload{}, ErrEmptyPayload
	}
	return p, nil
}

// DecodeFinalResult parses a FINAL_RESULT_MESSAGE payload.
func DecodeFinalResult(raw json.RawMessage) (FinalResultPayload, error) {
	var p FinalResultPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return FinalResultPayload{}, fmt.Errorf("decode final result payload: %w", err)
	}
	return p, nil
}

// DecodeAgentMessage parses an AGENT_MESSAGE payload.
func DecodeAgentMessage(raw json.RawMessage) (AgentMessagePayload, error) {
	var p AgentMessagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return AgentMessagePayload{}, fmt.Errorf("decode agent message payload: %w", err)
	}
	return p, nil
}

func truncate(raw []byte, n int) string {
	s := string(raw)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
