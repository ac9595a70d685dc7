// Package protocol defines the realtime wire protocol shared with the
// orchestrator backend: the message envelope, the inbound event taxonomy,
// and payload decoding. Unknown event types are ignored for forward
// compatibility, never treated as errors.
package protocol

import (
	"encoding/json"
	"time"
)

// EventType discriminates messages on the realtime connection.
type EventType string

// Inbound event types from the orchestrator.
const (
	EventPlanApprovalRequest      EventType = "PLAN_APPROVAL_REQUEST"
	EventAgentMessageStreaming    EventType = "AGENT_MESSAGE_STREAMING"
	EventUserClarificationRequest EventType = "USER_CLARIFICATION_REQUEST"
	EventAgentToolMessage         EventType = "AGENT_TOOL_MESSAGE"
	EventFinalResultMessage       EventType = "FINAL_RESULT_MESSAGE"
	EventErrorMessage             EventType = "ERROR_MESSAGE"
	EventAgentMessage             EventType = "AGENT_MESSAGE"
)

// EventConnectionStatus is a synthetic local event emitted by the
// connection manager; it never travels on the wire from the backend.
const EventConnectionStatus EventType = "connection_status"

// Outbound message types sent by the client.
const (
	MsgSubscribePlan   EventType = "PLAN_SUBSCRIBE"
	MsgUnsubscribePlan EventType = "PLAN_UNSUBSCRIBE"
)

// Known returns true for event types this client dispatches. Anything
// else is dropped with a diagnostic.
func (t EventType) Known() bool {
	switch t {
	case EventPlanApprovalRequest, EventAgentMessageStreaming,
		EventUserClarificationRequest, EventAgentToolMessage,
		EventFinalResultMessage, EventErrorMessage, EventAgentMessage,
		EventConnectionStatus:
		return true
	default:
		return false
	}
}

// Envelope is the framing for every message on the realtime connection,
// inbound and outbound.
type Envelope struct {
	Type      EventType       `json:"type"`
	PlanID    string          `json:"plan_id,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
}

// DecodeEnvelope parses one raw transport frame.
func DecodeEnvelope(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// NewEnvelope builds an outbound envelope with the payload marshalled into
// Data. A nil payload leaves Data empty.
func NewEnvelope(t EventType, planID string, payload any) (Envelope, error) {
	env := Envelope{Type: t, PlanID: planID, Timestamp: time.Now()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, err
		}
		env.Data = data
	}
	return env, nil
}

// ConnectionStatus is the payload of the synthetic connection_status event.
type ConnectionStatus struct {
	Connected bool `json:"connected"`

	// Attempt is the reconnect attempt count at emission time.
	Attempt int `json:"attempt,omitempty"`
}

// StatusEnvelope builds a local connection_status envelope.
func StatusEnvelope(connected bool, attempt int) Envelope {
	data, _ := json.Marshal(ConnectionStatus{Connected: connected, Attempt: attempt})
	return Envelope{Type: EventConnectionStatus, Data: data, Timestamp: time.Now()}
}
