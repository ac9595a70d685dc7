// Package session holds the canonical plan lifecycle state machine. A
// Session exclusively owns the plan, approval request, conversation log,
// clarification request, and streaming buffer; everything else reads
// through Snapshot and mutates only through the defined actions and the
// realtime event handlers wired at construction.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/c360studio/planwire/api"
	"github.com/c360studio/planwire/plan"
	"github.com/c360studio/planwire/protocol"
)

// Toast kinds accepted by Notifier implementations.
const (
	ToastError   = "error"
	ToastSuccess = "success"
	ToastInfo    = "info"
)

// Realtime is the connection-manager surface the session consumes.
// *realtime.Manager satisfies it.
type Realtime interface {
	On(t protocol.EventType, fn func(protocol.Envelope)) func()
	Send(env protocol.Envelope)
	Subscribe(planID string)
	Unsubscribe(planID string)
	Disconnect()
}

// Backend is the HTTP surface the session calls. *api.Client satisfies
// it.
type Backend interface {
	CreatePlan(ctx context.Context, goal, teamID string) (*plan.Plan, error)
	DecidePlan(ctx context.Context, d api.Decision) error
	SubmitClarification(ctx context.Context, a api.ClarificationAnswer) error
	GetPlan(ctx context.Context, planID string) (*api.PlanBundle, error)
	InitTeam(ctx context.Context, teamID string) error
}

// Recorder persists finalized messages. *persist.Recorder satisfies it.
type Recorder interface {
	Process(msg plan.AgentMessage, p plan.Plan, isFinal bool, buffer string)
}

// Notifier is the toast sink consumed by the session.
type Notifier interface {
	ShowToast(text, kind string) string
	DismissToast(id string)
}

// Navigator moves the user away from the current plan view.
type Navigator interface {
	NavigateToList()
}

// Scroller scrolls the conversation view to the latest entry.
type Scroller interface {
	ScrollToLatest()
}

// Deps wires a Session's collaborators. Realtime, Backend, and Recorder
// are required; the UI seams default to no-ops when nil.
type Deps struct {
	Realtime Realtime
	Backend  Backend
	Recorder Recorder
	Notifier Notifier
	Nav      Navigator
	Scroller Scroller
	Logger   *slog.Logger
}

// Flags is the UI-facing control state.
type Flags struct {
	// Waiting is set between goal submission and the first approval
	// request.
	Waiting bool

	// Buffering is set while streaming tokens are accumulating.
	Buffering bool

	// Processing is set while the orchestrator is executing.
	Processing bool

	// ApprovalEnabled gates the approve/reject controls.
	ApprovalEnabled bool

	// InputEnabled gates the chat input.
	InputEnabled bool
}

// Snapshot is a read-only projection of session state for rendering.
type Snapshot struct {
	Plan          *plan.Plan
	Approval      *plan.ApprovalRequest
	Clarification *plan.ClarificationRequest
	Messages      []plan.AgentMessage
	Buffer        string
	Flags         Flags
}

// Session is the plan lifecycle state machine.
type Session struct {
	rt       Realtime
	backend  Backend
	recorder Recorder
	notify   Notifier
	nav      Navigator
	scroll   Scroller
	logger   *slog.Logger

	mu            sync.Mutex
	current       plan.Plan
	hasPlan       bool
	approval      *plan.ApprovalRequest
	clarification *plan.ClarificationRequest
	messages      []plan.AgentMessage
	buffer        strings.Builder
	flags         Flags
	finalized     bool

	unsubs []func()
}

// New creates a Session and registers its realtime event handlers.
func New(deps Deps) *Session {
	s := &Session{
		rt:       deps.Realtime,
		backend:  deps.Backend,
		recorder: deps.Recorder,
		notify:   deps.Notifier,
		nav:      deps.Nav,
		scroll:   deps.Scroller,
		logger:   deps.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.notify == nil {
		s.notify = noopNotifier{}
	}
	if s.nav == nil {
		s.nav = noopNavigator{}
	}
	if s.scroll == nil {
		s.scroll = noopScroller{}
	}

	s.unsubs = []func(){
		s.rt.On(protocol.EventPlanApprovalRequest, s.onApprovalRequest),
		s.rt.On(protocol.EventAgentMessageStreaming, s.onStreaming),
		s.rt.On(protocol.EventUserClarificationRequest, s.onClarification),
		s.rt.On(protocol.EventFinalResultMessage, s.onFinalResult),
		s.rt.On(protocol.EventErrorMessage, s.onError),
		s.rt.On(protocol.EventAgentMessage, s.onAgentMessage),
		// AGENT_TOOL_MESSAGE is currently inert: accepted on the wire
		// but produces no state change.
	}
	return s
}

// Snapshot returns a copy of the current canonical state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Buffer: s.buffer.String(),
		Flags:  s.flags,
	}
	if s.hasPlan {
		p := s.current
		snap.Plan = &p
	}
	if s.approval != nil {
		a := *s.approval
		snap.Approval = &a
	}
	if s.clarification != nil {
		c := *s.clarification
		snap.Clarification = &c
	}
	snap.Messages = make([]plan.AgentMessage, len(s.messages))
	copy(snap.Messages, s.messages)
	return snap
}

// Reset discards all session state unconditionally, including any
// buffered-but-unflushed streaming text, and drops the plan
// subscription. Called on navigation away from the plan view.
func (s *Session) Reset() {
	s.mu.Lock()
	planID := ""
	if s.hasPlan {
		planID = s.current.ID
	}
	s.current = plan.Plan{}
	s.hasPlan = false
	s.approval = nil
	s.clarification = nil
	s.messages = nil
	s.buffer.Reset()
	s.flags = Flags{}
	s.finalized = false
	s.mu.Unlock()

	if planID != "" {
		s.rt.Unsubscribe(planID)
	}
}

// Close unregisters all realtime handlers. The session is unusable
// afterwards.
func (s *Session) Close() {
	for _, off := range s.unsubs {
		off()
	}
	s.unsubs = nil
}

// transition moves the plan status if the lifecycle table allows it; an
// invalid transition is logged and dropped rather than applied.
// Caller holds s.mu.
func (s *Session) transition(target plan.Status) {
	if !s.hasPlan || s.current.Status == target {
		return
	}
	if !s.current.Status.CanTransitionTo(target) {
		s.logger.Warn("dropping invalid status transition",
			"plan_id", s.current.ID, "from", s.current.Status, "to", target)
		return
	}
	s.logger.Debug("plan status transition",
		"plan_id", s.current.ID, "from", s.current.Status, "to", target)
	s.current.Status = target
}

// appendMessage appends to the log and hands the entry to the recorder.
// The log is append-only: entries are never mutated or removed, and
// display order equals append order. Caller holds s.mu.
func (s *Session) appendMessage(msg plan.AgentMessage, isFinal bool, buffer string) {
	s.messages = append(s.messages, msg)
	if s.recorder != nil && s.hasPlan {
		s.recorder.Process(msg, s.current, isFinal, buffer)
	}
}

// forCurrentPlan reports whether an envelope addresses the active plan.
// Envelopes without a plan id are accepted; the backend omits it on
// session-scoped events. Caller holds s.mu.
func (s *Session) forCurrentPlan(env protocol.Envelope) bool {
	if !s.hasPlan {
		return false
	}
	return env.PlanID == "" || env.PlanID == s.current.ID
}

type noopNotifier struct{}

func (noopNotifier) ShowToast(string, string) string { return "" }
func (noopNotifier) DismissToast(string)             {}

type noopNavigator struct{}

func (noopNavigator) NavigateToList() {}

type noopScroller struct{}

func (noopScroller) ScrollToLatest() {}
