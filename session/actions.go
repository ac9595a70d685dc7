package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/c360studio/planwire/api"
	"github.com/c360studio/planwire/plan"
)

// Sentinel errors for user actions.
var (
	ErrNoApprovalPending      = errors.New("no approval request pending")
	ErrNoClarificationPending = errors.New("no clarification request pending")
	ErrSessionActive          = errors.New("a plan session is already active")
)

// Start submits a goal: the team is initialized, the plan is created, the
// goal is echoed into the log, and the realtime subscription is opened.
// The plan starts in CREATING with the waiting flag set.
func (s *Session) Start(ctx context.Context, goal, teamID string) (*plan.Plan, error) {
	s.mu.Lock()
	if s.hasPlan {
		s.mu.Unlock()
		return nil, ErrSessionActive
	}
	s.mu.Unlock()

	if teamID != "" {
		if err := s.backend.InitTeam(ctx, teamID); err != nil {
			return nil, fmt.Errorf("initialize team: %w", err)
		}
	}

	created, err := s.backend.CreatePlan(ctx, goal, teamID)
	if err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}

	s.mu.Lock()
	s.current = *created
	if s.current.Status == "" {
		s.current.Status = plan.StatusCreating
	}
	s.hasPlan = true
	s.finalized = false
	s.flags = Flags{Waiting: true}
	echo := plan.NewMessage("user", plan.KindHuman, goal, nil)
	s.appendMessage(echo, false, "")
	s.mu.Unlock()

	s.rt.Subscribe(created.ID)

	p := *created
	return &p, nil
}

// Load resumes an existing plan from the backend bundle: messages and any
// live approval request are restored, a partially streamed message is
// rehydrated into the buffer, and the subscription is opened. A plan
// already in progress shows the processing indicator.
func (s *Session) Load(ctx context.Context, planID string) error {
	bundle, err := s.backend.GetPlan(ctx, planID)
	if err != nil {
		return fmt.Errorf("fetch plan: %w", err)
	}

	s.mu.Lock()
	s.current = bundle.Plan
	s.hasPlan = true
	s.finalized = bundle.Plan.Status.IsTerminal()
	s.approval = bundle.Approval
	s.clarification = nil
	s.messages = make([]plan.AgentMessage, len(bundle.Messages))
	copy(s.messages, bundle.Messages)
	s.buffer.Reset()
	s.buffer.WriteString(bundle.StreamingMessage)

	s.flags = Flags{}
	switch {
	case bundle.Approval != nil:
		s.flags.ApprovalEnabled = true
	case bundle.Plan.Status == plan.StatusCreating:
		s.flags.Waiting = true
	case bundle.Plan.Status == plan.StatusInProgress:
		s.flags.Processing = true
		s.flags.InputEnabled = true
	}
	s.flags.Buffering = bundle.StreamingMessage != ""
	s.mu.Unlock()

	// Resubscribing re-fetches full plan state server-side, so a gap
	// across a reconnect boundary is recovered here rather than assumed
	// gapless.
	s.rt.Subscribe(planID)
	return nil
}

// Approve accepts the pending approval request. The controls are
// disabled optimistically; on backend failure they are re-enabled, a
// toast is surfaced, and the state does not advance.
func (s *Session) Approve(ctx context.Context) error {
	s.mu.Lock()
	if s.approval == nil {
		s.mu.Unlock()
		return ErrNoApprovalPending
	}
	d := api.Decision{
		MPlanID:  s.approval.MPlanID,
		PlanID:   s.current.ID,
		Approved: true,
	}
	s.flags.ApprovalEnabled = false
	s.mu.Unlock()

	if err := s.backend.DecidePlan(ctx, d); err != nil {
		s.mu.Lock()
		s.flags.ApprovalEnabled = true
		s.mu.Unlock()
		s.notify.ShowToast("Failed to approve plan. Please try again.", ToastError)
		return fmt.Errorf("approve plan: %w", err)
	}

	s.mu.Lock()
	s.transition(plan.StatusInProgress)
	s.flags.Processing = true
	s.flags.InputEnabled = true
	s.mu.Unlock()
	return nil
}

// Reject declines the pending approval request and navigates away. The
// reject call is best-effort cleanup, not a blocking gate: a failure is
// logged and navigation happens regardless.
func (s *Session) Reject(ctx context.Context, feedback string) {
	s.mu.Lock()
	if s.approval == nil {
		s.mu.Unlock()
		s.nav.NavigateToList()
		return
	}
	d := api.Decision{
		MPlanID:  s.approval.MPlanID,
		PlanID:   s.current.ID,
		Approved: false,
		Feedback: feedback,
	}
	s.flags.ApprovalEnabled = false
	s.mu.Unlock()

	if err := s.backend.DecidePlan(ctx, d); err != nil {
		s.logger.Warn("reject call failed, navigating anyway",
			"plan_id", d.PlanID, "error", err)
	}

	s.mu.Lock()
	s.transition(plan.StatusCancelled)
	s.mu.Unlock()

	s.nav.NavigateToList()
	s.Reset()
}

// AnswerClarification submits the user's answer to the pending question.
// The human echo is appended optimistically and kept even when submission
// fails; failure re-enables the input and surfaces a toast without
// rolling the echo back.
func (s *Session) AnswerClarification(ctx context.Context, answer string) error {
	s.mu.Lock()
	if s.clarification == nil {
		s.mu.Unlock()
		return ErrNoClarificationPending
	}
	a := api.ClarificationAnswer{
		RequestID: s.clarification.RequestID,
		Answer:    answer,
		PlanID:    s.current.ID,
	}
	if s.approval != nil {
		a.MPlanID = s.approval.MPlanID
	}
	echo := plan.NewMessage("user", plan.KindHuman, answer, nil)
	s.appendMessage(echo, false, "")
	s.flags.InputEnabled = false
	s.flags.Processing = true
	s.mu.Unlock()

	if err := s.backend.SubmitClarification(ctx, a); err != nil {
		s.mu.Lock()
		s.flags.InputEnabled = true
		s.flags.Processing = false
		s.mu.Unlock()
		s.notify.ShowToast("Failed to submit answer. Please try again.", ToastError)
		return fmt.Errorf("submit clarification: %w", err)
	}

	s.mu.Lock()
	s.clarification = nil
	s.flags.InputEnabled = true
	s.transition(plan.StatusInProgress)
	s.mu.Unlock()
	return nil
}
