package session

import (
	"github.com/c360studio/planwire/plan"
	"github.com/c360studio/planwire/protocol"
)

// OrchestratorAgent names the synthesizer of client-side system entries.
const OrchestratorAgent = "orchestrator"

// onApprovalRequest replaces any live approval request with the new one,
// clears the waiting flag, and enables the approval controls.
func (s *Session) onApprovalRequest(env protocol.Envelope) {
	s.mu.Lock()
	if !s.forCurrentPlan(env) {
		s.mu.Unlock()
		return
	}

	req, err := protocol.DecodeApproval(s.current.ID, env.Data)
	if err != nil {
		s.mu.Unlock()
		// Malformed approval payloads are dropped, never thrown into
		// the dispatch loop.
		s.logger.Warn("dropping unparsable approval request", "error", err)
		return
	}

	s.approval = req
	s.flags.Waiting = false
	s.flags.ApprovalEnabled = true
	s.transition(plan.StatusAwaitingApproval)
	s.mu.Unlock()

	s.scroll.ScrollToLatest()
}

// onStreaming appends a token fragment to the streaming buffer. Fragments
// never individually reach the message log; they are folded in at flush
// time.
func (s *Session) onStreaming(env protocol.Envelope) {
	p, err := protocol.DecodeStreaming(env.Data)
	if err != nil {
		s.logger.Debug("dropping streaming fragment", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.forCurrentPlan(env) {
		return
	}
	s.buffer.WriteString(p.Content)
	s.flags.Buffering = true
}

// onClarification synthesizes a log entry from the question, clears the
// streaming buffer, disables approval and chat input, and pauses the plan
// on the question.
func (s *Session) onClarification(env protocol.Envelope) {
	p, err := protocol.DecodeClarification(env.Data)
	if err != nil {
		s.logger.Warn("dropping unparsable clarification request", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.forCurrentPlan(env) {
		return
	}

	// A new request supersedes any unanswered one.
	s.clarification = &plan.ClarificationRequest{RequestID: p.RequestID, Question: p.Question}
	s.buffer.Reset()
	s.flags.Buffering = false
	s.flags.ApprovalEnabled = false
	s.flags.InputEnabled = false
	s.flags.Processing = false
	s.transition(plan.StatusAwaitingClarification)

	msg := plan.NewMessage(OrchestratorAgent, plan.KindAgent, p.Question, env.Data)
	s.appendMessage(msg, false, "")
}

// onFinalResult handles FINAL_RESULT_MESSAGE. A terminal status completes
// the plan: a celebratory entry is appended, the transport is closed
// exactly once, and the final message plus the full streaming-buffer
// snapshot go to the persistence layer.
func (s *Session) onFinalResult(env protocol.Envelope) {
	p, err := protocol.DecodeFinalResult(env.Data)
	if err != nil {
		s.logger.Warn("dropping unparsable final result", "error", err)
		return
	}

	s.mu.Lock()
	if !s.forCurrentPlan(env) {
		s.mu.Unlock()
		return
	}

	if !p.Terminal() {
		// Interim results read as ordinary agent messages.
		if p.Content != "" {
			msg := plan.NewMessage(messageAgent(p.Agent), plan.KindAgent, p.Content, env.Data)
			s.appendMessage(msg, false, "")
		}
		s.mu.Unlock()
		return
	}

	if s.finalized {
		s.mu.Unlock()
		return
	}
	s.finalized = true

	bufferSnapshot := s.buffer.String()
	s.buffer.Reset()
	s.flags.Buffering = false
	s.flags.Processing = false
	s.flags.ApprovalEnabled = false
	s.flags.InputEnabled = false
	s.transition(plan.StatusCompleted)

	content := "🎉 Plan completed successfully!"
	if p.Content != "" {
		content = "🎉 " + p.Content
	}
	msg := plan.NewMessage(OrchestratorAgent, plan.KindSystem, content, env.Data)
	s.appendMessage(msg, true, bufferSnapshot)
	s.mu.Unlock()

	s.rt.Disconnect()
	s.scroll.ScrollToLatest()
}

// onError synthesizes a system-error log entry from the best-available
// nested error text and drops the controls back to a safe idle state. The
// transport stays open.
func (s *Session) onError(env protocol.Envelope) {
	text := protocol.ExtractErrorText(env.Data)

	s.mu.Lock()
	if !s.forCurrentPlan(env) {
		s.mu.Unlock()
		return
	}

	s.flags.Waiting = false
	s.flags.Buffering = false
	s.flags.Processing = false
	s.flags.ApprovalEnabled = false
	s.flags.InputEnabled = false
	s.transition(plan.StatusError)

	msg := plan.NewMessage(OrchestratorAgent, plan.KindSystemError,
		protocol.FormatErrorContent(text), env.Data)
	s.appendMessage(msg, false, "")
	s.mu.Unlock()

	s.notify.ShowToast(text, ToastError)
}

// onAgentMessage appends a complete agent message. It represents the
// flushed form of any streamed fragments for the step, so the buffer is
// cleared.
func (s *Session) onAgentMessage(env protocol.Envelope) {
	p, err := protocol.DecodeAgentMessage(env.Data)
	if err != nil {
		s.logger.Warn("dropping unparsable agent message", "error", err)
		return
	}

	s.mu.Lock()
	if !s.forCurrentPlan(env) {
		s.mu.Unlock()
		return
	}
	s.buffer.Reset()
	s.flags.Buffering = false
	msg := plan.NewMessage(messageAgent(p.Agent), plan.KindAgent, p.Content, env.Data)
	s.appendMessage(msg, false, "")
	s.mu.Unlock()

	s.scroll.ScrollToLatest()
}

func messageAgent(agent string) string {
	if agent == "" {
		return OrchestratorAgent
	}
	return agent
}
