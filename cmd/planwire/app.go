package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360studio/planwire/api"
	"github.com/c360studio/planwire/backoff"
	"github.com/c360studio/planwire/config"
	"github.com/c360studio/planwire/persist"
	"github.com/c360studio/planwire/plan"
	"github.com/c360studio/planwire/protocol"
	"github.com/c360studio/planwire/realtime"
	"github.com/c360studio/planwire/session"
)

// App is the terminal client that wires together all components.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	client   *api.Client
	manager  *realtime.Manager
	recorder *persist.Recorder
	session  *session.Session
	refresh  *backoff.Debouncer[struct{}]
}

// NewApp creates a new application instance.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	client, err := api.NewClient(api.Options{
		BaseURL:  cfg.API.BaseURL,
		Timeout:  cfg.API.Timeout,
		CacheTTL: cfg.Cache.TTL,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}

	endpoint, err := realtime.ResolveEndpoint(
		cfg.Realtime.Host, cfg.API.BaseURL, cfg.Realtime.FallbackHost,
		cfg.Realtime.Path, cfg.Realtime.Secure)
	if err != nil {
		return nil, fmt.Errorf("resolve realtime endpoint: %w", err)
	}

	manager := realtime.NewManager(realtime.Options{
		Endpoint:             endpoint,
		MaxReconnectAttempts: cfg.Realtime.MaxReconnectAttempts,
		Backoff: backoff.Policy{
			BaseDelay: cfg.Realtime.ReconnectBaseDelay,
			MaxDelay:  cfg.Realtime.ReconnectMaxDelay,
			Factor:    cfg.Realtime.ReconnectFactor,
		},
		Logger:     logger,
		Registerer: prometheus.DefaultRegisterer,
	})

	app := &App{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		manager: manager,
	}

	// The deferred refresh signal invalidates cached plan reads; a
	// debounce coalesces a burst of finals into one invalidation.
	app.refresh = backoff.NewDebouncer(500*time.Millisecond, func(struct{}) {
		client.InvalidatePlans()
		logger.Debug("plan list refreshed")
	})

	app.recorder = persist.NewRecorder(client, persist.Options{
		Refresh:      func() { app.refresh.Call(struct{}{}) },
		RefreshDelay: cfg.Persist.RefreshDelay,
		Logger:       logger,
	})

	app.session = session.New(session.Deps{
		Realtime: manager,
		Backend:  client,
		Recorder: app.recorder,
		Notifier: consoleNotifier{},
		Nav:      consoleNavigator{},
		Logger:   logger,
	})

	return app, nil
}

// Run submits a goal and follows the plan interactively to completion.
func (a *App) Run(ctx context.Context, goal, teamID string) error {
	approvals := make(chan struct{}, 4)
	questions := make(chan plan.ClarificationRequest, 4)
	finished := make(chan struct{}, 1)
	failed := make(chan string, 4)

	a.manager.On(protocol.EventPlanApprovalRequest, func(protocol.Envelope) {
		approvals <- struct{}{}
	})
	a.manager.On(protocol.EventUserClarificationRequest, func(env protocol.Envelope) {
		if p, err := protocol.DecodeClarification(env.Data); err == nil {
			questions <- plan.ClarificationRequest{RequestID: p.RequestID, Question: p.Question}
		}
	})
	a.manager.On(protocol.EventAgentMessage, func(env protocol.Envelope) {
		if p, err := protocol.DecodeAgentMessage(env.Data); err == nil {
			fmt.Printf("[%s] %s\n", p.Agent, p.Content)
		}
	})
	a.manager.On(protocol.EventAgentMessageStreaming, func(env protocol.Envelope) {
		if p, err := protocol.DecodeStreaming(env.Data); err == nil {
			fmt.Print(p.Content)
		}
	})
	a.manager.On(protocol.EventFinalResultMessage, func(env protocol.Envelope) {
		if p, err := protocol.DecodeFinalResult(env.Data); err == nil && p.Terminal() {
			finished <- struct{}{}
		}
	})
	a.manager.On(protocol.EventErrorMessage, func(env protocol.Envelope) {
		failed <- protocol.ExtractErrorText(env.Data)
	})

	if err := a.manager.Connect(ctx); err != nil {
		return err
	}

	created, err := a.session.Start(ctx, goal, teamID)
	if err != nil {
		return err
	}
	fmt.Printf("Plan %s created, waiting for the proposed plan...\n", created.ID)

	stdin := bufio.NewScanner(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-approvals:
			if done, err := a.reviewApproval(ctx, stdin); done || err != nil {
				return err
			}

		case q := <-questions:
			fmt.Printf("\n? %s\n> ", q.Question)
			if !stdin.Scan() {
				return nil
			}
			if err := a.session.AnswerClarification(ctx, strings.TrimSpace(stdin.Text())); err != nil {
				a.logger.Warn("clarification submit failed", "error", err)
			}

		case <-finished:
			a.recorder.Wait()
			fmt.Println("\nPlan completed.")
			return nil

		case text := <-failed:
			fmt.Fprintf(os.Stderr, "\nPlan failed: %s\n", text)
			return fmt.Errorf("plan failed: %s", text)
		}
	}
}

// reviewApproval prints the proposed plan and prompts for a decision.
// Returns done=true when the user rejected and the session navigated
// away.
func (a *App) reviewApproval(ctx context.Context, stdin *bufio.Scanner) (bool, error) {
	snap := a.session.Snapshot()
	if snap.Approval == nil {
		return false, nil
	}

	fmt.Println("\nProposed plan:")
	for i, step := range snap.Approval.Steps {
		if step.Heading {
			fmt.Printf("  %s\n", step.Action)
			continue
		}
		owner := ""
		if step.Agent != "" {
			owner = " (" + step.Agent + ")"
		}
		fmt.Printf("  %2d. %s%s\n", i+1, step.Action, owner)
	}
	if snap.Approval.Facts != "" {
		fmt.Printf("\nContext:\n%s\n", snap.Approval.Facts)
	}

	fmt.Print("\nApprove this plan? [y/N] ")
	if !stdin.Scan() {
		return true, nil
	}
	answer := strings.ToLower(strings.TrimSpace(stdin.Text()))
	if answer == "y" || answer == "yes" {
		if err := a.session.Approve(ctx); err != nil {
			// Controls were re-enabled; the next approval event or a
			// retry can approve again.
			a.logger.Warn("approve failed", "error", err)
			return false, nil
		}
		fmt.Println("Approved. Executing...")
		return false, nil
	}

	fmt.Print("Feedback (optional): ")
	feedback := ""
	if stdin.Scan() {
		feedback = strings.TrimSpace(stdin.Text())
	}
	a.session.Reject(ctx, feedback)
	return true, nil
}

// List prints the known plans.
func (a *App) List(ctx context.Context) error {
	plans, err := a.client.ListPlans(ctx)
	if err != nil {
		return fmt.Errorf("list plans: %w", err)
	}
	if len(plans) == 0 {
		fmt.Println("No plans yet.")
		return nil
	}
	for _, p := range plans {
		fmt.Printf("%-40s %-22s %s\n", p.ID, p.Status, p.Goal)
	}
	return nil
}

// Close releases the realtime connection and pending timers.
func (a *App) Close() {
	a.session.Close()
	a.refresh.Flush()
	a.manager.Disconnect()
}

// consoleNotifier renders toasts on stderr.
type consoleNotifier struct{}

func (consoleNotifier) ShowToast(text, kind string) string {
	fmt.Fprintf(os.Stderr, "[%s] %s\n", kind, text)
	return ""
}

func (consoleNotifier) DismissToast(string) {}

// consoleNavigator is the navigate-away seam for a terminal client.
type consoleNavigator struct{}

func (consoleNavigator) NavigateToList() {
	fmt.Println("Returning to plan list.")
}
