// Package api is the HTTP client for the orchestrator backend: plan
// creation, approval decisions, clarification answers, message
// persistence, and cache-aware plan reads.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/c360studio/planwire/backoff"
	"github.com/c360studio/planwire/cache"
	"github.com/c360studio/planwire/plan"
)

// Cache key layout for plan reads. Mutations invalidate "plans/**".
const (
	planListKey   = "plans/list"
	planKeyPrefix = "plans/id/"
)

// ErrStatus indicates a non-2xx backend response.
var ErrStatus = errors.New("unexpected backend status")

// Options configures a Client.
type Options struct {
	// BaseURL is the backend HTTP root, e.g. "http://localhost:8080".
	BaseURL string

	// Timeout applies per request. Zero means 30s.
	Timeout time.Duration

	// CacheTTL is the lifetime for cached reads. Zero means cache.DefaultTTL.
	CacheTTL time.Duration

	// Retry is the policy for idempotent reads. Zero value uses defaults.
	Retry backoff.Policy

	// HTTPClient overrides the transport; nil builds one from Timeout.
	HTTPClient *http.Client

	// Logger receives request diagnostics; nil means slog.Default.
	Logger *slog.Logger
}

// Client calls the backend HTTP surface. Reads flow through a TTL cache
// and an in-flight tracker so concurrent identical requests coalesce;
// mutations invalidate cached plan reads.
type Client struct {
	base     *url.URL
	http     *http.Client
	cache    *cache.Cache
	tracker  *cache.Tracker
	cacheTTL time.Duration
	retry    backoff.Policy
	logger   *slog.Logger
}

// NewClient creates a Client for the backend at opts.BaseURL.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base:     base,
		http:     httpClient,
		cache:    cache.New(),
		tracker:  cache.NewTracker(),
		cacheTTL: opts.CacheTTL,
		retry:    opts.Retry,
		logger:   logger,
	}, nil
}

// PlanBundle is the plan-fetch response: the plan plus everything needed
// to resume a session mid-flight.
type PlanBundle struct {
	Plan             plan.Plan             `json:"plan"`
	Messages         []plan.AgentMessage   `json:"messages"`
	Approval         *plan.ApprovalRequest `json:"mplan,omitempty"`
	StreamingMessage string                `json:"streaming_message,omitempty"`
}

// Decision is the approve/reject request body.
type Decision struct {
	MPlanID  string `json:"m_plan_id"`
	PlanID   string `json:"plan_id"`
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback,omitempty"`
}

// ClarificationAnswer is the clarification answer request body.
type ClarificationAnswer struct {
	RequestID string `json:"request_id"`
	Answer    string `json:"answer"`
	PlanID    string `json:"plan_id"`
	MPlanID   string `json:"m_plan_id,omitempty"`
}

// PersistRequest is the message-history write request body.
type PersistRequest struct {
	Message         plan.AgentMessage `json:"message"`
	PlanID          string            `json:"plan_id"`
	SessionID       string            `json:"session_id,omitempty"`
	IsFinal         bool              `json:"is_final"`
	StreamingBuffer string            `json:"streaming_buffer,omitempty"`
}

// CreatePlan submits a goal and returns the created plan. Cached plan
// lists are invalidated.
func (c *Client) CreatePlan(ctx context.Context, goal, teamID string) (*plan.Plan, error) {
	body := map[string]string{"goal": goal, "team_id": teamID}
	var created plan.Plan
	if err := c.do(ctx, http.MethodPost, "/api/plans", body, &created); err != nil {
		return nil, err
	}
	c.cache.Invalidate("plans/**")
	return &created, nil
}

// DecidePlan submits an approve or reject decision.
func (c *Client) DecidePlan(ctx context.Context, d Decision) error {
	if err := c.do(ctx, http.MethodPost, "/api/plans/"+url.PathEscape(d.PlanID)+"/decision", d, nil); err != nil {
		return err
	}
	c.cache.Invalidate("plans/**")
	return nil
}

// SubmitClarification answers a pending clarification request.
func (c *Client) SubmitClarification(ctx context.Context, a ClarificationAnswer) error {
	return c.do(ctx, http.MethodPost, "/api/plans/"+url.PathEscape(a.PlanID)+"/clarification", a, nil)
}

// PersistMessage writes one finalized message to the backend history.
func (c *Client) PersistMessage(ctx context.Context, r PersistRequest) error {
	return c.do(ctx, http.MethodPost, "/api/messages", r, nil)
}

// InitTeam asks the backend to initialize the agent team before a plan is
// created.
func (c *Client) InitTeam(ctx context.Context, teamID string) error {
	body := map[string]string{"team_id": teamID}
	return c.do(ctx, http.MethodPost, "/api/teams/init", body, nil)
}

// GetPlan fetches one plan bundle. Responses are cached; concurrent calls
// for the same plan coalesce into one request.
func (c *Client) GetPlan(ctx context.Context, planID string) (*PlanBundle, error) {
	key := planKeyPrefix + planID
	if bundle, ok := cache.Value[*PlanBundle](c.cache, key); ok {
		return bundle, nil
	}

	v, err := c.tracker.Track(key, func() (any, error) {
		var bundle PlanBundle
		err := backoff.Retry(ctx, c.retry, func(ctx context.Context) error {
			return c.do(ctx, http.MethodGet, "/api/plans/"+url.PathEscape(planID), nil, &bundle)
		})
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, &bundle, c.cacheTTL)
		return &bundle, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*PlanBundle), nil
}

// ListPlans fetches the plan list, cache-aware and deduplicated.
func (c *Client) ListPlans(ctx context.Context) ([]plan.Plan, error) {
	if plans, ok := cache.Value[[]plan.Plan](c.cache, planListKey); ok {
		return plans, nil
	}

	v, err := c.tracker.Track(planListKey, func() (any, error) {
		var out struct {
			Plans []plan.Plan `json:"plans"`
		}
		err := backoff.Retry(ctx, c.retry, func(ctx context.Context) error {
			return c.do(ctx, http.MethodGet, "/api/plans", nil, &out)
		})
		if err != nil {
			return nil, err
		}
		c.cache.Set(planListKey, out.Plans, c.cacheTTL)
		return out.Plans, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]plan.Plan), nil
}

// InvalidatePlans drops cached plan reads. Used by the refresh signal.
func (c *Client) InvalidatePlans() {
	c.cache.Invalidate("plans/**")
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("backend call failed",
			"method", method, "path", path, "status", resp.StatusCode)
		return fmt.Errorf("%w: %s %s returned %d: %s",
			ErrStatus, method, path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
