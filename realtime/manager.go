package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360studio/planwire/backoff"
	"github.com/c360studio/planwire/protocol"
)

// DefaultMaxReconnectAttempts caps reconnection before the manager gives
// up and emits a terminal error event.
const DefaultMaxReconnectAttempts = 5

// Options configures a Manager.
type Options struct {
	// Endpoint is the resolved realtime URL (see ResolveEndpoint).
	Endpoint string

	// MaxReconnectAttempts caps reconnection tries after transport loss.
	// Zero means DefaultMaxReconnectAttempts.
	MaxReconnectAttempts int

	// Backoff is the reconnect delay schedule. Zero value uses defaults.
	Backoff backoff.Policy

	// Dialer opens transport connections; nil means the websocket dialer.
	Dialer Dialer

	// Logger receives connection diagnostics; nil means slog.Default.
	Logger *slog.Logger

	// Registerer receives prometheus metrics; nil disables registration.
	Registerer prometheus.Registerer
}

// State is a read-only snapshot of the connection. Rebuilt on every
// connect; not persisted.
type State struct {
	Connected bool

	// Attempts is the current reconnect attempt count.
	Attempts int

	// SubscribedPlans lists plan IDs tracked for resubscription, sorted.
	SubscribedPlans []string
}

type listener struct {
	id int
	fn func(protocol.Envelope)
}

// Manager owns the single realtime transport: it dials, reads, reconnects
// with backoff, tracks plan subscriptions for replay after reconnect, and
// fans decoded envelopes out to registered listeners. Exactly one
// transport is open at a time; Connect replaces any prior one.
type Manager struct {
	opts    Options
	dialer  Dialer
	logger  *slog.Logger
	metrics *metrics

	mu        sync.Mutex
	conn      Conn
	connected bool
	attempts  int
	gen       int
	closed    bool
	subs      map[string]struct{}
	timer     *time.Timer

	lmu       sync.Mutex
	listeners map[protocol.EventType][]listener
	nextID    int
}

// NewManager creates a Manager. It does not connect.
func NewManager(opts Options) *Manager {
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if opts.Dialer == nil {
		opts.Dialer = WebsocketDialer{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		opts:      opts,
		dialer:    opts.Dialer,
		logger:    opts.Logger,
		metrics:   newMetrics(opts.Registerer),
		subs:      make(map[string]struct{}),
		listeners: make(map[protocol.EventType][]listener),
	}
}

// Connect opens the transport. It returns once the connection is
// established, or the dial error on immediate failure. A prior transport
// is closed and replaced.
func (m *Manager) Connect(ctx context.Context) error {
	conn, err := m.dialer.Dial(ctx, m.opts.Endpoint)
	if err != nil {
		return fmt.Errorf("connect realtime: %w", err)
	}

	m.mu.Lock()
	if m.conn != nil {
		_ = m.conn.Close()
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.conn = conn
	m.connected = true
	m.closed = false
	m.attempts = 0
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	go m.readLoop(conn, gen)

	m.logger.Info("realtime connected", "endpoint", m.opts.Endpoint)
	m.dispatch(protocol.StatusEnvelope(true, 0))
	return nil
}

// On registers a listener for one event type and returns its unsubscribe
// function. Listeners are dispatched in registration order; a panicking
// listener is logged and never aborts dispatch to the rest.
func (m *Manager) On(t protocol.EventType, fn func(protocol.Envelope)) func() {
	m.lmu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners[t] = append(m.listeners[t], listener{id: id, fn: fn})
	m.lmu.Unlock()

	return func() {
		m.lmu.Lock()
		defer m.lmu.Unlock()
		ls := m.listeners[t]
		for i, l := range ls {
			if l.id == id {
				m.listeners[t] = append(ls[:i:i], ls[i+1:]...)
				break
			}
		}
	}
}

// Send writes one envelope to the transport. When disconnected the
// message is dropped with a warning; callers must not assume delivery.
func (m *Manager) Send(env protocol.Envelope) {
	m.mu.Lock()
	conn := m.conn
	connected := m.connected
	m.mu.Unlock()

	if !connected || conn == nil {
		m.metrics.droppedSends.Inc()
		m.logger.Warn("send dropped: not connected", "type", env.Type, "plan_id", env.PlanID)
		return
	}
	if err := conn.WriteJSON(env); err != nil {
		m.logger.Warn("send failed", "type", env.Type, "error", err)
	}
}

// Subscribe tracks planID for resubscription after reconnect and issues
// the subscribe message now if connected. Duplicate subscribes are
// harmless; the backend tolerates them.
func (m *Manager) Subscribe(planID string) {
	m.mu.Lock()
	m.subs[planID] = struct{}{}
	m.mu.Unlock()

	env, _ := protocol.NewEnvelope(protocol.MsgSubscribePlan, planID, nil)
	m.Send(env)
}

// Unsubscribe stops tracking planID and issues the unsubscribe message.
func (m *Manager) Unsubscribe(planID string) {
	m.mu.Lock()
	delete(m.subs, planID)
	m.mu.Unlock()

	env, _ := protocol.NewEnvelope(protocol.MsgUnsubscribePlan, planID, nil)
	m.Send(env)
}

// Disconnect closes the transport, clears subscription tracking, and
// cancels any pending reconnection. Idempotent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.closed = true
	m.connected = false
	m.attempts = 0
	m.subs = make(map[string]struct{})
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// CurrentState returns a snapshot of the connection state.
func (m *Manager) CurrentState() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	plans := make([]string, 0, len(m.subs))
	for id := range m.subs {
		plans = append(plans, id)
	}
	sort.Strings(plans)
	return State{Connected: m.connected, Attempts: m.attempts, SubscribedPlans: plans}
}

// readLoop pumps frames from one transport generation until it fails.
func (m *Manager) readLoop(conn Conn, gen int) {
	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			m.transportLost(gen, err)
			return
		}

		env, err := protocol.DecodeEnvelope(frame)
		if err != nil {
			m.logger.Warn("dropping malformed frame", "error", err)
			continue
		}
		if !env.Type.Known() {
			// Forward compatibility: unknown types are ignored.
			m.logger.Debug("ignoring unknown event type", "type", env.Type)
			continue
		}

		m.metrics.eventsReceived.WithLabelValues(string(env.Type)).Inc()
		m.dispatch(env)
	}
}

// transportLost reacts to a read failure on generation gen. Stale
// generations (already replaced or deliberately closed) are ignored.
func (m *Manager) transportLost(gen int, cause error) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.connected = false
	m.conn = nil
	m.mu.Unlock()

	m.logger.Warn("realtime transport lost", "error", cause)
	m.dispatch(protocol.StatusEnvelope(false, m.CurrentState().Attempts))
	m.scheduleReconnect()
}

func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if m.attempts >= m.opts.MaxReconnectAttempts {
		m.mu.Unlock()
		m.logger.Error("reconnect attempts exhausted", "attempts", m.opts.MaxReconnectAttempts)
		m.dispatch(terminalErrorEnvelope(m.opts.MaxReconnectAttempts))
		return
	}
	attempt := m.attempts
	m.attempts++
	delay := m.opts.Backoff.Delay(attempt)
	m.timer = time.AfterFunc(delay, m.redial)
	m.mu.Unlock()

	m.metrics.reconnectAttempts.Inc()
	m.logger.Info("scheduling reconnect", "attempt", attempt+1, "delay", delay)
}

func (m *Manager) redial() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	conn, err := m.dialer.Dial(context.Background(), m.opts.Endpoint)
	if err != nil {
		m.logger.Warn("reconnect failed", "error", err)
		m.scheduleReconnect()
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	m.conn = conn
	m.connected = true
	m.attempts = 0
	m.gen++
	gen := m.gen
	plans := make([]string, 0, len(m.subs))
	for id := range m.subs {
		plans = append(plans, id)
	}
	sort.Strings(plans)
	m.mu.Unlock()

	go m.readLoop(conn, gen)

	// Replay subscriptions before announcing the connection so listeners
	// observe a fully resubscribed transport.
	for _, id := range plans {
		env, _ := protocol.NewEnvelope(protocol.MsgSubscribePlan, id, nil)
		m.Send(env)
	}

	m.logger.Info("realtime reconnected", "resubscribed", len(plans))
	m.dispatch(protocol.StatusEnvelope(true, 0))
}

// dispatch fans env out to listeners for its type, in registration order.
func (m *Manager) dispatch(env protocol.Envelope) {
	m.lmu.Lock()
	ls := make([]listener, len(m.listeners[env.Type]))
	copy(ls, m.listeners[env.Type])
	m.lmu.Unlock()

	for _, l := range ls {
		m.safeInvoke(l, env)
	}
}

func (m *Manager) safeInvoke(l listener, env protocol.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("listener panic", "type", env.Type, "panic", r)
		}
	}()
	l.fn(env)
}

func terminalErrorEnvelope(attempts int) protocol.Envelope {
	data, _ := json.Marshal(map[string]any{
		"content": fmt.Sprintf("Connection lost: gave up after %d reconnect attempts", attempts),
	})
	return protocol.Envelope{
		Type:      protocol.EventErrorMessage,
		Data:      data,
		Timestamp: time.Now(),
	}
}
