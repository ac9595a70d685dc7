// Package persist converts finalized in-memory messages into durable
// backend writes and triggers the deferred task-list refresh. Writes are
// best effort: a failed write is logged and the refresh still fires, so a
// persistence outage never hides the user's task from list views.
package persist

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/c360studio/planwire/api"
	"github.com/c360studio/planwire/plan"
)

// DefaultRefreshDelay gives backend-side indexing time to settle before
// the list refresh fires.
const DefaultRefreshDelay = 2 * time.Second

// Writer is the backend surface the recorder needs. *api.Client
// satisfies it.
type Writer interface {
	PersistMessage(ctx context.Context, r api.PersistRequest) error
}

// Recorder persists finalized messages asynchronously. Process never
// blocks the caller on the backend write.
type Recorder struct {
	writer       Writer
	refresh      func()
	refreshDelay time.Duration
	writeTimeout time.Duration
	logger       *slog.Logger

	// wg lets tests and shutdown wait for in-flight writes.
	wg sync.WaitGroup
}

// Options configures a Recorder.
type Options struct {
	// Refresh is invoked once per final message, RefreshDelay after the
	// write outcome is known. Required.
	Refresh func()

	// RefreshDelay defaults to DefaultRefreshDelay.
	RefreshDelay time.Duration

	// WriteTimeout bounds each backend write. Zero means 15s.
	WriteTimeout time.Duration

	// Logger receives write diagnostics; nil means slog.Default.
	Logger *slog.Logger
}

// NewRecorder creates a Recorder writing through w.
func NewRecorder(w Writer, opts Options) *Recorder {
	delay := opts.RefreshDelay
	if delay <= 0 {
		delay = DefaultRefreshDelay
	}
	timeout := opts.WriteTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	refresh := opts.Refresh
	if refresh == nil {
		refresh = func() {}
	}
	return &Recorder{
		writer:       w,
		refresh:      refresh,
		refreshDelay: delay,
		writeTimeout: timeout,
		logger:       logger,
	}
}

// Process fires a backend write for msg and returns immediately. When
// isFinal is set, the refresh signal is scheduled exactly once after the
// write settles, whether it succeeded or not. For the final message,
// buffer carries the full streaming-buffer snapshot so no partial output
// is lost.
func (r *Recorder) Process(msg plan.AgentMessage, p plan.Plan, isFinal bool, buffer string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		// One-shot guard: success and failure paths both reach the
		// scheduling point, but only the first schedules.
		var once sync.Once
		scheduleRefresh := func() {
			if !isFinal {
				return
			}
			once.Do(func() {
				time.AfterFunc(r.refreshDelay, r.refresh)
			})
		}

		ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
		defer cancel()

		err := r.writer.PersistMessage(ctx, api.PersistRequest{
			Message:         msg,
			PlanID:          p.ID,
			SessionID:       p.SessionID,
			IsFinal:         isFinal,
			StreamingBuffer: buffer,
		})
		if err != nil {
			r.logger.Warn("message persistence failed, proceeding",
				"plan_id", p.ID, "message_id", msg.ID, "is_final", isFinal, "error", err)
			scheduleRefresh()
			return
		}

		r.logger.Debug("message persisted", "plan_id", p.ID, "message_id", msg.ID, "is_final", isFinal)
		scheduleRefresh()
	}()
}

// Wait blocks until all in-flight writes have settled. The deferred
// refresh timers may still be pending when Wait returns.
func (r *Recorder) Wait() {
	r.wg.Wait()
}
