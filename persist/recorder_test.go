package persist

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/planwire/api"
	"github.com/c360studio/planwire/plan"
)

// fakeWriter records persistence calls and returns a scripted error.
type fakeWriter struct {
	calls atomic.Int32
	err   error
	last  atomic.Pointer[api.PersistRequest]
}

func (w *fakeWriter) PersistMessage(_ context.Context, r api.PersistRequest) error {
	w.calls.Add(1)
	w.last.Store(&r)
	return w.err
}

func testPlan() plan.Plan {
	return plan.Plan{ID: "p-1", SessionID: "s-1", Status: plan.StatusInProgress}
}

func TestRecorder_WritesWithoutBlocking(t *testing.T) {
	w := &fakeWriter{}
	r := NewRecorder(w, Options{Refresh: func() {}, RefreshDelay: time.Millisecond})

	msg := plan.NewMessage("dev", plan.KindAgent, "step output", nil)
	r.Process(msg, testPlan(), false, "")
	r.Wait()

	require.Equal(t, int32(1), w.calls.Load())
	got := w.last.Load()
	assert.Equal(t, "p-1", got.PlanID)
	assert.Equal(t, "s-1", got.SessionID)
	assert.False(t, got.IsFinal)
	assert.Equal(t, "step output", got.Message.Content)
}

func TestRecorder_FinalSchedulesRefreshOnSuccess(t *testing.T) {
	w := &fakeWriter{}
	var refreshes atomic.Int32
	r := NewRecorder(w, Options{
		Refresh:      func() { refreshes.Add(1) },
		RefreshDelay: 5 * time.Millisecond,
	})

	msg := plan.NewMessage("system", plan.KindSystem, "all done", nil)
	r.Process(msg, testPlan(), true, "buffered thinking")
	r.Wait()

	assert.Equal(t, int32(0), refreshes.Load(), "refresh waits for the settle delay")
	require.Eventually(t, func() bool { return refreshes.Load() == 1 }, time.Second, time.Millisecond)

	got := w.last.Load()
	assert.True(t, got.IsFinal)
	assert.Equal(t, "buffered thinking", got.StreamingBuffer)
}

func TestRecorder_FinalSchedulesRefreshOnFailure(t *testing.T) {
	w := &fakeWriter{err: errors.New("backend write refused")}
	var refreshes atomic.Int32
	r := NewRecorder(w, Options{
		Refresh:      func() { refreshes.Add(1) },
		RefreshDelay: time.Millisecond,
	})

	msg := plan.NewMessage("system", plan.KindSystem, "all done", nil)
	r.Process(msg, testPlan(), true, "")
	r.Wait()

	require.Eventually(t, func() bool { return refreshes.Load() == 1 }, time.Second, time.Millisecond)

	// Exactly once even on failure, never a second fire.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), refreshes.Load())
}

func TestRecorder_NonFinalNeverRefreshes(t *testing.T) {
	w := &fakeWriter{}
	var refreshes atomic.Int32
	r := NewRecorder(w, Options{
		Refresh:      func() { refreshes.Add(1) },
		RefreshDelay: time.Millisecond,
	})

	msg := plan.NewMessage("dev", plan.KindAgent, "progress", nil)
	r.Process(msg, testPlan(), false, "")
	r.Wait()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), refreshes.Load())
}

func TestRecorder_EachFinalMessageRefreshesOnce(t *testing.T) {
	w := &fakeWriter{}
	var refreshes atomic.Int32
	r := NewRecorder(w, Options{
		Refresh:      func() { refreshes.Add(1) },
		RefreshDelay: time.Millisecond,
	})

	// Two distinct final messages (e.g. two sessions) each get a signal.
	r.Process(plan.NewMessage("system", plan.KindSystem, "done a", nil), testPlan(), true, "")
	r.Process(plan.NewMessage("system", plan.KindSystem, "done b", nil), testPlan(), true, "")
	r.Wait()

	require.Eventually(t, func() bool { return refreshes.Load() == 2 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), refreshes.Load())
}
