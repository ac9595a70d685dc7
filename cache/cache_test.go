package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetGet(t *testing.T) {
	c := New()
	c.Set("plans/p-1", "hello", time.Minute)

	got, ok := c.Get("plans/p-1")
	require.True(t, ok)
	assert.Equal(t, "hello", got)
}

func TestCache_MissForUnknownKey(t *testing.T) {
	c := New()
	_, ok := c.Get("never-set")
	assert.False(t, ok)
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c := New()
	current := time.Now()
	c.now = func() time.Time { return current }

	c.Set("k", 42, 10*time.Second)

	current = current.Add(10 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok, "entry at exactly ttl is still valid")

	current = current.Add(time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry strictly past ttl must expire")

	// Expired entry was evicted.
	assert.Equal(t, 0, c.Len())
}

func TestCache_DefaultTTL(t *testing.T) {
	c := New()
	current := time.Now()
	c.now = func() time.Time { return current }

	c.Set("k", "v", 0)

	current = current.Add(DefaultTTL - time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	current = current.Add(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestCache_InvalidatePattern(t *testing.T) {
	c := New()
	c.Set("plans/list", 1, time.Minute)
	c.Set("plans/p-1", 2, time.Minute)
	c.Set("teams/t-1", 3, time.Minute)

	removed := c.Invalidate("plans/**")
	assert.Equal(t, 2, removed)

	_, ok := c.Get("plans/list")
	assert.False(t, ok)
	_, ok = c.Get("teams/t-1")
	assert.True(t, ok, "non-matching keys survive invalidation")
}

func TestCache_ValueTypeMismatch(t *testing.T) {
	c := New()
	c.Set("k", "a string", time.Minute)

	_, ok := Value[int](c, "k")
	assert.False(t, ok)

	s, ok := Value[string](c, "k")
	require.True(t, ok)
	assert.Equal(t, "a string", s)
}

func TestTracker_DeduplicatesConcurrentCalls(t *testing.T) {
	tr := NewTracker()

	var executions atomic.Int32
	release := make(chan struct{})

	const callers = 16
	var wg sync.WaitGroup
	results := make([]any, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = tr.Track("plans/list", func() (any, error) {
				executions.Add(1)
				<-release
				return "payload", nil
			})
		}(i)
	}

	// Let all callers pile onto the in-flight entry before releasing.
	require.Eventually(t, func() bool {
		return executions.Load() == 1
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), executions.Load(), "exactly one underlying call")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "payload", results[i])
	}
}

func TestTracker_SharedFailure(t *testing.T) {
	tr := NewTracker()
	boom := errors.New("backend down")

	var executions atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = tr.Track("same-key", func() (any, error) {
				executions.Add(1)
				<-release
				return nil, boom
			})
		}(i)
	}

	require.Eventually(t, func() bool {
		return executions.Load() == 1
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < 4; i++ {
		assert.ErrorIs(t, errs[i], boom, "all callers share the failure")
	}
}

func TestTracker_KeyReleasedAfterSettle(t *testing.T) {
	tr := NewTracker()

	var executions atomic.Int32
	run := func() (any, error) {
		executions.Add(1)
		return nil, nil
	}

	_, err := tr.Track("k", run)
	require.NoError(t, err)
	_, err = tr.Track("k", run)
	require.NoError(t, err)

	assert.Equal(t, int32(2), executions.Load(), "sequential calls execute independently")
}
