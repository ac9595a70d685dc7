package cache

import "golang.org/x/sync/singleflight"

// Tracker coalesces concurrent requests that share a logical identity.
// While a request for a key is in flight, additional callers for the same
// key block on the original call instead of issuing duplicates; every
// caller observes the same outcome, including failure. The key is released
// when the call settles, so a later request executes fresh.
type Tracker struct {
	group singleflight.Group
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Track executes fn under key, deduplicating concurrent calls.
func (t *Tracker) Track(key string, fn func() (any, error)) (any, error) {
	v, err, _ := t.group.Do(key, fn)
	return v, err
}

// Forget drops the in-flight entry for key so the next Track call executes
// fn even if an earlier call has not settled. Rarely needed; exposed for
// explicit cache-busting paths.
func (t *Tracker) Forget(key string) {
	t.group.Forget(key)
}
