package tracking

import "time"

// FailureCount returns the credential failures for email inside the
// trailing window, measured from now. Email matching is exact.
func (t *Tracker) FailureCount(email string, window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.countFailuresLocked(email, t.now().Add(-window))
}

// ShouldLock reports whether email has reached the lockout threshold inside
// the trailing window.
func (t *Tracker) ShouldLock(email string, window time.Duration) bool {
	if email == "" {
		return false
	}
	return t.FailureCount(email, window) >= t.cfg.LockoutThreshold
}

// Threshold is the configured failure count that triggers a lock.
func (t *Tracker) Threshold() int {
	return t.cfg.LockoutThreshold
}
