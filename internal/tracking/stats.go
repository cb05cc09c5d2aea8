package tracking

import (
	"time"

	"github.com/sxpoptimizer/sxpauth/internal/audit"
)

// Stats are counts over a trailing window.
type Stats struct {
	TotalEvents          int `json:"totalEvents"`
	SuccessfulLogins     int `json:"successfulLogins"`
	FailedLogins         int `json:"failedLogins"`
	Signups              int `json:"signups"`
	PasswordResets       int `json:"passwordResets"`
	SuspiciousActivities int `json:"suspiciousActivities"`
}

// Stats counts events with a timestamp after now-window. It has no side effects.
func (t *Tracker) Stats(window time.Duration) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	since := t.now().Add(-window)
	var s Stats
	for _, event := range t.events {
		if !event.Timestamp.After(since) {
			continue
		}
		s.TotalEvents++
		switch event.Action {
		case audit.ActionLoginSuccess:
			s.SuccessfulLogins++
		case audit.ActionLoginFailure:
			s.FailedLogins++
		case audit.ActionSignupSuccess:
			s.Signups++
		case audit.ActionPasswordResetRequest:
			s.PasswordResets++
		case audit.ActionSuspiciousActivity:
			s.SuspiciousActivities++
		}
	}
	return s
}
