package tracking

import (
	"time"

	"github.com/sxpoptimizer/sxpauth/internal/audit"
)

const (
	reasonRepeatedFailures = "Multiple failed login attempts"
	reasonNewTimezone      = "Login from new timezone"
)

type derivedEvent struct {
	Action audit.Action
	Input  Input
}

// evaluateLocked inspects a just-appended event against the log. It only
// reacts to login outcomes, and it never records anything itself.
func (t *Tracker) evaluateLocked(event audit.Event) []derivedEvent {
	var out []derivedEvent

	switch event.Action {
	case audit.ActionLoginFailure:
		if d, ok := t.repeatedFailuresLocked(event); ok {
			out = append(out, d)
		}
	case audit.ActionLoginSuccess:
		if d, ok := t.newTimezoneLocked(event); ok {
			out = append(out, d)
		}
	}

	return out
}

func (t *Tracker) repeatedFailuresLocked(event audit.Event) (derivedEvent, bool) {
	if event.Email == "" {
		return derivedEvent{}, false
	}

	count := t.countFailuresLocked(event.Email, t.now().Add(-t.cfg.SuspiciousWindow))
	if count < t.cfg.SuspiciousFailureThreshold {
		return derivedEvent{}, false
	}

	return derivedEvent{
		Action: audit.ActionSuspiciousActivity,
		Input: Input{
			UserID:      event.UserID,
			Email:       event.Email,
			Success:     false,
			ErrorReason: reasonRepeatedFailures,
			Metadata: map[string]any{
				"failedAttempts": count,
			},
		},
	}, true
}

func (t *Tracker) newTimezoneLocked(event audit.Event) (derivedEvent, bool) {
	current := event.Timezone()
	if event.UserID == "" || current == "" {
		return derivedEvent{}, false
	}

	for i := len(t.events) - 1; i >= 0; i-- {
		prior := t.events[i]
		if prior.ID == event.ID || prior.Action != audit.ActionLoginSuccess || prior.UserID != event.UserID {
			continue
		}
		previous := prior.Timezone()
		if previous == "" || previous == current {
			continue
		}
		return derivedEvent{
			Action: audit.ActionSuspiciousActivity,
			Input: Input{
				UserID:      event.UserID,
				Email:       event.Email,
				Success:     false,
				ErrorReason: reasonNewTimezone,
				Metadata: map[string]any{
					"newTimezone":      current,
					"previousTimezone": previous,
				},
			},
		}, true
	}

	return derivedEvent{}, false
}

// ReasonCurrentPasswordIncorrect marks a failed password change whose
// current-password check failed. Those count toward lockout like a failed
// login.
const ReasonCurrentPasswordIncorrect = "Current password is incorrect"

func isCredentialFailure(event audit.Event) bool {
	switch event.Action {
	case audit.ActionLoginFailure:
		return true
	case audit.ActionPasswordChange:
		return !event.Success && event.ErrorReason == ReasonCurrentPasswordIncorrect
	}
	return false
}

// countFailuresLocked counts credential failures for email strictly after
// since, ignoring anything before the latest unlock of that email.
func (t *Tracker) countFailuresLocked(email string, since time.Time) int {
	count := 0
	for i := len(t.events) - 1; i >= 0; i-- {
		event := t.events[i]
		if event.Email != email {
			continue
		}
		if event.Action == audit.ActionAccountUnlocked {
			break
		}
		if isCredentialFailure(event) && event.Timestamp.After(since) {
			count++
		}
	}
	return count
}
