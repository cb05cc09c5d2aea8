package audit

import "time"

// Action identifies the kind of authentication occurrence an Event records.
type Action string

const (
	ActionLoginAttempt             Action = "login_attempt"
	ActionLoginSuccess             Action = "login_success"
	ActionLoginFailure             Action = "login_failure"
	ActionLogout                   Action = "logout"
	ActionSignupAttempt            Action = "signup_attempt"
	ActionSignupSuccess            Action = "signup_success"
	ActionSignupFailure            Action = "signup_failure"
	ActionPasswordResetRequest     Action = "password_reset_request"
	ActionPasswordResetSuccess     Action = "password_reset_success"
	ActionPasswordChange           Action = "password_change"
	ActionEmailVerificationSent    Action = "email_verification_sent"
	ActionEmailVerificationSuccess Action = "email_verification_success"
	ActionTwoFactorEnabled         Action = "two_factor_enabled"
	ActionTwoFactorDisabled        Action = "two_factor_disabled"
	ActionTwoFactorVerification    Action = "two_factor_verification"
	ActionAccountLocked            Action = "account_locked"
	ActionAccountUnlocked          Action = "account_unlocked"
	ActionSessionExpired           Action = "session_expired"
	ActionSuspiciousActivity       Action = "suspicious_activity"
	ActionProfileUpdate            Action = "profile_update"
	ActionSecuritySettingsChange   Action = "security_settings_change"
)

var knownActions = map[Action]struct{}{
	ActionLoginAttempt:             {},
	ActionLoginSuccess:             {},
	ActionLoginFailure:             {},
	ActionLogout:                   {},
	ActionSignupAttempt:            {},
	ActionSignupSuccess:            {},
	ActionSignupFailure:            {},
	ActionPasswordResetRequest:     {},
	ActionPasswordResetSuccess:     {},
	ActionPasswordChange:           {},
	ActionEmailVerificationSent:    {},
	ActionEmailVerificationSuccess: {},
	ActionTwoFactorEnabled:         {},
	ActionTwoFactorDisabled:        {},
	ActionTwoFactorVerification:    {},
	ActionAccountLocked:            {},
	ActionAccountUnlocked:          {},
	ActionSessionExpired:           {},
	ActionSuspiciousActivity:       {},
	ActionProfileUpdate:            {},
	ActionSecuritySettingsChange:   {},
}

// Valid reports whether a belongs to the closed action set.
func (a Action) Valid() bool {
	_, ok := knownActions[a]
	return ok
}

// DeviceInfo is a best-effort guess derived from the User-Agent at record time.
type DeviceInfo struct {
	Type    string `json:"type,omitempty"`
	Browser string `json:"browser,omitempty"`
	OS      string `json:"os,omitempty"`
}

// Location carries the caller-reported timezone.
type Location struct {
	Timezone string `json:"timezone,omitempty"`
}

// Event is the canonical authentication event model shared by the tracker,
// the persisted log and the sinks.
type Event struct {
	ID          string         `json:"id"`
	UserID      string         `json:"userId,omitempty"`
	Email       string         `json:"email,omitempty"`
	Action      Action         `json:"action"`
	Timestamp   time.Time      `json:"timestamp"`
	Success     bool           `json:"success"`
	ErrorReason string         `json:"errorReason,omitempty"`
	IPAddress   string         `json:"ipAddress,omitempty"`
	UserAgent   string         `json:"userAgent,omitempty"`
	Location    *Location      `json:"location,omitempty"`
	DeviceInfo  *DeviceInfo    `json:"deviceInfo,omitempty"`
	SessionID   string         `json:"sessionId,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Timezone returns the recorded timezone, or "" when none was collected.
func (e Event) Timezone() string {
	if e.Location == nil {
		return ""
	}
	return e.Location.Timezone
}
