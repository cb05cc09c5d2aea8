package tracking

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sxpoptimizer/sxpauth/internal/audit"
	"github.com/sxpoptimizer/sxpauth/internal/device"
)

// Config holds the policy knobs of the tracker.
type Config struct {
	Retention                  time.Duration
	LockoutThreshold           int
	SuspiciousFailureThreshold int
	SuspiciousWindow           time.Duration
	// MaxDerivedDepth bounds how many generations of heuristic-derived events
	// may be produced from a single Record call.
	MaxDerivedDepth int
}

func (c Config) withDefaults() Config {
	if c.Retention <= 0 {
		c.Retention = 90 * 24 * time.Hour
	}
	if c.LockoutThreshold <= 0 {
		c.LockoutThreshold = 5
	}
	if c.SuspiciousFailureThreshold <= 0 {
		c.SuspiciousFailureThreshold = 3
	}
	if c.SuspiciousWindow <= 0 {
		c.SuspiciousWindow = 5 * time.Minute
	}
	if c.MaxDerivedDepth <= 0 {
		c.MaxDerivedDepth = 1
	}
	return c
}

// Input is what a caller knows about an occurrence.
type Input struct {
	UserID      string
	Email       string
	Success     bool
	ErrorReason string
	Metadata    map[string]any
}

// Environment is the request context attached to every event.
type Environment struct {
	IPAddress string
	UserAgent string
	Timezone  string
	SessionID string
}

// Options wires the tracker's collaborators. Only Store is required.
type Options struct {
	Store       *Store
	Dispatcher  *audit.Dispatcher
	Logger      *slog.Logger
	Now         func() time.Time
	Environment func(context.Context) Environment
	// Observe is called for every appended event, including derived ones.
	Observe func(audit.Event)
}

// Tracker owns the in-memory event list and its persisted mirror. All
// mutation happens under mu, so the heuristics inside one Record see a
// consistent log. Flows that read the log, do slow work and then record the
// outcome hold a slot from BeginAttempt for the whole sequence.
type Tracker struct {
	mu     sync.Mutex
	events []audit.Event

	slotsMu sync.Mutex
	slots   map[string]*attemptSlot

	cfg         Config
	store       *Store
	dispatcher  *audit.Dispatcher
	logger      *slog.Logger
	now         func() time.Time
	environment func(context.Context) Environment
	observe     func(audit.Event)
	newID       func() string

	sessionOnce sync.Once
	sessionID   string
}

func New(cfg Config, opts Options) *Tracker {
	t := &Tracker{
		cfg:         cfg.withDefaults(),
		store:       opts.Store,
		dispatcher:  opts.Dispatcher,
		logger:      opts.Logger,
		now:         opts.Now,
		environment: opts.Environment,
		observe:     opts.Observe,
		slots:       make(map[string]*attemptSlot),
		newID:       func() string { return uuid.NewString() },
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.environment == nil {
		t.environment = func(context.Context) Environment { return Environment{} }
	}
	if t.observe == nil {
		t.observe = func(audit.Event) {}
	}
	return t
}

// Load replaces the in-memory list with the persisted one. A read failure is
// logged and leaves the tracker empty.
func (t *Tracker) Load(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.store == nil {
		return
	}
	events, err := t.store.Load(ctx)
	if err != nil {
		t.logger.WarnContext(ctx, "event log load failed", slog.String("component", "tracking"), slog.Any("error", err))
		return
	}
	t.events = events
}

type pending struct {
	event audit.Event
	depth int
}

// Record appends an event for action and runs the suspicious-activity
// heuristics over it. Derived events go through the same queue instead of a
// recursive call, and are only evaluated while depth < MaxDerivedDepth.
// Record never fails; storage problems are logged.
func (t *Tracker) Record(ctx context.Context, action audit.Action, in Input) audit.Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	env := t.collectEnvironment(ctx)
	first := t.newEvent(action, in, env)

	queue := []pending{{event: first}}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		t.appendLocked(ctx, next.event)

		if next.depth >= t.cfg.MaxDerivedDepth {
			continue
		}
		for _, derived := range t.evaluateLocked(next.event) {
			if derived.Action == audit.ActionSuspiciousActivity && next.event.Action == audit.ActionSuspiciousActivity {
				continue
			}
			queue = append(queue, pending{
				event: t.newEvent(derived.Action, derived.Input, env),
				depth: next.depth + 1,
			})
		}
	}

	if removed := t.pruneLocked(); removed > 0 {
		t.persistLocked(ctx)
	}

	return first
}

func (t *Tracker) newEvent(action audit.Action, in Input, env Environment) audit.Event {
	event := audit.Event{
		ID:          t.newID(),
		UserID:      in.UserID,
		Email:       in.Email,
		Action:      action,
		Timestamp:   t.now().UTC().Truncate(time.Millisecond),
		Success:     in.Success,
		ErrorReason: in.ErrorReason,
		IPAddress:   env.IPAddress,
		UserAgent:   env.UserAgent,
		SessionID:   env.SessionID,
		Metadata:    cloneMetadata(in.Metadata),
	}
	if env.Timezone != "" {
		event.Location = &audit.Location{Timezone: env.Timezone}
	}
	if info, ok := t.describeDevice(env.UserAgent); ok {
		event.DeviceInfo = &audit.DeviceInfo{
			Type:    info.Type,
			Browser: info.Browser,
			OS:      info.OS,
		}
	}
	return event
}

// collectEnvironment never fails: a panicking collector yields an empty
// environment and the event is still recorded.
func (t *Tracker) collectEnvironment(ctx context.Context) (env Environment) {
	defer func() {
		if r := recover(); r != nil {
			env = Environment{}
		}
		if env.SessionID == "" {
			env.SessionID = t.fallbackSessionID()
		}
	}()
	return t.environment(ctx)
}

func (t *Tracker) describeDevice(userAgent string) (info device.Info, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			info, ok = device.Info{}, false
		}
	}()
	return device.Parse(userAgent)
}

// fallbackSessionID is created on first use and kept for the tracker's lifetime.
func (t *Tracker) fallbackSessionID() string {
	t.sessionOnce.Do(func() {
		t.sessionID = "session_" + uuid.NewString()
	})
	return t.sessionID
}

func (t *Tracker) appendLocked(ctx context.Context, event audit.Event) {
	t.events = append(t.events, event)
	t.persistLocked(ctx)
	t.dispatcher.Emit(ctx, event)
	t.observe(event)
}

func (t *Tracker) persistLocked(ctx context.Context) {
	if t.store == nil {
		return
	}
	if err := t.store.Save(ctx, t.events); err != nil {
		t.logger.WarnContext(ctx, "event log persist failed", slog.String("component", "tracking"), slog.Any("error", err))
	}
}

func (t *Tracker) pruneLocked() int {
	cutoff := t.now().Add(-t.cfg.Retention)
	kept := t.events[:0]
	for _, event := range t.events {
		if event.Timestamp.Before(cutoff) {
			continue
		}
		kept = append(kept, event)
	}
	removed := len(t.events) - len(kept)
	// zero the tail so dropped events can be collected
	for i := len(kept); i < len(t.events); i++ {
		t.events[i] = audit.Event{}
	}
	t.events = kept
	return removed
}

// Prune drops events older than the retention window and returns how many
// were removed.
func (t *Tracker) Prune(ctx context.Context) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := t.pruneLocked()
	if removed > 0 {
		t.persistLocked(ctx)
	}
	return removed
}

// Clear empties the log. It is the only way besides retention to remove events.
func (t *Tracker) Clear(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.events = nil
	t.persistLocked(ctx)
}

// Events returns a copy of the log in append order.
func (t *Tracker) Events() []audit.Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]audit.Event, len(t.events))
	copy(out, t.events)
	return out
}

// Recent returns up to limit events, newest first.
func (t *Tracker) Recent(limit int) []audit.Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit <= 0 || limit > len(t.events) {
		limit = len(t.events)
	}
	out := make([]audit.Event, 0, limit)
	for i := len(t.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, t.events[i])
	}
	return out
}

// ForUser returns the events recorded for userID, newest first.
func (t *Tracker) ForUser(userID string) []audit.Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []audit.Event
	for i := len(t.events) - 1; i >= 0; i-- {
		if t.events[i].UserID == userID {
			out = append(out, t.events[i])
		}
	}
	return out
}

func cloneMetadata(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
