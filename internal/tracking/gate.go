package tracking

import (
	"context"
	"sync"
)

type attemptSlot struct {
	ch   chan struct{}
	refs int
}

// BeginAttempt serializes credential checks for email within this process.
// The caller holds the slot across the lockout check, the password check and
// the Record of the outcome, so the next attempt for the same email counts
// the failure before it decides. release must be called exactly once; extra
// calls are no-ops.
func (t *Tracker) BeginAttempt(ctx context.Context, email string) (release func(), err error) {
	t.slotsMu.Lock()
	slot, ok := t.slots[email]
	if !ok {
		slot = &attemptSlot{ch: make(chan struct{}, 1)}
		t.slots[email] = slot
	}
	slot.refs++
	t.slotsMu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		t.dropSlot(email, slot)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			t.dropSlot(email, slot)
		})
	}, nil
}

func (t *Tracker) dropSlot(email string, slot *attemptSlot) {
	t.slotsMu.Lock()
	defer t.slotsMu.Unlock()

	slot.refs--
	if slot.refs == 0 {
		delete(t.slots, email)
	}
}
