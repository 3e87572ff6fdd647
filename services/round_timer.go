package services

import (
	"sync"
	"time"
)

// PhaseTimers owns at most one pending deadline per session. Scheduling a
// new deadline replaces the old one; Stop cancels everything and refuses
// later schedules.
type PhaseTimers struct {
	mu      sync.Mutex
	pending map[string]*phaseTimer
	stopped bool
}

type phaseTimer struct {
	timer    *time.Timer
	deadline time.Time
}

func NewPhaseTimers() *PhaseTimers {
	return &PhaseTimers{pending: make(map[string]*phaseTimer)}
}

func (t *PhaseTimers) Schedule(sessionID string, after time.Duration, fire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	if old, ok := t.pending[sessionID]; ok {
		old.timer.Stop()
	}

	pt := &phaseTimer{deadline: time.Now().Add(after)}
	pt.timer = time.AfterFunc(after, func() {
		t.mu.Lock()
		current, ok := t.pending[sessionID]
		if !ok || current != pt || t.stopped {
			t.mu.Unlock()
			return
		}
		delete(t.pending, sessionID)
		t.mu.Unlock()
		fire()
	})
	t.pending[sessionID] = pt
}

func (t *PhaseTimers) Cancel(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pt, ok := t.pending[sessionID]; ok {
		pt.timer.Stop()
		delete(t.pending, sessionID)
	}
}

func (t *PhaseTimers) Pending(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[sessionID]
	return ok
}

// Remaining reports the time left before the session's pending deadline.
func (t *PhaseTimers) Remaining(sessionID string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pt, ok := t.pending[sessionID]
	if !ok {
		return 0, false
	}
	left := time.Until(pt.deadline)
	if left < 0 {
		left = 0
	}
	return left, true
}

func (t *PhaseTimers) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	for id, pt := range t.pending {
		pt.timer.Stop()
		delete(t.pending, id)
	}
}
