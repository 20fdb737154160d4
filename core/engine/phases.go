package engine

import (
	"sync"
	"time"
)

// PhaseTimer is an opaque cancellable handle on one scheduled phase
// transition.
type PhaseTimer struct {
	mu        sync.Mutex
	timer     *time.Timer
	fired     bool
	cancelled bool
}

// Cancel stops the timer. It reports true only on the first call that
// actually prevented the callback from firing.
func (p *PhaseTimer) Cancel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelled || p.fired {
		return false
	}
	p.cancelled = true
	if p.timer != nil {
		p.timer.Stop()
	}
	return true
}

// Cancelled reports whether Cancel stopped this timer before it fired.
func (p *PhaseTimer) Cancelled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelled
}

// ScheduledPhaseSet owns the phase-transition timers issued by one planning
// pass. A fresh planning pass builds a new set and cancels the previous one
// as a single step, so two overlapping sets of live timers cannot exist.
type ScheduledPhaseSet struct {
	mu      sync.Mutex
	handles []*PhaseTimer
}

func newScheduledPhaseSet() *ScheduledPhaseSet {
	return &ScheduledPhaseSet{}
}

// Schedule arms a timer firing at the given wall-clock instant. Instants in
// the past are skipped and return nil.
func (s *ScheduledPhaseSet) Schedule(at, now time.Time, fn func()) *PhaseTimer {
	d := at.Sub(now)
	if d <= 0 {
		return nil
	}
	h := &PhaseTimer{}
	h.timer = time.AfterFunc(d, func() {
		h.mu.Lock()
		if h.cancelled {
			h.mu.Unlock()
			return
		}
		h.fired = true
		h.mu.Unlock()
		fn()
	})
	s.mu.Lock()
	s.handles = append(s.handles, h)
	s.mu.Unlock()
	return h
}

// CancelAll cancels every live handle in the set and returns how many were
// actually stopped.
func (s *ScheduledPhaseSet) CancelAll() int {
	s.mu.Lock()
	handles := append([]*PhaseTimer(nil), s.handles...)
	s.mu.Unlock()
	n := 0
	for _, h := range handles {
		if h.Cancel() {
			n++
		}
	}
	return n
}

// Len returns the number of handles issued by this set, fired or not.
func (s *ScheduledPhaseSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}
