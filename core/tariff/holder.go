package tariff

import "sync/atomic"

// Holder publishes the active schedule. Reconfiguration swaps the whole
// schedule atomically; readers always see either the old or the new one.
type Holder struct {
	current atomic.Pointer[Schedule]
}

// NewHolder wraps an initial schedule.
func NewHolder(s *Schedule) *Holder {
	h := &Holder{}
	h.current.Store(s)
	return h
}

// Current returns the active schedule.
func (h *Holder) Current() *Schedule { return h.current.Load() }

// Replace installs a new schedule wholesale.
func (h *Holder) Replace(s *Schedule) { h.current.Store(s) }
