// Package sampler throttles how often each sensor type may emit a frame.
package sampler

import (
	"sync"
	"time"

	"github.com/banshee-data/sensor.link/internal/sensor"
)

// DefaultMinInterval is the minimum spacing between two emitted frames of
// the same sensor type.
const DefaultMinInterval = 100 * time.Millisecond

// TypeStats summarises the decisions made for one sensor type.
type TypeStats struct {
	Approved     uint64 `json:"approved"`
	Rejected     uint64 `json:"rejected"`
	LastApproved *int64 `json:"last_approved_nanos,omitempty"`
}

type typeState struct {
	last     int64
	emitted  bool
	approved uint64
	rejected uint64
}

// Sampler is a per-sensor-type minimum-interval limiter keyed on the
// sample's own timestamps. It is safe for concurrent use; each ShouldEmit
// call decides and records under the same lock.
type Sampler struct {
	minInterval int64

	mu    sync.Mutex
	state map[sensor.Type]*typeState
}

// New returns a Sampler enforcing minInterval between approvals of the
// same type. A non-positive interval approves every call.
func New(minInterval time.Duration) *Sampler {
	return &Sampler{
		minInterval: int64(minInterval),
		state:       make(map[sensor.Type]*typeState),
	}
}

// MinInterval returns the configured spacing.
func (s *Sampler) MinInterval() time.Duration {
	return time.Duration(s.minInterval)
}

// ShouldEmit reports whether a reading of type t taken at tsNanos may be
// emitted. The first call for a type is always approved; afterwards a call
// is approved when tsNanos is at least MinInterval past the last approved
// timestamp. An approval records tsNanos; a rejection changes nothing but
// the counters. Timestamps earlier than the last approval give a negative
// delta and are rejected.
func (s *Sampler) ShouldEmit(t sensor.Type, tsNanos int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.state[t]
	if !ok {
		st = &typeState{}
		s.state[t] = st
	}

	if st.emitted && !elapsed(st.last, tsNanos, s.minInterval) {
		st.rejected++
		return false
	}

	st.last = tsNanos
	st.emitted = true
	st.approved++
	return true
}

// elapsed reports whether next is at least interval after last. The gap is
// taken as unsigned so it cannot wrap across the full int64 range.
func elapsed(last, next, interval int64) bool {
	if next < last {
		return false
	}
	return uint64(next)-uint64(last) >= uint64(interval)
}

// LastApproved returns the timestamp of the most recent approval for t.
func (s *Sampler) LastApproved(t sensor.Type) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.state[t]
	if !ok || !st.emitted {
		return 0, false
	}
	return st.last, true
}

// Stats returns a snapshot of the per-type counters for every type the
// sampler has seen.
func (s *Sampler) Stats() map[sensor.Type]TypeStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[sensor.Type]TypeStats, len(s.state))
	for t, st := range s.state {
		ts := TypeStats{Approved: st.approved, Rejected: st.rejected}
		if st.emitted {
			last := st.last
			ts.LastApproved = &last
		}
		out[t] = ts
	}
	return out
}

// Reset forgets every recorded timestamp and counter.
func (s *Sampler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = make(map[sensor.Type]*typeState)
}
