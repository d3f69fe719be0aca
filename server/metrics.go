package server

import (
	"sync/atomic"
)

// RoomMetrics tracks one room's counters for monitoring and debugging.
type RoomMetrics struct {
	Admitted    int64 // players admitted (including overwrites)
	Rejected    int64 // admissions refused, any kind
	Moves       int64 // in-cell moves applied
	Transitions int64 // transitions granted
	Leaves      int64 // leaves applied (disconnects included)
	Broadcasts  int64 // frames fanned out to occupants
	StaleDrops  int64 // commands refused after termination
}

func (m *RoomMetrics) IncAdmitted()    { atomic.AddInt64(&m.Admitted, 1) }
func (m *RoomMetrics) IncRejected()    { atomic.AddInt64(&m.Rejected, 1) }
func (m *RoomMetrics) IncMoves()       { atomic.AddInt64(&m.Moves, 1) }
func (m *RoomMetrics) IncTransitions() { atomic.AddInt64(&m.Transitions, 1) }
func (m *RoomMetrics) IncLeaves()      { atomic.AddInt64(&m.Leaves, 1) }
func (m *RoomMetrics) IncBroadcasts()  { atomic.AddInt64(&m.Broadcasts, 1) }
func (m *RoomMetrics) IncStaleDrops()  { atomic.AddInt64(&m.StaleDrops, 1) }

// Snapshot returns a read-only copy for HTTP output.
func (m *RoomMetrics) Snapshot() map[string]any {
	return map[string]any{
		"admitted":    atomic.LoadInt64(&m.Admitted),
		"rejected":    atomic.LoadInt64(&m.Rejected),
		"moves":       atomic.LoadInt64(&m.Moves),
		"transitions": atomic.LoadInt64(&m.Transitions),
		"leaves":      atomic.LoadInt64(&m.Leaves),
		"broadcasts":  atomic.LoadInt64(&m.Broadcasts),
		"stale_drops": atomic.LoadInt64(&m.StaleDrops),
	}
}
