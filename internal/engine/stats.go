package engine

import "sync/atomic"

// Stats tracks pipeline accounting. Requests and responses are counted
// at the single dispatch and receipt points of the loop, so a bypassed
// renewal request is recorded exactly like a scheduler-issued one.
type Stats struct {
	requests  atomic.Int64
	responses atomic.Int64
	bypassed  atomic.Int64
	accepted  atomic.Int64
	retried   atomic.Int64
	dropped   atomic.Int64
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	Requests  int64 `json:"requests"`
	Responses int64 `json:"responses"`
	Bypassed  int64 `json:"bypassed"`
	Accepted  int64 `json:"accepted"`
	Retried   int64 `json:"retried"`
	Dropped   int64 `json:"dropped"`
}

// Snapshot returns a copy of all counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Requests:  s.requests.Load(),
		Responses: s.responses.Load(),
		Bypassed:  s.bypassed.Load(),
		Accepted:  s.accepted.Load(),
		Retried:   s.retried.Load(),
		Dropped:   s.dropped.Load(),
	}
}
