package aggr

import "github.com/dbis-ilm/pipefabric-go/pkg/stream"

// GroupState is the bookkeeping interface required from aggregate states used
// in grouped aggregation: a timestamp and the group occupancy counter that
// drives group removal when all contributing elements have been revoked.
type GroupState interface {
	SetTimestamp(ts stream.Timestamp)
	Timestamp() stream.Timestamp
	UpdateCounter(delta int)
	Counter() int
}

// State is the base to embed into aggregate state structs. It carries the
// element timestamp and the occupancy counter.
type State struct {
	ts      stream.Timestamp
	counter int
}

func (s *State) SetTimestamp(ts stream.Timestamp) { s.ts = ts }

func (s *State) Timestamp() stream.Timestamp { return s.ts }

func (s *State) UpdateCounter(delta int) { s.counter += delta }

func (s *State) Counter() int { return s.counter }
