package qop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
)

func TestSlidingRowWindow(t *testing.T) {
	src := newMockSource[int]()
	op, err := NewSlidingWindow[int](RowWindow, 3)
	require.NoError(t, err)
	sink := newCollector[int](false)
	Connect[int](src, op)
	Connect[int](op, sink)

	src.emitAll(1, 2, 3, 4, 5)

	// each element is emitted once non-outdated, and the first two have
	// been revoked in arrival order
	var live, revoked []int
	for _, e := range sink.all() {
		if e.outdated {
			revoked = append(revoked, e.data)
		} else {
			live = append(live, e.data)
		}
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, live)
	assert.Equal(t, []int{1, 2}, revoked)
}

func TestSlidingRowWindowEvictsBeforeForward(t *testing.T) {
	src := newMockSource[int]()
	op, err := NewSlidingWindow[int](RowWindow, 2)
	require.NoError(t, err)
	sink := newCollector[int](false)
	Connect[int](src, op)
	Connect[int](op, sink)

	src.emitAll(1, 2, 3)

	// the revocation of 1 precedes the forwarding of 3
	all := sink.all()
	require.Len(t, all, 4)
	assert.Equal(t, element[int]{data: 1, outdated: true}, all[2])
	assert.Equal(t, element[int]{data: 3, outdated: false}, all[3])
}

func TestSlidingRangeWindow(t *testing.T) {
	type timed struct {
		ts  stream.Timestamp
		val int
	}
	extract := func(e timed) stream.Timestamp { return e.ts }

	src := newMockSource[timed]()
	// 2 second window over extracted timestamps
	op, err := NewSlidingWindow[timed](RangeWindow, 2, WithTimestampExtractor(extract))
	require.NoError(t, err)
	sink := newCollector[timed](false)
	Connect[timed](src, op)
	Connect[timed](op, sink)

	sec := func(s int) stream.Timestamp { return stream.Timestamp(s) * 1000000 }
	src.emitAll(
		timed{ts: sec(0), val: 1},
		timed{ts: sec(1), val: 2},
		timed{ts: sec(3), val: 3}, // evicts the element at t=0
		timed{ts: sec(10), val: 4},
	)

	var revoked []int
	for _, e := range sink.all() {
		if e.outdated {
			revoked = append(revoked, e.data.val)
		}
	}
	assert.Equal(t, []int{1, 2, 3}, revoked)
}

func TestSlidingRangeWindowRequiresExtractor(t *testing.T) {
	_, err := NewSlidingWindow[int](RangeWindow, 2)
	assert.ErrorIs(t, err, ErrNoTimestampExtractor)
}

func TestSlidingWindowPassesOutdatedThrough(t *testing.T) {
	src := newMockSource[int]()
	op, err := NewSlidingWindow[int](RowWindow, 3)
	require.NoError(t, err)
	sink := newCollector[int](false)
	Connect[int](src, op)
	Connect[int](op, sink)

	src.PublishElement(1, true)

	all := sink.all()
	require.Len(t, all, 1)
	assert.True(t, all[0].outdated)
}

func TestTumblingRowWindow(t *testing.T) {
	src := newMockSource[int]()
	op, err := NewTumblingWindow[int](RowWindow, 3)
	require.NoError(t, err)
	sink := newCollector[int](false)
	Connect[int](src, op)
	Connect[int](op, sink)

	src.emitAll(1, 2, 3)

	// the whole buffer is revoked at once followed by WindowExpired
	var revoked []int
	for _, e := range sink.all() {
		if e.outdated {
			revoked = append(revoked, e.data)
		}
	}
	assert.Equal(t, []int{1, 2, 3}, revoked)
	assert.Equal(t, []stream.PunctuationKind{stream.WindowExpired}, sink.punctuationKinds())

	// the next window starts from scratch
	src.emitAll(4, 5)
	assert.Len(t, sink.punctuationKinds(), 1)
	src.emitAll(6)
	assert.Len(t, sink.punctuationKinds(), 2)
}

func TestTumblingRangeWindow(t *testing.T) {
	type timed struct {
		ts  stream.Timestamp
		val int
	}
	extract := func(e timed) stream.Timestamp { return e.ts }

	src := newMockSource[timed]()
	op, err := NewTumblingWindow[timed](RangeWindow, 2, WithTimestampExtractor(extract))
	require.NoError(t, err)
	sink := newCollector[timed](false)
	Connect[timed](src, op)
	Connect[timed](op, sink)

	sec := func(s int) stream.Timestamp { return stream.Timestamp(s) * 1000000 }
	src.emitAll(
		timed{ts: sec(0), val: 1},
		timed{ts: sec(1), val: 2},
		timed{ts: sec(2), val: 3}, // span reaches the window size
	)

	// all strictly-older elements are revoked, the newest is retained
	var revoked []int
	for _, e := range sink.all() {
		if e.outdated {
			revoked = append(revoked, e.data.val)
		}
	}
	assert.Equal(t, []int{1, 2}, revoked)
	assert.Equal(t, []stream.PunctuationKind{stream.WindowExpired}, sink.punctuationKinds())
}

func TestWindowDropsIncomingPunctuations(t *testing.T) {
	src := newMockSource[int]()
	op, err := NewSlidingWindow[int](RowWindow, 3)
	require.NoError(t, err)
	sink := newCollector[int](false)
	Connect[int](src, op)
	Connect[int](op, sink)

	src.end()
	assert.Empty(t, sink.punctuationKinds())
}

func TestSlidingWindowPeriodicEviction(t *testing.T) {
	type timed struct {
		ts  stream.Timestamp
		val int
	}
	extract := func(e timed) stream.Timestamp { return e.ts }

	src := newMockSource[timed]()
	op, err := NewSlidingWindow[timed](RangeWindow, 1,
		WithTimestampExtractor(extract),
		WithEvictionInterval[timed](20*time.Millisecond))
	require.NoError(t, err)
	defer op.Close()
	sink := newCollector[timed](true)
	Connect[timed](src, op)
	Connect[timed](op, sink)

	// two elements more than a window apart: the second eviction run must
	// revoke the first one without further arrivals
	src.emitAll(timed{ts: 0, val: 1}, timed{ts: 5000000, val: 2})

	waitFor(t, func() bool {
		for _, e := range sink.all() {
			if e.outdated && e.data.val == 1 {
				return true
			}
		}
		return false
	})
}
