package qop

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
)

func TestWhere(t *testing.T) {
	src := newMockSource[int]()
	op := NewWhere(func(v int, outdated bool) bool { return v%2 == 0 })
	sink := newCollector[int](false)
	Connect[int](src, op)
	Connect[int](op, sink)

	src.emitAll(1, 2, 3, 4, 5, 6)
	src.end()

	assert.Equal(t, []int{2, 4, 6}, sink.values())
	assert.Equal(t, []stream.PunctuationKind{stream.EndOfStream}, sink.punctuationKinds())
}

func TestWherePreservesOutdatedFlag(t *testing.T) {
	src := newMockSource[int]()
	op := NewWhere(func(v int, outdated bool) bool { return true })
	sink := newCollector[int](false)
	Connect[int](src, op)
	Connect[int](op, sink)

	src.PublishElement(1, false)
	src.PublishElement(1, true)

	all := sink.all()
	assert.Len(t, all, 2)
	assert.False(t, all[0].outdated)
	assert.True(t, all[1].outdated)
}

func TestMap(t *testing.T) {
	src := newMockSource[int]()
	op := NewMap(func(v int, outdated bool) string {
		if v%2 == 0 {
			return "even"
		}
		return "odd"
	})
	sink := newCollector[string](false)
	Connect[int](src, op)
	Connect[string](op, sink)

	src.emitAll(1, 2, 3)
	assert.Equal(t, []string{"odd", "even", "odd"}, sink.values())
}

func TestStatefulMap(t *testing.T) {
	type counterState struct{ count int }

	src := newMockSource[int]()
	op := NewStatefulMap(func(v int, outdated bool, s *counterState) int {
		s.count++
		return s.count
	})
	sink := newCollector[int](false)
	Connect[int](src, op)
	Connect[int](op, sink)

	src.emitAll(10, 20, 30)
	assert.Equal(t, []int{1, 2, 3}, sink.values())
}

func TestNotify(t *testing.T) {
	src := newMockSource[int]()
	var seen []int
	var punctSeen int
	op := NewNotify(func(v int, outdated bool) { seen = append(seen, v) },
		func(p *stream.Punctuation) { punctSeen++ })
	sink := newCollector[int](false)
	Connect[int](src, op)
	Connect[int](op, sink)

	src.emitAll(7, 8)
	src.end()

	assert.Equal(t, []int{7, 8}, seen)
	assert.Equal(t, 1, punctSeen)
	assert.Equal(t, []int{7, 8}, sink.values())
}

func TestBatcher(t *testing.T) {
	src := newMockSource[int]()
	op := NewBatcher[int](3)
	sink := newCollector[Batch[int]](false)
	Connect[int](src, op)
	Connect[Batch[int]](op, sink)

	src.emitAll(1, 2, 3, 4, 5)
	// only the full batch has been emitted so far
	batches := sink.values()
	assert.Len(t, batches, 1)
	assert.Equal(t, 3, len(batches[0]))
	assert.Equal(t, 1, batches[0][0].Data)

	// EndOfStream flushes the residual batch
	src.end()
	batches = sink.values()
	assert.Len(t, batches, 2)
	assert.Equal(t, 2, len(batches[1]))
	assert.Equal(t, []stream.PunctuationKind{stream.EndOfStream}, sink.punctuationKinds())
}

func TestMerge(t *testing.T) {
	src1 := newMockSource[int]()
	src2 := newMockSource[int]()
	op := NewMerge[int]()
	sink := newCollector[int](false)
	Connect[int](src1, op)
	Connect[int](src2, op)
	Connect[int](op, sink)

	src1.emitAll(1, 2)
	src2.emitAll(10)
	src1.emitAll(3)

	assert.ElementsMatch(t, []int{1, 2, 3, 10}, sink.values())

	// punctuations are re-published once per arrival, not coalesced
	src1.end()
	src2.end()
	assert.Len(t, sink.punctuationKinds(), 2)
}
