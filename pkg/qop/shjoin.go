package qop

import (
	"sync"

	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
)

// JoinPredicate is the residual predicate evaluated in addition to the
// equi-join condition of the hash join.
type JoinPredicate[L, R any] func(l L, r R) bool

// CombineFunc builds the join result from a matching pair. For dynamic tuple
// streams this is the field concatenation.
type CombineFunc[L, R, Out any] func(l L, r R) Out

// SHJoin is a symmetric hash join over two streams. Each side maintains a
// hash multimap from join key to buffered elements. An arriving element
// probes the opposite map, emits one result per match satisfying the
// predicate, and is inserted into its own map; an outdated arrival removes
// one occurrence of the same element handle instead and emits outdated
// results. Joins are typically fed by two windows so that the maps stay
// bounded and outdated arrivals drive eviction.
type SHJoin[L, R any, K comparable, Out any] struct {
	BinaryTransform[L, R, Out]
	leftKey  stream.KeyExtractor[L, K]
	rightKey stream.KeyExtractor[R, K]
	pred     JoinPredicate[L, R]
	combine  CombineFunc[L, R, Out]
	leftMap  map[K][]L
	rightMap map[K][]R
	mu       sync.Mutex
}

// NewSHJoin creates a new symmetric hash join. pred may be nil for a pure
// equi-join.
func NewSHJoin[L, R any, K comparable, Out any](leftKey stream.KeyExtractor[L, K],
	rightKey stream.KeyExtractor[R, K], pred JoinPredicate[L, R],
	combine CombineFunc[L, R, Out]) *SHJoin[L, R, K, Out] {
	op := &SHJoin[L, R, K, Out]{
		leftKey:  leftKey,
		rightKey: rightKey,
		pred:     pred,
		combine:  combine,
		leftMap:  make(map[K][]L),
		rightMap: make(map[K][]R),
	}
	op.InitBinary("SHJoin", op.processLeft, op.processRight, op.processPunctuation)
	return op
}

func (op *SHJoin[L, R, K, Out]) processLeft(data L, outdated bool) {
	key := op.leftKey(data)

	op.mu.Lock()
	var results []Out
	for _, r := range op.rightMap[key] {
		if op.pred == nil || op.pred(data, r) {
			results = append(results, op.combine(data, r))
		}
	}
	if outdated {
		op.leftMap[key] = removeOne(op.leftMap[key], data)
		if len(op.leftMap[key]) == 0 {
			delete(op.leftMap, key)
		}
	} else {
		op.leftMap[key] = append(op.leftMap[key], data)
	}
	op.mu.Unlock()

	for _, res := range results {
		op.PublishElement(res, outdated)
	}
}

func (op *SHJoin[L, R, K, Out]) processRight(data R, outdated bool) {
	key := op.rightKey(data)

	op.mu.Lock()
	var results []Out
	for _, l := range op.leftMap[key] {
		if op.pred == nil || op.pred(l, data) {
			results = append(results, op.combine(l, data))
		}
	}
	if outdated {
		op.rightMap[key] = removeOne(op.rightMap[key], data)
		if len(op.rightMap[key]) == 0 {
			delete(op.rightMap, key)
		}
	} else {
		op.rightMap[key] = append(op.rightMap[key], data)
	}
	op.mu.Unlock()

	for _, res := range results {
		op.PublishElement(res, outdated)
	}
}

// The join never buffers punctuations; they are forwarded to the output.
func (op *SHJoin[L, R, K, Out]) processPunctuation(p *stream.Punctuation) {
	op.PublishPunctuation(p)
}

// removeOne deletes one occurrence identified by element handle, not by key.
// A missing element is a silent no-op. Identity comparison requires the
// element type to be comparable as an interface value; stream elements are
// shared by pointer, which satisfies this.
func removeOne[T any](buf []T, data T) []T {
	for i := range buf {
		if any(buf[i]) == any(data) {
			return append(buf[:i:i], buf[i+1:]...)
		}
	}
	return buf
}
