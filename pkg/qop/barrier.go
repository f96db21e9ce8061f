package qop

import (
	"sync"

	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
)

// BarrierPredicate decides whether a stream element may pass the barrier.
type BarrierPredicate[T any] func(data T) bool

// Barrier delays the forwarding of elements based on a predicate that is
// controlled by an external party. On each arrival the predicate is evaluated
// under the given mutex; while it returns false the publishing goroutine
// waits on the condition variable. The external party owning the gating state
// must signal the condition variable after changing it.
type Barrier[T any] struct {
	UnaryTransform[T, T]
	cond *sync.Cond
	pred BarrierPredicate[T]
}

// NewBarrier creates a new barrier operator. The condition variable's Locker
// must be the mutex guarding the state read by the predicate.
func NewBarrier[T any](cond *sync.Cond, pred BarrierPredicate[T]) *Barrier[T] {
	op := &Barrier[T]{cond: cond, pred: pred}
	op.InitUnary("Barrier", false, op.processElement, op.processPunctuation)
	return op
}

func (op *Barrier[T]) processElement(data T, outdated bool) {
	op.cond.L.Lock()
	for !op.pred(data) {
		op.cond.Wait()
	}
	op.cond.L.Unlock()
	op.PublishElement(data, outdated)
}

func (op *Barrier[T]) processPunctuation(p *stream.Punctuation) {
	op.PublishPunctuation(p)
}
