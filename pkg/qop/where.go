package qop

import "github.com/dbis-ilm/pipefabric-go/pkg/stream"

// PredicateFunc decides whether a stream element passes a filter.
type PredicateFunc[T any] func(data T, outdated bool) bool

// Where is a selection operator: it forwards all elements satisfying the
// given predicate, preserving the outdated flag. Punctuations are forwarded
// verbatim.
type Where[T any] struct {
	UnaryTransform[T, T]
	pred PredicateFunc[T]
}

// NewWhere creates a new filter operator evaluating the given predicate on
// each incoming element.
func NewWhere[T any](pred PredicateFunc[T]) *Where[T] {
	op := &Where[T]{pred: pred}
	op.InitUnary("Where", false, op.processElement, op.processPunctuation)
	return op
}

func (op *Where[T]) processElement(data T, outdated bool) {
	if op.pred(data, outdated) {
		op.PublishElement(data, outdated)
	}
}

func (op *Where[T]) processPunctuation(p *stream.Punctuation) {
	op.PublishPunctuation(p)
}
