package qop

import "github.com/dbis-ilm/pipefabric-go/pkg/stream"

// CallbackFunc is invoked by Notify for each stream element.
type CallbackFunc[T any] func(data T, outdated bool)

// PunctuationCallbackFunc is invoked by Notify for each punctuation.
type PunctuationCallbackFunc func(p *stream.Punctuation)

// Notify invokes a callback for each element of a stream and forwards the
// element unchanged. An optional punctuation callback is invoked for each
// punctuation before it is forwarded.
type Notify[T any] struct {
	UnaryTransform[T, T]
	fn      CallbackFunc[T]
	punctFn PunctuationCallbackFunc
}

// NewNotify creates a new notify operator. punctFn may be nil.
func NewNotify[T any](fn CallbackFunc[T], punctFn PunctuationCallbackFunc) *Notify[T] {
	op := &Notify[T]{fn: fn, punctFn: punctFn}
	op.InitUnary("Notify", false, op.processElement, op.processPunctuation)
	return op
}

func (op *Notify[T]) processElement(data T, outdated bool) {
	op.fn(data, outdated)
	op.PublishElement(data, outdated)
}

func (op *Notify[T]) processPunctuation(p *stream.Punctuation) {
	if op.punctFn != nil {
		op.punctFn(p)
	}
	op.PublishPunctuation(p)
}
