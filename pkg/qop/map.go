package qop

import "github.com/dbis-ilm/pipefabric-go/pkg/stream"

// MapFunc transforms an input element into an output element. A map function
// is total: it must produce a result for every input.
type MapFunc[In, Out any] func(data In, outdated bool) Out

// Map is a projection operator producing elements according to a given map
// function. The outdated flag is preserved.
type Map[In, Out any] struct {
	UnaryTransform[In, Out]
	fn MapFunc[In, Out]
}

// NewMap creates a new projection operator evaluating the map function on
// each incoming element.
func NewMap[In, Out any](fn MapFunc[In, Out]) *Map[In, Out] {
	op := &Map[In, Out]{fn: fn}
	op.InitUnary("Map", false, op.processElement, op.processPunctuation)
	return op
}

func (op *Map[In, Out]) processElement(data In, outdated bool) {
	op.PublishElement(op.fn(data, outdated), outdated)
}

func (op *Map[In, Out]) processPunctuation(p *stream.Punctuation) {
	op.PublishPunctuation(p)
}
