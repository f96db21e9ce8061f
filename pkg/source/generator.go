package source

import (
	"sync/atomic"

	"github.com/dbis-ilm/pipefabric-go/pkg/qop"
	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
)

// GeneratorFunc produces the i-th stream element.
type GeneratorFunc[T any] func(i uint64) T

// StreamGenerator emits num elements created by a generator function,
// followed by an EndOfStream punctuation.
type StreamGenerator[T any] struct {
	qop.DataSource[T]
	gen     GeneratorFunc[T]
	num     uint64
	stopped atomic.Bool
}

// NewStreamGenerator creates a new generator source.
func NewStreamGenerator[T any](gen GeneratorFunc[T], num uint64) *StreamGenerator[T] {
	op := &StreamGenerator[T]{gen: gen, num: num}
	op.InitBase("StreamGenerator")
	return op
}

// Start generates the elements.
func (op *StreamGenerator[T]) Start() (uint64, error) {
	var count uint64
	for i := uint64(0); i < op.num; i++ {
		if op.stopped.Load() {
			break
		}
		op.PublishElement(op.gen(i), false)
		count++
	}
	op.PublishPunctuation(stream.NewPunctuation(stream.EndOfStream))
	return count, nil
}

// Stop terminates a running generator.
func (op *StreamGenerator[T]) Stop() {
	op.stopped.Store(true)
}
