package qop

import "github.com/dbis-ilm/pipefabric-go/pkg/stream"

// Merge combines multiple input streams into a single one. Its input channels
// are synchronized because the inputs typically run on different goroutines.
// Per-input order is preserved; no global order is established. Punctuations
// are re-published once per arrival, duplicates from several inputs are not
// coalesced.
type Merge[T any] struct {
	UnaryTransform[T, T]
}

// NewMerge creates a new merge operator. Connect each input publisher to it
// with Connect.
func NewMerge[T any]() *Merge[T] {
	op := &Merge[T]{}
	op.InitUnary("Merge", true, op.processElement, op.processPunctuation)
	return op
}

func (op *Merge[T]) processElement(data T, outdated bool) {
	op.PublishElement(data, outdated)
}

func (op *Merge[T]) processPunctuation(p *stream.Punctuation) {
	op.PublishPunctuation(p)
}
