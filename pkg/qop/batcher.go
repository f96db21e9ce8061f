package qop

import "github.com/dbis-ilm/pipefabric-go/pkg/stream"

// BatchItem is a single element of a batch together with its outdated flag.
type BatchItem[T any] struct {
	Data     T
	Outdated bool
}

// Batch is the element type produced by Batcher.
type Batch[T any] []BatchItem[T]

// Batcher accumulates incoming elements into fixed-size batches and emits one
// batch element every batchSize arrivals. On EndOfStream any residual batch
// is flushed before the punctuation is forwarded.
type Batcher[T any] struct {
	UnaryTransform[T, Batch[T]]
	batchSize int
	buf       Batch[T]
}

// NewBatcher creates a new batcher with the given batch size.
func NewBatcher[T any](batchSize int) *Batcher[T] {
	op := &Batcher[T]{
		batchSize: batchSize,
		buf:       make(Batch[T], 0, batchSize),
	}
	op.InitUnary("Batcher", false, op.processElement, op.processPunctuation)
	return op
}

func (op *Batcher[T]) processElement(data T, outdated bool) {
	op.buf = append(op.buf, BatchItem[T]{Data: data, Outdated: outdated})
	if len(op.buf) == op.batchSize {
		op.flush()
	}
}

func (op *Batcher[T]) processPunctuation(p *stream.Punctuation) {
	if p.Kind == stream.EndOfStream && len(op.buf) > 0 {
		op.flush()
	}
	op.PublishPunctuation(p)
}

func (op *Batcher[T]) flush() {
	batch := op.buf
	op.buf = make(Batch[T], 0, op.batchSize)
	op.PublishElement(batch, false)
}
