package qop

import (
	"errors"

	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
)

// Partitioning errors
var (
	// ErrInvalidPartitionID is returned when a subscriber is registered for a
	// partition id outside [0, numPartitions)
	ErrInvalidPartitionID = errors.New("invalid partition id")
)

// PartitionFunc derives the partition id for a stream element. The result
// must lie in [0, numPartitions).
type PartitionFunc[T any] func(data T) int

// PartitionBy splits the input stream into numPartitions sub-streams by a
// user-defined partition function. Each partition forwards its elements to a
// separate subquery which is decoupled by a Queue so it executes on its own
// goroutine. Punctuations are broadcast to all partitions.
type PartitionBy[T any] struct {
	UnaryTransform[T, T]
	numPartitions int
	fn            PartitionFunc[T]
	partitions    []*partitionOutlet[T]
}

// partitionOutlet is the per-partition entry point: a source whose output
// feeds a decoupling queue.
type partitionOutlet[T any] struct {
	src   *DataSource[T]
	queue *Queue[T]
}

// NewPartitionBy creates a new partitioning operator with the given partition
// function and partition count.
func NewPartitionBy[T any](fn PartitionFunc[T], numPartitions int) *PartitionBy[T] {
	op := &PartitionBy[T]{
		numPartitions: numPartitions,
		fn:            fn,
		partitions:    make([]*partitionOutlet[T], numPartitions),
	}
	op.InitUnary("PartitionBy", false, op.processElement, op.processPunctuation)
	return op
}

// ConnectPartition wires the subscriber consuming partition id. A fresh
// source and decoupling queue are created so that the partition's subquery
// runs on its own goroutine.
func (op *PartitionBy[T]) ConnectPartition(id int, sub Subscriber[T]) error {
	if id < 0 || id >= op.numPartitions {
		return ErrInvalidPartitionID
	}
	outlet := op.partitions[id]
	if outlet == nil {
		outlet = &partitionOutlet[T]{
			src:   &DataSource[T]{},
			queue: NewQueue[T](0),
		}
		outlet.src.InitBase("PartitionSource")
		Connect[T](outlet.src, outlet.queue)
		op.partitions[id] = outlet
	}
	Connect[T](outlet.queue, sub)
	return nil
}

// Close stops the per-partition queues.
func (op *PartitionBy[T]) Close() {
	for _, outlet := range op.partitions {
		if outlet != nil {
			outlet.queue.Close()
		}
	}
}

func (op *PartitionBy[T]) processElement(data T, outdated bool) {
	id := op.fn(data)
	if id < 0 || id >= op.numPartitions {
		return
	}
	if outlet := op.partitions[id]; outlet != nil {
		outlet.src.PublishElement(data, outdated)
	}
}

// Punctuations are broadcast to every partition.
func (op *PartitionBy[T]) processPunctuation(p *stream.Punctuation) {
	for _, outlet := range op.partitions {
		if outlet != nil {
			outlet.src.PublishPunctuation(p)
		}
	}
}
