package qop

import (
	"sync"

	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
)

// DefaultQueueCapacity bounds a queue when no explicit capacity is given.
const DefaultQueueCapacity = 1024

// queueItem is the tagged element variant buffered by a Queue so that the
// ordering between data elements and punctuations of one upstream is
// preserved.
type queueItem[T any] struct {
	punct    *stream.Punctuation
	data     T
	outdated bool
}

// Queue decouples tuple producer and consumer: incoming elements are buffered
// in a bounded FIFO and forwarded by a dedicated worker goroutine. A full
// queue blocks the producer. Stopping is initiated by Close: it signals the
// worker, lets it drain the buffered items, and waits until it has exited.
type Queue[T any] struct {
	UnaryTransform[T, T]
	items     chan queueItem[T]
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue creates a new decoupling queue with the given capacity; a
// capacity <= 0 selects DefaultQueueCapacity.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	op := &Queue[T]{
		items: make(chan queueItem[T], capacity),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	op.InitUnary("Queue", false, op.processElement, op.processPunctuation)
	go op.worker()
	return op
}

// Close stops the worker goroutine and waits until it has drained the queue.
func (op *Queue[T]) Close() {
	op.closeOnce.Do(func() {
		close(op.stop)
	})
	<-op.done
}

func (op *Queue[T]) processElement(data T, outdated bool) {
	select {
	case op.items <- queueItem[T]{data: data, outdated: outdated}:
	case <-op.stop:
		// shutdown in progress, drop the element
	}
}

func (op *Queue[T]) processPunctuation(p *stream.Punctuation) {
	select {
	case op.items <- queueItem[T]{punct: p}:
	case <-op.stop:
	}
}

func (op *Queue[T]) worker() {
	defer close(op.done)
	for {
		select {
		case it := <-op.items:
			op.forward(it)
		case <-op.stop:
			// drain whatever is still buffered, then exit
			for {
				select {
				case it := <-op.items:
					op.forward(it)
				default:
					return
				}
			}
		}
	}
}

func (op *Queue[T]) forward(it queueItem[T]) {
	if it.punct != nil {
		op.PublishPunctuation(it.punct)
	} else {
		op.PublishElement(it.data, it.outdated)
	}
}
