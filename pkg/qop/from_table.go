package qop

import (
	"sync"

	"github.com/dbis-ilm/pipefabric-go/pkg/table"
)

// DefaultFromTableCapacity bounds the FIFO between the table notifier and
// the worker goroutine.
const DefaultFromTableCapacity = 1024

// FromTable produces a stream from the change notifications of a table:
// every insert or update becomes a non-outdated element, every delete an
// outdated element. A bounded in-memory FIFO and a worker goroutine decouple
// the table's notifier from the downstream operators.
type FromTable[T any, K comparable] struct {
	DataSource[T]
	items     chan tableChange[T]
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type tableChange[T any] struct {
	rec      T
	outdated bool
}

// NewFromTable creates a new table change source subscribed to the given
// table. capacity <= 0 selects DefaultFromTableCapacity.
func NewFromTable[T any, K comparable](tbl table.Table[T, K], mode table.NotificationMode,
	capacity int) *FromTable[T, K] {
	if capacity <= 0 {
		capacity = DefaultFromTableCapacity
	}
	op := &FromTable[T, K]{
		items: make(chan tableChange[T], capacity),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	op.InitBase("FromTable")
	tbl.RegisterObserver(op.tableCallback, mode)
	go op.worker()
	return op
}

// Close stops the worker goroutine. The table observer registration stays in
// place but subsequent notifications are dropped.
func (op *FromTable[T, K]) Close() {
	op.closeOnce.Do(func() {
		close(op.stop)
	})
	<-op.done
}

func (op *FromTable[T, K]) tableCallback(rec T, mode table.ModificationMode) {
	select {
	case op.items <- tableChange[T]{rec: rec, outdated: mode == table.Delete}:
	case <-op.stop:
	}
}

func (op *FromTable[T, K]) worker() {
	defer close(op.done)
	for {
		select {
		case ch := <-op.items:
			op.PublishElement(ch.rec, ch.outdated)
		case <-op.stop:
			for {
				select {
				case ch := <-op.items:
					op.PublishElement(ch.rec, ch.outdated)
				default:
					return
				}
			}
		}
	}
}
