package dsl

import (
	"sync"

	"github.com/dbis-ilm/pipefabric-go/pkg/qop"
)

// Dataflow is the directed acyclic graph of operators built by a topology.
// It keeps all operators alive via its publisher and sink lists; operator
// lifetime is governed by this shared ownership, not by the pipes pointing
// into it.
type Dataflow struct {
	mu         sync.Mutex
	publishers []qop.Operator
	sinks      []qop.Operator
}

// NewDataflow creates an empty dataflow graph.
func NewDataflow() *Dataflow {
	return &Dataflow{}
}

// AddPublisher appends an operator acting as publisher and returns its
// position in the publisher list.
func (d *Dataflow) AddPublisher(op qop.Operator) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.publishers = append(d.publishers, op)
	return len(d.publishers) - 1
}

// AddPublisherList appends several publishers and returns the position of
// the first one.
func (d *Dataflow) AddPublisherList(ops []qop.Operator) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	first := len(d.publishers)
	d.publishers = append(d.publishers, ops...)
	return first
}

// AddSink registers a sink operator (which is not a publisher).
func (d *Dataflow) AddSink(op qop.Operator) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, op)
}

// PublisherAt returns the publisher at the given position.
func (d *Dataflow) PublisherAt(i int) qop.Operator {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.publishers[i]
}

// PublishersFrom returns the publishers starting at the given position.
func (d *Dataflow) PublishersFrom(i int) []qop.Operator {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]qop.Operator(nil), d.publishers[i:]...)
}

// Size returns the number of registered publishers.
func (d *Dataflow) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.publishers)
}
