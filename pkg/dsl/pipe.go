package dsl

import (
	"io"
	"sync"
	"time"

	"github.com/dbis-ilm/pipefabric-go/pkg/qop"
	"github.com/dbis-ilm/pipefabric-go/pkg/sink"
	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
)

// partitioningState tracks whether pipe steps are constructed once or once
// per partition.
type partitioningState int

const (
	noPartitioning partitioningState = iota
	firstInPartitioning
	nextInPartitioning
)

// Pipe represents the end of a chain of operators carrying elements of type
// T. Every step connects a new operator behind the current tail and returns
// a new pipe sharing the same topology. Build errors are sticky: once a step
// fails, subsequent steps pass the error through and Prepare/Start refuse to
// run.
//
// Steps that change the element type or introduce additional type parameters
// are package functions (Map, GroupBy, Join, ...); all others are methods.
type Pipe[T any] struct {
	t          *Topology
	tailIdx    int
	tailCount  int
	pState     partitioningState
	numParts   int
	keyExtract interface{}
	tsExtract  interface{}
	err        error
}

func newPipe[T any](t *Topology, tailIdx int) Pipe[T] {
	return Pipe[T]{t: t, tailIdx: tailIdx, tailCount: 1}
}

// Err returns the sticky build error of the pipe, if any.
func (p Pipe[T]) Err() error { return p.err }

// Topology returns the topology the pipe belongs to.
func (p Pipe[T]) Topology() *Topology { return p.t }

func (p Pipe[T]) fail(step string, cause error) Pipe[T] {
	if p.err == nil {
		p.err = NewTopologyError(step, cause)
		p.t.setBuildErr(p.err)
	}
	return p
}

// failAs converts a build failure into a pipe of a different element type.
func failAs[T, U any](p Pipe[T], step string, cause error) Pipe[U] {
	failed := p.fail(step, cause)
	return Pipe[U]{
		t:          failed.t,
		tailIdx:    failed.tailIdx,
		tailCount:  failed.tailCount,
		pState:     failed.pState,
		numParts:   failed.numParts,
		keyExtract: failed.keyExtract,
		tsExtract:  failed.tsExtract,
		err:        failed.err,
	}
}

// deriveAs returns a pipe of element type U pointing at a new tail, carrying
// over the type-erased extractors and the partitioning state.
func deriveAs[T, U any](p Pipe[T], tailIdx, tailCount int, pState partitioningState) Pipe[U] {
	return Pipe[U]{
		t:          p.t,
		tailIdx:    tailIdx,
		tailCount:  tailCount,
		pState:     pState,
		numParts:   p.numParts,
		keyExtract: p.keyExtract,
		tsExtract:  p.tsExtract,
	}
}

// tailPublisher re-types the current tail operator as a publisher of T. A
// mismatch is a wiring error.
func tailPublisher[T any](p Pipe[T]) (qop.Publisher[T], bool) {
	pub, ok := p.t.dataflow.PublisherAt(p.tailIdx).(qop.Publisher[T])
	return pub, ok
}

// addPublisher connects op behind the current tail and registers it as the
// new tail.
func addPublisher[In, Out any](p Pipe[In], step string, op qop.Operator, sub qop.Subscriber[In]) Pipe[Out] {
	if p.err != nil {
		return failAs[In, Out](p, step, p.err)
	}
	pub, ok := tailPublisher(p)
	if !ok {
		return failAs[In, Out](p, step, ErrIncompatibleTypes)
	}
	qop.Connect(pub, sub)
	idx := p.t.dataflow.AddPublisher(op)
	return deriveAs[In, Out](p, idx, 1, p.pState)
}

// addPartitioned constructs one operator instance per partition. Behind a
// fresh PartitionBy the instances are wired to the partition outlets; further
// partitioned steps connect instance i behind tail i.
func addPartitioned[In, Out any](p Pipe[In], step string,
	mk func() (qop.Operator, qop.Subscriber[In])) Pipe[Out] {
	if p.err != nil {
		return failAs[In, Out](p, step, p.err)
	}

	ops := make([]qop.Operator, p.numParts)

	switch p.pState {
	case firstInPartitioning:
		pb, ok := p.t.dataflow.PublisherAt(p.tailIdx).(*qop.PartitionBy[In])
		if !ok {
			return failAs[In, Out](p, step, ErrIncompatibleTypes)
		}
		for i := 0; i < p.numParts; i++ {
			op, sub := mk()
			if err := pb.ConnectPartition(i, sub); err != nil {
				return failAs[In, Out](p, step, err)
			}
			ops[i] = op
		}
	case nextInPartitioning:
		tails := p.t.dataflow.PublishersFrom(p.tailIdx)
		for i := 0; i < p.numParts; i++ {
			pub, ok := tails[i].(qop.Publisher[In])
			if !ok {
				return failAs[In, Out](p, step, ErrIncompatibleTypes)
			}
			op, sub := mk()
			qop.Connect(pub, sub)
			ops[i] = op
		}
	default:
		return failAs[In, Out](p, step, ErrNotPartitioned)
	}

	idx := p.t.dataflow.AddPublisherList(ops)
	return deriveAs[In, Out](p, idx, p.numParts, nextInPartitioning)
}

/*------------------------- extractor configuration ------------------------*/

// AssignTimestamps defines the timestamp extractor used by all subsequent
// time-based operators.
func (p Pipe[T]) AssignTimestamps(fn stream.TimestampExtractor[T]) Pipe[T] {
	p.tsExtract = fn
	return p
}

// KeyBy defines the key extractor used by all subsequent key-based operators
// (GroupBy, Join, ToTable). The key type is fixed here and re-checked by the
// consuming step.
func KeyBy[T any, K comparable](p Pipe[T], fn stream.KeyExtractor[T, K]) Pipe[T] {
	p.keyExtract = fn
	return p
}

/*----------------------------- stateless steps ----------------------------*/

// Where adds a filter operator. Supported on partitioned streams.
func (p Pipe[T]) Where(pred qop.PredicateFunc[T]) Pipe[T] {
	if p.pState != noPartitioning {
		return addPartitioned[T, T](p, "where", func() (qop.Operator, qop.Subscriber[T]) {
			op := qop.NewWhere(pred)
			return op, op
		})
	}
	op := qop.NewWhere(pred)
	return addPublisher[T, T](p, "where", op, op)
}

// Notify adds a callback operator. punctFn may be nil.
func (p Pipe[T]) Notify(fn qop.CallbackFunc[T], punctFn qop.PunctuationCallbackFunc) Pipe[T] {
	if p.pState != noPartitioning {
		return p.fail("notify", ErrPartitionedPipe)
	}
	op := qop.NewNotify(fn, punctFn)
	return addPublisher[T, T](p, "notify", op, op)
}

// Map adds a projection operator changing the element type. Supported on
// partitioned streams.
func Map[In, Out any](p Pipe[In], fn qop.MapFunc[In, Out]) Pipe[Out] {
	if p.pState != noPartitioning {
		return addPartitioned[In, Out](p, "map", func() (qop.Operator, qop.Subscriber[In]) {
			op := qop.NewMap(fn)
			return op, op
		})
	}
	op := qop.NewMap(fn)
	return addPublisher[In, Out](p, "map", op, op)
}

// StatefulMap adds a map operator with operator-private state. Supported on
// partitioned streams; each partition owns a separate state.
func StatefulMap[In, Out, State any](p Pipe[In], fn qop.StatefulMapFunc[In, Out, State]) Pipe[Out] {
	if p.pState != noPartitioning {
		return addPartitioned[In, Out](p, "statefulMap", func() (qop.Operator, qop.Subscriber[In]) {
			op := qop.NewStatefulMap(fn)
			return op, op
		})
	}
	op := qop.NewStatefulMap(fn)
	return addPublisher[In, Out](p, "statefulMap", op, op)
}

// Batch adds a batcher emitting one batch element every batchSize arrivals.
func Batch[T any](p Pipe[T], batchSize int) Pipe[qop.Batch[T]] {
	if p.pState != noPartitioning {
		return failAs[T, qop.Batch[T]](p, "batch", ErrPartitionedPipe)
	}
	op := qop.NewBatcher[T](batchSize)
	return addPublisher[T, qop.Batch[T]](p, "batch", op, op)
}

/*--------------------------------- windows --------------------------------*/

// SlidingWindow adds a sliding window operator. Range windows require a
// preceding AssignTimestamps. evictInterval > 0 enables periodic eviction.
func (p Pipe[T]) SlidingWindow(wt qop.WinType, size uint, evictInterval time.Duration) Pipe[T] {
	if p.pState != noPartitioning {
		return p.fail("slidingWindow", ErrPartitionedPipe)
	}
	opts, err := p.windowOptions(wt, evictInterval)
	if err != nil {
		return p.fail("slidingWindow", err)
	}
	op, err := qop.NewSlidingWindow[T](wt, size, opts...)
	if err != nil {
		return p.fail("slidingWindow", err)
	}
	p.t.registerCloser(op)
	return addPublisher[T, T](p, "slidingWindow", op, op)
}

// TumblingWindow adds a tumbling window operator. Range windows require a
// preceding AssignTimestamps.
func (p Pipe[T]) TumblingWindow(wt qop.WinType, size uint) Pipe[T] {
	if p.pState != noPartitioning {
		return p.fail("tumblingWindow", ErrPartitionedPipe)
	}
	opts, err := p.windowOptions(wt, 0)
	if err != nil {
		return p.fail("tumblingWindow", err)
	}
	op, err := qop.NewTumblingWindow[T](wt, size, opts...)
	if err != nil {
		return p.fail("tumblingWindow", err)
	}
	p.t.registerCloser(op)
	return addPublisher[T, T](p, "tumblingWindow", op, op)
}

func (p Pipe[T]) windowOptions(wt qop.WinType, evictInterval time.Duration) ([]qop.WindowOption[T], error) {
	var opts []qop.WindowOption[T]
	if wt == qop.RangeWindow || evictInterval > 0 {
		fn, ok := p.tsExtract.(stream.TimestampExtractor[T])
		if !ok {
			return nil, ErrMissingTimestampExtractor
		}
		opts = append(opts, qop.WithTimestampExtractor(fn))
	}
	if evictInterval > 0 {
		opts = append(opts, qop.WithEvictionInterval[T](evictInterval))
	}
	return opts, nil
}

/*----------------------------- synchronization ----------------------------*/

// Queue adds a decoupling queue: downstream operators run on the queue's
// worker goroutine.
func (p Pipe[T]) Queue() Pipe[T] {
	if p.pState != noPartitioning {
		return p.fail("queue", ErrPartitionedPipe)
	}
	op := qop.NewQueue[T](p.t.cfg.GetInt("queue.capacity", qop.DefaultQueueCapacity))
	p.t.registerCloser(op)
	return addPublisher[T, T](p, "queue", op, op)
}

// Barrier adds a barrier operator gating elements by the predicate. The
// condition variable is signaled by the external party owning the gating
// state.
func (p Pipe[T]) Barrier(cond *sync.Cond, pred qop.BarrierPredicate[T]) Pipe[T] {
	if p.pState != noPartitioning {
		return p.fail("barrier", ErrPartitionedPipe)
	}
	op := qop.NewBarrier(cond, pred)
	return addPublisher[T, T](p, "barrier", op, op)
}

/*------------------------------ partitioning ------------------------------*/

// PartitionBy splits the stream into numPartitions sub-streams. Subsequent
// steps construct one instance per partition until Merge collects them.
// Re-partitioning an already partitioned stream is rejected.
func (p Pipe[T]) PartitionBy(fn qop.PartitionFunc[T], numPartitions int) Pipe[T] {
	if p.pState != noPartitioning {
		return p.fail("partitionBy", ErrAlreadyPartitioned)
	}
	op := qop.NewPartitionBy(fn, numPartitions)
	p.t.registerCloser(op)
	np := addPublisher[T, T](p, "partitionBy", op, op)
	np.pState = firstInPartitioning
	np.numParts = numPartitions
	return np
}

// Merge collects the partitioned sub-streams back into a single stream,
// decoupled by a queue.
func (p Pipe[T]) Merge() Pipe[T] {
	if p.err != nil {
		return p
	}
	if p.pState != nextInPartitioning {
		return p.fail("merge", ErrNotPartitioned)
	}

	op := qop.NewMerge[T]()
	tails := p.t.dataflow.PublishersFrom(p.tailIdx)
	for i := 0; i < p.numParts; i++ {
		pub, ok := tails[i].(qop.Publisher[T])
		if !ok {
			return p.fail("merge", ErrIncompatibleTypes)
		}
		qop.Connect[T](pub, op)
	}
	p.t.dataflow.AddPublisher(op)

	queue := qop.NewQueue[T](p.t.cfg.GetInt("queue.capacity", qop.DefaultQueueCapacity))
	p.t.registerCloser(queue)
	qop.Connect[T](op, queue)
	idx := p.t.dataflow.AddPublisher(queue)

	np := deriveAs[T, T](p, idx, 1, noPartitioning)
	np.numParts = 0
	return np
}

/*------------------------------ named streams -----------------------------*/

// ToStream publishes the pipe's elements into a named stream created by
// Context.CreateStream, in addition to the regular downstream subscribers.
func (p Pipe[T]) ToStream(named *qop.Queue[T]) Pipe[T] {
	if p.err != nil {
		return p
	}
	if p.pState != noPartitioning {
		return p.fail("toStream", ErrPartitionedPipe)
	}
	pub, ok := tailPublisher(p)
	if !ok {
		return p.fail("toStream", ErrIncompatibleTypes)
	}
	qop.Connect[T](pub, named)
	return p
}

// FromStream creates a pipe consuming a named stream.
func FromStream[T any](t *Topology, named *qop.Queue[T]) Pipe[T] {
	return newPipe[T](t, t.dataflow.AddPublisher(named))
}

/*---------------------------------- sinks ---------------------------------*/

// Print attaches a console writer sink rendering each element to w.
func (p Pipe[T]) Print(w io.Writer, format sink.FormatFunc[T]) Pipe[T] {
	if p.err != nil {
		return p
	}
	if p.pState != noPartitioning {
		return p.fail("print", ErrPartitionedPipe)
	}
	pub, ok := tailPublisher(p)
	if !ok {
		return p.fail("print", ErrIncompatibleTypes)
	}
	op := sink.NewConsoleWriter(w, format)
	qop.Connect[T](pub, op)
	p.t.dataflow.AddSink(op)
	return p
}

// SaveToFile attaches a file writer sink.
func (p Pipe[T]) SaveToFile(fname string, format sink.FormatFunc[T]) Pipe[T] {
	if p.err != nil {
		return p
	}
	if p.pState != noPartitioning {
		return p.fail("saveToFile", ErrPartitionedPipe)
	}
	pub, ok := tailPublisher(p)
	if !ok {
		return p.fail("saveToFile", ErrIncompatibleTypes)
	}
	op, err := sink.NewFileWriter(fname, format)
	if err != nil {
		return p.fail("saveToFile", err)
	}
	qop.Connect[T](pub, op)
	p.t.dataflow.AddSink(op)
	return p
}

// SendKafka attaches a Kafka sink publishing each element to a topic.
func (p Pipe[T]) SendKafka(brokers []string, topic string, marshal sink.MarshalFunc[T]) Pipe[T] {
	if p.err != nil {
		return p
	}
	if p.pState != noPartitioning {
		return p.fail("sendKafka", ErrPartitionedPipe)
	}
	pub, ok := tailPublisher(p)
	if !ok {
		return p.fail("sendKafka", ErrIncompatibleTypes)
	}
	op := sink.NewKafkaSink(brokers, topic, marshal)
	qop.Connect[T](pub, op)
	p.t.dataflow.AddSink(op)
	return p
}

// SendWebSocket attaches a WebSocket sink publishing each element to an
// endpoint.
func (p Pipe[T]) SendWebSocket(url string, marshal sink.MarshalFunc[T]) Pipe[T] {
	if p.err != nil {
		return p
	}
	if p.pState != noPartitioning {
		return p.fail("sendWebSocket", ErrPartitionedPipe)
	}
	pub, ok := tailPublisher(p)
	if !ok {
		return p.fail("sendWebSocket", ErrIncompatibleTypes)
	}
	op := sink.NewWebSocketSink(url, marshal)
	qop.Connect[T](pub, op)
	p.t.dataflow.AddSink(op)
	return p
}

// Subscribe connects an arbitrary subscriber (e.g. a test collector) behind
// the current tail.
func (p Pipe[T]) Subscribe(sub qop.Subscriber[T]) Pipe[T] {
	if p.err != nil {
		return p
	}
	pub, ok := tailPublisher(p)
	if !ok {
		return p.fail("subscribe", ErrIncompatibleTypes)
	}
	qop.Connect[T](pub, sub)
	return p
}

/*------------------------- external collaborators -------------------------*/

// MatchByNFA is the build hook for the complex-event pattern matcher, which
// is an external collaborator not shipped with the engine core.
func (p Pipe[T]) MatchByNFA() Pipe[T] {
	return p.fail("matchByNFA", ErrMissingCollaborator)
}

// Matcher is the build hook for the expression-based pattern matcher, which
// is an external collaborator not shipped with the engine core.
func (p Pipe[T]) Matcher() Pipe[T] {
	return p.fail("matcher", ErrMissingCollaborator)
}
