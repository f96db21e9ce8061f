package qop

import (
	"sync"
	"time"

	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
)

// TriggerType specifies when an aggregation operator publishes a result.
type TriggerType int

const (
	// TriggerAll publishes after every input element.
	TriggerAll TriggerType = iota
	// TriggerByCount publishes every n input elements.
	TriggerByCount
	// TriggerByTime publishes every n seconds of wall-clock time, driven by
	// a dedicated notifier goroutine.
	TriggerByTime
	// TriggerByTimestamp publishes when the extracted timestamp of the
	// current element exceeds the last emission's timestamp by the interval.
	TriggerByTimestamp
)

// IterateFunc incorporates one input element into the aggregate state;
// outdated = true subtracts.
type IterateFunc[In, S any] func(data In, state S, outdated bool)

// FinalizeFunc converts the aggregate state into a result element.
type FinalizeFunc[S, Out any] func(state S) Out

// AggrOption configures an aggregation operator.
type AggrOption[In any] func(*aggrOpts[In])

type aggrOpts[In any] struct {
	triggerType     TriggerType
	triggerInterval uint
	tsExtract       stream.TimestampExtractor[In]
}

// WithTriggerAll publishes an aggregate after every input element. This is
// the default.
func WithTriggerAll[In any]() AggrOption[In] {
	return func(o *aggrOpts[In]) { o.triggerType = TriggerAll }
}

// WithTriggerByCount publishes an aggregate every n input elements.
func WithTriggerByCount[In any](n uint) AggrOption[In] {
	return func(o *aggrOpts[In]) { o.triggerType = TriggerByCount; o.triggerInterval = n }
}

// WithTriggerByTime publishes an aggregate every secs seconds of wall-clock
// time.
func WithTriggerByTime[In any](secs uint) AggrOption[In] {
	return func(o *aggrOpts[In]) { o.triggerType = TriggerByTime; o.triggerInterval = secs }
}

// WithTriggerByTimestamp publishes an aggregate when the extracted timestamp
// advanced by at least secs seconds since the last emission.
func WithTriggerByTimestamp[In any](fn stream.TimestampExtractor[In], secs uint) AggrOption[In] {
	return func(o *aggrOpts[In]) {
		o.triggerType = TriggerByTimestamp
		o.triggerInterval = secs
		o.tsExtract = fn
	}
}

// Aggregation computes incremental aggregates over a stream with a single
// ungrouped state instance. For each incoming element the state is updated
// via the iterate function; results produced by the finalize function are
// published according to the configured trigger. A WindowExpired,
// SlideExpired or EndOfStream punctuation unconditionally forces emission.
type Aggregation[In, Out, S any] struct {
	UnaryTransform[In, Out]
	state           S
	iterFn          IterateFunc[In, S]
	finalFn         FinalizeFunc[S, Out]
	tsExtract       stream.TimestampExtractor[In]
	triggerType     TriggerType
	triggerInterval uint
	notifier        *notifier
	lastTriggerTime stream.Timestamp
	counter         uint
	mu              sync.Mutex
}

// NewAggregation creates a new aggregation operator. factory produces the
// initial aggregate state.
func NewAggregation[In, Out, S any](factory func() S, finalFn FinalizeFunc[S, Out],
	iterFn IterateFunc[In, S], opts ...AggrOption[In]) *Aggregation[In, Out, S] {
	var o aggrOpts[In]
	for _, opt := range opts {
		opt(&o)
	}
	op := &Aggregation[In, Out, S]{
		state:           factory(),
		iterFn:          iterFn,
		finalFn:         finalFn,
		tsExtract:       o.tsExtract,
		triggerType:     o.triggerType,
		triggerInterval: o.triggerInterval,
	}
	op.InitUnary("Aggregation", false, op.processElement, op.processPunctuation)
	if o.triggerType == TriggerByTime && o.triggerInterval > 0 {
		op.notifier = newNotifier(time.Duration(o.triggerInterval)*time.Second, op.notificationCallback)
	}
	return op
}

// Close stops the trigger notifier goroutine, if any.
func (op *Aggregation[In, Out, S]) Close() {
	if op.notifier != nil {
		op.notifier.Close()
	}
}

func (op *Aggregation[In, Out, S]) processElement(data In, outdated bool) {
	op.mu.Lock()

	op.iterFn(data, op.state, outdated)

	switch op.triggerType {
	case TriggerAll:
		// compute the result under the mutex, publish after releasing it to
		// avoid re-entrancy with the trigger goroutine
		res := op.finalFn(op.state)
		op.mu.Unlock()
		op.PublishElement(res, outdated)
		return
	case TriggerByCount:
		op.counter++
		if op.counter == op.triggerInterval {
			op.counter = 0
			op.mu.Unlock()
			op.produceAggregate()
			return
		}
	case TriggerByTimestamp:
		ts := op.tsExtract(data)
		if ts-op.lastTriggerTime >= stream.Seconds(op.triggerInterval) {
			op.lastTriggerTime = ts
			op.mu.Unlock()
			op.produceAggregate()
			return
		}
	}
	op.mu.Unlock()
}

func (op *Aggregation[In, Out, S]) processPunctuation(p *stream.Punctuation) {
	// punctuations on expired windows or slides force the aggregate
	if p.Kind == stream.EndOfStream || p.Kind == stream.WindowExpired || p.Kind == stream.SlideExpired {
		op.produceAggregate()
	}
	op.PublishPunctuation(p)
}

// produceAggregate calculates the aggregate using the finalize function and
// publishes the result.
func (op *Aggregation[In, Out, S]) produceAggregate() {
	op.mu.Lock()
	res := op.finalFn(op.state)
	op.mu.Unlock()
	op.PublishElement(res, false)
}

// notificationCallback is invoked by the notifier goroutine to periodically
// produce the aggregate and a SlideExpired punctuation.
func (op *Aggregation[In, Out, S]) notificationCallback() {
	op.produceAggregate()
	op.PublishPunctuation(stream.NewPunctuation(stream.SlideExpired))
}
