package qop

import (
	"sync"
	"time"

	"github.com/dbis-ilm/pipefabric-go/pkg/aggr"
	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
)

// GroupedAggregation computes incremental aggregates per group key. The state
// type S must embed aggr.State so that the operator can maintain the group
// occupancy counter: a group is removed from the table once all elements
// contributing to it have been revoked by outdated arrivals.
type GroupedAggregation[In, Out any, K comparable, S aggr.GroupState] struct {
	UnaryTransform[In, Out]
	groups          map[K]S
	keyFn           stream.KeyExtractor[In, K]
	factory         func() S
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

// NewGroupedAggregation creates a new grouped aggregation operator with the
// given key extractor and aggregate state factory.
func NewGroupedAggregation[In, Out any, K comparable, S aggr.GroupState](
	keyFn stream.KeyExtractor[In, K], factory func() S,
	finalFn FinalizeFunc[S, Out], iterFn IterateFunc[In, S],
	opts ...AggrOption[In]) *GroupedAggregation[In, Out, K, S] {
	var o aggrOpts[In]
	for _, opt := range opts {
		opt(&o)
	}
	op := &GroupedAggregation[In, Out, K, S]{
		groups:          make(map[K]S),
		keyFn:           keyFn,
		factory:         factory,
		iterFn:          iterFn,
		finalFn:         finalFn,
		tsExtract:       o.tsExtract,
		triggerType:     o.triggerType,
		triggerInterval: o.triggerInterval,
	}
	op.InitUnary("GroupedAggregation", false, op.processElement, op.processPunctuation)
	if o.triggerType == TriggerByTime && o.triggerInterval > 0 {
		op.notifier = newNotifier(time.Duration(o.triggerInterval)*time.Second, op.notificationCallback)
	}
	return op
}

// Close stops the trigger notifier goroutine, if any.
func (op *GroupedAggregation[In, Out, K, S]) Close() {
	if op.notifier != nil {
		op.notifier.Close()
	}
}

func (op *GroupedAggregation[In, Out, K, S]) processElement(data In, outdated bool) {
	op.mu.Lock()

	grpKey := op.keyFn(data)
	state, exists := op.groups[grpKey]

	if !exists {
		if outdated {
			// the upstream should not revoke an element we have never seen
			op.mu.Unlock()
			return
		}
		op.processNewGroup(grpKey, data)
	} else {
		op.updateGroup(grpKey, state, data, outdated)
	}

	// the group's state is read and written under a single critical section;
	// only the trigger handling below re-acquires the mutex
	switch op.triggerType {
	case TriggerByCount:
		op.counter++
		if op.counter == op.triggerInterval {
			op.counter = 0
			op.mu.Unlock()
			op.notificationCallback()
			return
		}
	case TriggerByTimestamp:
		ts := op.tsExtract(data)
		if ts-op.lastTriggerTime >= stream.Seconds(op.triggerInterval) {
			op.lastTriggerTime = ts
			op.mu.Unlock()
			op.notificationCallback()
			return
		}
	}
	op.mu.Unlock()
}

// processNewGroup creates a fresh aggregation state for an unseen key,
// iterates the element into it, and registers it in the group table. Called
// with the mutex held.
func (op *GroupedAggregation[In, Out, K, S]) processNewGroup(grpKey K, data In) {
	state := op.factory()
	if op.tsExtract != nil {
		state.SetTimestamp(op.tsExtract(data))
	}
	state.UpdateCounter(1)
	op.iterFn(data, state, false)
	op.groups[grpKey] = state

	if op.triggerType == TriggerAll {
		op.PublishElement(op.finalFn(state), false)
	}
}

// updateGroup updates the state of an existing group. An outdated element
// decrements the occupancy counter; once it reaches zero the group is
// removed from the table. Called with the mutex held.
func (op *GroupedAggregation[In, Out, K, S]) updateGroup(grpKey K, state S, data In, outdated bool) {
	if op.tsExtract != nil {
		state.SetTimestamp(op.tsExtract(data))
	}
	if outdated {
		state.UpdateCounter(-1)
	} else {
		state.UpdateCounter(1)
	}
	op.iterFn(data, state, outdated)

	if op.triggerType == TriggerAll {
		op.PublishElement(op.finalFn(state), outdated)
	}

	if state.Counter() == 0 {
		delete(op.groups, grpKey)
	}
}

func (op *GroupedAggregation[In, Out, K, S]) processPunctuation(p *stream.Punctuation) {
	if p.Kind == stream.EndOfStream || p.Kind == stream.WindowExpired || p.Kind == stream.SlideExpired {
		op.produceAggregates()
	}
	op.PublishPunctuation(p)
}

// produceAggregates publishes the finalized result of every group in
// unspecified order.
func (op *GroupedAggregation[In, Out, K, S]) produceAggregates() {
	op.mu.Lock()
	results := make([]Out, 0, len(op.groups))
	for _, state := range op.groups {
		results = append(results, op.finalFn(state))
	}
	op.mu.Unlock()
	for _, res := range results {
		op.PublishElement(res, false)
	}
}

// notificationCallback is invoked by the notifier goroutine (and by the
// count/timestamp triggers) to produce all aggregates and a SlideExpired
// punctuation.
func (op *GroupedAggregation[In, Out, K, S]) notificationCallback() {
	op.produceAggregates()
	op.PublishPunctuation(stream.NewPunctuation(stream.SlideExpired))
}
