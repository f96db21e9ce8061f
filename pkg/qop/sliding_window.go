package qop

import "github.com/dbis-ilm/pipefabric-go/pkg/stream"

// SlidingWindow invalidates elements one by one: each incoming element is
// forwarded immediately, and once it leaves the window a corresponding
// outdated element is published. Eviction runs either as a side effect of
// arrivals or periodically when an eviction interval is configured.
type SlidingWindow[T any] struct {
	window[T]
}

// NewSlidingWindow creates a new sliding window operator. Row windows count
// elements; range windows span size seconds of extracted timestamps and
// require a timestamp extractor.
func NewSlidingWindow[T any](wt WinType, size uint, opts ...WindowOption[T]) (*SlidingWindow[T], error) {
	var o windowOpts[T]
	for _, opt := range opts {
		opt(&o)
	}
	op := &SlidingWindow[T]{}
	if err := op.initWindow(wt, size, o.tsExtract); err != nil {
		return nil, err
	}
	if wt == RangeWindow {
		op.evictFn = op.evictByTime
	} else {
		op.evictFn = op.evictByCount
	}
	if o.evictInterval > 0 {
		// eviction is driven by a separate goroutine instead of arrivals
		if o.tsExtract == nil {
			return nil, ErrNoTimestampExtractor
		}
		op.evictFn = op.evictByTime
		op.startEviction(o.evictInterval)
	}
	op.InitUnary("SlidingWindow", false, op.processElement, op.processPunctuation)
	return op, nil
}

// A window generates its own punctuations; incoming ones are dropped.
func (op *SlidingWindow[T]) processPunctuation(p *stream.Punctuation) {}

func (op *SlidingWindow[T]) processElement(data T, outdated bool) {
	if outdated {
		// upstream already revoked the element, the buffer stays untouched
		op.PublishElement(data, outdated)
		return
	}

	op.mu.Lock()
	op.buf = append(op.buf, data)
	op.mu.Unlock()

	if op.evictNotifier == nil {
		op.evictFn()
	}

	op.PublishElement(data, outdated)
}

// evictByCount implements the eviction strategy for row windows: the oldest
// element is outdated as soon as the addition of a new one exceeds the
// window size.
func (op *SlidingWindow[T]) evictByCount() {
	op.mu.Lock()
	defer op.mu.Unlock()
	for uint(len(op.buf)) > op.winSize {
		tup := op.buf[0]
		op.buf = op.buf[1:]
		op.PublishElement(tup, true)
	}
}

// evictByTime implements the eviction strategy for range windows: an element
// is outdated as soon as the time difference to the most recent element
// exceeds the window size.
func (op *SlidingWindow[T]) evictByTime() {
	op.mu.Lock()
	defer op.mu.Unlock()
	if len(op.buf) == 0 {
		return
	}
	lastTupleTime := op.tsExtract(op.buf[len(op.buf)-1])

	// Timestamps may be artificial (0, 1, ...) and smaller than the window
	// size; guard against underflow.
	if lastTupleTime < op.diffTime {
		return
	}
	acceptedTime := lastTupleTime - op.diffTime

	for len(op.buf) > 0 {
		tup := op.buf[0]
		if op.tsExtract(tup) >= acceptedTime {
			break
		}
		op.buf = op.buf[1:]
		op.PublishElement(tup, true)
	}
}
