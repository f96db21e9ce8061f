package qop

import "github.com/dbis-ilm/pipefabric-go/pkg/stream"

// TumblingWindow invalidates the buffer at once: as soon as the window size
// is reached the buffered elements are published as outdated and a
// WindowExpired punctuation is published. A row window empties its buffer; a
// range window keeps its newest element, which opens the next window.
type TumblingWindow[T any] struct {
	window[T]
}

// NewTumblingWindow creates a new tumbling window operator. Row windows count
// elements; range windows span size seconds of extracted timestamps and
// require a timestamp extractor.
func NewTumblingWindow[T any](wt WinType, size uint, opts ...WindowOption[T]) (*TumblingWindow[T], error) {
	var o windowOpts[T]
	for _, opt := range opts {
		opt(&o)
	}
	op := &TumblingWindow[T]{}
	if err := op.initWindow(wt, size, o.tsExtract); err != nil {
		return nil, err
	}
	if wt == RowWindow {
		op.evictFn = op.evictByCount
	} else {
		op.evictFn = op.evictByTime
	}
	if o.evictInterval > 0 {
		op.startEviction(o.evictInterval)
	}
	op.InitUnary("TumblingWindow", false, op.processElement, op.processPunctuation)
	return op, nil
}

// A window generates its own punctuations; incoming ones are dropped.
func (op *TumblingWindow[T]) processPunctuation(p *stream.Punctuation) {}

func (op *TumblingWindow[T]) processElement(data T, outdated bool) {
	if outdated {
		op.PublishElement(data, outdated)
		return
	}

	op.mu.Lock()
	op.buf = append(op.buf, data)
	op.mu.Unlock()

	op.PublishElement(data, outdated)

	if op.evictNotifier == nil {
		op.evictFn()
	}
}

// evictByCount flushes the complete buffer once the window size is reached.
func (op *TumblingWindow[T]) evictByCount() {
	op.mu.Lock()
	defer op.mu.Unlock()
	if uint(len(op.buf)) != op.winSize {
		return
	}
	for _, tup := range op.buf {
		op.PublishElement(tup, true)
	}
	op.buf = op.buf[:0]
	op.PublishPunctuation(stream.NewPunctuation(stream.WindowExpired))
}

// evictByTime flushes all elements strictly older than the newest one once
// the time span between oldest and newest reaches the window size. The
// newest element is retained because its timestamp defines the next window.
func (op *TumblingWindow[T]) evictByTime() {
	op.mu.Lock()
	defer op.mu.Unlock()
	if len(op.buf) == 0 {
		return
	}
	lastTupleTime := op.tsExtract(op.buf[len(op.buf)-1])
	if lastTupleTime < op.diffTime {
		return
	}
	acceptedTime := lastTupleTime - op.diffTime
	if op.tsExtract(op.buf[0]) > acceptedTime {
		return
	}

	last := len(op.buf) - 1
	newest := op.buf[last]
	for _, tup := range op.buf[:last] {
		op.PublishElement(tup, true)
	}
	op.buf = append(op.buf[:0], newest)
	op.PublishPunctuation(stream.NewPunctuation(stream.WindowExpired))
}
