package qop

import (
	"errors"
	"sync"
	"time"

	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
)

// WinType selects how a window measures its extent.
type WinType int

const (
	// RowWindow stores a maximum number of elements.
	RowWindow WinType = iota
	// RangeWindow stores elements valid for a time duration.
	RangeWindow
)

// Window errors
var (
	// ErrNoTimestampExtractor is returned when a range window is created
	// without a timestamp extractor function
	ErrNoTimestampExtractor = errors.New("range window requires a timestamp extractor function")
)

// window holds the state shared by the sliding and tumbling window
// implementations: the ordered element buffer, its mutex, the eviction
// function and the optional periodic eviction goroutine. The buffer stores
// the original element handles; no copies are made.
type window[T any] struct {
	UnaryTransform[T, T]
	tsExtract     stream.TimestampExtractor[T]
	winType       WinType
	winSize       uint
	diffTime      stream.Timestamp // for range windows the size in microseconds
	buf           []T
	mu            sync.Mutex
	evictFn       func()
	evictNotifier *notifier
}

func (w *window[T]) initWindow(wt WinType, size uint, tsExtract stream.TimestampExtractor[T]) error {
	if wt == RangeWindow && tsExtract == nil {
		return ErrNoTimestampExtractor
	}
	w.winType = wt
	w.winSize = size
	w.tsExtract = tsExtract
	if wt == RangeWindow {
		w.diffTime = stream.Seconds(size)
	}
	return nil
}

func (w *window[T]) startEviction(interval time.Duration) {
	if interval > 0 {
		w.evictNotifier = newNotifier(interval, w.evictFn)
	}
}

// Close stops the periodic eviction goroutine, if any.
func (w *window[T]) Close() {
	if w.evictNotifier != nil {
		w.evictNotifier.Close()
	}
}

// WindowOption configures a window operator.
type WindowOption[T any] func(*windowOpts[T])

type windowOpts[T any] struct {
	tsExtract     stream.TimestampExtractor[T]
	evictInterval time.Duration
}

// WithTimestampExtractor sets the function extracting the element timestamp.
// Required for range windows.
func WithTimestampExtractor[T any](fn stream.TimestampExtractor[T]) WindowOption[T] {
	return func(o *windowOpts[T]) { o.tsExtract = fn }
}

// WithEvictionInterval enables periodic eviction: a dedicated goroutine
// invokes the eviction function every interval, so a range window makes
// progress even while no new elements arrive.
func WithEvictionInterval[T any](interval time.Duration) WindowOption[T] {
	return func(o *windowOpts[T]) { o.evictInterval = interval }
}
