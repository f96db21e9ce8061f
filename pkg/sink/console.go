// Package sink provides the stream sinks of the engine: console and file
// writers plus bridges publishing elements to Kafka and WebSocket endpoints.
// A sink consumes elements and punctuations and never re-publishes.
package sink

import (
	"fmt"
	"io"
	"sync"

	"github.com/dbis-ilm/pipefabric-go/pkg/qop"
	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
)

// FormatFunc renders a stream element for a writer sink.
type FormatFunc[T any] func(data T) string

// ConsoleWriter prints each stream element to a writer, one line per
// element. Outdated elements are prefixed with a minus sign. The writer is
// guarded by a mutex so the sink may be fed from multiple goroutines.
type ConsoleWriter[T any] struct {
	qop.DataSink[T]
	w      io.Writer
	mu     sync.Mutex
	format FormatFunc[T]
}

// NewConsoleWriter creates a new console sink. format may be nil, in which
// case elements are rendered with the fmt package.
func NewConsoleWriter[T any](w io.Writer, format FormatFunc[T]) *ConsoleWriter[T] {
	op := &ConsoleWriter[T]{w: w, format: format}
	op.InitSink("ConsoleWriter", true, op.processElement, op.processPunctuation)
	return op
}

func (op *ConsoleWriter[T]) processElement(data T, outdated bool) {
	op.mu.Lock()
	defer op.mu.Unlock()
	prefix := ""
	if outdated {
		prefix = "- "
	}
	if op.format != nil {
		fmt.Fprintf(op.w, "%s%s\n", prefix, op.format(data))
	} else {
		fmt.Fprintf(op.w, "%s%v\n", prefix, data)
	}
}

func (op *ConsoleWriter[T]) processPunctuation(p *stream.Punctuation) {}
