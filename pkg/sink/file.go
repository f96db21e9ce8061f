package sink

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"github.com/dbis-ilm/pipefabric-go/pkg/qop"
	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
)

// FileWriter writes each stream element to a file, one line per element.
// The file is flushed and closed on EndOfStream or Close.
type FileWriter[T any] struct {
	qop.DataSink[T]
	mu     sync.Mutex
	f      *os.File
	buf    *bufio.Writer
	format FormatFunc[T]
}

// NewFileWriter creates a new file sink writing to fname. format may be nil.
func NewFileWriter[T any](fname string, format FormatFunc[T]) (*FileWriter[T], error) {
	f, err := os.Create(fname)
	if err != nil {
		return nil, err
	}
	op := &FileWriter[T]{f: f, buf: bufio.NewWriter(f), format: format}
	op.InitSink("FileWriter", true, op.processElement, op.processPunctuation)
	return op, nil
}

func (op *FileWriter[T]) processElement(data T, outdated bool) {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.buf == nil {
		return
	}
	if outdated {
		return
	}
	if op.format != nil {
		fmt.Fprintln(op.buf, op.format(data))
	} else {
		fmt.Fprintln(op.buf, data)
	}
}

func (op *FileWriter[T]) processPunctuation(p *stream.Punctuation) {
	if p.Kind == stream.EndOfStream {
		op.Close()
	}
}

// Close flushes and closes the file.
func (op *FileWriter[T]) Close() {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.buf != nil {
		op.buf.Flush()
		op.f.Close()
		op.buf = nil
	}
}
