package source

import (
	"bufio"
	"os"
	"sync/atomic"

	"github.com/dbis-ilm/pipefabric-go/pkg/qop"
	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
	"github.com/dbis-ilm/pipefabric-go/pkg/tuple"
)

// TextFileSource reads a file line by line and emits each line as a one-field
// tuple. The field is a StringRef into the reused line buffer: operators that
// keep the tuple beyond the producing call must Clone it.
type TextFileSource struct {
	qop.DataSource[*tuple.Tuple]
	fname   string
	limit   uint64
	stopped atomic.Bool
}

// NewTextFileSource creates a new file source. limit == 0 reads until EOF.
func NewTextFileSource(fname string, limit uint64) *TextFileSource {
	op := &TextFileSource{fname: fname, limit: limit}
	op.InitBase("TextFileSource")
	return op
}

// Start reads the file and publishes one element per line, followed by an
// EndOfStream punctuation.
func (op *TextFileSource) Start() (uint64, error) {
	f, err := os.Open(op.fname)
	if err != nil {
		op.PublishPunctuation(stream.NewPunctuation(stream.EndOfStream))
		return 0, err
	}
	defer f.Close()

	var count uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if op.stopped.Load() {
			break
		}
		tp := tuple.MustNew(scanner.Bytes())
		op.PublishElement(tp, false)
		count++
		if op.limit > 0 && count >= op.limit {
			break
		}
	}

	op.PublishPunctuation(stream.NewPunctuation(stream.EndOfStream))
	return count, scanner.Err()
}

// Stop terminates a running read loop.
func (op *TextFileSource) Stop() {
	op.stopped.Store(true)
}
