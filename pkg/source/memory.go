package source

import (
	"bufio"
	"os"
	"strings"

	"github.com/dbis-ilm/pipefabric-go/pkg/qop"
	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
	"github.com/dbis-ilm/pipefabric-go/pkg/tuple"
)

// MemorySource loads a delimited file into memory during Prepare and replays
// the parsed tuples on Start. It is used when the file must be read before
// the query starts, e.g. for repeated topology runs.
type MemorySource struct {
	qop.DataSource[*tuple.Tuple]
	fname  string
	delim  string
	schema []tuple.Kind
	limit  uint64
	tuples []*tuple.Tuple
}

// NewMemorySource creates a new in-memory replay source parsing lines into
// tuples of the given field kinds. limit == 0 loads the whole file.
func NewMemorySource(fname string, delim byte, schema []tuple.Kind, limit uint64) *MemorySource {
	op := &MemorySource{fname: fname, delim: string(delim), schema: schema, limit: limit}
	op.InitBase("MemorySource")
	return op
}

// Prepare loads and parses the file. It is invoked once before any Start.
func (op *MemorySource) Prepare() error {
	f, err := os.Open(op.fname)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		parts := strings.Split(scanner.Text(), op.delim)
		vals := make([]interface{}, len(op.schema))
		for i, kind := range op.schema {
			if i >= len(parts) {
				vals[i] = tuple.Null(kind)
				continue
			}
			vals[i] = parseText(parts[i], kind)
		}
		tp, err := tuple.New(vals...)
		if err != nil {
			continue
		}
		op.tuples = append(op.tuples, tp)
		if op.limit > 0 && uint64(len(op.tuples)) >= op.limit {
			break
		}
	}
	return scanner.Err()
}

// Start replays the loaded tuples and finishes with EndOfStream.
func (op *MemorySource) Start() (uint64, error) {
	for _, tp := range op.tuples {
		op.PublishElement(tp, false)
	}
	op.PublishPunctuation(stream.NewPunctuation(stream.EndOfStream))
	return uint64(len(op.tuples)), nil
}

// Stop is a no-op; the replay runs to completion.
func (op *MemorySource) Stop() {}
