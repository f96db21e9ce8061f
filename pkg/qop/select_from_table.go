package qop

import (
	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
	"github.com/dbis-ilm/pipefabric-go/pkg/table"
)

// SelectFromTable is a source operator producing a one-shot stream from the
// records of a table: Start iterates the table under an optional predicate,
// emits each record once, and finishes with an EndOfStream punctuation.
type SelectFromTable[T any, K comparable] struct {
	DataSource[T]
	tbl  table.Table[T, K]
	pred table.Predicate[T]
}

// NewSelectFromTable creates a new table scan source. pred may be nil to
// select every record.
func NewSelectFromTable[T any, K comparable](tbl table.Table[T, K],
	pred table.Predicate[T]) *SelectFromTable[T, K] {
	op := &SelectFromTable[T, K]{tbl: tbl, pred: pred}
	op.InitBase("SelectFromTable")
	return op
}

// Start emits all selected records and returns the number of emitted
// elements.
func (op *SelectFromTable[T, K]) Start() (uint64, error) {
	recs, err := op.tbl.Select(op.pred)
	if err != nil {
		op.PublishPunctuation(stream.NewPunctuation(stream.EndOfStream))
		return 0, err
	}
	for _, rec := range recs {
		op.PublishElement(rec, false)
	}
	op.PublishPunctuation(stream.NewPunctuation(stream.EndOfStream))
	return uint64(len(recs)), nil
}

// Stop is a no-op; the scan runs to completion.
func (op *SelectFromTable[T, K]) Stop() {}
