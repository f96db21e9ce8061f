package qop

import (
	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
	"github.com/dbis-ilm/pipefabric-go/pkg/table"
)

// ToTable stores stream elements in a table and forwards them unchanged.
// Non-outdated elements are handled as insert-or-update under the extracted
// key, outdated elements as deletes. With auto-commit enabled every element
// is wrapped in its own transaction scope.
type ToTable[T any, K comparable] struct {
	UnaryTransform[T, T]
	tbl        table.Table[T, K]
	keyFn      stream.KeyExtractor[T, K]
	autoCommit bool
}

// NewToTable creates a new table writer operator.
func NewToTable[T any, K comparable](tbl table.Table[T, K], keyFn stream.KeyExtractor[T, K],
	autoCommit bool) *ToTable[T, K] {
	op := &ToTable[T, K]{tbl: tbl, keyFn: keyFn, autoCommit: autoCommit}
	op.InitUnary("ToTable", false, op.processElement, op.processPunctuation)
	return op
}

func (op *ToTable[T, K]) processElement(data T, outdated bool) {
	key := op.keyFn(data)
	if op.autoCommit {
		txID := op.tbl.BeginTransaction()
		op.apply(key, data, outdated)
		op.tbl.CommitTransaction(txID)
	} else {
		op.apply(key, data, outdated)
	}
	op.PublishElement(data, outdated)
}

func (op *ToTable[T, K]) apply(key K, data T, outdated bool) {
	if outdated {
		op.tbl.DeleteByKey(key)
	} else {
		op.tbl.Insert(key, data)
	}
}

func (op *ToTable[T, K]) processPunctuation(p *stream.Punctuation) {
	op.PublishPunctuation(p)
}
