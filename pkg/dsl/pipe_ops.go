package dsl

import (
	"github.com/dbis-ilm/pipefabric-go/pkg/aggr"
	"github.com/dbis-ilm/pipefabric-go/pkg/qop"
	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
	"github.com/dbis-ilm/pipefabric-go/pkg/table"
	"github.com/dbis-ilm/pipefabric-go/pkg/tuple"
)

/*------------------------------- aggregation ------------------------------*/

// Aggregate adds an ungrouped aggregation operator computing incremental
// aggregates over the entire stream.
func Aggregate[In, Out, S any](p Pipe[In], factory func() S, finalFn qop.FinalizeFunc[S, Out],
	iterFn qop.IterateFunc[In, S], opts ...qop.AggrOption[In]) Pipe[Out] {
	if p.pState != noPartitioning {
		return failAs[In, Out](p, "aggregate", ErrPartitionedPipe)
	}
	op := qop.NewAggregation(factory, finalFn, iterFn, opts...)
	p.t.registerCloser(op)
	return addPublisher[In, Out](p, "aggregate", op, op)
}

// AggregateTuples adds an ungrouped aggregation over dynamic tuples
// described by an aggregate spec.
func AggregateTuples(p Pipe[*tuple.Tuple], spec *aggr.Spec,
	opts ...qop.AggrOption[*tuple.Tuple]) Pipe[*tuple.Tuple] {
	return Aggregate(p, spec.NewState,
		func(s *aggr.TupleState) *tuple.Tuple { return s.Finalize() },
		func(data *tuple.Tuple, s *aggr.TupleState, outdated bool) { s.Iterate(data, outdated) },
		opts...)
}

// GroupBy adds a grouped aggregation operator. The group key is derived by
// the key extractor configured with KeyBy; a missing or differently typed
// extractor is a configuration error.
func GroupBy[In, Out any, K comparable, S aggr.GroupState](p Pipe[In], factory func() S,
	finalFn qop.FinalizeFunc[S, Out], iterFn qop.IterateFunc[In, S],
	opts ...qop.AggrOption[In]) Pipe[Out] {
	if p.pState != noPartitioning {
		return failAs[In, Out](p, "groupBy", ErrPartitionedPipe)
	}
	keyFn, ok := p.keyExtract.(stream.KeyExtractor[In, K])
	if !ok {
		return failAs[In, Out](p, "groupBy", ErrMissingKeyExtractor)
	}
	op := qop.NewGroupedAggregation[In, Out, K, S](keyFn, factory, finalFn, iterFn, opts...)
	p.t.registerCloser(op)
	return addPublisher[In, Out](p, "groupBy", op, op)
}

// GroupByTuples adds a grouped aggregation over dynamic tuples described by
// an aggregate spec, keyed by the extractor configured with KeyBy.
func GroupByTuples[K comparable](p Pipe[*tuple.Tuple], spec *aggr.Spec,
	opts ...qop.AggrOption[*tuple.Tuple]) Pipe[*tuple.Tuple] {
	return GroupBy[*tuple.Tuple, *tuple.Tuple, K, *aggr.TupleState](p, spec.NewState,
		func(s *aggr.TupleState) *tuple.Tuple { return s.Finalize() },
		func(data *tuple.Tuple, s *aggr.TupleState, outdated bool) { s.Iterate(data, outdated) },
		opts...)
}

/*----------------------------------- join ---------------------------------*/

// Join adds a symmetric hash join combining this pipe (left) with another
// pipe (right) on equal keys, as configured by KeyBy on both sides, plus an
// optional residual predicate. combine builds the result element from a
// matching pair.
func Join[L, R any, K comparable, Out any](left Pipe[L], right Pipe[R],
	pred qop.JoinPredicate[L, R], combine qop.CombineFunc[L, R, Out]) Pipe[Out] {
	if left.err != nil {
		return failAs[L, Out](left, "join", left.err)
	}
	if right.err != nil {
		return failAs[L, Out](left, "join", right.err)
	}
	if left.pState != noPartitioning || right.pState != noPartitioning {
		return failAs[L, Out](left, "join", ErrPartitionedPipe)
	}

	leftKey, ok := left.keyExtract.(stream.KeyExtractor[L, K])
	if !ok {
		return failAs[L, Out](left, "join", ErrMissingKeyExtractor)
	}
	rightKey, ok := right.keyExtract.(stream.KeyExtractor[R, K])
	if !ok {
		return failAs[L, Out](left, "join", ErrMissingKeyExtractor)
	}

	op := qop.NewSHJoin(leftKey, rightKey, pred, combine)

	leftPub, ok := tailPublisher(left)
	if !ok {
		return failAs[L, Out](left, "join", ErrIncompatibleTypes)
	}
	rightPub, ok := tailPublisher(right)
	if !ok {
		return failAs[L, Out](left, "join", ErrIncompatibleTypes)
	}

	stream.ConnectData(leftPub.OutputDataChannel(), op.LeftInputDataChannel())
	stream.ConnectPunctuation(leftPub.OutputPunctuationChannel(), op.InputPunctuationChannel())
	stream.ConnectData(rightPub.OutputDataChannel(), op.RightInputDataChannel())
	stream.ConnectPunctuation(rightPub.OutputPunctuationChannel(), op.InputPunctuationChannel())

	idx := left.t.dataflow.AddPublisher(op)
	return deriveAs[L, Out](left, idx, 1, noPartitioning)
}

// JoinTuples joins two dynamic tuple pipes; the result is the field
// concatenation of the matching pair.
func JoinTuples[K comparable](left, right Pipe[*tuple.Tuple],
	pred qop.JoinPredicate[*tuple.Tuple, *tuple.Tuple]) Pipe[*tuple.Tuple] {
	return Join[*tuple.Tuple, *tuple.Tuple, K, *tuple.Tuple](left, right, pred, tuple.Concat)
}

/*-------------------------------- extraction ------------------------------*/

// Extract parses delimited text lines into typed tuples with the given field
// kinds.
func Extract(p Pipe[*tuple.Tuple], sep byte, schema []tuple.Kind) Pipe[*tuple.Tuple] {
	if p.pState != noPartitioning {
		return p.fail("extract", ErrPartitionedPipe)
	}
	op := qop.NewTupleExtractor(schema, sep)
	return addPublisher[*tuple.Tuple, *tuple.Tuple](p, "extract", op, op)
}

// ExtractJSON parses JSON documents into tuples carrying the values of the
// given keys.
func ExtractJSON(p Pipe[*tuple.Tuple], keys []string) Pipe[*tuple.Tuple] {
	if p.pState != noPartitioning {
		return p.fail("extractJson", ErrPartitionedPipe)
	}
	op := qop.NewJSONExtractor(keys)
	return addPublisher[*tuple.Tuple, *tuple.Tuple](p, "extractJson", op, op)
}

// Deserialize decodes binary-encoded tuples received from a socket source.
func Deserialize(p Pipe[*tuple.Tuple]) Pipe[*tuple.Tuple] {
	if p.pState != noPartitioning {
		return p.fail("deserialize", ErrPartitionedPipe)
	}
	op := qop.NewTupleDeserializer()
	return addPublisher[*tuple.Tuple, *tuple.Tuple](p, "deserialize", op, op)
}

/*------------------------------ table operators ---------------------------*/

// ToTable adds an operator storing the stream in a table under the key
// configured with KeyBy and forwarding the elements unchanged.
func ToTable[T any, K comparable](p Pipe[T], tbl table.Table[T, K], autoCommit bool) Pipe[T] {
	if p.pState != noPartitioning {
		return p.fail("toTable", ErrPartitionedPipe)
	}
	keyFn, ok := p.keyExtract.(stream.KeyExtractor[T, K])
	if !ok {
		return p.fail("toTable", ErrMissingKeyExtractor)
	}
	op := qop.NewToTable(tbl, keyFn, autoCommit)
	return addPublisher[T, T](p, "toTable", op, op)
}

// UpdateTable adds an operator executing an update on the given table for
// each element, keyed by the extractor configured with KeyBy. The update
// function receives the stream element, its outdated flag, and the stored
// record; returning false deletes the record.
func UpdateTable[T, R any, K comparable](p Pipe[T], tbl table.Table[R, K],
	updateFn func(data T, outdated bool, old R) (R, bool)) Pipe[T] {
	if p.pState != noPartitioning {
		return p.fail("updateTable", ErrPartitionedPipe)
	}
	keyFn, ok := p.keyExtract.(stream.KeyExtractor[T, K])
	if !ok {
		return p.fail("updateTable", ErrMissingKeyExtractor)
	}
	op := qop.NewMap(func(data T, outdated bool) T {
		tbl.UpdateOrDeleteByKey(keyFn(data), func(old R) (R, bool) {
			return updateFn(data, outdated, old)
		})
		return data
	})
	return addPublisher[T, T](p, "updateTable", op, op)
}

// NewStreamFromTable creates a pipe producing a stream from the change
// notifications of a table: inserts and updates become elements, deletes
// become outdated elements.
func NewStreamFromTable[T any, K comparable](t *Topology, tbl table.Table[T, K],
	mode table.NotificationMode) Pipe[T] {
	op := qop.NewFromTable(tbl, mode, t.cfg.GetInt("fromtable.capacity", qop.DefaultFromTableCapacity))
	t.registerCloser(op)
	return newPipe[T](t, t.dataflow.AddPublisher(op))
}

// SelectFromTable creates a pipe emitting the table's records once under an
// optional predicate, then EndOfStream.
func SelectFromTable[T any, K comparable](t *Topology, tbl table.Table[T, K],
	pred table.Predicate[T]) Pipe[T] {
	op := qop.NewSelectFromTable(tbl, pred)
	t.registerSource(op)
	t.RegisterStartupFunction(op.Start)
	return newPipe[T](t, t.dataflow.AddPublisher(op))
}
