package aggr

import (
	"fmt"

	"github.com/dbis-ilm/pipefabric-go/pkg/tuple"
)

// tupleAgg adapts one scalar aggregator to a field of a dynamic tuple.
type tupleAgg interface {
	iterate(t *tuple.Tuple, outdated bool)
	value() interface{}
}

// fieldAsDouble reads a numeric tuple field as float64.
func fieldAsDouble(t *tuple.Tuple, i int) float64 {
	switch t.Kind(i) {
	case tuple.KindInt:
		return float64(t.Int(i))
	case tuple.KindUInt:
		return float64(t.UInt(i))
	case tuple.KindDouble:
		return t.Double(i)
	default:
		panic(fmt.Sprintf("aggr: field %d is %s, not numeric", i, t.Kind(i)))
	}
}

type sumCol struct {
	idx int
	agg Sum[float64]
}

func (c *sumCol) iterate(t *tuple.Tuple, outdated bool) { c.agg.Iterate(fieldAsDouble(t, c.idx), outdated) }
func (c *sumCol) value() interface{}                    { return c.agg.Value() }

type avgCol struct {
	idx int
	agg Avg[float64]
}

func (c *avgCol) iterate(t *tuple.Tuple, outdated bool) { c.agg.Iterate(fieldAsDouble(t, c.idx), outdated) }
func (c *avgCol) value() interface{}                    { return c.agg.Value() }

type countCol struct {
	idx int
	agg Count[float64]
}

func (c *countCol) iterate(t *tuple.Tuple, outdated bool) { c.agg.Iterate(0, outdated) }
func (c *countCol) value() interface{}                    { return c.agg.Value() }

type minCol struct {
	idx int
	agg Min[float64]
}

func (c *minCol) iterate(t *tuple.Tuple, outdated bool) { c.agg.Iterate(fieldAsDouble(t, c.idx), outdated) }
func (c *minCol) value() interface{}                    { return c.agg.Value() }

type maxCol struct {
	idx int
	agg Max[float64]
}

func (c *maxCol) iterate(t *tuple.Tuple, outdated bool) { c.agg.Iterate(fieldAsDouble(t, c.idx), outdated) }
func (c *maxCol) value() interface{}                    { return c.agg.Value() }

type mostRecentCol struct {
	idx int
	agg MostRecent[float64]
}

func (c *mostRecentCol) iterate(t *tuple.Tuple, outdated bool) {
	c.agg.Iterate(fieldAsDouble(t, c.idx), outdated)
}
func (c *mostRecentCol) value() interface{} { return c.agg.Value() }

type leastRecentCol struct {
	idx int
	agg LeastRecent[float64]
}

func (c *leastRecentCol) iterate(t *tuple.Tuple, outdated bool) {
	c.agg.Iterate(fieldAsDouble(t, c.idx), outdated)
}
func (c *leastRecentCol) value() interface{} { return c.agg.Value() }

type identityCol struct {
	idx int
	val interface{}
}

func (c *identityCol) iterate(t *tuple.Tuple, outdated bool) {
	if !outdated {
		switch t.Kind(c.idx) {
		case tuple.KindInt:
			c.val = t.Int(c.idx)
		case tuple.KindUInt:
			c.val = t.UInt(c.idx)
		case tuple.KindDouble:
			c.val = t.Double(c.idx)
		default:
			c.val = t.String(c.idx)
		}
	}
}
func (c *identityCol) value() interface{} {
	if c.val == nil {
		return tuple.Null(tuple.KindString)
	}
	return c.val
}

// Spec describes an aggregate state for dynamic tuple streams as a list of
// (field index, aggregator) columns. A Spec is a factory: NewState compiles
// it into a fresh TupleState instance.
type Spec struct {
	cols []func() tupleAgg
}

// NewSpec creates an empty aggregate specification.
func NewSpec() *Spec { return &Spec{} }

// Sum adds an incremental sum over field idx.
func (s *Spec) Sum(idx int) *Spec {
	s.cols = append(s.cols, func() tupleAgg { return &sumCol{idx: idx} })
	return s
}

// Avg adds a running average over field idx.
func (s *Spec) Avg(idx int) *Spec {
	s.cols = append(s.cols, func() tupleAgg { return &avgCol{idx: idx} })
	return s
}

// Count adds an element count. The field index is kept for symmetry only.
func (s *Spec) Count(idx int) *Spec {
	s.cols = append(s.cols, func() tupleAgg { return &countCol{idx: idx} })
	return s
}

// Min adds a minimum over field idx with O(log n) outdated removal.
func (s *Spec) Min(idx int) *Spec {
	s.cols = append(s.cols, func() tupleAgg { c := &minCol{idx: idx}; c.agg.Init(); return c })
	return s
}

// Max adds a maximum over field idx with O(log n) outdated removal.
func (s *Spec) Max(idx int) *Spec {
	s.cols = append(s.cols, func() tupleAgg { c := &maxCol{idx: idx}; c.agg.Init(); return c })
	return s
}

// MostRecent adds the latest value of field idx.
func (s *Spec) MostRecent(idx int) *Spec {
	s.cols = append(s.cols, func() tupleAgg { return &mostRecentCol{idx: idx} })
	return s
}

// LeastRecent adds the oldest still-valid value of field idx.
func (s *Spec) LeastRecent(idx int) *Spec {
	s.cols = append(s.cols, func() tupleAgg { return &leastRecentCol{idx: idx} })
	return s
}

// Identity adds field idx unchanged.
func (s *Spec) Identity(idx int) *Spec {
	s.cols = append(s.cols, func() tupleAgg { return &identityCol{idx: idx} })
	return s
}

// NewState compiles the spec into a fresh aggregate state instance.
func (s *Spec) NewState() *TupleState {
	st := &TupleState{aggs: make([]tupleAgg, len(s.cols))}
	for i, mk := range s.cols {
		st.aggs[i] = mk()
	}
	return st
}

// TupleState is an aggregate state over dynamic tuples compiled from a Spec.
type TupleState struct {
	State
	aggs []tupleAgg
}

// Iterate applies one input tuple to the state.
func (st *TupleState) Iterate(t *tuple.Tuple, outdated bool) {
	for _, a := range st.aggs {
		a.iterate(t, outdated)
	}
}

// Finalize converts the state into a result tuple.
func (st *TupleState) Finalize() *tuple.Tuple {
	vals := make([]interface{}, len(st.aggs))
	for i, a := range st.aggs {
		vals[i] = a.value()
	}
	return tuple.MustNew(vals...)
}
