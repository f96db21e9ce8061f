package aggr

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dbis-ilm/pipefabric-go/pkg/tuple"
)

func TestSumWithOutdated(t *testing.T) {
	var s Sum[float64]
	s.Init()
	s.Iterate(1.5, false)
	s.Iterate(2.5, false)
	assert.Equal(t, 4.0, s.Value())

	s.Iterate(1.5, true)
	assert.Equal(t, 2.5, s.Value())
}

func TestAvg(t *testing.T) {
	var a Avg[float64]
	a.Init()
	a.Iterate(1.0, false)
	a.Iterate(2.0, false)
	a.Iterate(3.0, false)
	assert.Equal(t, 2.0, a.Value())

	a.Iterate(1.0, true)
	assert.Equal(t, 2.5, a.Value())
}

func TestCount(t *testing.T) {
	var c Count[int]
	c.Init()
	c.Iterate(0, false)
	c.Iterate(0, false)
	c.Iterate(0, true)
	assert.Equal(t, int64(1), c.Value())
}

func TestMinMaxOutdatedRemoval(t *testing.T) {
	var mn Min[float64]
	var mx Max[float64]
	mn.Init()
	mx.Init()

	for _, v := range []float64{3.4, 2.1, 3.0} {
		mn.Iterate(v, false)
		mx.Iterate(v, false)
	}
	assert.Equal(t, 2.1, mn.Value())
	assert.Equal(t, 3.4, mx.Value())

	// revoke the current extrema
	mn.Iterate(2.1, true)
	mx.Iterate(3.4, true)
	assert.Equal(t, 3.0, mn.Value())
	assert.Equal(t, 3.0, mx.Value())
}

func TestMinMultiplicity(t *testing.T) {
	var mn Min[float64]
	mn.Init()
	mn.Iterate(1.0, false)
	mn.Iterate(1.0, false)
	mn.Iterate(1.0, true)
	// one occurrence remains
	assert.Equal(t, 1.0, mn.Value())
}

func TestMostRecent(t *testing.T) {
	var r MostRecent[float64]
	r.Init()
	r.Iterate(1.0, false)
	r.Iterate(2.0, false)
	// an outdated arrival revokes an old value, the most recent one stays
	r.Iterate(1.0, true)
	assert.Equal(t, 2.0, r.Value())
}

func TestLeastRecent(t *testing.T) {
	var l LeastRecent[float64]
	l.Init()
	l.Iterate(3.4, false)
	l.Iterate(2.1, false)
	l.Iterate(3.0, false)
	assert.Equal(t, 3.4, l.Value())

	// the window revokes the oldest element first
	l.Iterate(3.4, true)
	assert.Equal(t, 2.1, l.Value())
}

func TestTupleSpec(t *testing.T) {
	spec := NewSpec().Sum(0).Avg(0).Count(0)
	st := spec.NewState()

	for _, v := range []float64{1.0, 2.0, 3.0} {
		st.Iterate(tuple.MustNew(v), false)
	}
	res := st.Finalize()
	assert.Equal(t, 6.0, res.Double(0))
	assert.Equal(t, 2.0, res.Double(1))
	assert.Equal(t, int64(3), res.Int(2))
}

func TestTupleSpecMinMaxRecent(t *testing.T) {
	spec := NewSpec().Min(0).Max(0).MostRecent(0).LeastRecent(0)
	st := spec.NewState()

	st.Iterate(tuple.MustNew(3.4), false)
	st.Iterate(tuple.MustNew(2.1), false)
	res := st.Finalize()
	assert.Equal(t, 2.1, res.Double(0))
	assert.Equal(t, 3.4, res.Double(1))
	assert.Equal(t, 2.1, res.Double(2))
	assert.Equal(t, 3.4, res.Double(3))
}

func TestGroupStateCounter(t *testing.T) {
	var s State
	s.UpdateCounter(1)
	s.UpdateCounter(1)
	s.UpdateCounter(-1)
	assert.Equal(t, 1, s.Counter())
}
