package dsl

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbis-ilm/pipefabric-go/pkg/aggr"
	"github.com/dbis-ilm/pipefabric-go/pkg/qop"
	"github.com/dbis-ilm/pipefabric-go/pkg/source"
	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
	"github.com/dbis-ilm/pipefabric-go/pkg/table"
	"github.com/dbis-ilm/pipefabric-go/pkg/tuple"
)

// collected is one element gathered by the test collector.
type collected[T any] struct {
	data     T
	outdated bool
}

// collector is the sink used by the topology tests.
type collector[T any] struct {
	qop.DataSink[T]
	mu     sync.Mutex
	elems  []collected[T]
	puncts []*stream.Punctuation
}

func newCollector[T any]() *collector[T] {
	c := &collector[T]{}
	c.InitSink("Collector", true, func(data T, outdated bool) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.elems = append(c.elems, collected[T]{data: data, outdated: outdated})
	}, func(p *stream.Punctuation) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.puncts = append(c.puncts, p)
	})
	return c
}

func (c *collector[T]) values() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	var vals []T
	for _, e := range c.elems {
		if !e.outdated {
			vals = append(vals, e.data)
		}
	}
	return vals
}

func (c *collector[T]) countPunctuations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.puncts)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Fail(t, "condition not reached in time")
}

func doubleGen(vals ...float64) source.GeneratorFunc[*tuple.Tuple] {
	return func(i uint64) *tuple.Tuple { return tuple.MustNew(vals[i]) }
}

func TestIncrementalUngroupedAggregation(t *testing.T) {
	topo := NewTopology()
	sink := newCollector[*tuple.Tuple]()

	p := StreamFromGenerator(topo, doubleGen(1.0, 2.0, 3.0, 4.0, 5.0, 6.0), 6)
	AggregateTuples(p, aggr.NewSpec().Sum(0).Avg(0).Count(0)).Subscribe(sink)

	require.NoError(t, topo.Start(false))
	defer topo.Stop()

	expected := []struct {
		sum, avg float64
		count    int64
	}{
		{1.0, 1.0, 1}, {3.0, 1.5, 2}, {6.0, 2.0, 3},
		{10.0, 2.5, 4}, {15.0, 3.0, 5}, {21.0, 3.5, 6},
	}
	// the final aggregate is also forced once by EndOfStream
	vals := sink.values()
	require.GreaterOrEqual(t, len(vals), len(expected))
	for i, e := range expected {
		assert.Equal(t, e.sum, vals[i].Double(0))
		assert.Equal(t, e.avg, vals[i].Double(1))
		assert.Equal(t, e.count, vals[i].Int(2))
	}
}

func TestMinMaxOverSlidingWindow(t *testing.T) {
	topo := NewTopology()
	sink := newCollector[*tuple.Tuple]()

	p := StreamFromGenerator(topo, doubleGen(3.4, 2.1, 3.0, 5.7, 9.1, 7.4), 6).
		SlidingWindow(qop.RowWindow, 3, 0)
	AggregateTuples(p, aggr.NewSpec().Min(0).Max(0).MostRecent(0).LeastRecent(0)).
		Subscribe(sink)

	require.NoError(t, topo.Start(false))
	defer topo.Stop()

	expected := [][4]float64{
		{3.4, 3.4, 3.4, 3.4},
		{2.1, 3.4, 2.1, 3.4},
		{2.1, 3.4, 3.0, 3.4},
		{2.1, 3.0, 3.0, 2.1},
		{2.1, 5.7, 5.7, 2.1},
		{3.0, 5.7, 5.7, 3.0},
		{3.0, 9.1, 9.1, 3.0},
		{5.7, 9.1, 9.1, 5.7},
		{5.7, 9.1, 7.4, 5.7},
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.GreaterOrEqual(t, len(sink.elems), len(expected))
	for i, e := range expected {
		got := sink.elems[i].data
		assert.Equal(t, e[0], got.Double(0), "min at %d", i)
		assert.Equal(t, e[1], got.Double(1), "max at %d", i)
		assert.Equal(t, e[2], got.Double(2), "recent at %d", i)
		assert.Equal(t, e[3], got.Double(3), "lrecent at %d", i)
	}
}

func TestGroupedCount(t *testing.T) {
	topo := NewTopology()
	sink := newCollector[*tuple.Tuple]()

	keys := []string{"KEY#0", "KEY#1", "KEY#2", "KEY#3", "KEY#4"}
	gen := func(i uint64) *tuple.Tuple {
		return tuple.MustNew(keys[i%5], int64(i))
	}

	p := KeyBy(StreamFromGenerator(topo, gen, 50),
		func(tp *tuple.Tuple) string { return tp.String(0) })
	GroupByTuples[string](p, aggr.NewSpec().Identity(0).Count(1),
		qop.WithTriggerByCount[*tuple.Tuple](1000)).Subscribe(sink)

	require.NoError(t, topo.Start(false))
	defer topo.Stop()

	vals := sink.values()
	require.Len(t, vals, 5)
	for _, v := range vals {
		assert.Equal(t, int64(10), v.Int(1), "count for %s", v.String(0))
	}
}

func TestJoinWithMatchingWindows(t *testing.T) {
	topo := NewTopology()
	sink := newCollector[*tuple.Tuple]()

	gen := func(i uint64) *tuple.Tuple { return tuple.MustNew(int64(i), int64(i)) }
	keyFn := func(tp *tuple.Tuple) int64 { return tp.Int(0) }

	left := KeyBy(StreamFromGenerator(topo, gen, 10), keyFn).
		SlidingWindow(qop.RowWindow, 10, 0)
	right := KeyBy(StreamFromGenerator(topo, gen, 10), keyFn).
		SlidingWindow(qop.RowWindow, 10, 0)

	JoinTuples[int64](left, right, nil).Subscribe(sink)
	require.NoError(t, topo.Err())

	topo.Start(true)
	require.NoError(t, topo.Wait())
	defer topo.Stop()

	waitFor(t, func() bool { return len(sink.values()) >= 10 })
	vals := sink.values()
	assert.Len(t, vals, 10)
	seen := make(map[int64]bool)
	for _, v := range vals {
		require.Equal(t, 4, v.Arity())
		assert.Equal(t, v.Int(0), v.Int(2))
		seen[v.Int(0)] = true
	}
	assert.Len(t, seen, 10)
}

func TestBarrierReleasesInStages(t *testing.T) {
	topo := NewTopology()
	sink := newCollector[*tuple.Tuple]()

	var mtx sync.Mutex
	cond := sync.NewCond(&mtx)
	counter := 0

	input := []int64{1, 2, 3, 4, 11, 12, 20, 21, 22}
	gen := func(i uint64) *tuple.Tuple { return tuple.MustNew(input[i]) }

	StreamFromGenerator(topo, gen, uint64(len(input))).
		Barrier(cond, func(tp *tuple.Tuple) bool { return int(tp.Int(0)) < counter }).
		Subscribe(sink)

	topo.Start(true)
	defer topo.Stop()

	setCounter := func(v int) {
		mtx.Lock()
		counter = v
		mtx.Unlock()
		cond.Broadcast()
	}

	setCounter(10)
	waitFor(t, func() bool { return len(sink.values()) == 4 })
	setCounter(13)
	waitFor(t, func() bool { return len(sink.values()) == 6 })
	setCounter(25)
	waitFor(t, func() bool { return len(sink.values()) == 9 })

	vals := sink.values()
	for i, v := range vals {
		assert.Equal(t, input[i], v.Int(0))
	}
	require.NoError(t, topo.Wait())
}

func TestPartitionMergeRoundTrip(t *testing.T) {
	topo := NewTopology()
	sink := newCollector[*tuple.Tuple]()

	gen := func(i uint64) *tuple.Tuple { return tuple.MustNew(int64(i)) }

	StreamFromGenerator(topo, gen, 1000).
		PartitionBy(func(tp *tuple.Tuple) int { return int(tp.Int(0) % 3) }, 3).
		Where(func(tp *tuple.Tuple, outdated bool) bool { return tp.Int(0)%2 == 0 }).
		Merge().
		Subscribe(sink)
	require.NoError(t, topo.Err())

	topo.Start(true)
	require.NoError(t, topo.Wait())

	waitFor(t, func() bool { return len(sink.values()) == 500 })
	topo.Stop()

	seen := make(map[int64]bool)
	for _, v := range sink.values() {
		val := v.Int(0)
		assert.Equal(t, int64(0), val%2)
		assert.False(t, seen[val], "duplicate value %d", val)
		seen[val] = true
	}
	assert.Len(t, seen, 500)
}

func TestStatefulMapAndWhere(t *testing.T) {
	topo := NewTopology()
	sink := newCollector[*tuple.Tuple]()

	type runningSum struct{ sum int64 }
	gen := func(i uint64) *tuple.Tuple { return tuple.MustNew(int64(i + 1)) }

	p := StreamFromGenerator(topo, gen, 4).
		Where(func(tp *tuple.Tuple, outdated bool) bool { return tp.Int(0)%2 == 0 })
	StatefulMap(p, func(tp *tuple.Tuple, outdated bool, s *runningSum) *tuple.Tuple {
		s.sum += tp.Int(0)
		return tuple.MustNew(s.sum)
	}).Subscribe(sink)

	require.NoError(t, topo.Start(false))
	defer topo.Stop()

	vals := sink.values()
	require.Len(t, vals, 2)
	assert.Equal(t, int64(2), vals[0].Int(0))
	assert.Equal(t, int64(6), vals[1].Int(0))
}

func TestToTableAndSelectFromTable(t *testing.T) {
	ctx := NewContext()
	defer ctx.Close()
	tbl, err := CreateTable[*tuple.Tuple, int64](ctx, "records")
	require.NoError(t, err)

	topo := ctx.CreateTopology()
	gen := func(i uint64) *tuple.Tuple { return tuple.MustNew(int64(i), int64(i*i)) }
	p := KeyBy(StreamFromGenerator(topo, gen, 10),
		func(tp *tuple.Tuple) int64 { return tp.Int(0) })
	ToTable[*tuple.Tuple, int64](p, tbl, true)
	require.NoError(t, topo.Start(false))
	topo.Stop()

	size, _ := tbl.Size()
	assert.Equal(t, 10, size)

	// read the table back as a one-shot stream
	topo2 := ctx.CreateTopology()
	sink := newCollector[*tuple.Tuple]()
	SelectFromTable[*tuple.Tuple, int64](topo2, tbl,
		func(rec *tuple.Tuple) bool { return rec.Int(0) >= 5 }).Subscribe(sink)
	require.NoError(t, topo2.Start(false))
	topo2.Stop()

	assert.Len(t, sink.values(), 5)
}

func TestFromTableChangeStream(t *testing.T) {
	ctx := NewContext()
	defer ctx.Close()
	tbl, err := CreateTable[*tuple.Tuple, int64](ctx, "live")
	require.NoError(t, err)

	topo := ctx.CreateTopology()
	sink := newCollector[*tuple.Tuple]()
	NewStreamFromTable[*tuple.Tuple, int64](topo, tbl, table.Immediate).Subscribe(sink)

	tbl.Insert(1, tuple.MustNew(int64(1)))
	tbl.Insert(2, tuple.MustNew(int64(2)))
	tbl.DeleteByKey(1)

	waitFor(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.elems) == 3
	})
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.True(t, sink.elems[2].outdated)
	topo.Stop()
}

func TestNamedStreams(t *testing.T) {
	ctx := NewContext()
	defer ctx.Close()

	named, err := CreateStream[*tuple.Tuple](ctx, "shared")
	require.NoError(t, err)

	// writer topology publishes into the named stream
	writer := ctx.CreateTopology()
	gen := func(i uint64) *tuple.Tuple { return tuple.MustNew(int64(i)) }
	StreamFromGenerator(writer, gen, 5).ToStream(named)

	// reader topology consumes it
	reader := ctx.CreateTopology()
	sink := newCollector[*tuple.Tuple]()
	FromStream(reader, named).Subscribe(sink)

	require.NoError(t, writer.Start(false))
	waitFor(t, func() bool { return len(sink.values()) == 5 })

	_, err = CreateStream[*tuple.Tuple](ctx, "shared")
	assert.ErrorIs(t, err, ErrStreamExists)
	_, err = GetStream[*tuple.Tuple](ctx, "missing")
	assert.ErrorIs(t, err, ErrStreamNotFound)
}

func TestPrepareRunsBeforeStart(t *testing.T) {
	topo := NewTopology()
	var order []string
	topo.RegisterPrepareFunction(func() error {
		order = append(order, "prepare")
		return nil
	})
	topo.RegisterStartupFunction(func() (uint64, error) {
		order = append(order, "start")
		return 0, nil
	})

	require.NoError(t, topo.Prepare())
	require.NoError(t, topo.Start(false))
	assert.Equal(t, []string{"prepare", "start"}, order)
}

func TestRunEvery(t *testing.T) {
	topo := NewTopology()
	var mu sync.Mutex
	runs := 0
	topo.RegisterStartupFunction(func() (uint64, error) {
		mu.Lock()
		runs++
		mu.Unlock()
		return 0, nil
	})

	topo.RunEvery(20 * time.Millisecond)
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return runs >= 2
	})
	topo.Stop()
}

func TestSourcePanicAbortsOnlyThatSource(t *testing.T) {
	topo := NewTopology()
	sink := newCollector[*tuple.Tuple]()

	StreamFromGenerator(topo, func(i uint64) *tuple.Tuple {
		panic("predicate exploded")
	}, 1)
	StreamFromGenerator(topo, func(i uint64) *tuple.Tuple {
		return tuple.MustNew(int64(i))
	}, 3).Subscribe(sink)

	topo.Start(true)
	err := topo.Wait()
	assert.Error(t, err)

	// the healthy source ran to completion
	waitFor(t, func() bool { return len(sink.values()) == 3 })
}
