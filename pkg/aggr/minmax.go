package aggr

import (
	"cmp"

	"github.com/google/btree"
)

// msEntry is a multiset entry: a value and its multiplicity.
type msEntry[V cmp.Ordered] struct {
	val V
	n   int
}

// multiset is an ordered multiset backed by a B-tree so that removing an
// outdated value costs O(log n).
type multiset[V cmp.Ordered] struct {
	tree *btree.BTreeG[msEntry[V]]
}

func newMultiset[V cmp.Ordered]() *multiset[V] {
	return &multiset[V]{
		tree: btree.NewG(8, func(a, b msEntry[V]) bool { return a.val < b.val }),
	}
}

func (m *multiset[V]) add(v V) {
	if e, ok := m.tree.Get(msEntry[V]{val: v}); ok {
		e.n++
		m.tree.ReplaceOrInsert(e)
	} else {
		m.tree.ReplaceOrInsert(msEntry[V]{val: v, n: 1})
	}
}

func (m *multiset[V]) remove(v V) {
	if e, ok := m.tree.Get(msEntry[V]{val: v}); ok {
		if e.n > 1 {
			e.n--
			m.tree.ReplaceOrInsert(e)
		} else {
			m.tree.Delete(e)
		}
	}
}

func (m *multiset[V]) min() (V, bool) {
	e, ok := m.tree.Min()
	return e.val, ok
}

func (m *multiset[V]) max() (V, bool) {
	e, ok := m.tree.Max()
	return e.val, ok
}

// Min tracks the minimum over a multiset of values with support for outdated
// removal.
type Min[V cmp.Ordered] struct {
	vals *multiset[V]
}

func (a *Min[V]) Init() { a.vals = newMultiset[V]() }

func (a *Min[V]) Iterate(v V, outdated bool) {
	if a.vals == nil {
		a.Init()
	}
	if outdated {
		a.vals.remove(v)
	} else {
		a.vals.add(v)
	}
}

func (a *Min[V]) Value() V {
	if a.vals == nil {
		var zero V
		return zero
	}
	v, _ := a.vals.min()
	return v
}

// Max tracks the maximum over a multiset of values with support for outdated
// removal.
type Max[V cmp.Ordered] struct {
	vals *multiset[V]
}

func (a *Max[V]) Init() { a.vals = newMultiset[V]() }

func (a *Max[V]) Iterate(v V, outdated bool) {
	if a.vals == nil {
		a.Init()
	}
	if outdated {
		a.vals.remove(v)
	} else {
		a.vals.add(v)
	}
}

func (a *Max[V]) Value() V {
	if a.vals == nil {
		var zero V
		return zero
	}
	v, _ := a.vals.max()
	return v
}
