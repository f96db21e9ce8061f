package qop

import (
	"sync"

	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
)

// element records one collected stream element together with its flag.
type element[T any] struct {
	data     T
	outdated bool
}

// mockSource feeds literal elements into an operator under test.
type mockSource[T any] struct {
	DataSource[T]
}

func newMockSource[T any]() *mockSource[T] {
	s := &mockSource[T]{}
	s.InitBase("MockSource")
	return s
}

func (s *mockSource[T]) emitAll(vals ...T) {
	for _, v := range vals {
		s.PublishElement(v, false)
	}
}

func (s *mockSource[T]) end() {
	s.PublishPunctuation(stream.NewPunctuation(stream.EndOfStream))
}

// collector gathers everything an operator publishes.
type collector[T any] struct {
	DataSink[T]
	mu     sync.Mutex
	elems  []element[T]
	puncts []*stream.Punctuation
}

func newCollector[T any](synchronized bool) *collector[T] {
	c := &collector[T]{}
	c.InitSink("Collector", synchronized, c.onElement, c.onPunctuation)
	return c
}

func (c *collector[T]) onElement(data T, outdated bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elems = append(c.elems, element[T]{data: data, outdated: outdated})
}

func (c *collector[T]) onPunctuation(p *stream.Punctuation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puncts = append(c.puncts, p)
}

// all returns the collected elements in arrival order.
func (c *collector[T]) all() []element[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]element[T](nil), c.elems...)
}

// values returns the non-outdated element payloads in arrival order.
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

// punctuationKinds returns the kinds of the collected punctuations.
func (c *collector[T]) punctuationKinds() []stream.PunctuationKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	var kinds []stream.PunctuationKind
	for _, p := range c.puncts {
		kinds = append(kinds, p.Kind)
	}
	return kinds
}
