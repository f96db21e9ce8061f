package source

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbis-ilm/pipefabric-go/pkg/qop"
	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
	"github.com/dbis-ilm/pipefabric-go/pkg/tuple"
)

// lineCollector gathers the one-field tuples emitted by a source, copying
// the StringRef payloads before the producer reuses its buffer.
type lineCollector struct {
	qop.DataSink[*tuple.Tuple]
	mu     sync.Mutex
	lines  []string
	puncts int
}

func newLineCollector() *lineCollector {
	c := &lineCollector{}
	c.InitSink("LineCollector", false, c.onElement, c.onPunctuation)
	return c
}

func (c *lineCollector) onElement(tp *tuple.Tuple, outdated bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, tp.String(0))
}

func (c *lineCollector) onPunctuation(p *stream.Punctuation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p.Kind == stream.EndOfStream {
		c.puncts++
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTextFileSource(t *testing.T) {
	path := writeTempFile(t, "one\ntwo\nthree\n")

	src := NewTextFileSource(path, 0)
	sink := newLineCollector()
	qop.Connect[*tuple.Tuple](src, sink)

	count, err := src.Start()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
	assert.Equal(t, []string{"one", "two", "three"}, sink.lines)
	assert.Equal(t, 1, sink.puncts)
}

func TestTextFileSourceLimit(t *testing.T) {
	path := writeTempFile(t, "a\nb\nc\nd\n")

	src := NewTextFileSource(path, 2)
	sink := newLineCollector()
	qop.Connect[*tuple.Tuple](src, sink)

	count, err := src.Start()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestTextFileSourceMissingFile(t *testing.T) {
	src := NewTextFileSource("/does/not/exist", 0)
	sink := newLineCollector()
	qop.Connect[*tuple.Tuple](src, sink)

	count, err := src.Start()
	assert.Error(t, err)
	assert.Equal(t, uint64(0), count)
	// a source IO error is reported as premature EndOfStream
	assert.Equal(t, 1, sink.puncts)
}

func TestMemorySource(t *testing.T) {
	path := writeTempFile(t, "1,0.5,x\n2,1.5,y\n")

	src := NewMemorySource(path, ',',
		[]tuple.Kind{tuple.KindInt, tuple.KindDouble, tuple.KindString}, 0)

	var got []*tuple.Tuple
	sink := &lineCollector{}
	sink.InitSink("Collector", false, func(tp *tuple.Tuple, outdated bool) {
		got = append(got, tp)
	}, func(p *stream.Punctuation) {})
	qop.Connect[*tuple.Tuple](src, sink)

	require.NoError(t, src.Prepare())
	count, err := src.Start()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].Int(0))
	assert.Equal(t, 0.5, got[0].Double(1))
	assert.Equal(t, "y", got[1].String(2))
}

func TestStreamGenerator(t *testing.T) {
	src := NewStreamGenerator(func(i uint64) int { return int(i) * 2 }, 5)

	var got []int
	collected := make(chan struct{})
	sink := &intSink{onData: func(v int) { got = append(got, v) }}
	sink.InitSink("IntSink", false, func(v int, outdated bool) {
		sink.onData(v)
	}, func(p *stream.Punctuation) {
		if p.Kind == stream.EndOfStream {
			close(collected)
		}
	})
	qop.Connect[int](src, sink)

	count, err := src.Start()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), count)
	assert.Equal(t, []int{0, 2, 4, 6, 8}, got)
	<-collected
}

type intSink struct {
	qop.DataSink[int]
	onData func(int)
}

func TestRegistry(t *testing.T) {
	// the bridge adapters register themselves on package init
	for _, name := range []string{"kafka", "mqtt", "websocket"} {
		_, ok := Lookup(name)
		assert.True(t, ok, "adapter %s not registered", name)
	}

	_, ok := Lookup("nonexistent")
	assert.False(t, ok)
}

func TestKafkaFactoryValidation(t *testing.T) {
	factory, ok := Lookup("kafka")
	require.True(t, ok)
	_, err := factory(map[string]string{})
	assert.Error(t, err)
}
