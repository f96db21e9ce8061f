package stream

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectAndPublish(t *testing.T) {
	var out OutputDataChannel[int]
	var in InputDataChannel[int]

	var got []int
	var flags []bool
	in.Bind(func(v int, outdated bool) {
		got = append(got, v)
		flags = append(flags, outdated)
	}, false)

	ConnectData(&out, &in)
	out.Publish(1, false)
	out.Publish(2, true)

	assert.Equal(t, []int{1, 2}, got)
	assert.Equal(t, []bool{false, true}, flags)
}

func TestPublishRegistrationOrder(t *testing.T) {
	var out OutputDataChannel[int]

	var order []string
	mkIn := func(name string) *InputDataChannel[int] {
		var in InputDataChannel[int]
		in.Bind(func(v int, outdated bool) {
			order = append(order, name)
		}, false)
		return &in
	}

	ConnectData(&out, mkIn("first"))
	ConnectData(&out, mkIn("second"))
	ConnectData(&out, mkIn("third"))
	out.Publish(1, false)

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestSubscriptionClose(t *testing.T) {
	var out OutputDataChannel[int]
	var in InputDataChannel[int]

	count := 0
	in.Bind(func(v int, outdated bool) { count++ }, false)

	sub := ConnectData(&out, &in)
	out.Publish(1, false)
	sub.Close()
	out.Publish(2, false)
	sub.Close() // closing twice is harmless

	assert.Equal(t, 1, count)
	assert.False(t, out.HasSubscribers())
}

func TestSynchronizedChannel(t *testing.T) {
	var out OutputDataChannel[int]
	var in InputDataChannel[int]

	sum := 0
	in.Bind(func(v int, outdated bool) {
		// the channel mutex serializes concurrent publishers, so the
		// unguarded sum must not race
		sum += v
	}, true)
	ConnectData(&out, &in)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				out.Publish(1, false)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 8000, sum)
}

func TestPunctuationChannel(t *testing.T) {
	var out OutputPunctuationChannel
	var in InputPunctuationChannel

	var kinds []PunctuationKind
	in.Bind(func(p *Punctuation) { kinds = append(kinds, p.Kind) }, false)
	ConnectPunctuation(&out, &in)

	out.Publish(NewPunctuation(EndOfStream))
	out.Publish(NewPunctuation(WindowExpired))

	assert.Equal(t, []PunctuationKind{EndOfStream, WindowExpired}, kinds)
}

func TestTxPunctuationPayload(t *testing.T) {
	p := NewPunctuation(EndOfStream)
	_, ok := p.TxID()
	assert.False(t, ok)
}
