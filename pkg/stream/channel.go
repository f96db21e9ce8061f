package stream

import "sync"

// DataSlot is the receiving side of a data channel: it consumes a stream
// element together with its outdated flag.
type DataSlot[T any] func(data T, outdated bool)

// PunctuationSlot is the receiving side of a punctuation channel.
type PunctuationSlot func(p *Punctuation)

// Subscription represents an established link between an output and an input
// channel. Closing it severs the link; nothing else removes it.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Close removes the subscription from the publisher.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}

// InputDataChannel is the typed input endpoint of an operator for stream
// elements. A channel is either unsynchronized (the publishing goroutine runs
// the slot inline) or synchronized (a mutex serializes concurrent
// publishers). Operators reachable from multiple source goroutines must use
// synchronized channels.
type InputDataChannel[T any] struct {
	synchronized bool
	mu           sync.Mutex
	slot         DataSlot[T]
}

// Bind attaches the consuming slot. Must be called before the channel is
// connected.
func (c *InputDataChannel[T]) Bind(slot DataSlot[T], synchronized bool) {
	c.slot = slot
	c.synchronized = synchronized
}

func (c *InputDataChannel[T]) deliver(data T, outdated bool) {
	if c.synchronized {
		c.mu.Lock()
		defer c.mu.Unlock()
	}
	c.slot(data, outdated)
}

// InputPunctuationChannel is the typed input endpoint for punctuations.
type InputPunctuationChannel struct {
	synchronized bool
	mu           sync.Mutex
	slot         PunctuationSlot
}

// Bind attaches the consuming slot. Must be called before the channel is
// connected.
func (c *InputPunctuationChannel) Bind(slot PunctuationSlot, synchronized bool) {
	c.slot = slot
	c.synchronized = synchronized
}

func (c *InputPunctuationChannel) deliver(p *Punctuation) {
	if c.synchronized {
		c.mu.Lock()
		defer c.mu.Unlock()
	}
	c.slot(p)
}

// OutputDataChannel is the typed output endpoint of an operator for stream
// elements. Publish delivers synchronously to every subscriber in
// registration order on the calling goroutine.
type OutputDataChannel[T any] struct {
	mu   sync.RWMutex
	subs []*InputDataChannel[T]
}

// Publish delivers the element to all subscribers in registration order.
func (c *OutputDataChannel[T]) Publish(data T, outdated bool) {
	c.mu.RLock()
	subs := c.subs
	c.mu.RUnlock()
	for _, in := range subs {
		in.deliver(data, outdated)
	}
}

// HasSubscribers reports whether at least one input channel is connected.
func (c *OutputDataChannel[T]) HasSubscribers() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs) > 0
}

func (c *OutputDataChannel[T]) subscribe(in *InputDataChannel[T]) *Subscription {
	c.mu.Lock()
	// copy-on-write so a snapshot taken by Publish stays valid
	c.subs = append(append([]*InputDataChannel[T]{}, c.subs...), in)
	c.mu.Unlock()
	return &Subscription{cancel: func() { c.unsubscribe(in) }}
}

func (c *OutputDataChannel[T]) unsubscribe(in *InputDataChannel[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.subs {
		if s == in {
			c.subs = append(append([]*InputDataChannel[T]{}, c.subs[:i]...), c.subs[i+1:]...)
			return
		}
	}
}

// OutputPunctuationChannel is the typed output endpoint for punctuations.
type OutputPunctuationChannel struct {
	mu   sync.RWMutex
	subs []*InputPunctuationChannel
}

// Publish delivers the punctuation to all subscribers in registration order.
func (c *OutputPunctuationChannel) Publish(p *Punctuation) {
	c.mu.RLock()
	subs := c.subs
	c.mu.RUnlock()
	for _, in := range subs {
		in.deliver(p)
	}
}

func (c *OutputPunctuationChannel) subscribe(in *InputPunctuationChannel) *Subscription {
	c.mu.Lock()
	// copy-on-write so a snapshot taken by Publish stays valid
	c.subs = append(append([]*InputPunctuationChannel{}, c.subs...), in)
	c.mu.Unlock()
	return &Subscription{cancel: func() { c.unsubscribe(in) }}
}

func (c *OutputPunctuationChannel) unsubscribe(in *InputPunctuationChannel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.subs {
		if s == in {
			c.subs = append(append([]*InputPunctuationChannel{}, c.subs[:i]...), c.subs[i+1:]...)
			return
		}
	}
}

// ConnectData links an output data channel with an input data channel.
// Element types must be identical; mismatches are compile-time errors.
func ConnectData[T any](out *OutputDataChannel[T], in *InputDataChannel[T]) *Subscription {
	return out.subscribe(in)
}

// ConnectPunctuation links an output punctuation channel with an input
// punctuation channel.
func ConnectPunctuation(out *OutputPunctuationChannel, in *InputPunctuationChannel) *Subscription {
	return out.subscribe(in)
}
