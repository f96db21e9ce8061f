// Package qop implements the query operators of the stream engine: the
// operator base types with their data and punctuation channels, the stateless
// transforms, windows, aggregations, the symmetric hash join, partitioning,
// queueing and the table bridge.
package qop

import (
	"github.com/google/uuid"

	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
)

// Operator is the common interface of all query operators.
type Operator interface {
	// Name returns the operator name, e.g. "Where" or "SlidingWindow".
	Name() string

	// ID returns the unique instance id of the operator.
	ID() string
}

// Closer is implemented by operators that own helper goroutines (queues,
// eviction and trigger notifiers, table listeners). Close stops the helpers
// and waits until they have exited.
type Closer interface {
	Close()
}

// BaseOp provides naming and identity for all query operators.
type BaseOp struct {
	name string
	id   string
}

// InitBase assigns the operator name and a fresh instance id.
func (b *BaseOp) InitBase(name string) {
	b.name = name
	b.id = uuid.New().String()
}

// Name returns the operator name.
func (b *BaseOp) Name() string {
	if b.name == "" {
		return "BaseOp"
	}
	return b.name
}

// ID returns the unique instance id of the operator.
func (b *BaseOp) ID() string { return b.id }

// DataSource is the base for all components producing stream elements. It
// provides two output channels: one for data elements with their outdated
// flag, one for punctuations.
type DataSource[T any] struct {
	BaseOp
	dataOut  stream.OutputDataChannel[T]
	punctOut stream.OutputPunctuationChannel
}

// OutputDataChannel returns the source's data channel.
func (s *DataSource[T]) OutputDataChannel() *stream.OutputDataChannel[T] {
	return &s.dataOut
}

// OutputPunctuationChannel returns the source's punctuation channel.
func (s *DataSource[T]) OutputPunctuationChannel() *stream.OutputPunctuationChannel {
	return &s.punctOut
}

// PublishElement publishes a data element to all subscribers.
func (s *DataSource[T]) PublishElement(data T, outdated bool) {
	s.dataOut.Publish(data, outdated)
}

// PublishPunctuation publishes a punctuation to all subscribers.
func (s *DataSource[T]) PublishPunctuation(p *stream.Punctuation) {
	s.punctOut.Publish(p)
}

// DataSink is the base for all components consuming stream elements. It
// provides an input channel for data elements and one for punctuations. The
// synchronized flag controls whether concurrently publishing goroutines are
// serialized per channel; it does not synchronize between the two channels.
type DataSink[T any] struct {
	BaseOp
	dataIn  stream.InputDataChannel[T]
	punctIn stream.InputPunctuationChannel
}

// InitSink binds the consuming slots of the sink.
func (s *DataSink[T]) InitSink(name string, synchronized bool,
	dataSlot stream.DataSlot[T], punctSlot stream.PunctuationSlot) {
	s.InitBase(name)
	s.dataIn.Bind(dataSlot, synchronized)
	s.punctIn.Bind(punctSlot, synchronized)
}

// InputDataChannel returns the sink's data channel.
func (s *DataSink[T]) InputDataChannel() *stream.InputDataChannel[T] {
	return &s.dataIn
}

// InputPunctuationChannel returns the sink's punctuation channel.
func (s *DataSink[T]) InputPunctuationChannel() *stream.InputPunctuationChannel {
	return &s.punctIn
}

// UnaryTransform is the base for operators consuming elements of type In and
// producing elements of type Out.
type UnaryTransform[In, Out any] struct {
	DataSource[Out]
	dataIn  stream.InputDataChannel[In]
	punctIn stream.InputPunctuationChannel
}

// InitUnary binds the consuming slots of the transform.
func (t *UnaryTransform[In, Out]) InitUnary(name string, synchronized bool,
	dataSlot stream.DataSlot[In], punctSlot stream.PunctuationSlot) {
	t.InitBase(name)
	t.dataIn.Bind(dataSlot, synchronized)
	t.punctIn.Bind(punctSlot, synchronized)
}

// InputDataChannel returns the transform's input data channel.
func (t *UnaryTransform[In, Out]) InputDataChannel() *stream.InputDataChannel[In] {
	return &t.dataIn
}

// InputPunctuationChannel returns the transform's input punctuation channel.
func (t *UnaryTransform[In, Out]) InputPunctuationChannel() *stream.InputPunctuationChannel {
	return &t.punctIn
}

// BinaryTransform is the base for operators consuming two input streams of
// types L and R and producing elements of type Out. Both data channels and
// the shared punctuation channel are synchronized because the two inputs are
// typically fed from different source goroutines.
type BinaryTransform[L, R, Out any] struct {
	DataSource[Out]
	leftIn  stream.InputDataChannel[L]
	rightIn stream.InputDataChannel[R]
	punctIn stream.InputPunctuationChannel
}

// InitBinary binds the consuming slots of the transform.
func (t *BinaryTransform[L, R, Out]) InitBinary(name string,
	leftSlot stream.DataSlot[L], rightSlot stream.DataSlot[R],
	punctSlot stream.PunctuationSlot) {
	t.InitBase(name)
	t.leftIn.Bind(leftSlot, true)
	t.rightIn.Bind(rightSlot, true)
	t.punctIn.Bind(punctSlot, true)
}

// LeftInputDataChannel returns the input channel of the left stream.
func (t *BinaryTransform[L, R, Out]) LeftInputDataChannel() *stream.InputDataChannel[L] {
	return &t.leftIn
}

// RightInputDataChannel returns the input channel of the right stream.
func (t *BinaryTransform[L, R, Out]) RightInputDataChannel() *stream.InputDataChannel[R] {
	return &t.rightIn
}

// InputPunctuationChannel returns the shared punctuation channel.
func (t *BinaryTransform[L, R, Out]) InputPunctuationChannel() *stream.InputPunctuationChannel {
	return &t.punctIn
}

// Publisher is the output side of an operator carrying elements of type T.
type Publisher[T any] interface {
	OutputDataChannel() *stream.OutputDataChannel[T]
	OutputPunctuationChannel() *stream.OutputPunctuationChannel
}

// Subscriber is the input side of an operator carrying elements of type T.
type Subscriber[T any] interface {
	InputDataChannel() *stream.InputDataChannel[T]
	InputPunctuationChannel() *stream.InputPunctuationChannel
}

// Connect links a publisher with a subscriber: the subscriber receives all
// data elements and punctuations the publisher emits. The element types must
// be identical, which the type system enforces.
func Connect[T any](pub Publisher[T], sub Subscriber[T]) {
	stream.ConnectData(pub.OutputDataChannel(), sub.InputDataChannel())
	stream.ConnectPunctuation(pub.OutputPunctuationChannel(), sub.InputPunctuationChannel())
}
