package sink

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/dbis-ilm/pipefabric-go/pkg/qop"
	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
)

// MarshalFunc converts a stream element to a message payload.
type MarshalFunc[T any] func(data T) []byte

// KafkaSink publishes each non-outdated stream element as one message to a
// Kafka topic.
type KafkaSink[T any] struct {
	qop.DataSink[T]
	writer  *kafka.Writer
	marshal MarshalFunc[T]
}

// NewKafkaSink creates a new Kafka sink for the given broker and topic.
func NewKafkaSink[T any](brokers []string, topic string, marshal MarshalFunc[T]) *KafkaSink[T] {
	op := &KafkaSink[T]{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		marshal: marshal,
	}
	op.InitSink("KafkaSink", true, op.processElement, op.processPunctuation)
	return op
}

func (op *KafkaSink[T]) processElement(data T, outdated bool) {
	if outdated {
		return
	}
	op.writer.WriteMessages(context.Background(), kafka.Message{Value: op.marshal(data)})
}

func (op *KafkaSink[T]) processPunctuation(p *stream.Punctuation) {}

// Close closes the underlying writer.
func (op *KafkaSink[T]) Close() {
	op.writer.Close()
}
