package source

import (
	"context"
	"errors"

	"github.com/segmentio/kafka-go"

	"github.com/dbis-ilm/pipefabric-go/pkg/qop"
	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
	"github.com/dbis-ilm/pipefabric-go/pkg/tuple"
)

// KafkaSource consumes a Kafka topic and emits one one-field tuple per
// message. The field references the message payload; operators that keep the
// tuple must Clone it.
type KafkaSource struct {
	qop.DataSource[*tuple.Tuple]
	reader *kafka.Reader
	cancel context.CancelFunc
}

// NewKafkaSource creates a new Kafka source reading from the given brokers,
// topic and consumer group.
func NewKafkaSource(brokers []string, topic, groupID string) *KafkaSource {
	op := &KafkaSource{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
	}
	op.InitBase("KafkaSource")
	return op
}

// Start consumes messages until Stop is called or the reader fails.
func (op *KafkaSource) Start() (uint64, error) {
	ctx, cancel := context.WithCancel(context.Background())
	op.cancel = cancel

	var count uint64
	var err error
	for {
		var msg kafka.Message
		msg, err = op.reader.ReadMessage(ctx)
		if err != nil {
			break
		}
		op.PublishElement(tuple.MustNew(msg.Value), false)
		count++
	}

	op.PublishPunctuation(stream.NewPunctuation(stream.EndOfStream))
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return count, err
}

// Stop cancels the consume loop and closes the reader.
func (op *KafkaSource) Stop() {
	if op.cancel != nil {
		op.cancel()
	}
	op.reader.Close()
}

func init() {
	Register("kafka", func(cfg map[string]string) (Source, error) {
		broker := cfg["broker"]
		topic := cfg["topic"]
		if broker == "" || topic == "" {
			return nil, NewConnectionError("kafka", broker, errors.New("broker and topic required"))
		}
		return NewKafkaSource([]string{broker}, topic, cfg["group"]), nil
	})
}
