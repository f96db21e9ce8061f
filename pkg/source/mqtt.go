package source

import (
	"errors"
	"sync"
	"sync/atomic"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dbis-ilm/pipefabric-go/pkg/qop"
	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
	"github.com/dbis-ilm/pipefabric-go/pkg/tuple"
)

// MQTTSource subscribes to an MQTT topic and emits one one-field tuple per
// received message.
type MQTTSource struct {
	qop.DataSource[*tuple.Tuple]
	broker    string
	topic     string
	clientID  string
	client    mqtt.Client
	count     atomic.Uint64
	stop      chan struct{}
	closeOnce sync.Once
}

// NewMQTTSource creates a new MQTT source for the given broker URL and topic.
func NewMQTTSource(broker, topic, clientID string) *MQTTSource {
	op := &MQTTSource{
		broker:   broker,
		topic:    topic,
		clientID: clientID,
		stop:     make(chan struct{}),
	}
	op.InitBase("MQTTSource")
	return op
}

// Start connects to the broker, subscribes, and blocks until Stop is called.
func (op *MQTTSource) Start() (uint64, error) {
	opts := mqtt.NewClientOptions().AddBroker(op.broker).SetClientID(op.clientID)
	op.client = mqtt.NewClient(opts)

	if token := op.client.Connect(); token.Wait() && token.Error() != nil {
		op.PublishPunctuation(stream.NewPunctuation(stream.EndOfStream))
		return 0, NewConnectionError("mqtt", op.broker, token.Error())
	}

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		op.PublishElement(tuple.MustNew(string(msg.Payload())), false)
		op.count.Add(1)
	}
	if token := op.client.Subscribe(op.topic, 0, handler); token.Wait() && token.Error() != nil {
		op.client.Disconnect(250)
		op.PublishPunctuation(stream.NewPunctuation(stream.EndOfStream))
		return 0, NewConnectionError("mqtt", op.broker, token.Error())
	}

	<-op.stop
	op.client.Unsubscribe(op.topic)
	op.client.Disconnect(250)
	op.PublishPunctuation(stream.NewPunctuation(stream.EndOfStream))
	return op.count.Load(), nil
}

// Stop terminates the subscription.
func (op *MQTTSource) Stop() {
	op.closeOnce.Do(func() {
		close(op.stop)
	})
}

func init() {
	Register("mqtt", func(cfg map[string]string) (Source, error) {
		broker := cfg["broker"]
		topic := cfg["topic"]
		if broker == "" || topic == "" {
			return nil, NewConnectionError("mqtt", broker, errors.New("broker and topic required"))
		}
		return NewMQTTSource(broker, topic, cfg["client_id"]), nil
	})
}
