package source

import (
	"errors"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/dbis-ilm/pipefabric-go/pkg/qop"
	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
	"github.com/dbis-ilm/pipefabric-go/pkg/tuple"
)

// EncodingMode selects how WebSocket messages are mapped to tuples.
type EncodingMode int

const (
	// ASCIIMode emits each text message as a one-field string tuple.
	ASCIIMode EncodingMode = iota
	// BinaryMode emits each message payload as a one-field byte tuple for a
	// downstream TupleDeserializer.
	BinaryMode
)

// WebSocketSource connects to a WebSocket endpoint and emits one tuple per
// received message.
type WebSocketSource struct {
	qop.DataSource[*tuple.Tuple]
	url      string
	encoding EncodingMode
	conn     *websocket.Conn
	count    atomic.Uint64
	stopped  atomic.Bool
}

// NewWebSocketSource creates a new WebSocket source for the given URL.
func NewWebSocketSource(url string, encoding EncodingMode) *WebSocketSource {
	op := &WebSocketSource{url: url, encoding: encoding}
	op.InitBase("WebSocketSource")
	return op
}

// Start connects and reads messages until the connection closes or Stop is
// called.
func (op *WebSocketSource) Start() (uint64, error) {
	conn, _, err := websocket.DefaultDialer.Dial(op.url, nil)
	if err != nil {
		op.PublishPunctuation(stream.NewPunctuation(stream.EndOfStream))
		return 0, NewConnectionError("websocket", op.url, err)
	}
	op.conn = conn

	var readErr error
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !op.stopped.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				readErr = err
			}
			break
		}
		var tp *tuple.Tuple
		if op.encoding == ASCIIMode {
			tp = tuple.MustNew(string(data))
		} else {
			tp = tuple.MustNew(data)
		}
		op.PublishElement(tp, false)
		op.count.Add(1)
	}

	op.PublishPunctuation(stream.NewPunctuation(stream.EndOfStream))
	return op.count.Load(), readErr
}

// Stop closes the connection, terminating the read loop.
func (op *WebSocketSource) Stop() {
	op.stopped.Store(true)
	if op.conn != nil {
		op.conn.Close()
	}
}

func init() {
	Register("websocket", func(cfg map[string]string) (Source, error) {
		url := cfg["url"]
		if url == "" {
			return nil, NewConnectionError("websocket", url, errors.New("url required"))
		}
		mode := ASCIIMode
		if cfg["encoding"] == "binary" {
			mode = BinaryMode
		}
		return NewWebSocketSource(url, mode), nil
	})
}
