package sink

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/dbis-ilm/pipefabric-go/pkg/qop"
	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
)

// WebSocketSink publishes each non-outdated stream element as one message to
// a WebSocket endpoint.
type WebSocketSink[T any] struct {
	qop.DataSink[T]
	url     string
	marshal MarshalFunc[T]
	mu      sync.Mutex
	conn    *websocket.Conn
}

// NewWebSocketSink creates a new WebSocket sink. The connection is
// established lazily on the first element.
func NewWebSocketSink[T any](url string, marshal MarshalFunc[T]) *WebSocketSink[T] {
	op := &WebSocketSink[T]{url: url, marshal: marshal}
	op.InitSink("WebSocketSink", true, op.processElement, op.processPunctuation)
	return op
}

func (op *WebSocketSink[T]) processElement(data T, outdated bool) {
	if outdated {
		return
	}
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.conn == nil {
		conn, _, err := websocket.DefaultDialer.Dial(op.url, nil)
		if err != nil {
			return
		}
		op.conn = conn
	}
	op.conn.WriteMessage(websocket.BinaryMessage, op.marshal(data))
}

func (op *WebSocketSink[T]) processPunctuation(p *stream.Punctuation) {}

// Close closes the connection.
func (op *WebSocketSink[T]) Close() {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.conn != nil {
		op.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		op.conn.Close()
		op.conn = nil
	}
}
