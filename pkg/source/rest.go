package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/dbis-ilm/pipefabric-go/pkg/qop"
	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
	"github.com/dbis-ilm/pipefabric-go/pkg/tuple"
)

// RESTMethod selects the HTTP method accepted by a RESTSource.
type RESTMethod string

const (
	GetMethod    RESTMethod = http.MethodGet
	PostMethod   RESTMethod = http.MethodPost
	PutMethod    RESTMethod = http.MethodPut
	DeleteMethod RESTMethod = http.MethodDelete
)

// RESTSource runs an HTTP server and emits one one-field tuple per request
// body. Start blocks until Stop shuts the server down, then publishes
// EndOfStream.
type RESTSource struct {
	qop.DataSource[*tuple.Tuple]
	port   int
	path   string
	method RESTMethod
	server *http.Server
	count  atomic.Uint64
}

// NewRESTSource creates a new REST source listening on the given port and
// path.
func NewRESTSource(port int, path string, method RESTMethod) *RESTSource {
	op := &RESTSource{port: port, path: path, method: method}
	op.InitBase("RESTSource")
	return op
}

// Start runs the HTTP server until Stop is called.
func (op *RESTSource) Start() (uint64, error) {
	mux := http.NewServeMux()
	mux.HandleFunc(op.path, op.handle)
	op.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", op.port),
		Handler: mux,
	}

	err := op.server.ListenAndServe()
	op.PublishPunctuation(stream.NewPunctuation(stream.EndOfStream))
	if err == http.ErrServerClosed {
		err = nil
	}
	return op.count.Load(), err
}

func (op *RESTSource) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != string(op.method) {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	op.PublishElement(tuple.MustNew(string(body)), false)
	op.count.Add(1)
	w.WriteHeader(http.StatusOK)
}

// Stop shuts the HTTP server down.
func (op *RESTSource) Stop() {
	if op.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		op.server.Shutdown(ctx)
	}
}
