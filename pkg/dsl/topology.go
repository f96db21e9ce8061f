package dsl

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dbis-ilm/pipefabric-go/pkg/config"
	"github.com/dbis-ilm/pipefabric-go/pkg/health"
	"github.com/dbis-ilm/pipefabric-go/pkg/logger"
	"github.com/dbis-ilm/pipefabric-go/pkg/qop"
	"github.com/dbis-ilm/pipefabric-go/pkg/source"
	"github.com/dbis-ilm/pipefabric-go/pkg/tuple"
)

// StartupFunc is the signature of a source start function: it runs the
// source to completion and returns the number of produced elements.
type StartupFunc func() (uint64, error)

// PrepareFunc is invoked once before any startup function, e.g. by sources
// that must load data before emitting.
type PrepareFunc func() error

// Topology represents a dataflow graph of operators and is the main entry
// point for a stream processing query. Sources create pipes which connect
// further operators; Start runs the registered source start functions either
// serially or each on its own goroutine.
type Topology struct {
	dataflow *Dataflow
	cfg      *config.Config
	log      *logger.Logger
	checker  *health.Checker

	mu           sync.Mutex
	startupList  []StartupFunc
	prepareList  []PrepareFunc
	sources      []source.Source
	closers      []qop.Closer
	buildErr     error
	asyncStarted bool
	group        *errgroup.Group
	running      int
	timerStop    chan struct{}
	timerOnce    sync.Once
}

// NewTopology constructs a new empty topology with default configuration.
func NewTopology() *Topology {
	return newTopology(config.New(), logger.New("topology", "1.0"))
}

func newTopology(cfg *config.Config, log *logger.Logger) *Topology {
	return &Topology{
		dataflow:  NewDataflow(),
		cfg:       cfg,
		log:       log,
		checker:   health.NewChecker(),
		timerStop: make(chan struct{}),
	}
}

// Dataflow returns the operator graph of the topology.
func (t *Topology) Dataflow() *Dataflow { return t.dataflow }

// Logger returns the topology logger.
func (t *Topology) Logger() *logger.Logger { return t.log }

// HealthChecker returns the topology health checker. It carries a "sources"
// check reporting whether source goroutines are still running.
func (t *Topology) HealthChecker() *health.Checker { return t.checker }

// RegisterStartupFunction registers the start function of a source operator.
// Startup functions are executed by Start.
func (t *Topology) RegisterStartupFunction(fn StartupFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startupList = append(t.startupList, fn)
}

// RegisterPrepareFunction registers a function executed by Prepare before any
// startup function.
func (t *Topology) RegisterPrepareFunction(fn PrepareFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prepareList = append(t.prepareList, fn)
}

// registerCloser records an operator owning helper goroutines for shutdown.
func (t *Topology) registerCloser(c qop.Closer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closers = append(t.closers, c)
}

// registerSource records a stoppable source adapter.
func (t *Topology) registerSource(s source.Source) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sources = append(t.sources, s)
}

// setBuildErr records the first build error raised by a pipe step.
func (t *Topology) setBuildErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.buildErr == nil {
		t.buildErr = err
	}
}

// BuildError returns the first wiring or configuration error raised while
// assembling the topology, if any.
func (t *Topology) BuildError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buildErr
}

// Err returns the first wiring or configuration error raised while
// assembling the topology, if any.
func (t *Topology) Err() error {
	return t.BuildError()
}

// Prepare runs all registered prepare functions serially.
func (t *Topology) Prepare() error {
	if err := t.BuildError(); err != nil {
		return err
	}
	t.mu.Lock()
	prepares := append([]PrepareFunc(nil), t.prepareList...)
	t.mu.Unlock()

	for _, fn := range prepares {
		if err := fn(); err != nil {
			t.log.Errorf("prepare failed: %v", err)
			return err
		}
	}
	return nil
}

// Start starts the processing of the topology by invoking the start
// functions of all sources. With async = false the functions run serially on
// the calling goroutine and Start returns when all have finished; with
// async = true each runs on its own goroutine and Wait joins them.
func (t *Topology) Start(async bool) error {
	if err := t.BuildError(); err != nil {
		t.log.Errorf("refusing to start: %v", err)
		return err
	}
	if async {
		t.StartAsync()
		return nil
	}

	t.mu.Lock()
	startups := append([]StartupFunc(nil), t.startupList...)
	t.mu.Unlock()

	for _, fn := range startups {
		if _, err := t.runStartup(fn); err != nil {
			return err
		}
	}
	return nil
}

// StartAsync launches every startup function on a fresh goroutine.
func (t *Topology) StartAsync() {
	t.mu.Lock()
	if t.group == nil {
		t.group = &errgroup.Group{}
	}
	startups := append([]StartupFunc(nil), t.startupList...)
	t.asyncStarted = true
	t.running += len(startups)
	group := t.group
	t.mu.Unlock()

	t.checker.RunCheck("sources", t.sourcesCheck)

	for _, fn := range startups {
		fn := fn
		group.Go(func() error {
			_, err := t.runStartup(fn)
			t.mu.Lock()
			t.running--
			t.mu.Unlock()
			t.checker.RunCheck("sources", t.sourcesCheck)
			return err
		})
	}
}

// runStartup invokes one startup function, converting a panic in a user
// callable into an error that aborts this source's run only.
func (t *Topology) runStartup(fn StartupFunc) (count uint64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("source aborted: %v", r)
			t.log.Errorf("source aborted by panic: %v", r)
		}
	}()
	count, err = fn()
	if err != nil {
		t.log.Errorf("source finished with error: %v", err)
	} else {
		t.log.Debugf("source finished, %d tuples produced", count)
	}
	return count, err
}

// Wait blocks until the execution of an asynchronously started topology has
// stopped and returns the first source error.
func (t *Topology) Wait() error {
	t.mu.Lock()
	group := t.group
	started := t.asyncStarted
	t.mu.Unlock()
	if !started || group == nil {
		return nil
	}
	return group.Wait()
}

// RunEvery launches a timer goroutine that re-runs the topology's startup
// functions asynchronously every interval, until Stop is called.
func (t *Topology) RunEvery(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.StartAsync()
			case <-t.timerStop:
				return
			}
		}
	}()
}

// Stop terminates the topology: the re-run timer, all running sources and
// all operators owning helper goroutines.
func (t *Topology) Stop() {
	t.timerOnce.Do(func() {
		close(t.timerStop)
	})

	t.mu.Lock()
	sources := append([]source.Source(nil), t.sources...)
	closers := append([]qop.Closer(nil), t.closers...)
	t.mu.Unlock()

	for _, s := range sources {
		s.Stop()
	}
	t.Wait()
	for _, c := range closers {
		c.Close()
	}
	t.log.Info("topology stopped")
}

func (t *Topology) sourcesCheck() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.asyncStarted && t.running == 0 {
		return fmt.Errorf("no source running")
	}
	return nil
}

/*-------------------------------- sources ---------------------------------*/

// NewStreamFromFile creates a pipe reading one-field line tuples from a text
// file. limit == 0 reads until EOF.
func (t *Topology) NewStreamFromFile(fname string, limit uint64) Pipe[*tuple.Tuple] {
	op := source.NewTextFileSource(fname, limit)
	t.registerSource(op)
	t.RegisterStartupFunction(op.Start)
	return newPipe[*tuple.Tuple](t, t.dataflow.AddPublisher(op))
}

// NewStreamFromMemory creates a pipe replaying a delimited file that is
// loaded into memory during Prepare.
func (t *Topology) NewStreamFromMemory(fname string, delim byte, schema []tuple.Kind, limit uint64) Pipe[*tuple.Tuple] {
	op := source.NewMemorySource(fname, delim, schema, limit)
	t.registerSource(op)
	t.RegisterPrepareFunction(op.Prepare)
	t.RegisterStartupFunction(op.Start)
	return newPipe[*tuple.Tuple](t, t.dataflow.AddPublisher(op))
}

// NewStreamFromREST creates a pipe receiving one-field tuples via an HTTP
// server. The source runs until Stop.
func (t *Topology) NewStreamFromREST(port int, path string, method source.RESTMethod) Pipe[*tuple.Tuple] {
	op := source.NewRESTSource(port, path, method)
	t.registerSource(op)
	t.RegisterStartupFunction(op.Start)
	return newPipe[*tuple.Tuple](t, t.dataflow.AddPublisher(op))
}

// NewStreamFromKafka creates a pipe consuming a Kafka topic.
func (t *Topology) NewStreamFromKafka(brokers []string, topic, groupID string) Pipe[*tuple.Tuple] {
	op := source.NewKafkaSource(brokers, topic, groupID)
	t.registerSource(op)
	t.RegisterStartupFunction(op.Start)
	return newPipe[*tuple.Tuple](t, t.dataflow.AddPublisher(op))
}

// NewStreamFromMQTT creates a pipe subscribing to an MQTT topic.
func (t *Topology) NewStreamFromMQTT(broker, topic, clientID string) Pipe[*tuple.Tuple] {
	op := source.NewMQTTSource(broker, topic, clientID)
	t.registerSource(op)
	t.RegisterStartupFunction(op.Start)
	return newPipe[*tuple.Tuple](t, t.dataflow.AddPublisher(op))
}

// NewStreamFromWebSocket creates a pipe receiving tuples over a WebSocket
// connection, either as text lines or binary-encoded tuples.
func (t *Topology) NewStreamFromWebSocket(url string, encoding source.EncodingMode) Pipe[*tuple.Tuple] {
	op := source.NewWebSocketSource(url, encoding)
	t.registerSource(op)
	t.RegisterStartupFunction(op.Start)
	return newPipe[*tuple.Tuple](t, t.dataflow.AddPublisher(op))
}

// StreamFromGenerator creates a pipe emitting num elements produced by the
// generator function.
func StreamFromGenerator[T any](t *Topology, gen source.GeneratorFunc[T], num uint64) Pipe[T] {
	op := source.NewStreamGenerator(gen, num)
	t.registerSource(op)
	t.RegisterStartupFunction(op.Start)
	return newPipe[T](t, t.dataflow.AddPublisher(op))
}

// StreamFromSource creates a pipe from a custom source adapter implementing
// both the source contract and the publisher interface.
func StreamFromSource[T any, S interface {
	source.Source
	qop.Publisher[T]
	qop.Operator
}](t *Topology, op S) Pipe[T] {
	t.registerSource(op)
	if p, ok := any(op).(source.Preparable); ok {
		t.RegisterPrepareFunction(p.Prepare)
	}
	t.RegisterStartupFunction(op.Start)
	return newPipe[T](t, t.dataflow.AddPublisher(op))
}
