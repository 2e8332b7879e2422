package session

import (
	"context"
	"errors"
	"sync"

	"github.com/GriffinCanCode/griffin-notebook/internal/infrastructure/logging"
	"github.com/GriffinCanCode/griffin-notebook/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/griffin-notebook/internal/shared/id"
	"go.uber.org/zap"
)

// Op names an asynchronous session operation
type Op string

const (
	OpKernelID       Op = "kernel_id"
	OpShutdownKernel Op = "shutdown_kernel"
)

// queueSize bounds pending operations per session
const queueSize = 32

var (
	// ErrDispatcherClosed is returned after Close
	ErrDispatcherClosed = errors.New("dispatcher is closed")
	// ErrQueueFull is returned when a session has too many pending operations
	ErrQueueFull = errors.New("session operation queue is full")
)

// EpochSource reports the epoch of the server currently running for a root
type EpochSource interface {
	Epoch(rootDir string) (uint64, bool)
}

// EpochFunc adapts a function to EpochSource
type EpochFunc func(rootDir string) (uint64, bool)

// Epoch implements EpochSource
func (f EpochFunc) Epoch(rootDir string) (uint64, bool) { return f(rootDir) }

// Result is the outcome of an asynchronous operation
type Result struct {
	RequestID id.RequestID
	SessionID id.SessionID
	Op        Op
	Epoch     uint64

	// KernelID and Found are set by OpKernelID; Found is also set by
	// OpShutdownKernel when a kernel was stopped.
	KernelID string
	Found    bool
	Err      error
}

type job struct {
	requestID id.RequestID
	session   *Session
	op        Op
	deliver   func(Result)
}

type queue struct {
	jobs chan job
}

// Dispatcher runs session operations off the caller's goroutine. Operations
// for one session run in submission order. A result is delivered only if
// the session's server is still the current server for its root.
type Dispatcher struct {
	client  *Client
	epochs  EpochSource
	logger  *logging.Logger
	metrics *monitoring.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	queues map[id.SessionID]*queue
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher
func NewDispatcher(client *Client, epochs EpochSource, log *logging.Logger) *Dispatcher {
	if log == nil {
		log = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		client: client,
		epochs: epochs,
		logger: log.Named("dispatcher"),
		ctx:    ctx,
		cancel: cancel,
		queues: make(map[id.SessionID]*queue),
	}
}

// WithMetrics attaches a metrics collector
func (d *Dispatcher) WithMetrics(metrics *monitoring.Metrics) *Dispatcher {
	d.metrics = metrics
	return d
}

// KernelID looks up the kernel of s asynchronously
func (d *Dispatcher) KernelID(s *Session, deliver func(Result)) (id.RequestID, error) {
	return d.submit(s, OpKernelID, deliver)
}

// ShutdownKernel stops the kernel of s asynchronously
func (d *Dispatcher) ShutdownKernel(s *Session, deliver func(Result)) (id.RequestID, error) {
	return d.submit(s, OpShutdownKernel, deliver)
}

func (d *Dispatcher) submit(s *Session, op Op, deliver func(Result)) (id.RequestID, error) {
	j := job{
		requestID: id.NewRequestID(),
		session:   s,
		op:        op,
		deliver:   deliver,
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return "", ErrDispatcherClosed
	}

	q, ok := d.queues[s.ID]
	if !ok {
		q = &queue{jobs: make(chan job, queueSize)}
		d.queues[s.ID] = q
		d.wg.Add(1)
		go d.run(q)
	}

	select {
	case q.jobs <- j:
		return j.requestID, nil
	default:
		return "", ErrQueueFull
	}
}

func (d *Dispatcher) run(q *queue) {
	defer d.wg.Done()
	for j := range q.jobs {
		d.execute(j)
	}
}

func (d *Dispatcher) execute(j job) {
	res := Result{
		RequestID: j.requestID,
		SessionID: j.session.ID,
		Op:        j.op,
		Epoch:     j.session.Epoch,
	}

	switch j.op {
	case OpKernelID:
		res.KernelID, res.Found, res.Err = d.client.KernelID(d.ctx, j.session)
	case OpShutdownKernel:
		res.Found, res.Err = d.client.ShutdownKernel(d.ctx, j.session)
	}

	if !d.current(j.session) {
		d.logger.Debug("Dropping stale result",
			zap.String("request_id", j.requestID.String()),
			zap.String("session_id", j.session.ID.String()),
			zap.String("op", string(j.op)),
			zap.Uint64("epoch", j.session.Epoch))
		if d.metrics != nil {
			d.metrics.IncStaleDropped()
		}
		return
	}

	if j.deliver != nil {
		j.deliver(res)
	}
}

// current reports whether the session's server is still the one running
// for its root.
func (d *Dispatcher) current(s *Session) bool {
	if !s.Active() {
		return false
	}
	if d.epochs == nil {
		return true
	}
	epoch, ok := d.epochs.Epoch(s.Server.RootDir)
	return ok && epoch == s.Epoch
}

// Forget stops the worker for a session once its pending operations finish
func (d *Dispatcher) Forget(sessionID id.SessionID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if q, ok := d.queues[sessionID]; ok {
		close(q.jobs)
		delete(d.queues, sessionID)
	}
}

// Close cancels in-flight requests and waits for workers to exit. Results
// of canceled requests are still subject to the staleness check.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for sid, q := range d.queues {
		close(q.jobs)
		delete(d.queues, sid)
	}
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}
