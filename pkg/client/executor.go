// Package client bridges the blocking, non-reentrant SFTP connection
// handle to an asynchronous, concurrency-safe API.
//
// Architecture:
// A single executor goroutine owns the remotefs.Conn. Callers never
// touch the handle; they enqueue pending requests through the facade
// and await their single-resolution result. The executor dispatches
// strictly first-in-first-out and runs each operation to completion
// before the next, because interleaving requests on the one logical
// channel would corrupt response correlation. This queue is the sole
// synchronization point in the system.
package client

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/marmos91/sftpbridge/internal/logger"
	"github.com/marmos91/sftpbridge/pkg/remotefs"
)

// State describes the executor lifecycle.
//
// Transitions: Open -> Closing on Close(), Closing -> Closed once the
// in-flight operation (if any) has drained and the handle is released.
// Closed is terminal.
type State int

const (
	// StateOpen accepts and drains requests.
	StateOpen State = iota

	// StateClosing accepts no new requests; the in-flight operation
	// drains, queued requests are failed.
	StateClosing

	// StateClosed is terminal: the handle has been released.
	StateClosed
)

// String returns the lifecycle state name.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// Stats is a snapshot of executor operation counters.
type Stats struct {
	// Submitted counts requests accepted into the queue.
	Submitted uint64

	// Completed counts dispatched requests that succeeded.
	Completed uint64

	// Failed counts dispatched or drained requests that resolved with
	// an error.
	Failed uint64

	// Rejected counts requests refused because the executor was not
	// open.
	Rejected uint64
}

// result is the terminal value of a pending request.
type result struct {
	value any
	err   error
}

// request is a queued operation awaiting execution or delivery.
//
// Each request is resolved exactly once: rejected at submission,
// executed by the worker, or failed during drain.
type request struct {
	id   uuid.UUID
	op   string
	path string
	fn   func(remotefs.Conn) (any, error)

	once sync.Once
	done chan result
}

// resolve delivers the result. The done channel is buffered so the
// worker never blocks on a caller that abandoned its wait.
func (r *request) resolve(value any, err error) {
	r.once.Do(func() {
		r.done <- result{value: value, err: err}
	})
}

// Executor owns the connection handle and serializes every operation
// against it.
//
// Thread safety: all methods are safe for concurrent use. Close() is
// idempotent and may be called concurrently with in-flight requests.
type Executor struct {
	// conn is the exclusively-owned handle. Only the worker goroutine
	// ever invokes its methods.
	conn remotefs.Conn

	// mu guards queue and state; cond signals the worker.
	mu    sync.Mutex
	cond  *sync.Cond
	queue []*request
	state State

	// workerDone is closed when the worker goroutine exits.
	workerDone chan struct{}

	// closeOnce ensures teardown runs exactly once.
	closeOnce sync.Once
	closeErr  error

	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	rejected  atomic.Uint64
}

// NewExecutor starts an executor owning conn.
//
// The caller hands over ownership: after this call the handle must not
// be used directly by anyone else.
func NewExecutor(conn remotefs.Conn) *Executor {
	if conn == nil {
		panic("executor: conn cannot be nil")
	}

	e := &Executor{
		conn:       conn,
		workerDone: make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)

	go e.run()

	return e
}

// State returns the current lifecycle state.
func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Stats returns a snapshot of the operation counters.
func (e *Executor) Stats() Stats {
	return Stats{
		Submitted: e.submitted.Load(),
		Completed: e.completed.Load(),
		Failed:    e.failed.Load(),
		Rejected:  e.rejected.Load(),
	}
}

// Submit enqueues an operation for serialized execution and returns
// the pending request.
//
// When the executor is not open the request is resolved immediately
// with a ConnectionClosed error instead of being queued; the returned
// request's done channel always delivers exactly one result, so
// callers can await it unconditionally.
func (e *Executor) submit(op, path string, fn func(remotefs.Conn) (any, error)) *request {
	req := &request{
		id:   uuid.New(),
		op:   op,
		path: path,
		fn:   fn,
		done: make(chan result, 1),
	}

	e.mu.Lock()
	if e.state != StateOpen {
		state := e.state
		e.mu.Unlock()

		e.rejected.Add(1)
		logger.Debug("executor: rejecting %s %q id=%s state=%s", op, path, req.id, state)
		req.resolve(nil, closedError(op, path))
		return req
	}

	e.queue = append(e.queue, req)
	e.submitted.Add(1)
	e.cond.Signal()
	e.mu.Unlock()

	return req
}

// Close initiates teardown: no new requests are accepted, the
// in-flight operation (if any) drains to completion, every
// queued-but-undispatched request resolves with ConnectionClosed, and
// the handle is released.
//
// Safe to call multiple times; later calls return the first teardown
// result.
func (e *Executor) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		if e.state == StateOpen {
			e.state = StateClosing
			e.cond.Broadcast()
		}
		e.mu.Unlock()

		// Wait for the in-flight operation and the queue drain.
		<-e.workerDone

		e.closeErr = e.conn.Close()

		e.mu.Lock()
		e.state = StateClosed
		e.mu.Unlock()

		logger.Debug("executor: closed (stats=%+v)", e.Stats())
	})

	return e.closeErr
}

// run is the worker loop. It is the only goroutine that ever touches
// the connection handle.
func (e *Executor) run() {
	defer close(e.workerDone)

	for {
		e.mu.Lock()
		for len(e.queue) == 0 && e.state == StateOpen {
			e.cond.Wait()
		}

		if e.state != StateOpen {
			pending := e.queue
			e.queue = nil
			e.mu.Unlock()

			for _, req := range pending {
				e.failed.Add(1)
				logger.Debug("executor: draining %s %q id=%s", req.op, req.path, req.id)
				req.resolve(nil, closedError(req.op, req.path))
			}
			return
		}

		req := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		logger.Debug("executor: dispatch %s %q id=%s", req.op, req.path, req.id)
		value, err := req.fn(e.conn)
		if err != nil {
			e.failed.Add(1)
		} else {
			e.completed.Add(1)
		}
		req.resolve(value, err)
	}
}

// closedError builds the ConnectionClosed error delivered to rejected
// and drained requests.
func closedError(op, path string) error {
	return &remotefs.Error{
		Code: remotefs.ErrConnectionClosed,
		Op:   op,
		Path: path,
	}
}
