package analysis

import (
	"context"
	"sync/atomic"
)

// Request is the handle for one in-flight analysis. It acts as a
// cancellation token: once canceled (directly or by closing the dispatcher)
// the completion step turns into a no-op that reports OutcomeCanceled.
type Request struct {
	id     string
	seq    uint64
	cancel context.CancelFunc

	canceled atomic.Bool
	done     chan struct{}
	result   *Result
}

func newRequest(id string, seq uint64, cancel context.CancelFunc) *Request {
	return &Request{
		id:     id,
		seq:    seq,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// completedRequest returns a handle that has already finished with result
func completedRequest(id string, result *Result) *Request {
	r := newRequest(id, 0, func() {})
	r.finish(result)
	return r
}

// ID returns the request identifier
func (r *Request) ID() string {
	return r.id
}

// Done is closed when the result is available
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Result blocks until the request finishes and returns its result
func (r *Request) Result() *Result {
	<-r.done
	return r.result
}

// Wait blocks until the request finishes or ctx is done. Giving up on the
// wait does not cancel the request.
func (r *Request) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-r.done:
		return r.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel invalidates the handle and aborts the HTTP call if still running.
// Safe to call more than once and after completion.
func (r *Request) Cancel() {
	r.canceled.Store(true)
	r.cancel()
}

// Valid reports whether the handle may still deliver a result
func (r *Request) Valid() bool {
	return !r.canceled.Load()
}

func (r *Request) finish(result *Result) {
	result.RequestID = r.id
	r.result = result
	close(r.done)
}
