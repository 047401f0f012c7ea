package counter

import (
	"context"
	"sync"
)

type resultState int

const (
	statePending resultState = iota
	stateResolved
	stateRejected
)

// observer is a registered callback. Exactly one of the fields is set.
type observer struct {
	success func(int64)
	failure func(error)
	settled func(int64, error)
}

// deliver invokes the observer if it matches the settled direction.
func (o observer) deliver(value int64, err error) {
	switch {
	case o.settled != nil:
		o.settled(value, err)
	case err == nil && o.success != nil:
		o.success(value)
	case err != nil && o.failure != nil:
		o.failure(err)
	}
}

// Result is the outcome of one counter operation. It starts pending and
// settles exactly once, either resolved with a value or rejected with an
// error.
//
// Observers run on the settling goroutine in registration order, including
// observers registered while settlement is still delivering. Once Done is
// closed, a newly registered observer is called synchronously by the
// registering method. Each observer runs at most once.
type Result struct {
	mu        sync.Mutex
	state     resultState
	value     int64
	err       error
	observers []observer
	delivered bool // every queued observer has run
	done      chan struct{}
}

func newResult() *Result {
	return &Result{done: make(chan struct{})}
}

// OnSuccess registers cb to receive the value if the operation succeeds.
func (r *Result) OnSuccess(cb func(value int64)) *Result {
	return r.register(observer{success: cb})
}

// OnFailure registers cb to receive the error if the operation fails.
func (r *Result) OnFailure(cb func(err error)) *Result {
	return r.register(observer{failure: cb})
}

// OnSettled registers cb to run when the operation completes either way.
// On failure value is 0.
func (r *Result) OnSettled(cb func(value int64, err error)) *Result {
	return r.register(observer{settled: cb})
}

func (r *Result) register(o observer) *Result {
	if o.success == nil && o.failure == nil && o.settled == nil {
		return r
	}

	r.mu.Lock()
	if !r.delivered {
		r.observers = append(r.observers, o)
		r.mu.Unlock()
		return r
	}
	value, err := r.value, r.err
	r.mu.Unlock()

	o.deliver(value, err)
	return r
}

// Done returns a channel closed once the result has settled and every
// observer queued before settlement has run.
func (r *Result) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the result settles or ctx is done. Giving up on ctx does
// not cancel the underlying request.
func (r *Result) Wait(ctx context.Context) (int64, error) {
	select {
	case <-r.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.value, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Settled reports the outcome without blocking. ok is false while pending.
func (r *Result) Settled() (value int64, err error, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == statePending {
		return 0, nil, false
	}
	return r.value, r.err, true
}

func (r *Result) resolve(value int64) {
	r.settle(stateResolved, value, nil)
}

func (r *Result) reject(err error) {
	r.settle(stateRejected, 0, err)
}

func (r *Result) settle(state resultState, value int64, err error) {
	r.mu.Lock()
	if r.state != statePending {
		r.mu.Unlock()
		return
	}
	r.state = state
	r.value = value
	r.err = err

	// Observers may register more observers; drain until none are left.
	for len(r.observers) > 0 {
		observers := r.observers
		r.observers = nil
		r.mu.Unlock()

		for _, o := range observers {
			o.deliver(value, err)
		}
		r.mu.Lock()
	}
	r.delivered = true
	r.mu.Unlock()
	close(r.done)
}
