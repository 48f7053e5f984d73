package operation

import (
	"context"
	"sync/atomic"

	"github.com/ValentinKolb/dMap/lib/record"
)

// Response is the outcome of an operation.
type Response struct {
	// Value is the prior value of the key (the removed value for a remove).
	Value record.Data
	// Found is false if the key had no prior value.
	Found bool
	Err   error
	// Degraded is set when sync backups did not acknowledge within the backup
	// timeout. The mutation is applied anyway.
	Degraded bool
}

// Responder receives the response of an operation.
//
// SendResponse is called exactly once per operation. Implementations must
// reject every further call with ErrResponseAlreadySent.
type Responder interface {
	SendResponse(resp Response) error
}

// Future is a Responder that a caller can wait on.
//
// Thread-safety: SendResponse and Wait can be called from different goroutines.
type Future struct {
	sent atomic.Bool
	ch   chan Response
}

func NewFuture() *Future {
	return &Future{ch: make(chan Response, 1)}
}

// SendResponse implements Responder.
func (f *Future) SendResponse(resp Response) error {
	if !f.sent.CompareAndSwap(false, true) {
		return ErrResponseAlreadySent
	}
	f.ch <- resp
	return nil
}

// Wait blocks until the response arrives or ctx is done.
// Wait must be called at most once.
func (f *Future) Wait(ctx context.Context) (Response, error) {
	select {
	case resp := <-f.ch:
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// ResponderFunc adapts a function to a Responder with exactly-once delivery.
func ResponderFunc(fn func(Response)) Responder {
	return &funcResponder{fn: fn}
}

type funcResponder struct {
	sent atomic.Bool
	fn   func(Response)
}

func (r *funcResponder) SendResponse(resp Response) error {
	if !r.sent.CompareAndSwap(false, true) {
		return ErrResponseAlreadySent
	}
	r.fn(resp)
	return nil
}
