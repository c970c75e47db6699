package testing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rileyhilliard/statline/internal/stream"
)

// Dispatched records one Dispatch call.
type Dispatched struct {
	Request *stream.FetchRequest
	deliver func(stream.Response)
	fail    func(error)
}

// FakeTransport records dispatched requests and lets tests answer them.
type FakeTransport struct {
	mu       sync.Mutex
	requests []*Dispatched
	closed   bool
}

// NewFakeTransport creates an empty fake transport.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{}
}

// Dispatch records the request. Nothing is sent until Respond or Fail.
func (f *FakeTransport) Dispatch(_ context.Context, req *stream.FetchRequest, deliver func(stream.Response), fail func(error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, &Dispatched{Request: req, deliver: deliver, fail: fail})
}

// Close marks the transport closed.
func (f *FakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *FakeTransport) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Requests returns every dispatched request in order.
func (f *FakeTransport) Requests() []*stream.FetchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*stream.FetchRequest, len(f.requests))
	for i, d := range f.requests {
		out[i] = d.Request
	}
	return out
}

// Last returns the n most recently dispatched requests.
func (f *FakeTransport) Last(n int) []*stream.FetchRequest {
	all := f.Requests()
	if n > len(all) {
		n = len(all)
	}
	return all[len(all)-n:]
}

// Count returns how many requests were dispatched.
func (f *FakeTransport) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// Respond delivers metrics for the request with the given id.
func (f *FakeTransport) Respond(id int64, metrics map[string][]stream.Datapoint) error {
	d, err := f.find(id)
	if err != nil {
		return err
	}
	d.deliver(stream.Response{RequestID: id, Metrics: metrics})
	return nil
}

// Fail reports a transport failure for the request with the given id.
func (f *FakeTransport) Fail(id int64, cause error) error {
	d, err := f.find(id)
	if err != nil {
		return err
	}
	d.fail(cause)
	return nil
}

// RespondAll answers every request dispatched so far with the same points
// for every metric it asked for.
func (f *FakeTransport) RespondAll(points []stream.Datapoint) {
	f.mu.Lock()
	pending := make([]*Dispatched, len(f.requests))
	copy(pending, f.requests)
	f.mu.Unlock()

	for _, d := range pending {
		metrics := make(map[string][]stream.Datapoint)
		for _, m := range d.Request.Metrics() {
			metrics[m] = points
		}
		d.deliver(stream.Response{RequestID: d.Request.ID, Metrics: metrics})
	}
}

func (f *FakeTransport) find(id int64) (*Dispatched, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].Request.ID == id {
			return f.requests[i], nil
		}
	}
	return nil, fmt.Errorf("no request with id %d was dispatched", id)
}

// Points builds datapoints at the given unix seconds with the given values.
func Points(pairs ...float64) []stream.Datapoint {
	out := make([]stream.Datapoint, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, stream.Datapoint{
			Time:  time.Unix(int64(pairs[i]), 0),
			Value: pairs[i+1],
		})
	}
	return out
}
