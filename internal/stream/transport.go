package stream

import (
	"context"
	"time"
)

// Response is a stats response validated at the transport boundary:
// datapoints per metric id, keyed by the request id it answers.
type Response struct {
	RequestID int64
	Metrics   map[string][]Datapoint
}

// Transport sends FetchRequests to the backend.
//
// Dispatch must not block on I/O. It reports the outcome by calling exactly
// one of deliver or fail, from any goroutine; the scheduler's callbacks hop
// back onto its loop.
type Transport interface {
	Dispatch(ctx context.Context, req *FetchRequest, deliver func(Response), fail func(error))
	Close() error
}

// Notifier surfaces user-facing failures, e.g. as a toast or status line.
type Notifier interface {
	Notify(err error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(err error)

// Notify calls f(err).
func (f NotifierFunc) Notify(err error) { f(err) }

// Observer receives scheduler events for instrumentation.
type Observer interface {
	CycleStarted(requests, streams int)
	RequestDispatched(req *FetchRequest)
	ResponseReconciled(req *FetchRequest, points int)
	StaleResponse(requestID int64)
	RequestFailed(req *FetchRequest, err error)
	RetryScheduled(delay time.Duration)
	CycleEnded(elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) CycleStarted(int, int)                    {}
func (noopObserver) RequestDispatched(*FetchRequest)          {}
func (noopObserver) ResponseReconciled(*FetchRequest, int)    {}
func (noopObserver) StaleResponse(int64)                      {}
func (noopObserver) RequestFailed(*FetchRequest, error)       {}
func (noopObserver) RetryScheduled(time.Duration)             {}
func (noopObserver) CycleEnded(time.Duration)                 {}
