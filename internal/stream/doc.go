// Package stream keeps dashboard metric streams populated from a monitoring
// backend while coalescing fetches into as few network calls as possible.
//
// # Key Components
//
//	MetricStream - One metric series for one monitored resource, with a
//	               time-ordered, duplicate-free datapoint buffer
//	Panel        - A group of streams displayed together
//	FetchRequest - A dispatchable unit covering one or more streams over one
//	               time range and step
//	Batcher      - Greedily merges per-stream requests into FetchRequests
//	Scheduler    - The controller: window, mode, in-flight requests, polling
//	Loop         - The single logical event loop the Scheduler runs on
//
// # Cycle
//
// Every fetch cycle follows the same path:
//
//  1. fetchCycle clears the in-flight set and asks the Batcher for requests
//  2. each request is dispatched through the Transport
//  3. responses come back as events on the Loop and are matched by request id;
//     ids no longer in flight are dropped
//  4. datapoints are filtered to the request bounds and merged into the stream
//     (streaming) or replace its buffer (paused, explicit navigation)
//  5. when nothing is left in flight every panel is redrawn once and, while
//     streaming, the next cycle is scheduled after the poll interval
//
// The poll cadence is measured from the end of a cycle, so a slow backend
// slows the dashboard down instead of piling up requests.
//
// # Concurrency
//
// Scheduler and MetricStream state is only touched on the Loop goroutine.
// Transports run their I/O elsewhere and hand results back through the
// deliver/fail callbacks, which post onto the Loop. Scheduled work (the next
// poll, a failure retry) is a Task the Scheduler cancels on pause, close and
// at the start of every new cycle.
package stream
