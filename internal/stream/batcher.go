package stream

import "time"

// DefaultMaxStreamsPerRequest bounds how many streams one request may carry.
const DefaultMaxStreamsPerRequest = 20

// Batcher turns "these streams need data" into as few FetchRequests as
// possible.
type Batcher struct {
	// Step is the sampling granularity requested from the backend.
	Step time.Duration
	// Offset is subtracted from both bounds to allow for ingestion lag.
	Offset time.Duration
	// TimeWindow is used as the lookback for empty streams in incremental
	// builds.
	TimeWindow time.Duration
	// MaxStreams caps the streams per request; zero or less means no cap.
	MaxStreams int
	// NextID hands out request ids.
	NextID func() int64
}

// Build returns the requests covering every stream exactly once.
//
// With a non-nil window every stream is fetched over it. With a nil window
// the build is incremental: each stream is fetched from its last timestamp up
// to now, which is what live polling uses after the first cycle.
//
// Each stream's single-stream request is merged into the first compatible
// request built so far, otherwise appended. Stream order only decides which
// request absorbs which stream. Requests never span machines, since the poll
// path and push args name a single resource, so streams with identical bounds
// and step on different machines still yield one request per machine.
func (b *Batcher) Build(streams []*MetricStream, window *Window, now time.Time) []*FetchRequest {
	var requests []*FetchRequest
	for _, s := range streams {
		candidate := b.single(s, window, now)

		merged := false
		for _, r := range requests {
			if r.CanMerge(candidate, b.MaxStreams) {
				r.Merge(candidate)
				merged = true
				break
			}
		}
		if !merged {
			candidate.ID = b.nextID()
			requests = append(requests, candidate)
		}
	}
	return requests
}

func (b *Batcher) single(s *MetricStream, window *Window, now time.Time) *FetchRequest {
	var from, until time.Time
	if window != nil {
		from, until = window.From, window.Until
	} else {
		from = s.LastTimestamp()
		if from.IsZero() {
			from = now.Add(-b.TimeWindow)
		}
		until = now
	}
	return &FetchRequest{
		From:    from.Add(-b.Offset),
		Until:   until.Add(-b.Offset),
		Step:    b.Step,
		Target:  s.Resource,
		Streams: []*MetricStream{s},
	}
}

func (b *Batcher) nextID() int64 {
	if b.NextID == nil {
		return 0
	}
	return b.NextID()
}
