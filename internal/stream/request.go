package stream

import (
	"fmt"
	"net/url"
	"time"
)

// FetchRequest is one dispatchable fetch covering one or more streams of the
// same resource over one time range and step.
//
// Once dispatched, ID is the only key used to match the response. Streams
// only ever grow, through Merge.
type FetchRequest struct {
	ID      int64
	From    time.Time
	Until   time.Time
	Step    time.Duration
	Target  Resource
	Streams []*MetricStream
}

// Metrics returns the distinct metric ids to request, in stream order.
func (r *FetchRequest) Metrics() []string {
	seen := make(map[string]bool, len(r.Streams))
	out := make([]string, 0, len(r.Streams))
	for _, s := range r.Streams {
		if seen[s.MetricID] {
			continue
		}
		seen[s.MetricID] = true
		out = append(out, s.MetricID)
	}
	return out
}

// Path returns the stats path of the request's resource on the backend.
func (r *FetchRequest) Path() string {
	return fmt.Sprintf("/backends/%s/machines/%s/stats",
		url.PathEscape(r.Target.OwnerID), url.PathEscape(r.Target.ResourceID))
}

// Window returns the request bounds.
func (r *FetchRequest) Window() Window {
	return Window{From: r.From, Until: r.Until}
}

// CanMerge reports whether other can be folded into r: same bounds, step and
// target, and the combined stream set stays within limit. A limit of zero or
// less means no limit.
func (r *FetchRequest) CanMerge(other *FetchRequest, limit int) bool {
	if other == nil || r == other {
		return false
	}
	if !r.From.Equal(other.From) || !r.Until.Equal(other.Until) {
		return false
	}
	if r.Step != other.Step || r.Target != other.Target {
		return false
	}
	if limit > 0 && r.unionLen(other) > limit {
		return false
	}
	return true
}

// Merge adds other's streams to r, skipping streams r already has.
func (r *FetchRequest) Merge(other *FetchRequest) {
	for _, s := range other.Streams {
		if !r.has(s) {
			r.Streams = append(r.Streams, s)
		}
	}
}

// Contains reports whether t falls inside the request bounds at whole-second
// resolution, inclusive at both ends.
func (r *FetchRequest) Contains(t time.Time) bool {
	ts := t.Unix()
	return ts >= r.From.Unix() && ts <= r.Until.Unix()
}

// Filter keeps the points inside the request bounds.
func (r *FetchRequest) Filter(points []Datapoint) []Datapoint {
	return FilterDatapoints(points, r.From, r.Until)
}

func (r *FetchRequest) has(s *MetricStream) bool {
	for _, existing := range r.Streams {
		if existing == s {
			return true
		}
	}
	return false
}

func (r *FetchRequest) unionLen(other *FetchRequest) int {
	n := len(r.Streams)
	for _, s := range other.Streams {
		if !r.has(s) {
			n++
		}
	}
	return n
}
