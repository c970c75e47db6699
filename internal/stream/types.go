package stream

import (
	"sort"
	"time"
)

// Resource identifies the monitored machine a stream belongs to.
type Resource struct {
	OwnerID    string // backend the machine is registered under
	ResourceID string // machine id
}

// String returns "owner/resource".
func (r Resource) String() string {
	return r.OwnerID + "/" + r.ResourceID
}

// Datapoint is a single sample. Missing marks a gap reported by the backend
// (a null value on the wire).
type Datapoint struct {
	Time    time.Time
	Value   float64
	Missing bool
}

// MetricStream is one metric series for one monitored resource.
// The buffer is kept time-ordered with no duplicate timestamps.
type MetricStream struct {
	ID       string
	MetricID string
	Label    string
	Resource Resource

	points    []Datapoint
	maxPoints int
}

// NewMetricStream creates an empty stream.
func NewMetricStream(id, metricID string, resource Resource) *MetricStream {
	return &MetricStream{
		ID:       id,
		MetricID: metricID,
		Label:    metricID,
		Resource: resource,
	}
}

// SetMaxPoints caps the buffer length after a merge. Zero means unbounded.
func (s *MetricStream) SetMaxPoints(n int) {
	if n < 0 {
		n = 0
	}
	s.maxPoints = n
}

// Len returns the number of buffered points.
func (s *MetricStream) Len() int {
	return len(s.points)
}

// Points returns a copy of the buffer, oldest first.
func (s *MetricStream) Points() []Datapoint {
	out := make([]Datapoint, len(s.points))
	copy(out, s.points)
	return out
}

// Values returns the non-missing values in time order.
func (s *MetricStream) Values() []float64 {
	out := make([]float64, 0, len(s.points))
	for _, p := range s.points {
		if !p.Missing {
			out = append(out, p.Value)
		}
	}
	return out
}

// Latest returns the newest non-missing point.
func (s *MetricStream) Latest() (Datapoint, bool) {
	for i := len(s.points) - 1; i >= 0; i-- {
		if !s.points[i].Missing {
			return s.points[i], true
		}
	}
	return Datapoint{}, false
}

// LastTimestamp returns the time of the newest point that carried a value,
// or the zero time when there is none. Trailing gaps are not counted so the
// next incremental fetch asks for them again.
func (s *MetricStream) LastTimestamp() time.Time {
	p, ok := s.Latest()
	if !ok {
		return time.Time{}
	}
	return p.Time
}

// Update merges points into the buffer. Points whose timestamp already
// exists replace the buffered value; the rest are inserted in order.
func (s *MetricStream) Update(points []Datapoint) {
	incoming := normalize(points)
	if len(incoming) == 0 {
		return
	}

	merged := make([]Datapoint, 0, len(s.points)+len(incoming))
	i, j := 0, 0
	for i < len(s.points) && j < len(incoming) {
		a, b := s.points[i], incoming[j]
		switch {
		case a.Time.Before(b.Time):
			merged = append(merged, a)
			i++
		case b.Time.Before(a.Time):
			merged = append(merged, b)
			j++
		default:
			merged = append(merged, b)
			i++
			j++
		}
	}
	merged = append(merged, s.points[i:]...)
	merged = append(merged, incoming[j:]...)

	if s.maxPoints > 0 && len(merged) > s.maxPoints {
		merged = merged[len(merged)-s.maxPoints:]
	}
	s.points = merged
}

// Overwrite replaces the buffer with points.
func (s *MetricStream) Overwrite(points []Datapoint) {
	s.points = normalize(points)
}

// Reset empties the buffer.
func (s *MetricStream) Reset() {
	s.points = nil
}

// normalize returns a sorted copy of points with duplicate timestamps
// collapsed, the later occurrence winning.
func normalize(points []Datapoint) []Datapoint {
	if len(points) == 0 {
		return nil
	}
	sorted := make([]Datapoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	out := sorted[:1]
	for _, p := range sorted[1:] {
		if p.Time.Equal(out[len(out)-1].Time) {
			out[len(out)-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

// FilterDatapoints keeps the points whose timestamp, in whole seconds, lies
// within [from, until] inclusive. Filtering is idempotent.
func FilterDatapoints(points []Datapoint, from, until time.Time) []Datapoint {
	lo, hi := from.Unix(), until.Unix()
	out := make([]Datapoint, 0, len(points))
	for _, p := range points {
		ts := p.Time.Unix()
		if ts >= lo && ts <= hi {
			out = append(out, p)
		}
	}
	return out
}
