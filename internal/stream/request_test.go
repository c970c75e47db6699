package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newRequest(from, until int64, step time.Duration, target Resource, streams ...*MetricStream) *FetchRequest {
	return &FetchRequest{
		From:    time.Unix(from, 0),
		Until:   time.Unix(until, 0),
		Step:    step,
		Target:  target,
		Streams: streams,
	}
}

func TestFetchRequest_CanMerge(t *testing.T) {
	res := Resource{OwnerID: "b1", ResourceID: "m1"}
	other := Resource{OwnerID: "b1", ResourceID: "m2"}
	load := NewMetricStream("load", "load", res)
	cpu := NewMetricStream("cpu", "cpu", res)
	mem := NewMetricStream("mem", "mem", res)

	tests := []struct {
		name  string
		a, b  *FetchRequest
		limit int
		want  bool
	}{
		{
			name: "same bounds and step",
			a:    newRequest(100, 200, 10*time.Second, res, load),
			b:    newRequest(100, 200, 10*time.Second, res, cpu),
			want: true,
		},
		{
			name: "different step",
			a:    newRequest(100, 200, 10*time.Second, res, load),
			b:    newRequest(100, 200, 30*time.Second, res, cpu),
		},
		{
			name: "different from",
			a:    newRequest(100, 200, 10*time.Second, res, load),
			b:    newRequest(110, 200, 10*time.Second, res, cpu),
		},
		{
			name: "different until",
			a:    newRequest(100, 200, 10*time.Second, res, load),
			b:    newRequest(100, 210, 10*time.Second, res, cpu),
		},
		{
			name: "different resource",
			a:    newRequest(100, 200, 10*time.Second, res, load),
			b:    newRequest(100, 200, 10*time.Second, other, NewMetricStream("x", "load", other)),
		},
		{
			name:  "union over limit",
			a:     newRequest(100, 200, 10*time.Second, res, load, cpu),
			b:     newRequest(100, 200, 10*time.Second, res, mem),
			limit: 2,
		},
		{
			name:  "shared stream does not count twice",
			a:     newRequest(100, 200, 10*time.Second, res, load, cpu),
			b:     newRequest(100, 200, 10*time.Second, res, cpu),
			limit: 2,
			want:  true,
		},
		{
			name: "nil other",
			a:    newRequest(100, 200, 10*time.Second, res, load),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.CanMerge(tt.b, tt.limit))
		})
	}
}

func TestFetchRequest_MergeSkipsDuplicates(t *testing.T) {
	res := Resource{OwnerID: "b1", ResourceID: "m1"}
	load := NewMetricStream("load", "load", res)
	cpu := NewMetricStream("cpu", "cpu", res)

	a := newRequest(100, 200, 10*time.Second, res, load)
	a.Merge(newRequest(100, 200, 10*time.Second, res, cpu, load))

	assert.Equal(t, []*MetricStream{load, cpu}, a.Streams)
	assert.Equal(t, []string{"load", "cpu"}, a.Metrics())
}

func TestFetchRequest_MetricsAreDistinct(t *testing.T) {
	res := Resource{OwnerID: "b1", ResourceID: "m1"}
	r := newRequest(100, 200, 10*time.Second, res,
		NewMetricStream("a", "load", res),
		NewMetricStream("b", "load", res),
		NewMetricStream("c", "cpu", res))

	assert.Equal(t, []string{"load", "cpu"}, r.Metrics())
}

func TestFetchRequest_Path(t *testing.T) {
	r := newRequest(0, 0, 0, Resource{OwnerID: "ec2 west", ResourceID: "i/123"})
	assert.Equal(t, "/backends/ec2%20west/machines/i%2F123/stats", r.Path())
}

func TestFetchRequest_ContainsAndFilter(t *testing.T) {
	r := newRequest(100, 200, 10*time.Second, Resource{})

	assert.True(t, r.Contains(time.Unix(100, 0)))
	assert.True(t, r.Contains(time.Unix(200, 999)))
	assert.False(t, r.Contains(time.Unix(99, 0)))
	assert.False(t, r.Contains(time.Unix(201, 0)))

	points := []Datapoint{pt(50, 1), pt(100, 2), pt(150, 3), pt(250, 4)}
	once := r.Filter(points)
	assert.Equal(t, []Datapoint{pt(100, 2), pt(150, 3)}, once)
	assert.Equal(t, once, r.Filter(once))
}
