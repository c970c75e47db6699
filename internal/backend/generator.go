// Package backend is a synthetic stats backend. It answers the poll and push
// wire protocols with deterministic generated series, for demos and for
// exercising the transports end to end.
package backend

import (
	"hash/fnv"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rileyhilliard/statline/internal/stream"
)

// maxPointsPerSeries caps generated series. Wider ranges are downsampled by
// widening the step to a multiple of the requested one.
const maxPointsPerSeries = 2000

// Generator produces the value of a metric at a timestamp. ok=false is a gap.
type Generator interface {
	Value(res stream.Resource, metric string, t time.Time) (v float64, ok bool)
}

// Waves is the default Generator: a per-series sine wave with hashed jitter
// and sparse gaps. The same inputs always produce the same output.
type Waves struct {
	// GapEvery makes roughly one sample in GapEvery a gap. Zero disables gaps.
	GapEvery uint32
}

func (w Waves) Value(res stream.Resource, metric string, t time.Time) (float64, bool) {
	seed := hash(res.OwnerID, res.ResourceID, metric)
	sec := t.Unix()
	if w.GapEvery > 0 && hash(seedString(seed), itoa(sec))%w.GapEvery == 0 {
		return 0, false
	}

	base, amp := scale(metric)
	period := float64(300 + seed%900) // 5 to 20 minutes
	phase := float64(seed%360) * math.Pi / 180
	jitter := float64(hash(seedString(seed), itoa(sec))%1000)/1000 - 0.5

	v := base + amp*math.Sin(2*math.Pi*float64(sec)/period+phase) + amp*0.2*jitter
	if v < 0 {
		v = 0
	}
	return math.Round(v*100) / 100, true
}

// scale picks a plausible range from the metric name.
func scale(metric string) (base, amp float64) {
	switch {
	case strings.Contains(metric, "load"):
		return 1.5, 1.2
	case strings.Contains(metric, "cpu"), strings.Contains(metric, "mem"), strings.Contains(metric, "disk"):
		return 50, 35
	case strings.Contains(metric, "net"):
		return 4000, 3000
	default:
		return 10, 8
	}
}

// Series generates points on the step grid covering [start, stop], both
// given in unix seconds.
func Series(gen Generator, res stream.Resource, metric string, start, stop, step int64) []stream.Datapoint {
	if step <= 0 || stop < start {
		return []stream.Datapoint{}
	}
	if n := (stop - start) / step; n > maxPointsPerSeries {
		step *= (n + maxPointsPerSeries - 1) / maxPointsPerSeries
	}

	first := start
	if r := first % step; r != 0 {
		first += step - r
	}
	points := make([]stream.Datapoint, 0, (stop-first)/step+1)
	for sec := first; sec <= stop; sec += step {
		t := time.Unix(sec, 0)
		v, ok := gen.Value(res, metric, t)
		points = append(points, stream.Datapoint{Time: t, Value: v, Missing: !ok})
	}
	return points
}

func hash(parts ...string) uint32 {
	h := fnv.New32a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum32()
}

func seedString(seed uint32) string { return strconv.FormatUint(uint64(seed), 10) }

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
