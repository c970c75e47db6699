package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/rileyhilliard/statline/internal/errors"
	"github.com/rileyhilliard/statline/internal/stream"
)

// Datapoint is one [value, timestampSec] pair on the wire. A null value
// marks a gap.
type Datapoint struct {
	Value *float64
	Time  float64
}

// UnmarshalJSON decodes a [value|null, timestamp] pair.
func (d *Datapoint) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("datapoint must be a [value, timestamp] pair: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("datapoint must have 2 elements, got %d", len(pair))
	}

	d.Value = nil
	if !isNull(pair[0]) {
		var v float64
		if err := json.Unmarshal(pair[0], &v); err != nil {
			return fmt.Errorf("datapoint value: %w", err)
		}
		d.Value = &v
	}
	if isNull(pair[1]) {
		return fmt.Errorf("datapoint timestamp is null")
	}
	if err := json.Unmarshal(pair[1], &d.Time); err != nil {
		return fmt.Errorf("datapoint timestamp: %w", err)
	}
	return nil
}

// MarshalJSON encodes the pair, writing null for a gap.
func (d Datapoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{d.Value, d.Time})
}

// Stream converts the wire pair to a stream datapoint.
func (d Datapoint) Stream() stream.Datapoint {
	sec, frac := math.Modf(d.Time)
	p := stream.Datapoint{Time: time.Unix(int64(sec), int64(frac*1e9))}
	if d.Value == nil {
		p.Missing = true
	} else {
		p.Value = *d.Value
	}
	return p
}

// FromStream converts a stream datapoint to its wire pair.
func FromStream(p stream.Datapoint) Datapoint {
	d := Datapoint{Time: float64(p.Time.Unix())}
	if !p.Missing {
		v := p.Value
		d.Value = &v
	}
	return d
}

// Series is the per-metric body of a stats response.
type Series struct {
	Datapoints []Datapoint `json:"datapoints"`
}

// Body is the canonical stats response.
type Body struct {
	RequestID int64             `json:"request_id"`
	Metrics   map[string]Series `json:"metrics"`
}

// Decode validates a stats response body and converts it for the scheduler.
//
// Two shapes are accepted: the canonical {"request_id", "metrics": {...}} and
// the flat form where metric ids sit next to request_id at the top level.
// fallbackID is used when the body carries no request_id; pass a negative
// value to require one.
func Decode(body []byte, fallbackID int64) (stream.Response, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return stream.Response{}, malformed("stats response is not a JSON object", err)
	}

	resp := stream.Response{RequestID: fallbackID, Metrics: make(map[string][]stream.Datapoint)}
	if raw, ok := top["request_id"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &resp.RequestID); err != nil {
			return stream.Response{}, malformed("stats response has a non-integer request_id", err)
		}
	} else if fallbackID < 0 {
		return stream.Response{}, malformed("stats response has no request_id", nil)
	}

	series := make(map[string]json.RawMessage)
	if raw, ok := top["metrics"]; ok && isObject(raw) && !isSeries(raw) {
		if err := json.Unmarshal(raw, &series); err != nil {
			return stream.Response{}, malformed("stats response metrics are not an object", err)
		}
	} else {
		for k, v := range top {
			if k == "request_id" || k == "v" {
				continue
			}
			series[k] = v
		}
	}

	for metric, raw := range series {
		var s Series
		if err := json.Unmarshal(raw, &s); err != nil {
			return stream.Response{}, malformed(fmt.Sprintf("metric '%s' has malformed datapoints", metric), err)
		}
		if s.Datapoints == nil {
			return stream.Response{}, malformed(fmt.Sprintf("metric '%s' has no datapoints array", metric), nil)
		}
		points := make([]stream.Datapoint, len(s.Datapoints))
		for i, d := range s.Datapoints {
			points[i] = d.Stream()
		}
		resp.Metrics[metric] = points
	}
	return resp, nil
}

// Encode builds the canonical body for a response. Used by the synthetic
// backend and tests.
func Encode(resp stream.Response) ([]byte, error) {
	body := Body{RequestID: resp.RequestID, Metrics: make(map[string]Series, len(resp.Metrics))}
	for metric, points := range resp.Metrics {
		s := Series{Datapoints: make([]Datapoint, len(points))}
		for i, p := range points {
			s.Datapoints[i] = FromStream(p)
		}
		body.Metrics[metric] = s
	}
	return json.Marshal(body)
}

func malformed(message string, cause error) error {
	if cause == nil {
		return errors.New(errors.ErrResponse, message, "Check that the backend speaks stats API v2")
	}
	return errors.WrapWithCode(cause, errors.ErrResponse, message, "Check that the backend speaks stats API v2")
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// isSeries reports whether raw is itself a {"datapoints": ...} object, i.e.
// a flat-form metric that happens to be named "metrics".
func isSeries(raw json.RawMessage) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	_, ok := fields["datapoints"]
	return ok
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
