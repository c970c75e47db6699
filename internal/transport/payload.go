package transport

import (
	"net/url"
	"strconv"

	"github.com/rileyhilliard/statline/internal/stream"
)

// APIVersion is sent as "v" with every stats request.
const APIVersion = 2

// boundPadding widens the query on both sides, in seconds. Points outside the
// request bounds are filtered out again during reconciliation.
const boundPadding = 50

// Payload is the wire form of a FetchRequest.
type Payload struct {
	Version   int      `json:"v"`
	RequestID int64    `json:"request_id"`
	Start     int64    `json:"start"`
	Stop      int64    `json:"stop"`
	Step      int64    `json:"step"`
	Metrics   []string `json:"metrics"`
}

// NewPayload converts req to its wire form. Bounds are whole seconds.
func NewPayload(req *stream.FetchRequest) Payload {
	return Payload{
		Version:   APIVersion,
		RequestID: req.ID,
		Start:     req.From.Unix() - boundPadding,
		Stop:      req.Until.Unix() + boundPadding,
		Step:      int64(req.Step.Seconds()),
		Metrics:   req.Metrics(),
	}
}

// Query encodes the payload as URL query parameters. Metrics repeat.
func (p Payload) Query() url.Values {
	q := url.Values{}
	q.Set("v", strconv.Itoa(p.Version))
	q.Set("request_id", strconv.FormatInt(p.RequestID, 10))
	q.Set("start", strconv.FormatInt(p.Start, 10))
	q.Set("stop", strconv.FormatInt(p.Stop, 10))
	q.Set("step", strconv.FormatInt(p.Step, 10))
	for _, m := range p.Metrics {
		q.Add("metrics", m)
	}
	return q
}

// Args returns the positional arguments of a push "stats" event.
func (p Payload) Args(target stream.Resource) []interface{} {
	metrics := p.Metrics
	if metrics == nil {
		metrics = []string{}
	}
	return []interface{}{
		target.OwnerID,
		target.ResourceID,
		p.Start,
		p.Stop,
		p.Step,
		p.RequestID,
		metrics,
	}
}

// ParseQuery is the inverse of Query. Used by the synthetic backend.
func ParseQuery(q url.Values) (Payload, error) {
	var p Payload
	var err error
	if p.Version, err = intParam(q, "v", APIVersion); err != nil {
		return p, err
	}
	fields := []struct {
		name string
		dst  *int64
	}{
		{"request_id", &p.RequestID},
		{"start", &p.Start},
		{"stop", &p.Stop},
		{"step", &p.Step},
	}
	for _, f := range fields {
		raw := q.Get(f.name)
		if raw == "" {
			return p, &ParamError{Name: f.name, Reason: "missing"}
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return p, &ParamError{Name: f.name, Reason: "not an integer"}
		}
		*f.dst = v
	}
	p.Metrics = q["metrics"]
	return p, nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ParamError{Name: name, Reason: "not an integer"}
	}
	return v, nil
}

// ParamError reports a bad stats query parameter.
type ParamError struct {
	Name   string
	Reason string
}

func (e *ParamError) Error() string {
	return "parameter " + e.Name + ": " + e.Reason
}
