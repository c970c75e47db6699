package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/statline/internal/errors"
	"github.com/rileyhilliard/statline/internal/stream"
)

type outcome struct {
	resp stream.Response
	err  error
}

// capture returns deliver/fail callbacks that report on a channel.
func capture() (chan outcome, func(stream.Response), func(error)) {
	ch := make(chan outcome, 1)
	return ch,
		func(r stream.Response) { ch <- outcome{resp: r} },
		func(err error) { ch <- outcome{err: err} }
}

func wait(t *testing.T, ch chan outcome) outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("transport never reported")
		return outcome{}
	}
}

func TestPoll_DispatchDeliversDecodedResponse(t *testing.T) {
	seen := make(chan *url.URL, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.URL
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"request_id": 7, "metrics": {"load": {"datapoints": [[1, 1000000]]}, "cpu": {"datapoints": []}}}`)
	}))
	defer srv.Close()

	p, err := NewPoll(PollConfig{Endpoint: srv.URL + "/"})
	require.NoError(t, err)
	defer p.Close()

	ch, deliver, fail := capture()
	p.Dispatch(context.Background(), testRequest(), deliver, fail)
	o := wait(t, ch)

	require.NoError(t, o.err)
	assert.Equal(t, int64(7), o.resp.RequestID)
	assert.Len(t, o.resp.Metrics["load"], 1)

	u := <-seen
	gotQuery := u.Query()
	assert.Equal(t, "/backends/b1/machines/m1/stats", u.EscapedPath())
	assert.Equal(t, []string{"2"}, gotQuery["v"])
	assert.Equal(t, []string{"999950"}, gotQuery["start"])
	assert.Equal(t, []string{"1000650"}, gotQuery["stop"])
	assert.Equal(t, []string{"load", "cpu"}, gotQuery["metrics"])
}

func TestPoll_FlatResponseWithoutIDUsesRequestID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"load": {"datapoints": [[1, 1000000]]}}`)
	}))
	defer srv.Close()

	p, err := NewPoll(PollConfig{Endpoint: srv.URL})
	require.NoError(t, err)
	defer p.Close()

	resp, err := p.Fetch(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(7), resp.RequestID)
}

func TestPoll_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		code    string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "backend overloaded", http.StatusServiceUnavailable)
			},
			code: errors.ErrTransport,
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
			code: errors.ErrTransport,
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "<html>oops</html>")
			},
			code: errors.ErrResponse,
		},
		{
			name: "metric without datapoints",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"request_id": 7, "metrics": {"load": {}}}`)
			},
			code: errors.ErrResponse,
		},
		{
			name: "undecodable datapoint",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"request_id": 7, "metrics": {"load": {"datapoints": [["high", 1000000]]}}}`)
			},
			code: errors.ErrResponse,
		},
		{
			name: "wrong request id",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"request_id": 99, "metrics": {}}`)
			},
			code: errors.ErrResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			p, err := NewPoll(PollConfig{Endpoint: srv.URL})
			require.NoError(t, err)
			defer p.Close()

			ch, deliver, fail := capture()
			p.Dispatch(context.Background(), testRequest(), deliver, fail)
			o := wait(t, ch)

			require.Error(t, o.err)
			assert.True(t, errors.IsCode(o.err, tt.code), "got %v", o.err)
		})
	}
}

func TestPoll_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	p, err := NewPoll(PollConfig{Endpoint: srv.URL})
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Fetch(context.Background(), testRequest())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, "nope", statusErr.Body)
}

func TestPoll_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	p, err := NewPoll(PollConfig{Endpoint: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Fetch(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrTransport))
}

func TestPoll_DispatchAfterCloseFails(t *testing.T) {
	p, err := NewPoll(PollConfig{Endpoint: "http://127.0.0.1:1"})
	require.NoError(t, err)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	ch, deliver, fail := capture()
	p.Dispatch(context.Background(), testRequest(), deliver, fail)
	o := wait(t, ch)
	assert.True(t, errors.IsCode(o.err, errors.ErrTransport))
}

func TestPoll_WrapTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"request_id": 7, "metrics": {}}`)
	}))
	defer srv.Close()

	calls := 0
	p, err := NewPoll(PollConfig{
		Endpoint: srv.URL,
		WrapTransport: func(next http.RoundTripper) http.RoundTripper {
			return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
				calls++
				return next.RoundTrip(r)
			})
		},
	})
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Fetch(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestNewPoll_RejectsBadEndpoints(t *testing.T) {
	for _, endpoint := range []string{"", "   ", "localhost:8080", "ftp://example.com"} {
		_, err := NewPoll(PollConfig{Endpoint: endpoint})
		require.Error(t, err, endpoint)
		assert.True(t, errors.IsCode(err, errors.ErrConfig))
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
