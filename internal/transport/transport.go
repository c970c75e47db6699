// Package transport carries FetchRequests to a stats backend and validates
// what comes back.
//
// Two adapters implement stream.Transport:
//
//   - Poll issues one HTTP GET per request against
//     {endpoint}/backends/{owner}/machines/{resource}/stats.
//   - Push emits a "stats" event per request over a shared WebSocket and
//     routes responses back by request_id.
//
// Both validate response bodies at the boundary (Decode) so the scheduler only
// ever sees a metric id to datapoints mapping.
package transport

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rileyhilliard/statline/internal/errors"
	"github.com/rileyhilliard/statline/internal/logger"
	"github.com/rileyhilliard/statline/internal/stream"
)

// Transport kinds accepted in configuration.
const (
	KindPoll = "poll"
	KindPush = "push"
)

// Config selects and configures a transport.
type Config struct {
	Kind           string
	Endpoint       string
	SocketPath     string
	RequestTimeout time.Duration
	// WrapTransport decorates the poll client's round tripper.
	WrapTransport func(http.RoundTripper) http.RoundTripper
	Logger        logger.Logger
}

// New builds the transport named by cfg.Kind. An empty kind means poll.
func New(cfg Config) (stream.Transport, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", KindPoll:
		p, err := NewPoll(PollConfig{
			Endpoint:      cfg.Endpoint,
			Timeout:       cfg.RequestTimeout,
			WrapTransport: cfg.WrapTransport,
			Logger:        cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case KindPush:
		u, err := SocketURL(cfg.Endpoint, cfg.SocketPath)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("Can't derive a socket URL from endpoint '%s'", cfg.Endpoint),
				"Use an http(s):// or ws(s):// endpoint")
		}
		p, err := NewPush(PushConfig{URL: u, RequestTimeout: cfg.RequestTimeout, Logger: cfg.Logger})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown transport '%s'", cfg.Kind),
			"Use 'poll' or 'push'")
	}
}
