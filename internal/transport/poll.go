package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rileyhilliard/statline/internal/errors"
	"github.com/rileyhilliard/statline/internal/logger"
	"github.com/rileyhilliard/statline/internal/stream"
)

// DefaultRequestTimeout bounds one poll request.
const DefaultRequestTimeout = 4 * time.Second

// maxBodySize caps how much of a stats response is read.
const maxBodySize = 16 << 20

// PollConfig configures a Poll transport.
type PollConfig struct {
	// Endpoint is the backend base URL, e.g. http://localhost:8080.
	Endpoint string
	// Timeout bounds each request. Zero means DefaultRequestTimeout.
	Timeout time.Duration
	// Client overrides the HTTP client. Its transport is used as is.
	Client *http.Client
	// WrapTransport decorates the default instrumented round tripper,
	// e.g. with Prometheus instrumentation.
	WrapTransport func(http.RoundTripper) http.RoundTripper
	Logger        logger.Logger
}

// Poll sends each FetchRequest as an HTTP GET.
type Poll struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
	log      logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPoll creates a poll transport.
func NewPoll(cfg PollConfig) (*Poll, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, errors.New(errors.ErrConfig,
			"No backend endpoint configured",
			"Set 'endpoint' in .statline.yaml or pass --endpoint")
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("Endpoint '%s' is not an http(s) URL", cfg.Endpoint),
			"Use something like http://localhost:8080")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	client := cfg.Client
	if client == nil {
		var rt http.RoundTripper = otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return "stats " + r.URL.Path
			}))
		if cfg.WrapTransport != nil {
			rt = cfg.WrapTransport(rt)
		}
		client = &http.Client{Transport: rt}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Noop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Poll{
		endpoint: endpoint,
		timeout:  timeout,
		client:   client,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Dispatch fetches req on its own goroutine and reports through deliver or
// fail.
func (p *Poll) Dispatch(ctx context.Context, req *stream.FetchRequest, deliver func(stream.Response), fail func(error)) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		fail(errClosed())
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		resp, err := p.Fetch(ctx, req)
		if err != nil {
			fail(err)
			return
		}
		deliver(resp)
	}()
}

// Fetch performs one request synchronously.
func (p *Poll) Fetch(ctx context.Context, req *stream.FetchRequest) (stream.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	stop := context.AfterFunc(p.ctx, cancel)
	defer stop()

	u := p.URL(req)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return stream.Response{}, errors.WrapWithCode(err, errors.ErrTransport,
			fmt.Sprintf("Couldn't build stats request %d", req.ID), "")
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return stream.Response{}, errors.WrapWithCode(err, errors.ErrTransport,
			fmt.Sprintf("Stats request %d for %s failed", req.ID, req.Target),
			"Check that the backend is reachable")
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		return stream.Response{}, errors.WrapWithCode(err, errors.ErrTransport,
			fmt.Sprintf("Couldn't read stats response %d", req.ID), "")
	}
	p.log.Debug("GET %s -> %d (%d bytes, %s)", u, httpResp.StatusCode, len(body), time.Since(start).Round(time.Millisecond))

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return stream.Response{}, &StatusError{RequestID: req.ID, StatusCode: httpResp.StatusCode, Body: snippet(body)}
	}

	resp, err := Decode(body, req.ID)
	if err != nil {
		return stream.Response{}, err
	}
	if resp.RequestID != req.ID {
		return stream.Response{}, errors.New(errors.ErrResponse,
			fmt.Sprintf("Stats response carries request_id %d, expected %d", resp.RequestID, req.ID),
			"The backend must echo the request_id it was sent")
	}
	return resp, nil
}

// URL returns the full request URL for req.
func (p *Poll) URL(req *stream.FetchRequest) string {
	return p.endpoint + req.Path() + "?" + NewPayload(req).Query().Encode()
}

// Close cancels outstanding requests and waits for their goroutines.
func (p *Poll) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
	return nil
}

// StatusError is a non-2xx stats response.
type StatusError struct {
	RequestID  int64
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("stats request %d: HTTP %d", e.RequestID, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap lets errors.IsCode classify status failures as transport errors.
func (e *StatusError) Unwrap() error {
	return errors.New(errors.ErrTransport, http.StatusText(e.StatusCode), "")
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func errClosed() error {
	return errors.New(errors.ErrTransport, "Transport is closed", "")
}
