package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rileyhilliard/statline/internal/errors"
	"github.com/rileyhilliard/statline/internal/logger"
	"github.com/rileyhilliard/statline/internal/stream"
)

const (
	// EventStats names both the request event and its response.
	EventStats = "stats"

	// DefaultSocketPath is appended to the endpoint for push connections.
	DefaultSocketPath = "/socket"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 20
	sendBuffer     = 64
)

// Event is a message on the push connection. Requests carry Args, responses
// carry Data.
type Event struct {
	Event string          `json:"event"`
	Args  []interface{}   `json:"args,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// PushConfig configures a Push transport.
type PushConfig struct {
	// URL is the ws:// or wss:// address of the stats socket.
	URL    string
	Header http.Header
	Dialer *websocket.Dialer
	Logger logger.Logger

	// RequestTimeout bounds the wait for each response. Zero means
	// DefaultRequestTimeout.
	RequestTimeout time.Duration
}

type pending struct {
	deliver func(stream.Response)
	fail    func(error)
	stop    func() bool
}

// Push multiplexes FetchRequests over one WebSocket connection, routing
// responses back by request id.
type Push struct {
	url     string
	header  http.Header
	dialer  *websocket.Dialer
	log     logger.Logger
	timeout time.Duration

	// dialMu serializes dials so concurrent dispatches share one connection.
	dialMu sync.Mutex

	mu      sync.Mutex
	conn    *pushConn
	pending map[int64]pending
	closed  bool
}

type pushConn struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *pushConn) shutdown() bool {
	first := false
	c.once.Do(func() {
		first = true
		close(c.done)
		_ = c.ws.Close()
	})
	return first
}

// NewPush creates a push transport. The connection is dialed on first use.
func NewPush(cfg PushConfig) (*Push, error) {
	u, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("Socket URL '%s' is not a ws(s) URL", cfg.URL),
			"Use something like ws://localhost:8080/socket")
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Noop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Push{
		url:     u.String(),
		header:  cfg.Header,
		dialer:  dialer,
		log:     log,
		timeout: timeout,
		pending: make(map[int64]pending),
	}, nil
}

// SocketURL derives the push URL from an http(s) endpoint.
func SocketURL(endpoint, path string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	if path == "" {
		path = DefaultSocketPath
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	return u.String(), nil
}

// Dispatch emits a stats event for req. Dialing and writing happen off the
// caller's goroutine.
func (p *Push) Dispatch(ctx context.Context, req *stream.FetchRequest, deliver func(stream.Response), fail func(error)) {
	data, err := json.Marshal(Event{Event: EventStats, Args: NewPayload(req).Args(req.Target)})
	if err != nil {
		fail(errors.WrapWithCode(err, errors.ErrTransport, "Couldn't encode stats event", ""))
		return
	}

	id := req.ID
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		fail(errClosed())
		return
	}
	// A response lost on a healthy connection would otherwise hold the
	// scheduler's cycle open forever.
	timer := time.AfterFunc(p.timeout, func() {
		p.failOne(id, errors.New(errors.ErrTransport,
			fmt.Sprintf("No response to stats request %d within %s", id, p.timeout),
			"Check the backend logs, or raise request_timeout"))
	})
	stopCtx := context.AfterFunc(ctx, func() { p.take(id) })
	p.pending[id] = pending{
		deliver: deliver,
		fail:    fail,
		stop:    func() bool {
			timer.Stop()
			return stopCtx()
		},
	}
	p.mu.Unlock()

	go func() {
		conn, err := p.connect(ctx)
		if err != nil {
			p.failOne(id, err)
			return
		}
		select {
		case conn.send <- data:
		case <-conn.done:
			p.failOne(id, errors.New(errors.ErrTransport, "Stats connection closed before the request was sent", ""))
		case <-ctx.Done():
			p.take(id)
		}
	}()
}

// Close drops the connection and fails every pending request.
func (p *Push) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	conn := p.conn
	p.conn = nil
	p.mu.Unlock()

	if conn != nil {
		_ = conn.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		conn.shutdown()
	}
	p.failAll(errClosed())
	return nil
}

// Pending returns how many requests await a response.
func (p *Push) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *Push) connect(ctx context.Context) (*pushConn, error) {
	p.dialMu.Lock()
	defer p.dialMu.Unlock()

	p.mu.Lock()
	closed, existing := p.closed, p.conn
	p.mu.Unlock()
	if closed {
		return nil, errClosed()
	}
	if existing != nil {
		return existing, nil
	}

	ws, resp, err := p.dialer.DialContext(ctx, p.url, p.header)
	if err != nil {
		status := ""
		if resp != nil {
			status = fmt.Sprintf(" (HTTP %d)", resp.StatusCode)
		}
		return nil, errors.WrapWithCode(err, errors.ErrTransport,
			fmt.Sprintf("Couldn't connect to %s%s", p.url, status),
			"Check that the backend is running and serves the stats socket")
	}
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	conn := &pushConn{
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = ws.Close()
		return nil, errClosed()
	}
	p.conn = conn
	p.mu.Unlock()
	p.log.Debug("connected to %s", p.url)

	go p.readPump(conn)
	go p.writePump(conn)
	return conn, nil
}

func (p *Push) readPump(conn *pushConn) {
	for {
		_, message, err := conn.ws.ReadMessage()
		if err != nil {
			p.drop(conn, err)
			return
		}
		p.handleMessage(message)
	}
}

func (p *Push) writePump(conn *pushConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-conn.done:
			return
		case data := <-conn.send:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				p.drop(conn, err)
				return
			}
		case <-ticker.C:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.drop(conn, err)
				return
			}
		}
	}
}

func (p *Push) handleMessage(message []byte) {
	var ev Event
	if err := json.Unmarshal(message, &ev); err != nil {
		p.log.Warn("ignoring undecodable socket message: %v", err)
		return
	}
	if ev.Event != EventStats {
		p.log.Debug("ignoring socket event %q", ev.Event)
		return
	}

	resp, err := Decode(ev.Data, -1)
	if err != nil {
		// Route the failure if the id survived.
		var head struct {
			RequestID *int64 `json:"request_id"`
		}
		if json.Unmarshal(ev.Data, &head) == nil && head.RequestID != nil {
			p.failOne(*head.RequestID, err)
			return
		}
		p.log.Warn("ignoring stats event: %v", err)
		return
	}

	h, ok := p.take(resp.RequestID)
	if !ok {
		p.log.Debug("no pending request %d, dropping response", resp.RequestID)
		return
	}
	h.deliver(resp)
}

// drop forgets conn and, if it was lost rather than closed by us, fails
// every request that was waiting on it.
func (p *Push) drop(conn *pushConn, cause error) {
	p.mu.Lock()
	if p.conn == conn {
		p.conn = nil
	}
	p.mu.Unlock()

	if !conn.shutdown() {
		return
	}
	if websocket.IsUnexpectedCloseError(cause, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		p.log.Warn("stats connection lost: %v", cause)
	} else {
		p.log.Debug("stats connection closed: %v", cause)
	}
	p.failAll(errors.WrapWithCode(cause, errors.ErrTransport, "Stats connection lost", "The next cycle will reconnect"))
}

func (p *Push) take(id int64) (pending, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.pending[id]
	if !ok {
		return pending{}, false
	}
	delete(p.pending, id)
	h.stop()
	return h, true
}

func (p *Push) failOne(id int64, err error) {
	if h, ok := p.take(id); ok {
		h.fail(err)
	}
}

func (p *Push) failAll(err error) {
	p.mu.Lock()
	all := p.pending
	p.pending = make(map[int64]pending)
	p.mu.Unlock()

	for _, h := range all {
		h.stop()
		h.fail(err)
	}
}
