package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/rileyhilliard/statline/internal/errors"
	"github.com/rileyhilliard/statline/internal/logger"
	"github.com/rileyhilliard/statline/internal/stream"
	"github.com/rileyhilliard/statline/internal/transport"
)

// StatsPattern is the poll route. Owner and resource are single path segments.
const StatsPattern = "GET /backends/{owner}/machines/{resource}/stats"

// Config configures a Server. The zero value serves gap-free waves.
type Config struct {
	Generator Generator

	// SocketPath mounts the push endpoint. Defaults to transport.DefaultSocketPath.
	SocketPath string

	// FailEvery fails every Nth stats request (503 on poll, an error body on
	// push). Zero never fails.
	FailEvery int64

	// Missing metrics are left out of responses, as if the machine didn't
	// collect them.
	Missing []string

	// Latency delays every response.
	Latency time.Duration

	Logger logger.Logger
}

// Server answers stats requests over HTTP and WebSocket.
type Server struct {
	gen      Generator
	socket   string
	every    int64
	missing  map[string]bool
	latency  time.Duration
	log      logger.Logger
	upgrader websocket.Upgrader

	requests atomic.Int64
}

// New creates a Server.
func New(cfg Config) *Server {
	s := &Server{
		gen:     cfg.Generator,
		socket:  cfg.SocketPath,
		every:   cfg.FailEvery,
		missing: make(map[string]bool, len(cfg.Missing)),
		latency: cfg.Latency,
		log:     cfg.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // local demo server
			},
		},
	}
	if s.gen == nil {
		s.gen = Waves{}
	}
	if s.socket == "" {
		s.socket = transport.DefaultSocketPath
	}
	if s.log == nil {
		s.log = logger.Noop()
	}
	for _, m := range cfg.Missing {
		s.missing[m] = true
	}
	return s
}

// Requests returns how many stats requests have been served over both
// protocols.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// Handler returns the routes. The poll route is traced with otelhttp; the
// socket is mounted bare so the upgrade can hijack the connection.
func (s *Server) Handler() http.Handler {
	stats := http.NewServeMux()
	stats.HandleFunc(StatsPattern, s.serveStats)

	mux := http.NewServeMux()
	mux.Handle("/backends/", otelhttp.NewHandler(stats, "stats",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithPropagators(otel.GetTextMapPropagator()),
	))
	mux.HandleFunc(s.socket, s.serveSocket)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// ListenAndServe binds addr and serves until ctx is cancelled. ready, if
// non-nil, receives the bound address once listening.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(addr string)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Can't listen on %s", addr),
			"Pick a free address with --addr")
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	if ready != nil {
		ready(ln.Addr().String())
	}

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) serveStats(w http.ResponseWriter, r *http.Request) {
	p, err := transport.ParseQuery(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res := stream.Resource{OwnerID: r.PathValue("owner"), ResourceID: r.PathValue("resource")}

	if !s.wait(r.Context()) {
		return
	}
	if s.shouldFail() {
		s.log.Debug("failing request %d for %s", p.RequestID, res)
		http.Error(w, "injected failure", http.StatusServiceUnavailable)
		return
	}

	body, err := transport.Encode(s.answer(res, p))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

// inbound is a push request event with its positional args left raw:
// owner, resource, start, stop, step, request id, metrics.
type inbound struct {
	Event string            `json:"event"`
	Args  []json.RawMessage `json:"args"`
}

func (s *Server) serveSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	s.log.Debug("socket client connected from %s", conn.RemoteAddr())

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var writeMu sync.Mutex
	write := func(v interface{}) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(v); err != nil {
			s.log.Debug("socket write failed: %v", err)
		}
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		var ev inbound
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("socket read: %v", err)
			}
			return
		}
		if ev.Event != transport.EventStats {
			continue
		}
		res, p, err := parseArgs(ev.Args)
		if err != nil {
			s.log.Warn("bad stats event: %v", err)
			continue
		}

		// Answer concurrently so responses can overtake each other.
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !s.wait(ctx) {
				return
			}
			write(s.event(res, p))
		}()
	}
}

func (s *Server) event(res stream.Resource, p transport.Payload) transport.Event {
	if s.shouldFail() {
		s.log.Debug("failing request %d for %s", p.RequestID, res)
		data, _ := json.Marshal(map[string]interface{}{
			"request_id": p.RequestID,
			"error":      "injected failure",
		})
		return transport.Event{Event: transport.EventStats, Data: data}
	}
	data, err := transport.Encode(s.answer(res, p))
	if err != nil {
		data, _ = json.Marshal(map[string]interface{}{"request_id": p.RequestID, "error": err.Error()})
	}
	return transport.Event{Event: transport.EventStats, Data: data}
}

func parseArgs(args []json.RawMessage) (stream.Resource, transport.Payload, error) {
	var res stream.Resource
	p := transport.Payload{Version: transport.APIVersion}
	if len(args) != 7 {
		return res, p, fmt.Errorf("want 7 args, got %d", len(args))
	}
	dst := []interface{}{&res.OwnerID, &res.ResourceID, &p.Start, &p.Stop, &p.Step, &p.RequestID, &p.Metrics}
	for i, d := range dst {
		if err := json.Unmarshal(args[i], d); err != nil {
			return res, p, fmt.Errorf("arg %d: %w", i, err)
		}
	}
	return res, p, nil
}

// answer builds the response for one request.
func (s *Server) answer(res stream.Resource, p transport.Payload) stream.Response {
	resp := stream.Response{RequestID: p.RequestID, Metrics: make(map[string][]stream.Datapoint, len(p.Metrics))}
	for _, m := range p.Metrics {
		if s.missing[m] {
			continue
		}
		resp.Metrics[m] = Series(s.gen, res, m, p.Start, p.Stop, p.Step)
	}
	return resp
}

// shouldFail counts the request and reports whether it is an injected failure.
func (s *Server) shouldFail() bool {
	n := s.requests.Add(1)
	return s.every > 0 && n%s.every == 0
}

// wait sleeps for the configured latency. It returns false if ctx ended first.
func (s *Server) wait(ctx context.Context) bool {
	if s.latency <= 0 {
		return true
	}
	t := time.NewTimer(s.latency)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
