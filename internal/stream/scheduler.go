package stream

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rileyhilliard/statline/internal/errors"
	"github.com/rileyhilliard/statline/internal/logger"
)

// Config holds the scheduler's timing and batching settings.
type Config struct {
	TimeWindow           time.Duration
	Step                 time.Duration
	PollInterval         time.Duration
	MeasurementOffset    time.Duration
	MaxStreamsPerRequest int
	MaxPoints            int
}

// DefaultConfig returns the settings the dashboard ships with.
func DefaultConfig() Config {
	return Config{
		TimeWindow:           UnitMinutes.Duration(),
		Step:                 10 * time.Second,
		PollInterval:         10 * time.Second,
		MeasurementOffset:    40 * time.Second,
		MaxStreamsPerRequest: DefaultMaxStreamsPerRequest,
	}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithNotifier sets where user-facing failures are reported.
func WithNotifier(n Notifier) Option {
	return func(s *Scheduler) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithObserver sets the instrumentation hook.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithLogger sets the scheduler's logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// Scheduler drives the fetch → reconcile → redraw → next poll loop for one
// panel session. Every method must be called on the Executor's loop.
type Scheduler struct {
	cfg       Config
	exec      Executor
	transport Transport
	notifier  Notifier
	observer  Observer
	log       logger.Logger

	batcher Batcher
	seq     int64
	session int

	panels     []*Panel
	mode       Mode
	window     Window
	lastArgs   *Window
	inFlight   map[int64]*FetchRequest
	cycleStart time.Time

	poll  Task
	retry Task

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a closed scheduler. Call Open to start a session.
func NewScheduler(cfg Config, exec Executor, transport Transport, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:       cfg,
		exec:      exec,
		transport: transport,
		notifier:  NotifierFunc(func(error) {}),
		observer:  noopObserver{},
		log:       logger.Noop(),
		mode:      ModeClosed,
		inFlight:  make(map[int64]*FetchRequest),
		ctx:       context.Background(),
	}
	s.batcher = Batcher{
		Step:       cfg.Step,
		Offset:     cfg.MeasurementOffset,
		TimeWindow: cfg.TimeWindow,
		MaxStreams: cfg.MaxStreamsPerRequest,
		NextID:     s.nextID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open starts a session over panels. Streaming begins on the next loop turn
// so the caller can finish laying the panels out first, unless a window was
// shown in the meantime.
func (s *Scheduler) Open(panels []*Panel) {
	s.reset()
	s.session++
	s.panels = panels
	s.mode = ModePaused
	s.ctx, s.cancel = context.WithCancel(context.Background())

	for _, st := range allStreams(panels) {
		st.SetMaxPoints(s.cfg.MaxPoints)
	}

	session := s.session
	s.exec.Post(func() {
		if s.session != session || s.mode == ModeClosed || !s.window.IsZero() {
			return
		}
		s.Stream()
	})
	s.log.Debug("opened %d panels", len(panels))
}

// Close ends the session. Pending tasks are cancelled and late responses
// will be discarded.
func (s *Scheduler) Close() {
	if s.mode == ModeClosed {
		return
	}
	s.reset()
	s.session++
	s.mode = ModeClosed
	s.panels = nil
	s.log.Debug("closed")
}

// ToggleStreaming pauses a streaming session or resumes a paused one.
func (s *Scheduler) ToggleStreaming() {
	switch s.mode {
	case ModeStreaming:
		s.StopStreaming()
	case ModePaused:
		s.Stream()
	}
}

// Stream follows the live edge: fetch the window ending now and keep polling.
func (s *Scheduler) Stream() {
	if s.mode == ModeClosed {
		return
	}
	s.mode = ModeStreaming
	live := LiveWindow(s.exec.Now(), s.cfg.TimeWindow)
	s.fetchCycle(&live)
	for _, p := range s.panels {
		p.view().EnableAnimation()
	}
}

// StopStreaming freezes the current window. In-flight requests are forgotten
// and any scheduled poll or retry is cancelled.
func (s *Scheduler) StopStreaming() {
	if s.mode == ModeClosed {
		return
	}
	s.inFlight = make(map[int64]*FetchRequest)
	s.cancelTasks()
	s.mode = ModePaused
	for _, p := range s.panels {
		p.view().DisableAnimation()
	}
}

// GoBack shows the window one full width earlier.
func (s *Scheduler) GoBack() {
	if s.mode == ModeClosed {
		return
	}
	s.StopStreaming()
	from := s.currentWindow().From
	s.fetchCycle(&Window{From: from.Add(-s.cfg.TimeWindow), Until: from})
}

// GoForward shows the window one full width later, or resumes streaming if
// that window would reach the live edge.
func (s *Scheduler) GoForward() {
	if s.mode == ModeClosed {
		return
	}
	until := s.currentWindow().Until
	target := Window{From: until, Until: until.Add(s.cfg.TimeWindow)}
	if NearLiveEdge(s.exec.Now(), target.Until, s.cfg.TimeWindow) {
		s.Stream()
		return
	}
	s.fetchCycle(&target)
}

// ShowWindow pauses and fetches exactly w. The window size follows w.
func (s *Scheduler) ShowWindow(w Window) {
	if s.mode == ModeClosed || w.Size() <= 0 {
		return
	}
	if size := w.Size(); size != s.cfg.TimeWindow {
		s.cfg.TimeWindow = size
		s.batcher.TimeWindow = size
		for _, p := range s.panels {
			p.view().ChangeTimeWindow(size)
		}
	}
	s.StopStreaming()
	s.fetchCycle(&w)
}

// ChangeTimeWindow resizes the window to unit, keeping its midpoint. A window
// that would reach the live edge is pinned to end now instead.
func (s *Scheduler) ChangeTimeWindow(unit TimeUnit) {
	s.SetTimeWindow(unit.Duration())
}

// SetTimeWindow is ChangeTimeWindow for an arbitrary size.
func (s *Scheduler) SetTimeWindow(size time.Duration) {
	oldSize := s.cfg.TimeWindow
	if size <= 0 || size == oldSize {
		return
	}
	s.cfg.TimeWindow = size
	s.batcher.TimeWindow = size
	for _, p := range s.panels {
		p.view().ChangeTimeWindow(size)
	}
	if s.mode == ModeClosed {
		return
	}

	current := s.currentWindow()
	oldFrom, oldUntil := current.From, current.Until
	if s.mode == ModeStreaming {
		oldFrom = oldUntil.Add(-oldSize)
	}
	mid := oldFrom.Add(oldUntil.Sub(oldFrom) / 2)

	now := s.exec.Now()
	next := CenteredWindow(mid, size)
	if NearLiveEdge(now, next.Until, size) {
		next = LiveWindow(now, size)
	}

	s.StopStreaming()
	s.fetchCycle(&next)
}

// Refresh re-runs the current cycle immediately.
func (s *Scheduler) Refresh() {
	if s.mode == ModeClosed {
		return
	}
	if s.mode == ModeStreaming {
		s.fetchCycle(nil)
		return
	}
	s.fetchCycle(s.lastArgs)
}

// HandleResponse reconciles a response with its in-flight request. Responses
// for requests that are no longer in flight are dropped.
func (s *Scheduler) HandleResponse(resp Response) {
	req, ok := s.inFlight[resp.RequestID]
	if !ok {
		s.log.Debug("discarding stale response for request %d", resp.RequestID)
		s.observer.StaleResponse(resp.RequestID)
		return
	}

	points := 0
	for _, st := range req.Streams {
		raw, ok := resp.Metrics[st.MetricID]
		if !ok {
			s.report(errors.New(errors.ErrResponse,
				fmt.Sprintf("Response to request %d is missing metric '%s' for %s", req.ID, st.MetricID, st.Resource),
				"The backend may not collect this metric for the machine"))
			continue
		}
		filtered := req.Filter(raw)
		if s.mode == ModeStreaming {
			st.Update(filtered)
		} else {
			st.Overwrite(filtered)
		}
		points += len(filtered)
	}

	delete(s.inFlight, req.ID)
	s.observer.ResponseReconciled(req, points)
	s.log.Debug("request %d reconciled %d points, %d in flight", req.ID, points, len(s.inFlight))

	if len(s.inFlight) == 0 {
		s.cycleEnded()
	}
}

// HandleFailure records a failed in-flight request. A malformed response is
// reported and dropped; anything else schedules a retry of the whole current
// window after half the poll interval.
func (s *Scheduler) HandleFailure(requestID int64, err error) {
	req, ok := s.inFlight[requestID]
	if !ok {
		s.log.Debug("discarding stale failure for request %d: %v", requestID, err)
		s.observer.StaleResponse(requestID)
		return
	}
	delete(s.inFlight, requestID)
	s.observer.RequestFailed(req, err)

	if errors.IsCode(err, errors.ErrResponse) {
		// Retrying would get the same body back.
		s.report(err)
	} else {
		s.log.Warn("request %d for %s failed: %v", req.ID, req.Target, err)
		s.scheduleRetry()
	}

	if len(s.inFlight) == 0 {
		s.cycleEnded()
	}
}

// Mode returns the current mode.
func (s *Scheduler) Mode() Mode { return s.mode }

// Window returns the window of the current cycle.
func (s *Scheduler) Window() Window { return s.window }

// TimeWindow returns the configured window size.
func (s *Scheduler) TimeWindow() time.Duration { return s.cfg.TimeWindow }

// Panels returns the open panels.
func (s *Scheduler) Panels() []*Panel { return s.panels }

// RetryPending reports whether a failure retry is scheduled.
func (s *Scheduler) RetryPending() bool { return s.retry != nil }

// PollPending reports whether the next poll is scheduled.
func (s *Scheduler) PollPending() bool { return s.poll != nil }

// InFlight returns the ids of the requests awaiting a response, ascending.
func (s *Scheduler) InFlight() []int64 {
	ids := make([]int64, 0, len(s.inFlight))
	for id := range s.inFlight {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// fetchCycle starts a new cycle. A nil window means an incremental live
// fetch from each stream's last timestamp.
func (s *Scheduler) fetchCycle(window *Window) {
	if s.mode == ModeClosed {
		return
	}
	now := s.exec.Now()

	if window != nil {
		w := *window
		s.lastArgs = &w
		s.window = w
	} else {
		s.lastArgs = nil
		s.window = LiveWindow(now, s.cfg.TimeWindow)
	}

	s.cancelTasks()
	s.inFlight = make(map[int64]*FetchRequest)
	s.cycleStart = now

	streams := allStreams(s.panels)
	requests := s.batcher.Build(streams, s.lastArgs, now)
	s.observer.CycleStarted(len(requests), len(streams))
	s.log.Debug("cycle %s: %d streams in %d requests", s.window, len(streams), len(requests))

	if len(requests) == 0 {
		s.cycleEnded()
		return
	}

	for _, r := range requests {
		s.inFlight[r.ID] = r
	}
	for _, r := range requests {
		s.dispatch(r)
	}
}

func (s *Scheduler) dispatch(req *FetchRequest) {
	id := req.ID
	s.observer.RequestDispatched(req)
	s.transport.Dispatch(s.ctx, req,
		func(resp Response) {
			s.exec.Post(func() { s.HandleResponse(resp) })
		},
		func(err error) {
			s.exec.Post(func() { s.HandleFailure(id, err) })
		})
}

// cycleEnded redraws every panel and, while streaming, schedules the next
// incremental poll unless a failure retry is already pending.
func (s *Scheduler) cycleEnded() {
	s.observer.CycleEnded(s.exec.Now().Sub(s.cycleStart))
	for _, p := range s.panels {
		p.view().Draw()
	}
	if s.mode != ModeStreaming || s.retry != nil {
		return
	}
	s.poll = s.exec.AfterFunc(s.cfg.PollInterval, func() {
		s.poll = nil
		if s.mode == ModeStreaming {
			s.fetchCycle(nil)
		}
	})
}

func (s *Scheduler) scheduleRetry() {
	if s.retry != nil {
		s.retry.Cancel()
	}
	if s.poll != nil {
		s.poll.Cancel()
		s.poll = nil
	}

	delay := s.cfg.PollInterval / 2
	mode := s.mode
	var args *Window
	if s.lastArgs != nil {
		w := *s.lastArgs
		args = &w
	}

	s.observer.RetryScheduled(delay)
	s.retry = s.exec.AfterFunc(delay, func() {
		s.retry = nil
		if s.mode != mode || s.mode == ModeClosed {
			return
		}
		s.fetchCycle(args)
	})
}

func (s *Scheduler) report(err error) {
	s.log.Error("%v", err)
	s.notifier.Notify(err)
}

func (s *Scheduler) currentWindow() Window {
	if s.window.IsZero() {
		return LiveWindow(s.exec.Now(), s.cfg.TimeWindow)
	}
	return s.window
}

func (s *Scheduler) cancelTasks() {
	if s.poll != nil {
		s.poll.Cancel()
		s.poll = nil
	}
	if s.retry != nil {
		s.retry.Cancel()
		s.retry = nil
	}
}

func (s *Scheduler) reset() {
	s.cancelTasks()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.ctx = context.Background()
	s.inFlight = make(map[int64]*FetchRequest)
	s.window = Window{}
	s.lastArgs = nil
}

func (s *Scheduler) nextID() int64 {
	s.seq++
	return s.seq
}
