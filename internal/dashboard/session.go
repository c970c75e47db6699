package dashboard

import (
	"math"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/statline/internal/stream"
)

// Runner executes callbacks on the scheduler's loop. Do waits for fn to run
// and returns false if the loop has stopped. *stream.Loop satisfies it.
type Runner interface {
	stream.Executor
	Do(fn func()) bool
}

// Sender delivers messages to the running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// PanelSpec describes one panel to open.
type PanelSpec struct {
	ID      string
	Title   string
	Streams []*stream.MetricStream
}

// Session owns the scheduler behind a dashboard. The scheduler only ever runs
// on the Runner's loop; the TUI sees snapshots delivered as messages.
type Session struct {
	run    Runner
	sched  *stream.Scheduler
	panels []*stream.Panel

	mu     sync.RWMutex
	sender Sender
}

// NewSession wires a scheduler over specs. User-facing failures are sent to
// the program as notices; opts may add an observer or logger.
func NewSession(run Runner, cfg stream.Config, transport stream.Transport, specs []PanelSpec, opts ...stream.Option) *Session {
	s := &Session{run: run}
	for i, spec := range specs {
		v := &panelView{session: s, index: i}
		v.panel = stream.NewPanel(spec.ID, spec.Title, v, spec.Streams...)
		s.panels = append(s.panels, v.panel)
	}

	all := append([]stream.Option{stream.WithNotifier(stream.NotifierFunc(s.notify))}, opts...)
	s.sched = stream.NewScheduler(cfg, run, transport, all...)
	return s
}

// Attach sets where snapshots go. Call before the program starts.
func (s *Session) Attach(sender Sender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sender = sender
}

// Titles returns the panel titles in order.
func (s *Session) Titles() []string {
	out := make([]string, len(s.panels))
	for i, p := range s.panels {
		out[i] = p.Title
	}
	return out
}

// Open starts streaming every panel.
func (s *Session) Open() tea.Cmd {
	return func() tea.Msg {
		if !s.run.Do(func() { s.sched.Open(s.panels) }) {
			return nil
		}
		// Streaming starts on the following turn; report after it.
		return s.Apply(func(*stream.Scheduler) {})()
	}
}

// Close ends the scheduler session. Safe to call after the loop stopped.
func (s *Session) Close() {
	s.run.Do(s.sched.Close)
}

// Apply returns a command that runs op on the loop and reports the
// resulting scheduler status.
func (s *Session) Apply(op func(*stream.Scheduler)) tea.Cmd {
	return func() tea.Msg {
		var st Status
		ok := s.run.Do(func() {
			op(s.sched)
			st = s.status()
		})
		if !ok {
			return nil
		}
		return statusMsg(st)
	}
}

// Status is the scheduler state shown in the header.
type Status struct {
	Mode     stream.Mode
	Window   stream.Window
	Size     time.Duration
	InFlight int
	Retrying bool
	At       time.Time
}

// Unit returns the time unit matching the window size, if any.
func (st Status) Unit() (stream.TimeUnit, bool) {
	return stream.UnitForDuration(st.Size)
}

// status must run on the loop.
func (s *Session) status() Status {
	return Status{
		Mode:     s.sched.Mode(),
		Window:   s.sched.Window(),
		Size:     s.sched.TimeWindow(),
		InFlight: len(s.sched.InFlight()),
		Retrying: s.sched.RetryPending(),
		At:       s.run.Now(),
	}
}

func (s *Session) send(msg tea.Msg) {
	s.mu.RLock()
	sender := s.sender
	s.mu.RUnlock()
	if sender != nil {
		sender.Send(msg)
	}
}

func (s *Session) notify(err error) {
	s.send(noticeMsg{err: err})
}

// Series is a render-ready copy of one stream.
type Series struct {
	Label  string
	Values []float64 // NaN marks a gap
	Latest float64
	Points int
	HasAny bool
}

func snapshot(st *stream.MetricStream) Series {
	pts := st.Points()
	out := Series{Label: st.Label, Values: make([]float64, len(pts))}
	for i, p := range pts {
		if p.Missing {
			out.Values[i] = math.NaN()
			continue
		}
		out.Values[i] = p.Value
		out.Latest = p.Value
		out.HasAny = true
		out.Points++
	}
	return out
}

// panelView forwards scheduler callbacks to the program. Its methods run on
// the loop, so reading the streams here is safe.
type panelView struct {
	session *Session
	index   int
	panel   *stream.Panel
}

var _ stream.PanelView = (*panelView)(nil)

func (v *panelView) Draw() {
	series := make([]Series, len(v.panel.Streams))
	for i, st := range v.panel.Streams {
		series[i] = snapshot(st)
	}
	v.session.send(drawMsg{
		index:  v.index,
		series: series,
		status: v.session.status(),
	})
}

func (v *panelView) EnableAnimation() {
	v.session.send(animationMsg{index: v.index, on: true})
}

func (v *panelView) DisableAnimation() {
	v.session.send(animationMsg{index: v.index, on: false})
}

func (v *panelView) ChangeTimeWindow(size time.Duration) {
	v.session.send(windowMsg{index: v.index, size: size})
}

// Messages from the loop to the model.
type (
	drawMsg struct {
		index  int
		series []Series
		status Status
	}
	animationMsg struct {
		index int
		on    bool
	}
	windowMsg struct {
		index int
		size  time.Duration
	}
	noticeMsg struct {
		err error
	}
	statusMsg Status
)
