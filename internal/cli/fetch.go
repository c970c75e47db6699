package cli

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/rileyhilliard/statline/internal/dashboard"
	"github.com/rileyhilliard/statline/internal/errors"
	"github.com/rileyhilliard/statline/internal/logger"
	"github.com/rileyhilliard/statline/internal/stream"
	"github.com/rileyhilliard/statline/internal/transport"
	"github.com/rileyhilliard/statline/internal/ui"
)

// DefaultFetchTimeout bounds fetch, retries included.
const DefaultFetchTimeout = 30 * time.Second

// FetchOptions holds options for the fetch command.
type FetchOptions struct {
	Config  ConfigFlags
	Panels  string
	From    string
	Until   string
	Timeout string
	JSON    bool
}

// FetchedSeries is one stream's points after a fetch.
type FetchedSeries struct {
	Panel    string
	Label    string
	Resource stream.Resource
	Metric   string
	Points   []stream.Datapoint
}

// FetchResult is everything a fetch produced.
type FetchResult struct {
	Window  stream.Window
	Series  []FetchedSeries
	Notices []error
}

// fetchCommand prints one paused cycle over the requested window.
func fetchCommand(opts FetchOptions, out io.Writer) error {
	cfg, _, err := loadConfig(opts.Config)
	if err != nil {
		return err
	}
	specs, err := filterPanels(panelSpecs(cfg), opts.Panels)
	if err != nil {
		return err
	}

	timeout, err := ParseDurationFlag("timeout", opts.Timeout)
	if err != nil {
		return err
	}
	if timeout == 0 {
		timeout = DefaultFetchTimeout
	}

	sc := cfg.SchedulerConfig()
	w, err := ResolveWindow(opts.From, opts.Until, sc.TimeWindow, time.Now())
	if err != nil {
		return err
	}

	tr, err := newTransport(cfg, nil)
	if err != nil {
		return err
	}
	defer tr.Close()

	var spinner *ui.Spinner
	if !opts.JSON && term.IsTerminal(int(os.Stderr.Fd())) {
		spinner = ui.NewSpinner(os.Stderr, fmt.Sprintf("Fetching %s", w))
		spinner.Start()
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	result, err := Fetch(ctx, tr, sc, specs, w, logger.NewEnvLogger("[stream]"))

	if spinner != nil {
		if err != nil {
			spinner.Fail()
		} else {
			spinner.SetLabel(fmt.Sprintf("Fetched %d series", len(result.Series)))
			spinner.Success()
		}
	}

	if opts.JSON {
		if err != nil {
			WriteJSONFromError(out, err)
			return errors.NewExitError(1)
		}
		return WriteJSONSuccess(out, toFetchJSON(result))
	}
	if err != nil {
		return err
	}

	for _, n := range result.Notices {
		fmt.Fprintf(out, "%s %s\n", ui.SymbolWarning, noticeSummary(n))
	}
	fmt.Fprint(out, renderFetchTable(result.Series))
	return nil
}

// Fetch runs a scheduler over specs paused at w and waits for a cycle that
// completes without a failed request. Failed requests are retried until ctx
// ends.
func Fetch(ctx context.Context, tr stream.Transport, cfg stream.Config, specs []dashboard.PanelSpec, w stream.Window, log logger.Logger) (*FetchResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loop := stream.NewLoop(stream.DefaultLoopBuffer)
	go loop.Run(ctx)

	panels := make([]*stream.Panel, len(specs))
	for i, spec := range specs {
		panels[i] = stream.NewPanel(spec.ID, spec.Title, staticView{}, spec.Streams...)
	}

	rec := newFetchRecorder()
	sched := stream.NewScheduler(cfg, loop, tr,
		stream.WithNotifier(rec),
		stream.WithObserver(rec),
		stream.WithLogger(log),
	)
	if !loop.Do(func() {
		sched.Open(panels)
		sched.ShowWindow(w)
	}) {
		return nil, ctx.Err()
	}
	defer loop.Do(sched.Close)

	select {
	case <-rec.done:
	case <-ctx.Done():
		return nil, rec.timeoutError(ctx.Err())
	}

	result := &FetchResult{Window: w, Notices: rec.notices()}
	loop.Do(func() {
		result.Window = sched.Window()
		for _, p := range panels {
			for _, st := range p.Streams {
				result.Series = append(result.Series, FetchedSeries{
					Panel:    p.Title,
					Label:    st.Label,
					Resource: st.Resource,
					Metric:   st.MetricID,
					Points:   st.Points(),
				})
			}
		}
	})
	return result, nil
}

// staticView ignores the scheduler's rendering callbacks; fetch reads the
// streams once the cycle is done.
type staticView struct{}

func (staticView) Draw()                          {}
func (staticView) EnableAnimation()               {}
func (staticView) DisableAnimation()              {}
func (staticView) ChangeTimeWindow(time.Duration) {}

// fetchRecorder watches cycles for fetch. It closes done after the first
// cycle with no transport failure.
type fetchRecorder struct {
	mu       sync.Mutex
	failed   bool
	lastErr  error
	attempts int
	notified []error
	done     chan struct{}
	once     sync.Once
}

func newFetchRecorder() *fetchRecorder {
	return &fetchRecorder{done: make(chan struct{})}
}

func (r *fetchRecorder) Notify(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notified = append(r.notified, err)
}

func (r *fetchRecorder) notices() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.notified...)
}

func (r *fetchRecorder) CycleStarted(requests, streams int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = false
	r.attempts++
	// Retries re-report missing metrics.
	r.notified = nil
}

func (r *fetchRecorder) RequestDispatched(*stream.FetchRequest)       {}
func (r *fetchRecorder) ResponseReconciled(*stream.FetchRequest, int) {}
func (r *fetchRecorder) StaleResponse(int64)                          {}
func (r *fetchRecorder) RetryScheduled(time.Duration)                 {}

func (r *fetchRecorder) RequestFailed(_ *stream.FetchRequest, err error) {
	// Malformed responses are notified and never retried, so they end up
	// as notices rather than holding the fetch open.
	if errors.IsCode(err, errors.ErrResponse) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = true
	r.lastErr = err
}

func (r *fetchRecorder) CycleEnded(time.Duration) {
	r.mu.Lock()
	failed := r.failed
	r.mu.Unlock()
	if !failed {
		r.once.Do(func() { close(r.done) })
	}
}

// timeoutError explains why the fetch gave up.
func (r *fetchRecorder) timeoutError(cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastErr != nil {
		return errors.WrapWithCode(r.lastErr, errors.ErrTransport,
			fmt.Sprintf("Gave up after %d attempts", r.attempts),
			"Check the backend is up, or raise --timeout.")
	}
	return errors.WrapWithCode(cause, errors.ErrTransport,
		"Timed out waiting for the backend",
		"Raise --timeout, or check the endpoint in your .statline.yaml.")
}

// noticeSummary shortens structured errors to their message.
func noticeSummary(err error) string {
	if e, ok := err.(*errors.Error); ok {
		return e.Summary()
	}
	return err.Error()
}

var fetchColumns = []ui.TableColumn{
	{Title: "PANEL", Width: 14},
	{Title: "MACHINE", Width: 12},
	{Title: "METRIC", Width: 10},
	{Title: "POINTS", Width: 6},
	{Title: "MIN", Width: 8},
	{Title: "MAX", Width: 8},
	{Title: "LATEST", Width: 8},
	{Title: "TREND", Width: trendWidth},
}

const trendWidth = 24

// renderFetchTable summarizes each series on one row.
func renderFetchTable(series []FetchedSeries) string {
	rows := make([][]string, 0, len(series))
	for _, s := range series {
		values := make([]float64, len(s.Points))
		lo, hi := math.Inf(1), math.Inf(-1)
		present := 0
		for i, p := range s.Points {
			if p.Missing {
				values[i] = math.NaN()
				continue
			}
			values[i] = p.Value
			lo = math.Min(lo, p.Value)
			hi = math.Max(hi, p.Value)
			present++
		}

		minCell, maxCell, latest := "-", "-", "-"
		if present > 0 {
			minCell, maxCell = formatNumber(lo), formatNumber(hi)
			for i := len(s.Points) - 1; i >= 0; i-- {
				if !s.Points[i].Missing {
					latest = formatNumber(s.Points[i].Value)
					break
				}
			}
		}

		rows = append(rows, []string{
			s.Panel,
			s.Resource.ResourceID,
			s.Metric,
			strconv.Itoa(present),
			minCell,
			maxCell,
			latest,
			ui.Sparkline(dashboard.Resample(values, trendWidth), trendWidth),
		})
	}
	return ui.RenderSimpleTable(fetchColumns, rows)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}

type fetchSeriesJSON struct {
	Panel   string                `json:"panel"`
	Backend string                `json:"backend"`
	Machine string                `json:"machine"`
	Metric  string                `json:"metric"`
	Points  []transport.Datapoint `json:"points"`
}

type fetchJSON struct {
	From    int64             `json:"from"`
	Until   int64             `json:"until"`
	Series  []fetchSeriesJSON `json:"series"`
	Notices []string          `json:"notices,omitempty"`
}

// toFetchJSON lays the result out with points in the backend's wire format.
func toFetchJSON(r *FetchResult) fetchJSON {
	out := fetchJSON{
		From:   r.Window.From.Unix(),
		Until:  r.Window.Until.Unix(),
		Series: make([]fetchSeriesJSON, len(r.Series)),
	}
	for i, s := range r.Series {
		points := make([]transport.Datapoint, len(s.Points))
		for j, p := range s.Points {
			points[j] = transport.FromStream(p)
		}
		out.Series[i] = fetchSeriesJSON{
			Panel:   s.Panel,
			Backend: s.Resource.OwnerID,
			Machine: s.Resource.ResourceID,
			Metric:  s.Metric,
			Points:  points,
		}
	}
	for _, n := range r.Notices {
		out.Notices = append(out.Notices, noticeSummary(n))
	}
	return out
}
