package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/rileyhilliard/statline/internal/config"
	"github.com/rileyhilliard/statline/internal/dashboard"
	"github.com/rileyhilliard/statline/internal/errors"
	"github.com/rileyhilliard/statline/internal/logger"
	"github.com/rileyhilliard/statline/internal/stream"
	"github.com/rileyhilliard/statline/internal/telemetry"
	"github.com/rileyhilliard/statline/internal/transport"
)

// WatchOptions holds options for the watch command.
type WatchOptions struct {
	Config      ConfigFlags
	Panels      string // comma-separated titles or 1-based indexes
	MetricsAddr string // serve scheduler metrics here when set
	LogFile     string // debug log destination while the TUI owns the screen
}

// watchCommand opens the live dashboard.
func watchCommand(opts WatchOptions) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New(errors.ErrConfig,
			"watch needs an interactive terminal",
			"Use 'statline fetch' to print a snapshot instead.")
	}

	cfg, _, err := loadConfig(opts.Config)
	if err != nil {
		return err
	}
	specs, err := filterPanels(panelSpecs(cfg), opts.Panels)
	if err != nil {
		return err
	}

	// The TUI owns stdout, so log lines go to a file or nowhere.
	restore, err := redirectLog(opts.LogFile)
	if err != nil {
		return err
	}
	defer restore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := telemetry.NewCollector()
	tr, err := newTransport(cfg, collector)
	if err != nil {
		return err
	}
	defer tr.Close()

	if opts.MetricsAddr != "" {
		srv, err := telemetry.Listen(opts.MetricsAddr, collector, logger.NewEnvLogger("[metrics]"))
		if err != nil {
			return err
		}
		go srv.Serve(ctx)
	}

	loop := stream.NewLoop(stream.DefaultLoopBuffer)
	go loop.Run(ctx)

	session := dashboard.NewSession(loop, cfg.SchedulerConfig(), tr, specs,
		stream.WithObserver(collector),
		stream.WithLogger(logger.NewEnvLogger("[stream]")),
	)
	p := tea.NewProgram(dashboard.NewModel(session), tea.WithAltScreen())
	session.Attach(p)

	_, err = p.Run()
	session.Close()
	return err
}

// newTransport builds the configured transport. Poll requests are counted by
// the collector.
func newTransport(cfg *config.Config, collector *telemetry.Collector) (stream.Transport, error) {
	tc := transport.Config{
		Kind:           cfg.Transport,
		Endpoint:       cfg.Endpoint,
		SocketPath:     cfg.SocketPath,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         logger.NewEnvLogger("[transport]"),
	}
	if collector != nil {
		tc.WrapTransport = collector.InstrumentRoundTripper
	}
	return transport.New(tc)
}

// panelSpecs expands the configured panels into dashboard panels.
func panelSpecs(cfg *config.Config) []dashboard.PanelSpec {
	specs := make([]dashboard.PanelSpec, len(cfg.Panels))
	for i, p := range cfg.Panels {
		specs[i] = dashboard.PanelSpec{
			ID:      p.ID(i),
			Title:   p.DisplayTitle(i),
			Streams: p.Streams(i),
		}
	}
	return specs
}

// filterPanels keeps the panels named in filter, by title or 1-based index,
// in their configured order.
func filterPanels(specs []dashboard.PanelSpec, filter string) ([]dashboard.PanelSpec, error) {
	names := splitList(filter)
	if len(names) == 0 {
		return specs, nil
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToLower(n)] = true
	}

	var out []dashboard.PanelSpec
	for i, s := range specs {
		if want[strings.ToLower(s.Title)] || want[strconv.Itoa(i+1)] {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("No panels match '%s'", filter),
			"Use panel titles or numbers from your .statline.yaml, or drop --panels.")
	}
	return out, nil
}

// redirectLog points the standard logger at path, or discards it when path
// is empty. The returned func restores the previous output.
func redirectLog(path string) (func(), error) {
	prev := log.Writer()
	if path == "" {
		log.SetOutput(io.Discard)
		return func() { log.SetOutput(prev) }, nil
	}

	f, err := os.OpenFile(config.ExpandTilde(path), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Can't open log file %s", path),
			"Check the directory exists and is writable.")
	}
	log.SetOutput(f)
	return func() {
		log.SetOutput(prev)
		f.Close()
	}, nil
}
