package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/rileyhilliard/statline/internal/config"
	"github.com/rileyhilliard/statline/internal/errors"
	"github.com/rileyhilliard/statline/internal/stream"
	"github.com/rileyhilliard/statline/internal/transport"
	"github.com/rileyhilliard/statline/internal/ui"
)

// InitOptions holds options for the init command.
type InitOptions struct {
	Path           string // where to write; defaults to ./.statline.yaml
	Endpoint       string
	Transport      string
	Window         string
	Panel          PanelFlags // optional first panel
	Overwrite      bool       // Overwrite existing config without asking
	NonInteractive bool       // Skip prompts, use flags and defaults
	SkipProbe      bool       // Don't test the endpoint before saving
}

// Init creates a new .statline.yaml configuration file.
func Init(opts InitOptions, out io.Writer) error {
	configPath := opts.Path
	if configPath == "" {
		configPath = filepath.Join(".", config.ConfigFileName)
	}

	// Check for existing config
	if _, err := os.Stat(configPath); err == nil && !opts.Overwrite {
		if opts.NonInteractive {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Config file already exists: %s", configPath),
				"Use --force to overwrite")
		}

		var overwrite bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Config file '%s' already exists. Overwrite?", config.ConfigFileName)).
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to get user input",
				"Try running with --force to overwrite")
		}
		if !overwrite {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	if opts.Endpoint != "" {
		cfg.Endpoint = opts.Endpoint
	}
	if opts.Transport != "" {
		cfg.Transport = opts.Transport
	}
	if opts.Window != "" {
		cfg.Window = opts.Window
	}
	panel := opts.Panel

	if !opts.NonInteractive {
		if err := promptInit(cfg, &panel); err != nil {
			return err
		}
	}

	if !panel.Empty() {
		p, err := panel.Config()
		if err != nil {
			return err
		}
		cfg.Panels = append(cfg.Panels, p)
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}

	// Test the endpoint before saving
	if !opts.SkipProbe && len(cfg.Panels) > 0 {
		if err := probeEndpoint(cfg, out, opts.NonInteractive); err != nil {
			return err
		}
	}

	if err := config.Write(configPath, cfg, true); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Failed to write config file: %s", configPath),
			"Check directory permissions")
	}

	fmt.Fprint(out, ui.RenderHeader(ui.HeaderInfo{
		Version: formatVersion(version),
		Tagline: "config created",
		Detail:  configPath,
	}))
	fmt.Fprintln(out, "Next steps:")
	if len(cfg.Panels) == 0 {
		fmt.Fprintln(out, "  statline panel add --backend <id> --machines <ids> --metrics <ids>")
	}
	fmt.Fprintln(out, "  statline watch   - Open the live dashboard")
	fmt.Fprintln(out, "  statline fetch   - Print the current window")
	return nil
}

// promptInit asks for the endpoint, transport, window and an optional first
// panel, starting from the values already in cfg and panel.
func promptInit(cfg *config.Config, panel *PanelFlags) error {
	windows := make([]huh.Option[string], 0, len(stream.AllTimeUnits()))
	for _, u := range stream.AllTimeUnits() {
		windows = append(windows, huh.NewOption(fmt.Sprintf("%s (%s)", u.String(), u.Label()), u.String()))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Stats backend URL").
				Description("Where machine metrics are served from").
				Placeholder("http://localhost:8080").
				Value(&cfg.Endpoint).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("endpoint is required")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Transport").
				Options(
					huh.NewOption("poll (HTTP request per fetch)", transport.KindPoll),
					huh.NewOption("push (WebSocket events)", transport.KindPush),
				).
				Value(&cfg.Transport),
			huh.NewSelect[string]().
				Title("Initial window").
				Options(windows...).
				Value(&cfg.Window),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("First panel title (optional)").
				Placeholder("Web tier").
				Value(&panel.Title),
			huh.NewInput().
				Title("Backend id").
				Description("Leave empty to add panels later with 'statline panel add'").
				Value(&panel.Backend),
			huh.NewInput().
				Title("Machines").
				Description("Comma-separated machine ids").
				Placeholder("web-1,web-2").
				Value(&panel.Machines),
			huh.NewInput().
				Title("Metrics").
				Description("Comma-separated metric ids").
				Placeholder("cpu,load").
				Value(&panel.Metrics),
		),
	)

	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Check terminal compatibility or use --non-interactive flag")
	}
	return nil
}

// probeEndpoint polls the first machine of the first panel for the last
// minute. Interactively, a failure offers to save anyway.
func probeEndpoint(cfg *config.Config, out io.Writer, nonInteractive bool) error {
	p := cfg.Panels[0]
	poll, err := transport.NewPoll(transport.PollConfig{
		Endpoint: cfg.Endpoint,
		Timeout:  cfg.RequestTimeout,
	})
	if err != nil {
		return err
	}
	defer poll.Close()

	now := time.Now()
	req := &stream.FetchRequest{
		ID:      1,
		From:    now.Add(-time.Minute),
		Until:   now,
		Step:    cfg.Step,
		Target:  stream.Resource{OwnerID: p.Backend, ResourceID: p.Machines[0]},
		Streams: p.Streams(0)[:len(p.Metrics)],
	}

	spinner := ui.NewSpinner(out, "Testing "+cfg.Endpoint)
	spinner.Start()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()
	if _, err = poll.Fetch(ctx, req); err == nil {
		spinner.Success()
		fmt.Fprintln(out)
		return nil
	}
	spinner.Fail()

	failed := errors.WrapWithCode(err, errors.ErrTransport,
		fmt.Sprintf("Couldn't fetch from '%s'", cfg.Endpoint),
		"Check the backend is running, or pass --skip-probe to save anyway")
	if nonInteractive {
		return failed
	}

	fmt.Fprintf(out, "\n%s %v\n\n", ui.SymbolFail, err)
	var saveAnyway bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save config anyway? (You can fix the endpoint later)").
				Value(&saveAnyway),
		),
	)
	if formErr := form.Run(); formErr != nil || !saveAnyway {
		return failed
	}
	return nil
}

// initCommand is the implementation called by the cobra command.
func initCommand(opts InitOptions) error {
	if os.Getenv("CI") != "" {
		opts.NonInteractive = true
	}
	return Init(opts, os.Stdout)
}
