package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rileyhilliard/statline/internal/errors"
	"github.com/rileyhilliard/statline/internal/stream"
	"github.com/rileyhilliard/statline/internal/transport"
)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	// Check version
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but statline only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Grab the latest statline release.")
	}

	if err := validateEndpoint(cfg.Endpoint); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Set 'endpoint' to the stats backend, like http://localhost:8080.")
	}

	switch cfg.Transport {
	case "", transport.KindPoll, transport.KindPush:
	default:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("transport '%s' isn't valid", cfg.Transport),
			"Use 'poll' or 'push'.")
	}

	if cfg.SocketPath != "" && !strings.HasPrefix(cfg.SocketPath, "/") {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("socket_path '%s' needs to start with /", cfg.SocketPath),
			"Something like '/socket' works.")
	}

	if _, err := stream.ParseTimeUnit(cfg.Window); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check 'window' in your .statline.yaml.")
	}

	if err := validateTiming(cfg); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the timing settings in your .statline.yaml.")
	}

	if err := validatePanels(cfg.Panels); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'panels' section in your .statline.yaml.")
	}

	// Validate output config
	if err := validateOutput(cfg.Output); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'output' section in your .statline.yaml.")
	}

	return nil
}

func validateEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("endpoint is empty")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("endpoint '%s' isn't a valid URL: %v", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint '%s' needs an http:// or https:// scheme", endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint '%s' has no host", endpoint)
	}
	return nil
}

// validateTiming checks the durations and batching limits.
func validateTiming(cfg *Config) error {
	positive := []struct {
		name string
		d    time.Duration
	}{
		{"step", cfg.Step},
		{"poll_interval", cfg.PollInterval},
		{"request_timeout", cfg.RequestTimeout},
	}
	for _, p := range positive {
		if p.d <= 0 {
			return fmt.Errorf("%s needs to be positive (got %v)", p.name, p.d)
		}
	}

	if cfg.MeasurementOffset < 0 {
		return fmt.Errorf("measurement_offset can't be negative - that would ask for the future")
	}
	if cfg.Step >= cfg.TimeUnit().Duration() {
		return fmt.Errorf("step (%v) is as wide as the whole %s window - you'd get a single point", cfg.Step, cfg.Window)
	}
	if cfg.MaxStreamsPerRequest < 0 {
		return fmt.Errorf("max_streams_per_request can't be negative (use 0 for no cap)")
	}
	if cfg.MaxPoints < 0 {
		return fmt.Errorf("max_points can't be negative (use 0 to keep everything)")
	}
	return nil
}

// validatePanels checks each panel names a backend, machines and metrics,
// and that titles don't collide.
func validatePanels(panels []PanelConfig) error {
	titles := make(map[string]int, len(panels))
	for i, p := range panels {
		title := p.DisplayTitle(i)
		if prev, ok := titles[title]; ok {
			return fmt.Errorf("panels %d and %d are both titled '%s'", prev+1, i+1, title)
		}
		titles[title] = i

		if strings.TrimSpace(p.Backend) == "" {
			return fmt.Errorf("panel '%s' needs a 'backend'", title)
		}
		if len(p.Machines) == 0 {
			return fmt.Errorf("panel '%s' needs at least one machine", title)
		}
		if len(p.Metrics) == 0 {
			return fmt.Errorf("panel '%s' needs at least one metric", title)
		}
		if err := nonEmpty(title, "machines", p.Machines); err != nil {
			return err
		}
		if err := nonEmpty(title, "metrics", p.Metrics); err != nil {
			return err
		}
	}
	return nil
}

func nonEmpty(title, field string, values []string) error {
	seen := make(map[string]bool, len(values))
	for i, v := range values {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("panel '%s' has an empty %s entry at position %d", title, field, i)
		}
		if seen[v] {
			return fmt.Errorf("panel '%s' lists %s '%s' twice", title, field, v)
		}
		seen[v] = true
	}
	return nil
}

// validateOutput checks output configuration.
func validateOutput(out OutputConfig) error {
	validColors := map[string]bool{"auto": true, "always": true, "never": true, "": true}
	if !validColors[out.Color] {
		return fmt.Errorf("output.color '%s' isn't valid - use 'auto', 'always', or 'never'", out.Color)
	}
	return nil
}
