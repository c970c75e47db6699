package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/statline/internal/config"
	"github.com/rileyhilliard/statline/internal/errors"
	"github.com/rileyhilliard/statline/internal/stream"
	"github.com/rileyhilliard/statline/internal/ui"
)

// ConfigFlags holds the overrides shared by watch and fetch.
type ConfigFlags struct {
	Endpoint  string
	Transport string
	Window    string
}

// AddConfigFlags registers --endpoint, --transport, and --window on a command.
func AddConfigFlags(cmd *cobra.Command, flags *ConfigFlags) {
	cmd.Flags().StringVar(&flags.Endpoint, "endpoint", "", "stats backend URL (overrides config)")
	cmd.Flags().StringVar(&flags.Transport, "transport", "", "poll or push (overrides config)")
	cmd.Flags().StringVar(&flags.Window, "window", "", "initial window: minutes, hour, day, week, month")
}

// Apply copies the set flags over cfg.
func (f ConfigFlags) Apply(cfg *config.Config) {
	if f.Endpoint != "" {
		cfg.Endpoint = f.Endpoint
	}
	if f.Transport != "" {
		cfg.Transport = f.Transport
	}
	if f.Window != "" {
		cfg.Window = f.Window
	}
}

// loadConfig finds and validates the config, applying flag overrides first.
// A config with no panels is an error since there would be nothing to show.
func loadConfig(flags ConfigFlags) (*config.Config, string, error) {
	cfg, path, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, "", err
	}
	flags.Apply(cfg)

	if err := config.Validate(cfg); err != nil {
		return nil, "", err
	}
	if len(cfg.Panels) == 0 {
		return nil, "", errors.New(errors.ErrConfig,
			"No panels configured",
			"Add one with: statline panel add --backend <id> --machines <ids> --metrics <ids>")
	}
	if !noColor {
		ui.SetColorMode(cfg.Output.Color)
	}
	return cfg, path, nil
}

// ParseDurationFlag parses a duration flag. Returns zero if the flag is empty.
func ParseDurationFlag(name, flag string) (time.Duration, error) {
	if flag == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(flag)
	if err != nil || d < 0 {
		if err == nil {
			err = fmt.Errorf("negative duration")
		}
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' doesn't look like a valid --%s", flag, name),
			"Try something like 5s, 2m, or 500ms.")
	}
	return d, nil
}

// ParseTimeFlag parses a point in time. Accepted forms:
//
//	now                    the current time
//	2h, -2h, 90m           that long before now
//	1700000000             unix seconds
//	2024-01-02T15:04:05Z   RFC 3339
func ParseTimeFlag(value string, now time.Time) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" || v == "now" {
		return now, nil
	}
	if d, err := time.ParseDuration(strings.TrimPrefix(v, "-")); err == nil {
		return now.Add(-d), nil
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Time{}, errors.New(errors.ErrConfig,
		fmt.Sprintf("'%s' isn't a time statline understands", value),
		"Use 'now', a duration ago like 2h, unix seconds, or RFC 3339.")
}

// ResolveWindow turns --from/--until into a window. An empty from means one
// window size before until.
func ResolveWindow(from, until string, size time.Duration, now time.Time) (stream.Window, error) {
	end, err := ParseTimeFlag(until, now)
	if err != nil {
		return stream.Window{}, err
	}
	start := end.Add(-size)
	if strings.TrimSpace(from) != "" {
		if start, err = ParseTimeFlag(from, now); err != nil {
			return stream.Window{}, err
		}
	}
	if !start.Before(end) {
		return stream.Window{}, errors.New(errors.ErrConfig,
			fmt.Sprintf("--from (%s) must be before --until (%s)", start.Format(time.RFC3339), end.Format(time.RFC3339)),
			"Swap the values or widen the range.")
	}
	return stream.Window{From: start, Until: end}, nil
}

// splitList splits a comma-separated flag, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
