package config

import (
	"fmt"
	"time"

	"github.com/rileyhilliard/statline/internal/stream"
)

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete .statline.yaml configuration file.
type Config struct {
	Version int `yaml:"version" mapstructure:"version"`

	// Endpoint is the stats backend base URL.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`

	// Transport is "poll" (HTTP GET per request) or "push" (WebSocket events).
	Transport string `yaml:"transport" mapstructure:"transport"`

	// SocketPath is appended to the endpoint for push connections.
	SocketPath string `yaml:"socket_path,omitempty" mapstructure:"socket_path"`

	// Window is the initial time window: minutes, hour, day, week or month.
	Window string `yaml:"window" mapstructure:"window"`

	// Step is the sampling granularity requested from the backend.
	Step time.Duration `yaml:"step" mapstructure:"step"`

	// PollInterval is the delay between streaming cycles. Failed requests
	// are retried after half of it.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`

	// MeasurementOffset shifts every requested window into the past to allow
	// for ingestion lag.
	MeasurementOffset time.Duration `yaml:"measurement_offset" mapstructure:"measurement_offset"`

	// RequestTimeout bounds a single poll request.
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`

	// MaxStreamsPerRequest caps how many streams are merged into one request.
	// Zero means no cap.
	MaxStreamsPerRequest int `yaml:"max_streams_per_request" mapstructure:"max_streams_per_request"`

	// MaxPoints caps each stream's buffer. Zero keeps everything.
	MaxPoints int `yaml:"max_points,omitempty" mapstructure:"max_points"`

	Panels []PanelConfig `yaml:"panels" mapstructure:"panels"`
	Output OutputConfig  `yaml:"output" mapstructure:"output"`
}

// PanelConfig describes one dashboard panel: every listed metric for every
// listed machine of one backend.
type PanelConfig struct {
	Title    string   `yaml:"title" mapstructure:"title"`
	Backend  string   `yaml:"backend" mapstructure:"backend"`
	Machines []string `yaml:"machines" mapstructure:"machines"`
	Metrics  []string `yaml:"metrics" mapstructure:"metrics"`
}

// OutputConfig controls terminal output formatting.
type OutputConfig struct {
	// Color mode: "auto", "always", or "never".
	// "auto" disables color when output is piped.
	Color string `yaml:"color" mapstructure:"color"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	d := stream.DefaultConfig()
	return &Config{
		Version:              CurrentConfigVersion,
		Endpoint:             "http://localhost:8080",
		Transport:            "poll",
		Window:               stream.UnitMinutes.String(),
		Step:                 d.Step,
		PollInterval:         d.PollInterval,
		MeasurementOffset:    d.MeasurementOffset,
		RequestTimeout:       4 * time.Second,
		MaxStreamsPerRequest: d.MaxStreamsPerRequest,
		Panels:               []PanelConfig{},
		Output: OutputConfig{
			Color: "auto",
		},
	}
}

// TimeUnit returns the configured window unit. Call Validate first; an
// unknown name falls back to minutes.
func (c *Config) TimeUnit() stream.TimeUnit {
	u, _ := stream.ParseTimeUnit(c.Window)
	return u
}

// SchedulerConfig converts the file settings for the scheduler.
func (c *Config) SchedulerConfig() stream.Config {
	return stream.Config{
		TimeWindow:           c.TimeUnit().Duration(),
		Step:                 c.Step,
		PollInterval:         c.PollInterval,
		MeasurementOffset:    c.MeasurementOffset,
		MaxStreamsPerRequest: c.MaxStreamsPerRequest,
		MaxPoints:            c.MaxPoints,
	}
}

// ID returns the panel's stable identifier.
func (p PanelConfig) ID(index int) string {
	return fmt.Sprintf("panel-%d", index+1)
}

// Streams expands the panel into one stream per machine and metric, grouped
// by machine.
func (p PanelConfig) Streams(index int) []*stream.MetricStream {
	panelID := p.ID(index)
	out := make([]*stream.MetricStream, 0, len(p.Machines)*len(p.Metrics))
	for _, machine := range p.Machines {
		res := stream.Resource{OwnerID: p.Backend, ResourceID: machine}
		for _, metric := range p.Metrics {
			s := stream.NewMetricStream(panelID+"/"+machine+"/"+metric, metric, res)
			if len(p.Machines) > 1 {
				s.Label = machine + " " + metric
			}
			out = append(out, s)
		}
	}
	return out
}

// DisplayTitle returns the title, or a generated one when unset.
func (p PanelConfig) DisplayTitle(index int) string {
	if p.Title != "" {
		return p.Title
	}
	return fmt.Sprintf("Panel %d", index+1)
}
