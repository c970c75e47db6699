package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/statline/internal/stream"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, CurrentConfigVersion, cfg.Version)
	assert.Equal(t, "http://localhost:8080", cfg.Endpoint)
	assert.Equal(t, "poll", cfg.Transport)
	assert.Equal(t, "minutes", cfg.Window)
	assert.Equal(t, 10*time.Second, cfg.Step)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 40*time.Second, cfg.MeasurementOffset)
	assert.Equal(t, 4*time.Second, cfg.RequestTimeout)
	assert.Equal(t, stream.DefaultMaxStreamsPerRequest, cfg.MaxStreamsPerRequest)
	assert.Zero(t, cfg.MaxPoints)
	assert.NotNil(t, cfg.Panels)
	assert.Empty(t, cfg.Panels)
	assert.Equal(t, "auto", cfg.Output.Color)

	assert.NoError(t, Validate(cfg))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)

	content := `
version: 1
endpoint: https://stats.example.com
transport: Push
socket_path: /ws
window: Hour
step: 30s
poll_interval: 15s
measurement_offset: 1m
request_timeout: 2s
max_streams_per_request: 5
max_points: 500
panels:
  - title: Web tier
    backend: prod
    machines: [web-1, web-2]
    metrics: [load, cpu]
  - backend: staging
    machines: [db]
    metrics: [disk]
output:
  color: never
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "https://stats.example.com", cfg.Endpoint)
	assert.Equal(t, "push", cfg.Transport)
	assert.Equal(t, "/ws", cfg.SocketPath)
	assert.Equal(t, "hour", cfg.Window)
	assert.Equal(t, stream.UnitHour, cfg.TimeUnit())
	assert.Equal(t, 30*time.Second, cfg.Step)
	assert.Equal(t, 15*time.Second, cfg.PollInterval)
	assert.Equal(t, time.Minute, cfg.MeasurementOffset)
	assert.Equal(t, 2*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5, cfg.MaxStreamsPerRequest)
	assert.Equal(t, 500, cfg.MaxPoints)
	require.Len(t, cfg.Panels, 2)
	assert.Equal(t, "Web tier", cfg.Panels[0].Title)
	assert.Equal(t, []string{"web-1", "web-2"}, cfg.Panels[0].Machines)
	assert.Equal(t, []string{"disk"}, cfg.Panels[1].Metrics)
	assert.Equal(t, "never", cfg.Output.Color)

	assert.NoError(t, Validate(cfg))
}

func TestLoad_DefaultsFillGaps(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(configPath, []byte("version: 1\nendpoint: http://box:9000\n"), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "http://box:9000", cfg.Endpoint)
	assert.Equal(t, "poll", cfg.Transport)
	assert.Equal(t, 10*time.Second, cfg.Step)
	assert.Equal(t, 40*time.Second, cfg.MeasurementOffset)
	assert.Equal(t, "auto", cfg.Output.Color)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(configPath, []byte("version: 1\nendpoint: http://box:9000\n"), 0644))

	t.Setenv("STATLINE_ENDPOINT", "http://override:1234")
	t.Setenv("STATLINE_POLL_INTERVAL", "3s")
	t.Setenv("STATLINE_OUTPUT_COLOR", "always")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "http://override:1234", cfg.Endpoint)
	assert.Equal(t, 3*time.Second, cfg.PollInterval)
	assert.Equal(t, "always", cfg.Output.Color)
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/.statline.yaml")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Config file not found")
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(configPath, []byte("panels: [\n"), 0644))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestFind(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) (string, func())
		wantErr bool
	}{
		{
			name: "explicit path exists",
			setup: func(t *testing.T) (string, func()) {
				dir := t.TempDir()
				path := filepath.Join(dir, "custom.yaml")
				err := os.WriteFile(path, []byte("version: 1"), 0644)
				require.NoError(t, err)
				return path, func() {}
			},
			wantErr: false,
		},
		{
			name: "explicit path not found",
			setup: func(t *testing.T) (string, func()) {
				return "/nonexistent/config.yaml", func() {}
			},
			wantErr: true,
		},
		{
			name: "current directory has config",
			setup: func(t *testing.T) (string, func()) {
				dir := t.TempDir()
				path := filepath.Join(dir, ConfigFileName)
				err := os.WriteFile(path, []byte("version: 1"), 0644)
				require.NoError(t, err)

				oldWd, _ := os.Getwd()
				err = os.Chdir(dir)
				require.NoError(t, err)

				return "", func() { os.Chdir(oldWd) }
			},
			wantErr: false,
		},
		{
			name: "parent directory has config",
			setup: func(t *testing.T) (string, func()) {
				dir := t.TempDir()
				require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("version: 1"), 0644))
				child := filepath.Join(dir, "deploy", "east")
				require.NoError(t, os.MkdirAll(child, 0755))

				oldWd, _ := os.Getwd()
				require.NoError(t, os.Chdir(child))

				return "", func() { os.Chdir(oldWd) }
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			explicit, cleanup := tt.setup(t)
			defer cleanup()

			path, err := Find(explicit)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				if explicit != "" {
					assert.Equal(t, explicit, path)
				} else {
					assert.NotEmpty(t, path)
				}
			}
		})
	}
}

func TestFind_StopsAtGitRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("version: 1"), 0644))
	repo := filepath.Join(dir, "repo")
	require.NoError(t, os.MkdirAll(filepath.Join(repo, ".git"), 0755))

	oldWd, _ := os.Getwd()
	require.NoError(t, os.Chdir(repo))
	defer os.Chdir(oldWd)

	t.Setenv("HOME", t.TempDir())

	path, err := Find("")
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestLoadOrDefault(t *testing.T) {
	// Change to a directory without config
	dir := t.TempDir()
	oldWd, _ := os.Getwd()
	err := os.Chdir(dir)
	require.NoError(t, err)
	defer os.Chdir(oldWd)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0755))
	t.Setenv("HOME", t.TempDir())

	cfg, path, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Empty(t, path)
	require.NotNil(t, cfg)
	assert.Equal(t, CurrentConfigVersion, cfg.Version)
	assert.Empty(t, cfg.Panels)
}

func TestSchedulerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Window = "day"
	cfg.MaxPoints = 100

	sc := cfg.SchedulerConfig()
	assert.Equal(t, stream.Day, sc.TimeWindow)
	assert.Equal(t, cfg.Step, sc.Step)
	assert.Equal(t, cfg.PollInterval, sc.PollInterval)
	assert.Equal(t, cfg.MeasurementOffset, sc.MeasurementOffset)
	assert.Equal(t, cfg.MaxStreamsPerRequest, sc.MaxStreamsPerRequest)
	assert.Equal(t, 100, sc.MaxPoints)
}

func TestPanelConfig_Streams(t *testing.T) {
	p := PanelConfig{Backend: "prod", Machines: []string{"web-1", "web-2"}, Metrics: []string{"load", "cpu"}}

	streams := p.Streams(2)
	require.Len(t, streams, 4)

	assert.Equal(t, "panel-3/web-1/load", streams[0].ID)
	assert.Equal(t, "load", streams[0].MetricID)
	assert.Equal(t, "web-1 load", streams[0].Label)
	assert.Equal(t, stream.Resource{OwnerID: "prod", ResourceID: "web-1"}, streams[0].Resource)
	assert.Equal(t, "panel-3/web-2/cpu", streams[3].ID)
	assert.Equal(t, "Panel 3", p.DisplayTitle(2))

	single := PanelConfig{Title: "DB", Backend: "prod", Machines: []string{"db"}, Metrics: []string{"disk"}}
	s := single.Streams(0)
	require.Len(t, s, 1)
	assert.Equal(t, "disk", s[0].Label)
	assert.Equal(t, "DB", single.DisplayTitle(0))
}
