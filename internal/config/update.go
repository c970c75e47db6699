package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const fileHeader = "# statline dashboard config. See 'statline init --help'.\n"

// Write saves cfg to path as YAML. An existing file is only replaced when
// force is set.
func Write(path string, cfg *Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}

	var buf strings.Builder
	buf.WriteString(fileHeader)
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(toFile(cfg)); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	encoder.Close()

	if err := os.WriteFile(path, []byte(buf.String()), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// fileConfig mirrors Config with durations as strings so the file reads
// "10s" rather than nanoseconds.
type fileConfig struct {
	Version              int           `yaml:"version"`
	Endpoint             string        `yaml:"endpoint"`
	Transport            string        `yaml:"transport"`
	SocketPath           string        `yaml:"socket_path,omitempty"`
	Window               string        `yaml:"window"`
	Step                 string        `yaml:"step"`
	PollInterval         string        `yaml:"poll_interval"`
	MeasurementOffset    string        `yaml:"measurement_offset"`
	RequestTimeout       string        `yaml:"request_timeout"`
	MaxStreamsPerRequest int           `yaml:"max_streams_per_request"`
	MaxPoints            int           `yaml:"max_points,omitempty"`
	Panels               []PanelConfig `yaml:"panels"`
	Output               OutputConfig  `yaml:"output"`
}

func toFile(cfg *Config) fileConfig {
	panels := cfg.Panels
	if panels == nil {
		panels = []PanelConfig{}
	}
	return fileConfig{
		Version:              cfg.Version,
		Endpoint:             cfg.Endpoint,
		Transport:            cfg.Transport,
		SocketPath:           cfg.SocketPath,
		Window:               cfg.Window,
		Step:                 cfg.Step.String(),
		PollInterval:         cfg.PollInterval.String(),
		MeasurementOffset:    cfg.MeasurementOffset.String(),
		RequestTimeout:       cfg.RequestTimeout.String(),
		MaxStreamsPerRequest: cfg.MaxStreamsPerRequest,
		MaxPoints:            cfg.MaxPoints,
		Panels:               panels,
		Output:               cfg.Output,
	}
}

// AddPanel appends a panel to the config file.
// It preserves the existing YAML structure and comments.
func AddPanel(configPath string, panel PanelConfig) error {
	// Read the existing file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse as yaml.Node to preserve structure
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return fmt.Errorf("invalid YAML document structure")
	}

	docNode := root.Content[0]
	if docNode.Kind != yaml.MappingNode {
		return fmt.Errorf("expected mapping at document root")
	}

	// Find or create panels
	panelsNode := findMapValue(docNode, "panels")
	if panelsNode == nil {
		panelsNode = &yaml.Node{
			Kind:    yaml.SequenceNode,
			Tag:     "!!seq",
			Content: []*yaml.Node{},
		}
		keyNode := &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!str",
			Value: "panels",
		}
		docNode.Content = append(docNode.Content, keyNode, panelsNode)
	}
	if panelsNode.Kind != yaml.SequenceNode {
		return fmt.Errorf("'panels' is not a list")
	}

	// Refuse a title that's already taken
	for _, item := range panelsNode.Content {
		if title := findMapValue(item, "title"); title != nil && panel.Title != "" && title.Value == panel.Title {
			return fmt.Errorf("panel '%s' already exists", panel.Title)
		}
	}

	var panelNode yaml.Node
	if err := panelNode.Encode(panel); err != nil {
		return fmt.Errorf("failed to encode panel: %w", err)
	}
	panelsNode.Content = append(panelsNode.Content, &panelNode)

	// Write back to file
	var buf strings.Builder
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&root); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	encoder.Close()

	if err := os.WriteFile(configPath, []byte(buf.String()), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// findMapValue finds a value in a mapping node by key name.
func findMapValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i < len(node.Content)-1; i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		if keyNode.Kind == yaml.ScalarNode && keyNode.Value == key {
			return valueNode
		}
	}

	return nil
}
