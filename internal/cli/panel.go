package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/statline/internal/config"
	"github.com/rileyhilliard/statline/internal/errors"
	"github.com/rileyhilliard/statline/internal/ui"
)

// PanelFlags describes a panel from the command line.
type PanelFlags struct {
	Title    string
	Backend  string
	Machines string // comma-separated
	Metrics  string // comma-separated
}

// AddPanelFlags registers --title, --backend, --machines, and --metrics on a command.
func AddPanelFlags(cmd *cobra.Command, flags *PanelFlags) {
	cmd.Flags().StringVar(&flags.Title, "title", "", "panel title")
	cmd.Flags().StringVar(&flags.Backend, "backend", "", "backend id the machines are registered under")
	cmd.Flags().StringVar(&flags.Machines, "machines", "", "machine ids (comma-separated)")
	cmd.Flags().StringVar(&flags.Metrics, "metrics", "", "metric ids (comma-separated)")
}

// Empty reports whether no panel flag was given.
func (f PanelFlags) Empty() bool {
	return strings.TrimSpace(f.Title+f.Backend+f.Machines+f.Metrics) == ""
}

// Config converts the flags to a panel, requiring a backend, machines and
// metrics.
func (f PanelFlags) Config() (config.PanelConfig, error) {
	p := config.PanelConfig{
		Title:    strings.TrimSpace(f.Title),
		Backend:  strings.TrimSpace(f.Backend),
		Machines: splitList(f.Machines),
		Metrics:  splitList(f.Metrics),
	}

	var missing []string
	if p.Backend == "" {
		missing = append(missing, "--backend")
	}
	if len(p.Machines) == 0 {
		missing = append(missing, "--machines")
	}
	if len(p.Metrics) == 0 {
		missing = append(missing, "--metrics")
	}
	if len(missing) > 0 {
		return config.PanelConfig{}, errors.New(errors.ErrConfig,
			"A panel needs "+strings.Join(missing, ", "),
			"Example: --backend prod --machines web-1,web-2 --metrics cpu,load")
	}
	return p, nil
}

// panelAddCommand appends a panel to the config file in place.
func panelAddCommand(flags PanelFlags, out io.Writer) error {
	p, err := flags.Config()
	if err != nil {
		return err
	}

	path, err := config.Find(cfgFile)
	if err != nil {
		return err
	}
	if path == "" {
		return errors.New(errors.ErrConfig,
			"No config file found",
			"Run 'statline init' first.")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg.Panels = append(cfg.Panels, p)
	if err := config.Validate(cfg); err != nil {
		return err
	}

	if err := config.AddPanel(path, p); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Failed to update %s", path),
			"Check the file is valid YAML and writable.")
	}

	index := len(cfg.Panels) - 1
	fmt.Fprintf(out, "%s Added panel '%s' with %d series to %s\n",
		ui.SymbolSuccess, p.DisplayTitle(index), len(p.Machines)*len(p.Metrics), path)
	return nil
}

var panelColumns = []ui.TableColumn{
	{Title: "#", Width: 3},
	{Title: "TITLE", Width: 16},
	{Title: "BACKEND", Width: 10},
	{Title: "MACHINES", Width: 20},
	{Title: "METRICS", Width: 20},
}

// panelListCommand prints the configured panels.
func panelListCommand(out io.Writer) error {
	cfg, path, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return err
	}
	if len(cfg.Panels) == 0 {
		fmt.Fprintln(out, "No panels configured. Add one with 'statline panel add'.")
		return nil
	}

	rows := make([][]string, len(cfg.Panels))
	for i, p := range cfg.Panels {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			p.DisplayTitle(i),
			p.Backend,
			strings.Join(p.Machines, ","),
			strings.Join(p.Metrics, ","),
		}
	}
	if path != "" {
		fmt.Fprintln(out, lipgloss.NewStyle().Foreground(ui.ColorMuted).Render(path))
	}
	fmt.Fprintln(out, ui.RenderSimpleTable(panelColumns, rows))
	return nil
}
