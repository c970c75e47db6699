package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/statline/internal/errors"
)

// Command-specific flags
var (
	watchOpts     WatchOptions
	fetchOpts     FetchOptions
	serveOpts     ServeOptions
	initOpts      InitOptions
	panelAddFlags PanelFlags
)

// watchCmd opens the live dashboard
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open the live metrics dashboard",
	Long: `Open a full-screen dashboard with one chart per configured panel.

The dashboard starts streaming at the live edge: each cycle asks only for
data newer than what is already on screen, and requests for streams on the
same machine are merged. Navigating back or resizing the window pauses
streaming; moving forward to the live edge resumes it.

Keyboard shortcuts:
  space/p     Pause or resume streaming
  left/h      Previous window
  right/l     Next window
  +/-         Wider or narrower window
  1-5         Jump to 10m, 1h, 1d, 1w, 30d
  r           Back to live
  up/down     Select panel
  ?           Show help
  q / Ctrl+C  Quit

Examples:
  statline watch
  statline watch --window hour --panels web,2
  statline watch --transport push --metrics-addr :9464`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchCommand(watchOpts)
	},
}

// fetchCmd prints one window without the TUI
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Print one window of every panel",
	Long: `Fetch every panel's series for one window and print a summary table,
or the raw points with --json.

Times accept 'now', a duration ago (2h), unix seconds, or RFC 3339. Without
--from the window is one configured window size ending at --until.

Failed requests are retried until --timeout.

Examples:
  statline fetch
  statline fetch --from 2h --until 1h
  statline fetch --window day --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return fetchCommand(fetchOpts, cmd.OutOrStdout())
	},
}

// serveCmd runs the demo backend
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a demo stats backend",
	Long: `Serve generated metrics over both the poll (HTTP) and push (WebSocket)
protocols, for trying statline without a real backend.

Every backend, machine and metric id is accepted. Values are deterministic
waves, so the same window always returns the same points.

Examples:
  statline serve
  statline serve --addr :9000 --fail-every 5
  statline serve --missing gpu --latency 300ms`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCommand(serveOpts, cmd.OutOrStdout())
	},
}

// initCmd creates a new .statline.yaml configuration
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .statline.yaml configuration",
	Long: `Initialize a new statline configuration file.

Creates a .statline.yaml file in the current directory. Prompts for the
backend endpoint, transport, initial window and an optional first panel,
then tests the endpoint before saving.

Examples:
  statline init
  statline init --endpoint http://localhost:8080 --non-interactive
  statline init --backend prod --machines web-1 --metrics cpu --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initCommand(initOpts)
	},
}

// panelCmd groups panel management
var panelCmd = &cobra.Command{
	Use:   "panel",
	Short: "Manage dashboard panels",
}

var panelAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a panel to the config",
	Long: `Append a panel to .statline.yaml, keeping the rest of the file as is.

A panel shows every listed metric for every listed machine of one backend.

Examples:
  statline panel add --backend prod --machines web-1,web-2 --metrics cpu,load
  statline panel add --title "DB" --backend prod --machines db-1 --metrics iops`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return panelAddCommand(panelAddFlags, cmd.OutOrStdout())
	},
}

var panelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured panels",
	RunE: func(cmd *cobra.Command, args []string) error {
		return panelListCommand(cmd.OutOrStdout())
	},
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for statline.

Examples:
  # Bash
  statline completion bash > /etc/bash_completion.d/statline

  # Zsh
  statline completion zsh > "${fpath[1]}/_statline"

  # Fish
  statline completion fish > ~/.config/fish/completions/statline.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(os.Stdout)
		default:
			return errors.New(errors.ErrConfig,
				"Unknown shell: "+args[0],
				"Supported shells: bash, zsh, fish, powershell")
		}
	},
}

func init() {
	// watch command flags
	AddConfigFlags(watchCmd, &watchOpts.Config)
	watchCmd.Flags().StringVar(&watchOpts.Panels, "panels", "", "only show these panels (titles or numbers, comma-separated)")
	watchCmd.Flags().StringVar(&watchOpts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g., :9464)")
	watchCmd.Flags().StringVar(&watchOpts.LogFile, "log-file", "", "write logs here while the dashboard is open")

	// fetch command flags
	AddConfigFlags(fetchCmd, &fetchOpts.Config)
	fetchCmd.Flags().StringVar(&fetchOpts.Panels, "panels", "", "only fetch these panels (titles or numbers, comma-separated)")
	fetchCmd.Flags().StringVar(&fetchOpts.From, "from", "", "window start (default: one window before --until)")
	fetchCmd.Flags().StringVar(&fetchOpts.Until, "until", "now", "window end")
	fetchCmd.Flags().StringVar(&fetchOpts.Timeout, "timeout", "", "give up after this long (default 30s)")
	fetchCmd.Flags().BoolVar(&fetchOpts.JSON, "json", false, "print points as JSON")

	// serve command flags
	serveCmd.Flags().StringVar(&serveOpts.Addr, "addr", "localhost:8080", "listen address")
	serveCmd.Flags().StringVar(&serveOpts.SocketPath, "socket-path", "", "WebSocket path (default /socket)")
	serveCmd.Flags().Int64Var(&serveOpts.FailEvery, "fail-every", 0, "fail every Nth stats request")
	serveCmd.Flags().Uint32Var(&serveOpts.GapEvery, "gap-every", 0, "report roughly one sample in N as missing")
	serveCmd.Flags().StringVar(&serveOpts.Latency, "latency", "", "delay every response (e.g., 200ms)")
	serveCmd.Flags().StringVar(&serveOpts.Missing, "missing", "", "metric ids to leave out of responses (comma-separated)")

	// init command flags
	initCmd.Flags().StringVar(&initOpts.Endpoint, "endpoint", "", "stats backend URL")
	initCmd.Flags().StringVar(&initOpts.Transport, "transport", "", "poll or push")
	initCmd.Flags().StringVar(&initOpts.Window, "window", "", "initial window: minutes, hour, day, week, month")
	AddPanelFlags(initCmd, &initOpts.Panel)
	initCmd.Flags().BoolVarP(&initOpts.Overwrite, "force", "f", false, "overwrite existing config")
	initCmd.Flags().BoolVar(&initOpts.NonInteractive, "non-interactive", false, "skip prompts, use flags and defaults")
	initCmd.Flags().BoolVar(&initOpts.SkipProbe, "skip-probe", false, "don't test the endpoint before saving")

	// panel subcommands
	AddPanelFlags(panelAddCmd, &panelAddFlags)
	panelCmd.AddCommand(panelAddCmd)
	panelCmd.AddCommand(panelListCmd)

	// Register all commands
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(panelCmd)
	rootCmd.AddCommand(completionCmd)
}
