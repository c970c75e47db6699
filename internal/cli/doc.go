// Package cli implements the statline command-line interface.
//
// The package is organized around Cobra commands, with each command
// delegating to a plain function that takes an options struct and an output
// writer, so the work can be tested without Cobra:
//
//   - Command definitions (cobra.Command instances, in commands.go)
//   - Command implementations (watchCommand, Fetch, Init, ...)
//   - Everything else (in other internal packages)
//
// # Command Structure
//
//	statline watch          - Live dashboard (internal/dashboard)
//	statline fetch          - Print one window, as a table or JSON
//	statline serve          - Demo stats backend (internal/backend)
//	statline init           - Create .statline.yaml
//	statline panel add      - Append a panel to the config
//	statline panel list     - Show configured panels
//	statline version        - Build info
//
// # Scheduling
//
// Both watch and fetch drive a stream.Scheduler on its own stream.Loop. The
// dashboard talks to it through dashboard.Session. Fetch opens the scheduler
// paused at an explicit window and waits for the first cycle that finishes
// without a failed request.
//
// # Flag Handling
//
// Global flags (--config, --verbose, --no-color) are defined on the root
// command and available to all subcommands. ConfigFlags adds the endpoint,
// transport and window overrides shared by watch and fetch; PanelFlags
// describes a panel for init and panel add.
package cli
