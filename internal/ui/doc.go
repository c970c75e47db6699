// Package ui provides terminal output helpers for statline's non-interactive
// commands.
//
// # Components Overview
//
//	Spinner      - Animated status line while a fetch is in flight
//	Sparkline    - One-line block graph of a series, gaps left blank
//	Table        - Static Bubbles table for fetch summaries
//	Header       - Branded title block for version and init output
//
// The full-screen dashboard lives in internal/dashboard and only borrows
// SpinnerFrames from here.
//
// # Color Scheme
//
//	ColorSuccess   (green)  - Completed operations
//	ColorError     (red)    - Failures
//	ColorWarning   (amber)  - Retries, partial results
//	ColorInfo      (cyan)   - Informational values
//	ColorMuted     (gray)   - Secondary text, timing info
//
// SetColorMode applies the output.color config setting.
package ui
