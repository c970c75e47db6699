// Package dashboard provides the terminal UI for watching metric panels.
//
// A Session owns a stream.Scheduler and runs every operation on the
// scheduler's loop. The Bubble Tea Model never touches the scheduler
// directly; it receives snapshots as messages:
//
//   - drawMsg after each completed fetch cycle, carrying a copy of every
//     stream in the panel
//   - animationMsg when streaming starts or stops
//   - windowMsg when the window size changes
//   - noticeMsg when the scheduler reports a failure to the user
//
// Key presses are turned into scheduler operations with Session.Apply, which
// hops onto the loop and reports the resulting status back.
//
// Layout:
//
//	statline LIVE 10m 14:02:10 → 14:12:10
//
//	╭──────────────────────────────────────────────╮
//	│ web-1 ⣾                                       │
//	│ ⠀⠀⠀⠀⢀⡠⠤⠤⣀⠀⠀⠀⠀⠀⠀⢀⡠⠔⠒⠒⠢⢄⡀⠀⠀⠀⠀⠀⠀⠀⠀⠀⠀⠀⠀⠀⠀⠀⠀⠀⠀  │
//	│ ● load 1.42                                  │
//	│ ● cpu 37.80                                  │
//	╰──────────────────────────────────────────────╯
//
//	space pause / resume • ←/h earlier window • ...
package dashboard
