package dashboard

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/statline/internal/stream"
)

// KeyMap holds the dashboard's key bindings.
type KeyMap struct {
	Toggle   key.Binding
	Back     key.Binding
	Forward  key.Binding
	Wider    key.Binding
	Narrower key.Binding
	Live     key.Binding
	Units    []key.Binding // one per stream.AllTimeUnits, in order
	Prev     key.Binding
	Next     key.Binding
	Help     key.Binding
	Close    key.Binding
	Quit     key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	km := KeyMap{
		Toggle: key.NewBinding(
			key.WithKeys(" ", "p"),
			key.WithHelp("space", "pause / resume"),
		),
		Back: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "earlier window"),
		),
		Forward: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "later window"),
		),
		Wider: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "wider window"),
		),
		Narrower: key.NewBinding(
			key.WithKeys("-", "_"),
			key.WithHelp("-", "narrower window"),
		),
		Live: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "jump to live"),
		),
		Prev: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "previous panel"),
		),
		Next: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "next panel"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Close: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
	for i, u := range stream.AllTimeUnits() {
		k := string(rune('1' + i))
		km.Units = append(km.Units, key.NewBinding(
			key.WithKeys(k),
			key.WithHelp(k, u.Label()+" window"),
		))
	}
	return km
}

// ShortHelp is shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Back, k.Forward, k.Wider, k.Narrower, k.Help, k.Quit}
}

// FullHelp is shown in the help overlay.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Live, k.Back, k.Forward},
		append([]key.Binding{k.Wider, k.Narrower}, k.Units...),
		{k.Prev, k.Next, k.Help, k.Close, k.Quit},
	}
}

// HandleKeyMsg processes keyboard input. Returns true if the key was handled.
func (m *Model) HandleKeyMsg(msg tea.KeyMsg) (bool, tea.Cmd) {
	keys := m.keys

	// Help toggle takes priority
	if key.Matches(msg, keys.Help) {
		m.showHelp = !m.showHelp
		return true, nil
	}
	if m.showHelp && key.Matches(msg, keys.Close) {
		m.showHelp = false
		return true, nil
	}

	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return true, tea.Quit

	case key.Matches(msg, keys.Toggle):
		return true, m.session.Apply((*stream.Scheduler).ToggleStreaming)

	case key.Matches(msg, keys.Live):
		return true, m.session.Apply((*stream.Scheduler).Stream)

	case key.Matches(msg, keys.Back):
		return true, m.session.Apply((*stream.Scheduler).GoBack)

	case key.Matches(msg, keys.Forward):
		return true, m.session.Apply((*stream.Scheduler).GoForward)

	case key.Matches(msg, keys.Wider):
		return true, m.resize(stream.TimeUnit.Next)

	case key.Matches(msg, keys.Narrower):
		return true, m.resize(stream.TimeUnit.Prev)

	case key.Matches(msg, keys.Prev):
		if m.selected > 0 {
			m.selected--
		}
		return true, nil

	case key.Matches(msg, keys.Next):
		if m.selected < len(m.panels)-1 {
			m.selected++
		}
		return true, nil
	}

	for i, b := range keys.Units {
		if key.Matches(msg, b) {
			unit := stream.AllTimeUnits()[i]
			return true, m.session.Apply(func(s *stream.Scheduler) { s.ChangeTimeWindow(unit) })
		}
	}

	return false, nil
}

// resize steps the window to a neighbouring unit. A size that matches no
// unit steps from the nearest smaller one.
func (m *Model) resize(step func(stream.TimeUnit) stream.TimeUnit) tea.Cmd {
	return m.session.Apply(func(s *stream.Scheduler) {
		s.ChangeTimeWindow(step(unitAtOrBelow(s.TimeWindow())))
	})
}

func unitAtOrBelow(size time.Duration) stream.TimeUnit {
	out := stream.UnitMinutes
	for _, u := range stream.AllTimeUnits() {
		if u.Duration() <= size {
			out = u
		}
	}
	return out
}
