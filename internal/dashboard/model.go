package dashboard

import (
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	slerrors "github.com/rileyhilliard/statline/internal/errors"
	"github.com/rileyhilliard/statline/internal/ui"
)

// noticeTTL is how long a failure notice stays in the footer.
const noticeTTL = 6 * time.Second

// Chart height in rows; each row holds four dot levels.
const chartHeight = 6

// panelState is the model's copy of one panel, fed by drawMsg.
type panelState struct {
	title     string
	series    []Series
	animating bool
	draws     int
	lastDraw  time.Time
}

// Model is the Bubble Tea model for the metrics dashboard.
type Model struct {
	session *Session
	keys    KeyMap
	help    help.Model
	spinner spinner.Model

	panels   []panelState
	selected int
	status   Status

	notice    string
	noticeSeq int

	width    int
	height   int
	showHelp bool
	quitting bool

	viewport      viewport.Model
	viewportReady bool
}

type clearNoticeMsg struct{ seq int }

// NewModel creates a dashboard over session. Attach the program to the
// session before running it.
func NewModel(session *Session) Model {
	sp := spinner.New()
	sp.Spinner = ui.SpinnerFrames
	sp.Style = lipgloss.NewStyle().Foreground(ColorLive)

	titles := session.Titles()
	panels := make([]panelState, len(titles))
	for i, t := range titles {
		panels[i] = panelState{title: t}
	}

	return Model{
		session: session,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		spinner: sp,
		panels:  panels,
	}
}

// Init opens the session and starts the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.session.Open(),
	)
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		handled, cmd := m.HandleKeyMsg(msg)
		if handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

		// Reserve space for header and footer
		headerHeight := 2
		footerHeight := 2
		viewportHeight := m.height - headerHeight - footerHeight
		if viewportHeight < 1 {
			viewportHeight = 1
		}
		if !m.viewportReady {
			m.viewport = viewport.New(m.width, viewportHeight)
			m.viewport.YPosition = headerHeight
			m.viewportReady = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = viewportHeight
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case drawMsg:
		if msg.index >= 0 && msg.index < len(m.panels) {
			p := &m.panels[msg.index]
			p.series = msg.series
			p.draws++
			p.lastDraw = msg.status.At
		}
		m.status = msg.status

	case animationMsg:
		if msg.index >= 0 && msg.index < len(m.panels) {
			m.panels[msg.index].animating = msg.on
		}

	case windowMsg:
		m.status.Size = msg.size

	case statusMsg:
		m.status = Status(msg)

	case noticeMsg:
		m.noticeSeq++
		m.notice = noticeText(msg.err)
		seq := m.noticeSeq
		return m, tea.Tick(noticeTTL, func(time.Time) tea.Msg {
			return clearNoticeMsg{seq: seq}
		})

	case clearNoticeMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}
	return m.renderDashboard()
}

// Selected returns the index of the highlighted panel.
func (m Model) Selected() int { return m.selected }

// Notice returns the failure text shown in the footer, if any.
func (m Model) Notice() string { return m.notice }

// Status returns the last scheduler status the model saw.
func (m Model) Status() Status { return m.status }

// noticeText flattens err to one line.
func noticeText(err error) string {
	if err == nil {
		return ""
	}
	var se *slerrors.Error
	if errors.As(err, &se) {
		return se.Summary()
	}
	return err.Error()
}
