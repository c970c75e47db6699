package dashboard

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	slerrors "github.com/rileyhilliard/statline/internal/errors"
	"github.com/rileyhilliard/statline/internal/stream"
)

func init() {
	lipgloss.SetColorProfile(termenv.TrueColor)
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// feed runs cmd and applies the resulting message, mimicking the runtime for
// the commands this model returns.
func feed(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		return m
	}
	msg := cmd()
	if msg == nil {
		return m
	}
	next, _ := m.Update(msg)
	return next.(Model)
}

func press(t *testing.T, m Model, k string) Model {
	t.Helper()
	next, cmd := m.Update(keyMsg(k))
	return feed(t, next.(Model), cmd)
}

// deliver replays everything the session sent into the model.
func deliver(m Model, f *fixture) Model {
	for _, msg := range f.sent.take() {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func openModel(t *testing.T) (Model, *fixture) {
	t.Helper()
	f := newFixture(t)
	m := NewModel(f.session)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = next.(Model)
	m = feed(t, m, f.session.Open())
	return deliver(m, f), f
}

func TestModel_Open(t *testing.T) {
	m, _ := openModel(t)
	assert.Equal(t, stream.ModeStreaming, m.Status().Mode)
	assert.True(t, m.panels[0].animating)
	assert.Zero(t, m.panels[0].draws)
	assert.Contains(t, m.View(), "LIVE")
	assert.Contains(t, m.View(), "waiting")
}

func TestModel_Draw(t *testing.T) {
	m, f := openModel(t)
	f.transport.RespondAll([]stream.Datapoint{
		{Time: time.Unix(999_700, 0), Value: 1.5},
		{Time: time.Unix(999_710, 0), Value: 2500},
	})
	f.exec.Drain()
	m = deliver(m, f)

	require.Equal(t, 1, m.panels[0].draws)
	view := m.View()
	assert.Contains(t, view, "Web")
	assert.Contains(t, view, "load")
	assert.Contains(t, view, "2.5k")
}

func TestModel_Keys(t *testing.T) {
	tests := []struct {
		name     string
		keys     []string
		wantMode stream.Mode
		wantSize time.Duration
	}{
		{name: "space pauses", keys: []string{" "}, wantMode: stream.ModePaused, wantSize: 10 * time.Minute},
		{name: "space twice resumes", keys: []string{" ", " "}, wantMode: stream.ModeStreaming, wantSize: 10 * time.Minute},
		{name: "back pauses", keys: []string{"left"}, wantMode: stream.ModePaused, wantSize: 10 * time.Minute},
		{name: "back then live", keys: []string{"h", "r"}, wantMode: stream.ModeStreaming, wantSize: 10 * time.Minute},
		// Resizing stops streaming and fetches the recentered window.
		{name: "wider", keys: []string{"+"}, wantMode: stream.ModePaused, wantSize: time.Hour},
		{name: "wider twice", keys: []string{"+", "="}, wantMode: stream.ModePaused, wantSize: stream.Day},
		{name: "narrower saturates", keys: []string{"-"}, wantMode: stream.ModeStreaming, wantSize: 10 * time.Minute},
		{name: "narrower after wider", keys: []string{"+", "-"}, wantMode: stream.ModePaused, wantSize: 10 * time.Minute},
		{name: "unit key", keys: []string{"4"}, wantMode: stream.ModePaused, wantSize: stream.Week},
		{name: "month then live", keys: []string{"5", "r"}, wantMode: stream.ModeStreaming, wantSize: stream.Month},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, f := openModel(t)
			for _, k := range tt.keys {
				m = press(t, m, k)
				m = deliver(m, f)
			}
			assert.Equal(t, tt.wantMode, m.Status().Mode)
			assert.Equal(t, tt.wantSize, m.Status().Size)
		})
	}
}

func TestModel_HelpOverlay(t *testing.T) {
	m, _ := openModel(t)

	m = press(t, m, "?")
	assert.True(t, m.showHelp)
	view := m.View()
	assert.Contains(t, view, "Keyboard Shortcuts")
	assert.Contains(t, view, "1mo window")

	m = press(t, m, "esc")
	assert.False(t, m.showHelp)
}

func TestModel_Selection(t *testing.T) {
	f := newFixture(t)
	other := stream.NewMetricStream("panel-2/db-1/load", "load", stream.Resource{OwnerID: "b1", ResourceID: "db-1"})
	f.session = NewSession(f.exec, stream.DefaultConfig(), f.transport, []PanelSpec{
		{ID: "panel-1", Title: "Web", Streams: []*stream.MetricStream{f.load}},
		{ID: "panel-2", Title: "DB", Streams: []*stream.MetricStream{other}},
	})
	m := NewModel(f.session)

	m = press(t, m, "k")
	assert.Equal(t, 0, m.Selected())
	m = press(t, m, "j")
	assert.Equal(t, 1, m.Selected())
	m = press(t, m, "down")
	assert.Equal(t, 1, m.Selected())
	m = press(t, m, "up")
	assert.Equal(t, 0, m.Selected())
}

func TestModel_Quit(t *testing.T) {
	m, _ := openModel(t)
	next, cmd := m.Update(keyMsg("q"))
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

func TestModel_NoticeExpires(t *testing.T) {
	m, _ := openModel(t)

	err := slerrors.New(slerrors.ErrResponse, "Response to request 4 is missing metric 'gpu'", "ignored in the footer")
	next, cmd := m.Update(noticeMsg{err: err})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.Equal(t, "Response to request 4 is missing metric 'gpu'", m.Notice())
	assert.Contains(t, m.View(), "missing metric 'gpu'")

	// A newer notice outlives the first one's timer.
	next, _ = m.Update(noticeMsg{err: errors.New("second")})
	m = next.(Model)
	next, _ = m.Update(clearNoticeMsg{seq: 1})
	m = next.(Model)
	assert.Equal(t, "second", m.Notice())

	next, _ = m.Update(clearNoticeMsg{seq: 2})
	m = next.(Model)
	assert.Empty(t, m.Notice())
}

func TestUnitAtOrBelow(t *testing.T) {
	assert.Equal(t, stream.UnitMinutes, unitAtOrBelow(time.Minute))
	assert.Equal(t, stream.UnitHour, unitAtOrBelow(90*time.Minute))
	assert.Equal(t, stream.UnitMonth, unitAtOrBelow(365*stream.Day))
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0.123, "0.12"},
		{42, "42.00"},
		{250, "250"},
		{2500, "2.5k"},
		{-2500, "-2.5k"},
		{3_200_000, "3.2M"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatValue(tt.in))
	}
}

func TestSizeLabel(t *testing.T) {
	assert.Equal(t, "", sizeLabel(0))
	assert.Equal(t, "1h", sizeLabel(time.Hour))
	assert.Equal(t, "2h0m0s", sizeLabel(2*time.Hour))
}
