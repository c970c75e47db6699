package ui

import (
	"math"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansi.ReplaceAllString(s, "")
}

func TestRenderSparkline(t *testing.T) {
	tests := []struct {
		name  string
		data  []float64
		width int
		want  string
	}{
		{name: "empty", data: nil, width: 10, want: ""},
		{name: "zero width", data: []float64{1, 2}, width: 0, want: ""},
		{name: "increasing", data: []float64{0, 1, 2, 3, 4, 5, 6, 7}, width: 10, want: "▁▂▃▄▅▆▇█"},
		{name: "flat uses middle", data: []float64{5, 5, 5}, width: 10, want: "▅▅▅"},
		{name: "keeps most recent", data: []float64{100, 0, 7}, width: 2, want: "▁█"},
		{name: "gaps are blank", data: []float64{0, math.NaN(), 7}, width: 10, want: "▁ █"},
		{name: "all gaps", data: []float64{math.NaN(), math.NaN()}, width: 10, want: "  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stripANSI(RenderSparkline(tt.data, tt.width, ColorInfo))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderSimpleTable(t *testing.T) {
	assert.Empty(t, RenderSimpleTable([]TableColumn{{Title: "A", Width: 4}}, nil))

	out := stripANSI(RenderSimpleTable(
		[]TableColumn{{Title: "SERIES", Width: 10}, {Title: "POINTS", Width: 6}},
		[][]string{{"web-1 cpu", "60"}, {"web-1 load", "58"}},
	))
	assert.Contains(t, out, "SERIES")
	assert.Contains(t, out, "web-1 cpu")
	assert.Contains(t, out, "58")
}

func TestRenderHeader(t *testing.T) {
	out := stripANSI(RenderHeader(HeaderInfo{Version: "v1.2.3", Tagline: "metrics in your terminal", Detail: "/tmp/.statline.yaml"}))
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "statline v1.2.3", lines[0])
	assert.Equal(t, "metrics in your terminal", lines[1])
	assert.Equal(t, "/tmp/.statline.yaml", lines[2])
	assert.Equal(t, strings.Repeat("━", HeaderWidth), lines[3])

	out = stripANSI(RenderHeader(HeaderInfo{}))
	assert.True(t, strings.HasPrefix(out, "statline\n"))
}

type syncBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestSpinner(t *testing.T) {
	tests := []struct {
		name   string
		finish func(*Spinner)
		state  SpinnerState
		symbol string
	}{
		{name: "success", finish: (*Spinner).Success, state: SpinnerSuccess, symbol: SymbolComplete},
		{name: "fail", finish: (*Spinner).Fail, state: SpinnerFailed, symbol: SymbolFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf syncBuffer
			s := NewSpinner(&buf, "Fetching")
			assert.Equal(t, SpinnerPending, s.State())

			s.Start()
			s.Start()
			assert.Equal(t, SpinnerInProgress, s.State())
			time.Sleep(100 * time.Millisecond)
			s.SetLabel("Fetched")
			tt.finish(s)

			assert.Equal(t, tt.state, s.State())
			out := stripANSI(buf.String())
			assert.Contains(t, out, "Fetching...")
			last := out[strings.LastIndex(out, "\r")+1:]
			assert.True(t, strings.HasPrefix(last, tt.symbol+" Fetched "), "final line %q", last)
			assert.True(t, strings.HasSuffix(last, "s\n"))
		})
	}
}

func TestSpinner_FinishWithoutStart(t *testing.T) {
	var buf syncBuffer
	s := NewSpinner(&buf, "Idle")
	s.Success()
	assert.Contains(t, stripANSI(buf.String()), SymbolComplete+" Idle")
}

func TestSetColorMode(t *testing.T) {
	prev := lipgloss.ColorProfile()
	defer lipgloss.SetColorProfile(prev)

	SetColorMode("never")
	assert.Equal(t, termenv.Ascii, lipgloss.ColorProfile())
	assert.Equal(t, "x", lipgloss.NewStyle().Foreground(ColorError).Render("x"))

	SetColorMode("always")
	assert.Equal(t, termenv.TrueColor, lipgloss.ColorProfile())

	SetColorMode("auto")
	assert.Equal(t, termenv.TrueColor, lipgloss.ColorProfile())
}
