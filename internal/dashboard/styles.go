package dashboard

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Dashboard color palette
const (
	ColorDarkBg    = lipgloss.Color("#0A0A0F")
	ColorSurfaceBg = lipgloss.Color("#12121A")
	ColorBorder    = lipgloss.Color("#2A2A4A")

	ColorLive    = lipgloss.Color("#39FF14") // streaming badge
	ColorPaused  = lipgloss.Color("#FFAA00") // paused badge, retry marker
	ColorProblem = lipgloss.Color("#FF0055") // notices

	ColorTextPrimary   = lipgloss.Color("#FFFFFF")
	ColorTextSecondary = lipgloss.Color("#B4B4D0")
	ColorTextMuted     = lipgloss.Color("#6B6B8D")

	ColorAccent    = lipgloss.Color("#FF2E97")
	ColorAccentDim = lipgloss.Color("#BF40FF")
)

// SeriesColors are assigned to a panel's streams in order.
var SeriesColors = []lipgloss.Color{
	lipgloss.Color("#00FFFF"),
	lipgloss.Color("#FF2E97"),
	lipgloss.Color("#39FF14"),
	lipgloss.Color("#FFAA00"),
	lipgloss.Color("#BF40FF"),
	lipgloss.Color("#4D9FFF"),
}

// SeriesColor returns the color for the i-th stream of a panel.
func SeriesColor(i int) lipgloss.Color {
	if i < 0 {
		i = -i
	}
	return SeriesColors[i%len(SeriesColors)]
}

var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary).
			Background(ColorSurfaceBg).
			Bold(true).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Padding(0, 1)

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1).
			MarginBottom(1)

	CardSelectedStyle = CardStyle.
				BorderForeground(ColorAccent)

	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorTextSecondary)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	liveBadgeStyle = lipgloss.NewStyle().
			Foreground(ColorDarkBg).
			Background(ColorLive).
			Bold(true).
			Padding(0, 1)

	pausedBadgeStyle = liveBadgeStyle.
				Background(ColorPaused)

	noticeStyle = lipgloss.NewStyle().
			Foreground(ColorProblem).
			Bold(true)

	retryStyle = lipgloss.NewStyle().
			Foreground(ColorPaused)
)

// SectionHeader renders a card title row.
// Format: ╭─ Title ──────────────────────── Value ╮
func SectionHeader(title, value string, width int) string {
	if width < 10 {
		width = 10
	}

	leftWidth := 3 + lipgloss.Width(title) + 1
	rightWidth := 1 + lipgloss.Width(value) + 2

	fillWidth := width - leftWidth - rightWidth
	if fillWidth < 1 {
		fillWidth = 1
	}
	middle := strings.Repeat("─", fillWidth)

	borderStyle := lipgloss.NewStyle().Foreground(ColorBorder)
	titleStyle := lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	valueStyle := lipgloss.NewStyle().Foreground(ColorTextSecondary)

	return borderStyle.Render("╭─ ") +
		titleStyle.Render(title) +
		borderStyle.Render(" "+middle+" ") +
		valueStyle.Render(value) +
		borderStyle.Render(" ╮")
}
