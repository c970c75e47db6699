package dashboard

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/statline/internal/stream"
)

// renderDashboard renders the complete dashboard view.
func (m Model) renderDashboard() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	cards := m.renderCards()
	if m.viewportReady {
		vp := m.viewport
		vp.SetContent(cards)
		vp.SetYOffset(m.selectedOffset())
		b.WriteString(vp.View())
	} else {
		b.WriteString(cards)
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

// renderHeader shows the mode badge, the visible range and request state.
func (m Model) renderHeader() string {
	title := lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true).
		Render("statline")

	var badge string
	switch m.status.Mode {
	case stream.ModeStreaming:
		badge = liveBadgeStyle.Render("LIVE")
	case stream.ModePaused:
		badge = pausedBadgeStyle.Render("PAUSED")
	default:
		badge = MutedStyle.Render("connecting")
	}

	parts := []string{title, badge}
	if size := sizeLabel(m.status.Size); size != "" {
		parts = append(parts, LabelStyle.Render(size))
	}
	if !m.status.Window.IsZero() {
		parts = append(parts, LabelStyle.Render(formatRange(m.status.Window)))
	}
	if m.status.InFlight > 0 {
		parts = append(parts, m.spinner.View()+MutedStyle.Render(fmt.Sprintf(" %d in flight", m.status.InFlight)))
	}
	if m.status.Retrying {
		parts = append(parts, retryStyle.Render("retrying"))
	}

	return HeaderStyle.Render(strings.Join(parts, " "))
}

// renderCards renders one card per panel, stacked.
func (m Model) renderCards() string {
	if len(m.panels) == 0 {
		return LabelStyle.Render("No panels configured")
	}

	width := m.cardWidth()
	cards := make([]string, len(m.panels))
	for i, p := range m.panels {
		cards[i] = m.renderCard(p, width, i == m.selected)
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

// cardHeight is the rendered height of one card including its margin.
func cardHeight(streams int) int {
	// border(2) + title(1) + chart + legend lines + margin(1)
	return 2 + 1 + chartHeight + streams + 1
}

// selectedOffset is the viewport offset that brings the selected card in view.
func (m Model) selectedOffset() int {
	off := 0
	for i := 0; i < m.selected && i < len(m.panels); i++ {
		off += cardHeight(len(m.panels[i].series))
	}
	return off
}

func (m Model) cardWidth() int {
	if m.width == 0 {
		return 80
	}
	w := m.width - 2
	if w < 20 {
		w = 20
	}
	return w
}

// renderCard renders a panel: title row, chart, then one legend line per series.
func (m Model) renderCard(p panelState, width int, selected bool) string {
	inner := width - 4 // border and padding

	var status string
	switch {
	case p.draws == 0:
		status = MutedStyle.Render("waiting")
	case p.animating:
		status = m.spinner.View()
	default:
		status = MutedStyle.Render(p.lastDraw.Format("15:04:05"))
	}

	lines := []string{TitleStyle.Render(p.title) + " " + status}
	if p.draws == 0 {
		lines = append(lines, MutedStyle.Render(strings.Repeat("\n", chartHeight-1)))
	} else {
		lines = append(lines, RenderChart(p.series, inner, chartHeight))
	}

	for i, s := range p.series {
		swatch := lipgloss.NewStyle().Foreground(SeriesColor(i)).Render("●")
		value := MutedStyle.Render("no data")
		if s.HasAny {
			value = lipgloss.NewStyle().Foreground(ColorTextPrimary).Render(formatValue(s.Latest))
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", swatch, LabelStyle.Render(s.Label), value))
	}

	style := CardStyle
	if selected {
		style = CardSelectedStyle
	}
	return style.Width(width - 2).Render(strings.Join(lines, "\n"))
}

// renderFooter shows the key hints, or the latest failure notice.
func (m Model) renderFooter() string {
	if m.notice != "" {
		return FooterStyle.Render(noticeStyle.Render("✗ " + m.notice))
	}
	return FooterStyle.Render(m.help.View(m.keys))
}

// sizeLabel returns the unit label for size, or a plain duration when no
// unit matches.
func sizeLabel(size time.Duration) string {
	if size <= 0 {
		return ""
	}
	if u, ok := stream.UnitForDuration(size); ok {
		return u.Label()
	}
	return size.String()
}

// formatRange formats a window for the header. Times are shown in local time;
// the date is included once the window spans more than a day.
func formatRange(w stream.Window) string {
	layout := "15:04:05"
	if w.Size() > 24*time.Hour || w.From.YearDay() != w.Until.YearDay() {
		layout = "Jan 2 15:04"
	}
	return w.From.Local().Format(layout) + " → " + w.Until.Local().Format(layout)
}

// formatValue formats a sample with a k/M suffix for large magnitudes.
func formatValue(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.1fk", v/1e3)
	case abs >= 100:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
