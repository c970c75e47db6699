package stream

import "time"

// PanelView receives the scheduler's rendering callbacks for one panel.
type PanelView interface {
	// Draw is called once per completed fetch cycle.
	Draw()
	// EnableAnimation is called when streaming starts.
	EnableAnimation()
	// DisableAnimation is called when streaming stops.
	DisableAnimation()
	// ChangeTimeWindow lets the view recompute size-dependent parameters.
	ChangeTimeWindow(size time.Duration)
}

// Panel is a group of streams displayed together.
type Panel struct {
	ID      string
	Title   string
	Streams []*MetricStream
	View    PanelView
}

// NewPanel creates a panel over the given streams.
func NewPanel(id, title string, view PanelView, streams ...*MetricStream) *Panel {
	return &Panel{
		ID:      id,
		Title:   title,
		Streams: streams,
		View:    view,
	}
}

func (p *Panel) view() PanelView {
	if p.View == nil {
		return noopView{}
	}
	return p.View
}

type noopView struct{}

func (noopView) Draw()                          {}
func (noopView) EnableAnimation()               {}
func (noopView) DisableAnimation()              {}
func (noopView) ChangeTimeWindow(time.Duration) {}

// allStreams flattens the streams of every panel, in panel order.
func allStreams(panels []*Panel) []*MetricStream {
	var out []*MetricStream
	for _, p := range panels {
		out = append(out, p.Streams...)
	}
	return out
}
