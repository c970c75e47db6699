package testing

import (
	"sync"
	"time"
)

// RecordingView is a stream.PanelView that counts callbacks.
type RecordingView struct {
	mu         sync.Mutex
	Draws      int
	Enables    int
	Disables   int
	WindowSize []time.Duration
}

// NewRecordingView creates a view with zeroed counters.
func NewRecordingView() *RecordingView {
	return &RecordingView{}
}

func (v *RecordingView) Draw() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Draws++
}

func (v *RecordingView) EnableAnimation() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Enables++
}

func (v *RecordingView) DisableAnimation() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Disables++
}

func (v *RecordingView) ChangeTimeWindow(size time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.WindowSize = append(v.WindowSize, size)
}

// DrawCount returns how many times Draw was called.
func (v *RecordingView) DrawCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.Draws
}
