package runtime

import (
	"time"

	"github.com/odvcencio/glint/pkg/ui/geom"
	"github.com/odvcencio/glint/pkg/ui/input"
)

// Message represents an event flowing into the UI goroutine.
// Messages come from the device, the touch poller, timers, or background
// goroutines.
type Message interface {
	isMessage()
}

// ButtonMsg is a physical button transition.
type ButtonMsg struct {
	Button  input.Button
	Pressed bool
}

func (ButtonMsg) isMessage() {}

// KeyMsg is a keyboard event.
type KeyMsg struct {
	input.KeyEvent
}

func (KeyMsg) isMessage() {}

// ResizeMsg indicates the display size changed.
type ResizeMsg struct {
	Width  int
	Height int
}

func (ResizeMsg) isMessage() {}

// SampleMsg carries one touch panel reading.
type SampleMsg struct {
	X, Y int
	OK   bool
}

func (SampleMsg) isMessage() {}

// TickMsg is sent at the configured tick rate.
type TickMsg struct {
	Time time.Time
}

func (TickMsg) isMessage() {}

// FuncMsg runs Fn on the UI goroutine.
type FuncMsg struct {
	Fn func()
}

func (FuncMsg) isMessage() {}

// RedrawMsg asks for Region to be recomposited, or the whole screen when
// Region is empty.
type RedrawMsg struct {
	Region geom.Rect
}

func (RedrawMsg) isMessage() {}

// QuitMsg stops the event loop.
type QuitMsg struct{}

func (QuitMsg) isMessage() {}
