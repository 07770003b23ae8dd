// Package input provides the button and keyboard event types produced by
// device backends and routed through the widget tree.
package input

// Event represents a non-touch input event.
type Event interface {
	eventMarker()
}

// Button identifies a physical button on the device.
type Button int

const (
	ButtonNone Button = iota
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
	ButtonSelect
	ButtonBack
	ButtonMenu
	ButtonPower
)

var buttonNames = map[Button]string{
	ButtonNone:   "none",
	ButtonUp:     "up",
	ButtonDown:   "down",
	ButtonLeft:   "left",
	ButtonRight:  "right",
	ButtonSelect: "select",
	ButtonBack:   "back",
	ButtonMenu:   "menu",
	ButtonPower:  "power",
}

func (b Button) String() string {
	if name, ok := buttonNames[b]; ok {
		return name
	}
	return "unknown"
}

// ButtonEvent is a physical button transition.
type ButtonEvent struct {
	Button  Button
	Pressed bool
}

func (ButtonEvent) eventMarker() {}

// KeyEvent represents a keyboard transition.
type KeyEvent struct {
	Key     Key
	Rune    rune
	Pressed bool
	Alt     bool
	Ctrl    bool
	Shift   bool
}

func (KeyEvent) eventMarker() {}

// ResizeEvent indicates the display size changed.
type ResizeEvent struct {
	Width  int
	Height int
}

func (ResizeEvent) eventMarker() {}

// Key represents special keys.
type Key int

const (
	KeyNone Key = iota
	KeyRune     // Regular character
	KeyEnter
	KeyBackspace
	KeyTab
	KeyBacktab
	KeyEscape
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyDelete
	KeyCtrlC
)

// ButtonForKey maps navigation keys onto physical buttons so a keyboard can
// stand in for the device's button pad.
func ButtonForKey(k Key) (Button, bool) {
	switch k {
	case KeyUp:
		return ButtonUp, true
	case KeyDown:
		return ButtonDown, true
	case KeyLeft:
		return ButtonLeft, true
	case KeyRight:
		return ButtonRight, true
	case KeyEnter:
		return ButtonSelect, true
	case KeyEscape:
		return ButtonBack, true
	}
	return ButtonNone, false
}
