// Package tcell provides a Device implementation that renders the raster
// surface into a terminal using tcell. Each terminal cell shows two vertical
// pixels with an upper half block, and the mouse stands in for the touch panel.
package tcell

import (
	"image"
	"image/color"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/odvcencio/glint/pkg/ui/backend"
	"github.com/odvcencio/glint/pkg/ui/input"
)

const halfBlock = '▀'

// Device implements backend.Device, backend.Sensor and backend.InputSource.
type Device struct {
	screen tcell.Screen

	mu             sync.Mutex
	touchX, touchY int
	touching       bool

	events   chan input.Event
	pumpDone chan struct{}
	started  bool
}

// New creates a device on the controlling terminal.
func New() (*Device, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return NewWithScreen(screen), nil
}

// NewWithScreen creates a device with an existing tcell screen (for testing).
func NewWithScreen(screen tcell.Screen) *Device {
	return &Device{
		screen:   screen,
		events:   make(chan input.Event, 64),
		pumpDone: make(chan struct{}),
	}
}

// Init initializes the screen and starts the event pump.
func (d *Device) Init() error {
	if err := d.screen.Init(); err != nil {
		return err
	}
	d.screen.EnableMouse()
	d.screen.HideCursor()
	d.screen.Clear()

	d.mu.Lock()
	d.started = true
	d.mu.Unlock()
	go d.pump()
	return nil
}

// Fini restores the terminal and stops the event pump.
func (d *Device) Fini() {
	d.screen.Fini()
	d.mu.Lock()
	started := d.started
	d.mu.Unlock()
	if started {
		<-d.pumpDone
	}
}

// Size returns the display dimensions in pixels (two rows per cell).
func (d *Device) Size() (width, height int) {
	w, h := d.screen.Size()
	return w, h * 2
}

// Flush renders the pixels in r into terminal cells and shows them.
func (d *Device) Flush(frame *image.RGBA, r image.Rectangle) error {
	r = r.Intersect(frame.Bounds())
	if r.Empty() {
		return nil
	}
	top := r.Min.Y / 2
	bottom := (r.Max.Y + 1) / 2
	for cy := top; cy < bottom; cy++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			upper := frame.RGBAAt(x, cy*2)
			lower := frame.RGBAAt(x, cy*2+1)
			style := tcell.StyleDefault.
				Foreground(toColor(upper)).
				Background(toColor(lower))
			d.screen.SetContent(x, cy, halfBlock, nil, style)
		}
	}
	d.screen.Show()
	return nil
}

// Sample reports the mouse as the touch contact, in pixel coordinates.
func (d *Device) Sample() (int, int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.touchX, d.touchY, d.touching
}

// PollEvent blocks until a button or key event is available.
func (d *Device) PollEvent() input.Event {
	ev, ok := <-d.events
	if !ok {
		return nil
	}
	return ev
}

func (d *Device) pump() {
	defer close(d.pumpDone)
	defer close(d.events)
	for {
		ev := d.screen.PollEvent()
		if ev == nil {
			return
		}
		switch e := ev.(type) {
		case *tcell.EventMouse:
			x, y := e.Position()
			d.mu.Lock()
			d.touching = e.Buttons()&tcell.Button1 != 0
			d.touchX, d.touchY = x, y*2
			d.mu.Unlock()
		case *tcell.EventResize:
			w, h := e.Size()
			d.emit(input.ResizeEvent{Width: w, Height: h * 2})
		case *tcell.EventKey:
			key := convertKey(e.Key())
			mods := e.Modifiers()
			if btn, ok := input.ButtonForKey(key); ok {
				d.emit(input.ButtonEvent{Button: btn, Pressed: true})
				d.emit(input.ButtonEvent{Button: btn, Pressed: false})
				continue
			}
			// Terminals report presses only; synthesize the release.
			for _, pressed := range []bool{true, false} {
				d.emit(input.KeyEvent{
					Key:     key,
					Rune:    e.Rune(),
					Pressed: pressed,
					Alt:     mods&tcell.ModAlt != 0,
					Ctrl:    mods&tcell.ModCtrl != 0,
					Shift:   mods&tcell.ModShift != 0,
				})
			}
		}
	}
}

func (d *Device) emit(ev input.Event) {
	select {
	case d.events <- ev:
	default:
	}
}

func toColor(c color.RGBA) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}

// convertKey converts tcell.Key to input.Key.
func convertKey(k tcell.Key) input.Key {
	switch k {
	case tcell.KeyRune:
		return input.KeyRune
	case tcell.KeyUp:
		return input.KeyUp
	case tcell.KeyDown:
		return input.KeyDown
	case tcell.KeyRight:
		return input.KeyRight
	case tcell.KeyLeft:
		return input.KeyLeft
	case tcell.KeyPgUp:
		return input.KeyPageUp
	case tcell.KeyPgDn:
		return input.KeyPageDown
	case tcell.KeyHome:
		return input.KeyHome
	case tcell.KeyEnd:
		return input.KeyEnd
	case tcell.KeyDelete:
		return input.KeyDelete
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return input.KeyBackspace
	case tcell.KeyTab:
		return input.KeyTab
	case tcell.KeyBacktab:
		return input.KeyBacktab
	case tcell.KeyEnter:
		return input.KeyEnter
	case tcell.KeyEscape:
		return input.KeyEscape
	case tcell.KeyCtrlC:
		return input.KeyCtrlC
	default:
		return input.KeyNone
	}
}

var (
	_ backend.Device      = (*Device)(nil)
	_ backend.Sensor      = (*Device)(nil)
	_ backend.InputSource = (*Device)(nil)
)
