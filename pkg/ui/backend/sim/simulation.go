// Package sim provides a simulation device for testing.
package sim

import (
	"image"
	"image/color"
	"sync"

	tcellv2 "github.com/gdamore/tcell/v2"

	"github.com/odvcencio/glint/pkg/ui/backend"
	"github.com/odvcencio/glint/pkg/ui/backend/tcell"
)

// Device is a testable device using tcell's simulation screen.
type Device struct {
	*tcell.Device
	screen tcellv2.SimulationScreen

	mu            sync.Mutex
	width, height int
	flushes       []image.Rectangle
}

// New creates a new simulation device with the given cell dimensions.
// The pixel height is twice the cell height.
func New(width, height int) *Device {
	screen := tcellv2.NewSimulationScreen("")
	screen.SetSize(width, height)

	return &Device{
		Device: tcell.NewWithScreen(screen),
		screen: screen,
		width:  width,
		height: height,
	}
}

// Init starts the device. Initializing a simulation screen resets it to
// 80x25, so the requested size is applied again afterwards.
func (s *Device) Init() error {
	if err := s.Device.Init(); err != nil {
		return err
	}
	s.mu.Lock()
	w, h := s.width, s.height
	s.mu.Unlock()
	s.screen.SetSize(w, h)
	return nil
}

// Flush records the region and forwards it to the tcell device.
func (s *Device) Flush(frame *image.RGBA, r image.Rectangle) error {
	s.mu.Lock()
	s.flushes = append(s.flushes, r)
	s.mu.Unlock()
	return s.Device.Flush(frame, r)
}

// Flushes returns every region flushed so far.
func (s *Device) Flushes() []image.Rectangle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]image.Rectangle, len(s.flushes))
	copy(out, s.flushes)
	return out
}

// Resize changes the simulation screen size.
func (s *Device) Resize(width, height int) {
	s.mu.Lock()
	s.width, s.height = width, height
	s.mu.Unlock()
	s.screen.SetSize(width, height)
}

// InjectTouch presses the primary button at pixel (x, y).
func (s *Device) InjectTouch(x, y int) {
	s.screen.InjectMouse(x, y/2, tcellv2.Button1, tcellv2.ModNone)
}

// InjectRelease releases the primary button at pixel (x, y).
func (s *Device) InjectRelease(x, y int) {
	s.screen.InjectMouse(x, y/2, tcellv2.ButtonNone, tcellv2.ModNone)
}

// InjectKey injects a key press.
func (s *Device) InjectKey(key tcellv2.Key, r rune) {
	s.screen.InjectKey(key, r, tcellv2.ModNone)
}

// InjectKeyRune injects a regular character keypress.
func (s *Device) InjectKeyRune(r rune) {
	s.InjectKey(tcellv2.KeyRune, r)
}

// CapturePixel returns the color shown for pixel (x, y).
func (s *Device) CapturePixel(x, y int) color.RGBA {
	_, _, style, _ := s.screen.GetContent(x, y/2)
	fg, bg, _ := style.Decompose()
	c := fg
	if y%2 == 1 {
		c = bg
	}
	r, g, b := c.RGB()
	return color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 0xff}
}

// CaptureRune returns the rune drawn in cell (cx, cy).
func (s *Device) CaptureRune(cx, cy int) rune {
	mainc, _, _, _ := s.screen.GetContent(cx, cy)
	return mainc
}

var (
	_ backend.Device      = (*Device)(nil)
	_ backend.Sensor      = (*Device)(nil)
	_ backend.InputSource = (*Device)(nil)
)
