package backend

import (
	"image"
	"image/draw"
	"sync"

	"github.com/odvcencio/glint/pkg/ui/input"
)

// Memory is a headless device that keeps the flushed pixels in memory.
// It also acts as a Sensor and InputSource fed by Touch/Release/Post, which
// makes it usable for demos without a terminal and for tests.
type Memory struct {
	mu      sync.Mutex
	pixels  *image.RGBA
	flushes []image.Rectangle

	touchX, touchY int
	touching       bool

	events chan input.Event
	closed bool
}

// NewMemory creates a headless device of the given size.
func NewMemory(width, height int) *Memory {
	return &Memory{
		pixels: image.NewRGBA(image.Rect(0, 0, width, height)),
		events: make(chan input.Event, 64),
	}
}

// Init is a no-op.
func (m *Memory) Init() error { return nil }

// Fini closes the event stream.
func (m *Memory) Fini() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.events)
	}
}

// Size returns the display dimensions.
func (m *Memory) Size() (int, int) {
	b := m.pixels.Bounds()
	return b.Dx(), b.Dy()
}

// Flush copies the region into the device buffer.
func (m *Memory) Flush(frame *image.RGBA, r image.Rectangle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r = r.Intersect(m.pixels.Bounds())
	if r.Empty() {
		return nil
	}
	draw.Draw(m.pixels, r, frame, r.Min, draw.Src)
	m.flushes = append(m.flushes, r)
	return nil
}

// Pixels returns a copy of what the display currently shows.
func (m *Memory) Pixels() *image.RGBA {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := image.NewRGBA(m.pixels.Bounds())
	copy(out.Pix, m.pixels.Pix)
	return out
}

// Flushes returns the flushed rectangles in order.
func (m *Memory) Flushes() []image.Rectangle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]image.Rectangle, len(m.flushes))
	copy(out, m.flushes)
	return out
}

// ResetFlushes forgets recorded flushes.
func (m *Memory) ResetFlushes() {
	m.mu.Lock()
	m.flushes = nil
	m.mu.Unlock()
}

// Touch places a contact at (x, y).
func (m *Memory) Touch(x, y int) {
	m.mu.Lock()
	m.touchX, m.touchY, m.touching = x, y, true
	m.mu.Unlock()
}

// Release lifts the contact.
func (m *Memory) Release() {
	m.mu.Lock()
	m.touching = false
	m.mu.Unlock()
}

// Sample implements Sensor.
func (m *Memory) Sample() (int, int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.touchX, m.touchY, m.touching
}

// Post queues an input event. Dropped when the queue is full or closed.
func (m *Memory) Post(ev input.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	select {
	case m.events <- ev:
	default:
	}
}

// PollEvent implements InputSource.
func (m *Memory) PollEvent() input.Event {
	ev, ok := <-m.events
	if !ok {
		return nil
	}
	return ev
}
