// Package compositor owns the raster surface that every widget paints into
// and turns dirty regions into device flushes.
//
// Widgets never see the device. They paint through a Canvas while holding the
// compositor lock, then the region is flushed with the cursor glyph and any
// fading overlay composited on top. The surface itself only ever holds widget
// pixels; the cursor and overlay exist only on the outgoing frame.
package compositor

import (
	"image"
	"image/color"
	"image/draw"
	"sync"

	"golang.org/x/image/font"

	"github.com/odvcencio/glint/pkg/errors"
	"github.com/odvcencio/glint/pkg/logging"
	"github.com/odvcencio/glint/pkg/telemetry"
	"github.com/odvcencio/glint/pkg/ui/backend"
	"github.com/odvcencio/glint/pkg/ui/geom"
)

// Overlay is the transient notification drawn above the widgets.
type Overlay struct {
	Bounds     geom.Rect
	Text       string
	Image      image.Image
	Foreground color.Color
	Background color.Color
	Border     color.Color
	// Opacity runs from 0 (invisible) to 256 (opaque).
	Opacity int
}

// OverlaySource supplies the overlay to composite, if any, at flush time.
type OverlaySource interface {
	ActiveOverlay() (Overlay, bool)
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithLogger sets the logger used for device failures.
func WithLogger(l *logging.Logger) Option {
	return func(c *Compositor) { c.log = l }
}

// WithMetrics records flushes.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Compositor) { c.metrics = m }
}

// WithBackground sets the initial surface colour.
func WithBackground(col color.Color) Option {
	return func(c *Compositor) { c.background = col }
}

// WithFace sets the text face.
func WithFace(face font.Face) Option {
	return func(c *Compositor) { c.face = face }
}

// Compositor manages the surface, cursor and overlay for one display.
type Compositor struct {
	mu      sync.Mutex
	device  backend.Device
	surface *image.RGBA
	frame   *image.RGBA
	clip    image.Rectangle

	face       font.Face
	background color.Color

	cursorImg    *image.RGBA
	cursorHot    image.Point
	cursorPos    image.Point
	cursorShown  bool
	cursorBuffer *image.RGBA

	overlay OverlaySource

	log     *logging.Logger
	metrics *telemetry.Metrics
}

// New creates a compositor sized to the device.
func New(dev backend.Device, opts ...Option) *Compositor {
	c := &Compositor{
		device:     dev,
		face:       DefaultFace,
		background: color.Black,
		cursorImg:  defaultCursor(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.OrDiscard(c.log).WithCategory(logging.CategoryRender)

	w, h := dev.Size()
	c.allocate(w, h)
	return c
}

func (c *Compositor) allocate(w, h int) {
	bounds := image.Rect(0, 0, max(w, 0), max(h, 0))
	surface := image.NewRGBA(bounds)
	draw.Draw(surface, bounds, image.NewUniform(c.background), image.Point{}, draw.Src)
	if c.surface != nil {
		draw.Draw(surface, bounds.Intersect(c.surface.Bounds()), c.surface, image.Point{}, draw.Src)
	}
	c.surface = surface
	c.frame = image.NewRGBA(bounds)
	c.clip = bounds
}

// Bounds returns the screen rectangle.
func (c *Compositor) Bounds() geom.Rect {
	c.mu.Lock()
	defer c.mu.Unlock()
	return geom.FromImage(c.surface.Bounds())
}

// Lock acquires the surface lock. Callers must pair it with Unlock and use
// Canvas only while holding it.
func (c *Compositor) Lock() { c.mu.Lock() }

// Unlock releases the surface lock and resets the clip.
func (c *Compositor) Unlock() {
	c.clip = c.surface.Bounds()
	c.mu.Unlock()
}

// Canvas returns the drawing surface. It is only valid between Lock and Unlock.
func (c *Compositor) Canvas() *Canvas {
	return &Canvas{c: c}
}

// Frame runs fn with the lock held. Every draw+flush sequence goes through here
// or through Lock/Unlock so no flush observes a half painted region.
func (c *Compositor) Frame(fn func(cv *Canvas)) {
	c.Lock()
	defer c.Unlock()
	fn(c.Canvas())
}

// SafeFlush pushes region to the device with cursor and overlay composited.
func (c *Compositor) SafeFlush(region geom.Rect) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.safeFlushLocked(region.Image())
}

func (c *Compositor) safeFlushLocked(region image.Rectangle) error {
	r := region.Intersect(c.surface.Bounds())
	if r.Empty() {
		return nil
	}
	draw.Draw(c.frame, r, c.surface, r.Min, draw.Src)

	if c.cursorShown && c.cursorImg != nil {
		fp := c.cursorFootprint()
		if fp.Overlaps(r) {
			c.snapshotUnderCursor(fp)
			draw.Draw(c.frame, fp.Intersect(r), c.cursorImg, fp.Intersect(r).Min.Sub(fp.Min), draw.Over)
		}
	}

	if c.overlay != nil {
		if ov, ok := c.overlay.ActiveOverlay(); ok {
			c.compositeOverlay(ov, r)
		}
	}

	if err := c.device.Flush(c.frame, r); err != nil {
		c.metrics.FlushError()
		wrapped := errors.Wrap(err, errors.ErrCodeDeviceFlush, "device flush failed").
			WithContext("region", r.String())
		c.log.Error("flush failed", "error", wrapped)
		return wrapped
	}
	c.metrics.Flush(r.Dx() * r.Dy())
	return nil
}

// compositeOverlay paints ov into the frame within r and blends it with the
// pixels it covers: out = ov*op/256 + under*(256-op)/256.
func (c *Compositor) compositeOverlay(ov Overlay, r image.Rectangle) {
	op := min(max(ov.Opacity, 0), 256)
	area := ov.Bounds.Image().Intersect(r)
	if op == 0 || area.Empty() {
		return
	}

	under := image.NewRGBA(area)
	draw.Draw(under, area, c.frame, area.Min, draw.Src)

	p := painter{dst: c.frame, clip: area, face: c.face}
	paintOverlay(p, ov)

	if op == 256 {
		return
	}
	inv := uint32(256 - op)
	for y := area.Min.Y; y < area.Max.Y; y++ {
		fi := c.frame.PixOffset(area.Min.X, y)
		ui := under.PixOffset(area.Min.X, y)
		for x := 0; x < area.Dx()*4; x++ {
			fg := uint32(c.frame.Pix[fi+x])
			bg := uint32(under.Pix[ui+x])
			c.frame.Pix[fi+x] = uint8((fg*uint32(op) + bg*inv) >> 8)
		}
	}
}

func paintOverlay(p painter, ov Overlay) {
	r := ov.Bounds.Image()
	if ov.Background != nil {
		p.fillRect(r, ov.Background)
	}
	if ov.Border != nil {
		p.strokeRect(r, ov.Border)
	}
	inner := r.Inset(3)
	if ov.Image != nil {
		p.drawImage(inner, ov.Image)
		return
	}
	fg := ov.Foreground
	if fg == nil {
		fg = color.White
	}
	lineHeight := p.face.Metrics().Height.Ceil()
	lines := wrapText(ov.Text, inner.Dx()/cellWidth(p.face))
	top := inner.Min.Y + (inner.Dy()-len(lines)*lineHeight)/2
	for i, line := range lines {
		x := inner.Min.X + (inner.Dx()-textWidth(p.face, line))/2
		p.drawText(image.Pt(x, top+i*lineHeight), line, fg)
	}
}

// SetOverlaySource installs the overlay provider consulted on every flush.
func (c *Compositor) SetOverlaySource(src OverlaySource) {
	c.mu.Lock()
	c.overlay = src
	c.mu.Unlock()
}

// Snapshot returns a copy of the surface pixels inside r.
func (c *Compositor) Snapshot(r geom.Rect) *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	area := r.Image().Intersect(c.surface.Bounds())
	out := image.NewRGBA(area)
	draw.Draw(out, area, c.surface, area.Min, draw.Src)
	return out
}

// Resize reallocates the surface, keeping the overlapping pixels.
func (c *Compositor) Resize(w, h int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allocate(w, h)
}
