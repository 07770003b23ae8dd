package compositor

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/odvcencio/glint/pkg/ui/geom"
)

// arrow is the default pointer: '#' is outline, '.' is fill.
var arrow = []string{
	"#",
	"##",
	"#.#",
	"#..#",
	"#...#",
	"#....#",
	"#.....#",
	"#..####",
	"#.#",
	"##",
}

func defaultCursor() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 7, len(arrow)))
	for y, row := range arrow {
		for x, ch := range row {
			switch ch {
			case '#':
				img.SetRGBA(x, y, color.RGBA{A: 0xff})
			case '.':
				img.SetRGBA(x, y, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
			}
		}
	}
	return img
}

func (c *Compositor) cursorFootprint() image.Rectangle {
	b := c.cursorImg.Bounds()
	return image.Rectangle{Max: b.Size()}.Add(c.cursorPos.Sub(c.cursorHot))
}

// snapshotUnderCursor keeps the widget pixels beneath the glyph.
func (c *Compositor) snapshotUnderCursor(fp image.Rectangle) {
	if c.cursorBuffer == nil || c.cursorBuffer.Bounds().Size() != fp.Size() {
		c.cursorBuffer = image.NewRGBA(image.Rectangle{Max: fp.Size()})
	}
	draw.Draw(c.cursorBuffer, c.cursorBuffer.Bounds(), c.surface, fp.Min, draw.Src)
}

// SetCursorImage replaces the glyph. hotspot is the pixel that sits on the
// cursor position.
func (c *Compositor) SetCursorImage(img image.Image, hotspot geom.Point) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.cursorFootprint()
	glyph := image.NewRGBA(image.Rectangle{Max: img.Bounds().Size()})
	draw.Draw(glyph, glyph.Bounds(), img, img.Bounds().Min, draw.Src)
	c.cursorImg = glyph
	c.cursorHot = image.Pt(hotspot.X, hotspot.Y)
	if !c.cursorShown {
		return nil
	}
	return c.safeFlushLocked(old.Union(c.cursorFootprint()))
}

// ShowCursor makes the cursor visible and flushes its footprint.
func (c *Compositor) ShowCursor() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cursorShown {
		return nil
	}
	c.cursorShown = true
	return c.safeFlushLocked(c.cursorFootprint())
}

// HideCursor removes the cursor and restores the pixels it covered.
func (c *Compositor) HideCursor() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.cursorShown {
		return nil
	}
	c.cursorShown = false
	return c.safeFlushLocked(c.cursorFootprint())
}

// CursorVisible reports whether the cursor is shown.
func (c *Compositor) CursorVisible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursorShown
}

// CursorPosition returns the current cursor position.
func (c *Compositor) CursorPosition() geom.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return geom.Pt(c.cursorPos.X, c.cursorPos.Y)
}

// MoveCursor places the cursor at p. Only the union of the old and new
// footprints is flushed; moving to the same spot does nothing.
func (c *Compositor) MoveCursor(p geom.Point) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := image.Pt(p.X, p.Y)
	if next == c.cursorPos {
		return nil
	}
	old := c.cursorFootprint()
	c.cursorPos = next
	if !c.cursorShown {
		return nil
	}
	return c.safeFlushLocked(old.Union(c.cursorFootprint()))
}

// CursorBackground returns a copy of the widget pixels last seen under the
// cursor, or nil before the cursor has been drawn.
func (c *Compositor) CursorBackground() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cursorBuffer == nil {
		return nil
	}
	out := image.NewRGBA(c.cursorBuffer.Bounds())
	copy(out.Pix, c.cursorBuffer.Pix)
	return out
}
