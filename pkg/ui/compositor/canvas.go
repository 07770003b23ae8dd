package compositor

import (
	"image"
	"image/color"

	"github.com/odvcencio/glint/pkg/ui/geom"
)

// Canvas issues drawing primitives against the surface. Every primitive is
// restricted to the current clip rectangle.
type Canvas struct {
	c *Compositor
}

func (cv *Canvas) painter() painter {
	return painter{dst: cv.c.surface, clip: cv.c.clip, face: cv.c.face}
}

// Bounds returns the screen rectangle.
func (cv *Canvas) Bounds() geom.Rect {
	return geom.FromImage(cv.c.surface.Bounds())
}

// SetClip restricts drawing to r, clamped to the screen.
func (cv *Canvas) SetClip(r geom.Rect) {
	cv.c.clip = r.Image().Intersect(cv.c.surface.Bounds())
}

// ClearClip allows drawing anywhere on the screen.
func (cv *Canvas) ClearClip() {
	cv.c.clip = cv.c.surface.Bounds()
}

// Clip returns the active clip rectangle.
func (cv *Canvas) Clip() geom.Rect {
	return geom.FromImage(cv.c.clip)
}

func (cv *Canvas) FillRect(r geom.Rect, c color.Color) {
	cv.painter().fillRect(r.Image(), c)
}

// BlendRect mixes c over r with alpha out of 255.
func (cv *Canvas) BlendRect(r geom.Rect, c color.Color, alpha uint8) {
	cv.painter().blendRect(r.Image(), c, alpha)
}

func (cv *Canvas) StrokeRect(r geom.Rect, c color.Color) {
	cv.painter().strokeRect(r.Image(), c)
}

// FillGradient blends from -> to across r, vertically or horizontally.
func (cv *Canvas) FillGradient(r geom.Rect, from, to color.Color, vertical bool) {
	cv.painter().fillGradient(r.Image(), from, to, vertical)
}

// DrawText draws one line of text with its top-left corner at p and returns
// the unclipped rectangle it occupies.
func (cv *Canvas) DrawText(p geom.Point, s string, c color.Color) geom.Rect {
	return geom.FromImage(cv.painter().drawText(image.Pt(p.X, p.Y), s, c))
}

// DrawTextBox word-wraps s into r, one line per face height.
func (cv *Canvas) DrawTextBox(r geom.Rect, s string, c color.Color) {
	p := cv.painter()
	p.clip = p.clip.Intersect(r.Image())
	lineHeight := p.face.Metrics().Height.Ceil()
	for i, line := range wrapText(s, r.Width/cellWidth(p.face)) {
		y := r.Y + i*lineHeight
		if y >= r.Bottom() {
			return
		}
		p.drawText(image.Pt(r.X, y), line, c)
	}
}

// MeasureText returns the pixel size of one line of s.
func (cv *Canvas) MeasureText(s string) geom.Size {
	return MeasureText(cv.c.face, s)
}

// DrawImage scales img to fit inside r and centres it.
func (cv *Canvas) DrawImage(r geom.Rect, img image.Image) {
	cv.painter().drawImage(r.Image(), img)
}

// ShadowRegion darkens four rings just outside r.
func (cv *Canvas) ShadowRegion(r geom.Rect) {
	cv.painter().shadow(r.Image(), false)
}

// ShadowRegionInset darkens four rings just inside r.
func (cv *Canvas) ShadowRegionInset(r geom.Rect) {
	cv.painter().shadow(r.Image(), true)
}

// Flush safe-flushes region without releasing the lock.
func (cv *Canvas) Flush(region geom.Rect) error {
	return cv.c.safeFlushLocked(region.Image())
}
