package compositor

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// shadowAlpha is the alpha of each concentric shadow ring, nearest first.
var shadowAlpha = [4]uint8{76, 51, 26, 13}

// painter issues primitives against one image, restricted to a clip.
type painter struct {
	dst  *image.RGBA
	clip image.Rectangle
	face font.Face
}

func (p painter) fillRect(r image.Rectangle, c color.Color) {
	r = r.Intersect(p.clip)
	if r.Empty() {
		return
	}
	draw.Draw(p.dst, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// blendRect mixes c over r with the given alpha out of 255.
func (p painter) blendRect(r image.Rectangle, c color.Color, alpha uint8) {
	r = r.Intersect(p.clip)
	if r.Empty() || alpha == 0 {
		return
	}
	src := color.RGBAModel.Convert(c).(color.RGBA)
	a := uint32(alpha)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			i := p.dst.PixOffset(x, y)
			px := p.dst.Pix[i : i+4 : i+4]
			px[0] = uint8((uint32(src.R)*a + uint32(px[0])*(255-a)) / 255)
			px[1] = uint8((uint32(src.G)*a + uint32(px[1])*(255-a)) / 255)
			px[2] = uint8((uint32(src.B)*a + uint32(px[2])*(255-a)) / 255)
			px[3] = 0xff
		}
	}
}

// strokeRect draws a one pixel outline along the inside of r.
func (p painter) strokeRect(r image.Rectangle, c color.Color) {
	if r.Empty() {
		return
	}
	p.fillRect(image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), c)
	p.fillRect(image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), c)
	p.fillRect(image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), c)
	p.fillRect(image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), c)
}

func (p painter) blendOutline(r image.Rectangle, c color.Color, alpha uint8) {
	if r.Empty() {
		return
	}
	p.blendRect(image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), c, alpha)
	if r.Dy() > 1 {
		p.blendRect(image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), c, alpha)
	}
	if r.Dy() > 2 {
		p.blendRect(image.Rect(r.Min.X, r.Min.Y+1, r.Min.X+1, r.Max.Y-1), c, alpha)
		if r.Dx() > 1 {
			p.blendRect(image.Rect(r.Max.X-1, r.Min.Y+1, r.Max.X, r.Max.Y-1), c, alpha)
		}
	}
}

// fillGradient interpolates from -> to across r, top to bottom when vertical.
// Positions are taken from the unclipped rectangle so partial repaints match.
func (p painter) fillGradient(r image.Rectangle, from, to color.Color, vertical bool) {
	a, okA := colorful.MakeColor(from)
	b, okB := colorful.MakeColor(to)
	if !okA || !okB {
		return
	}
	span := r.Dx()
	if vertical {
		span = r.Dy()
	}
	denom := float64(max(span-1, 1))
	for i := 0; i < span; i++ {
		cr, cg, cb := a.BlendRgb(b, float64(i)/denom).Clamped().RGB255()
		line := color.RGBA{R: cr, G: cg, B: cb, A: 0xff}
		if vertical {
			p.fillRect(image.Rect(r.Min.X, r.Min.Y+i, r.Max.X, r.Min.Y+i+1), line)
		} else {
			p.fillRect(image.Rect(r.Min.X+i, r.Min.Y, r.Min.X+i+1, r.Max.Y), line)
		}
	}
}

// drawText draws a single line with its top-left corner at pt and returns the
// rectangle it covers before clipping.
func (p painter) drawText(pt image.Point, s string, c color.Color) image.Rectangle {
	m := p.face.Metrics()
	bounds := image.Rectangle{Min: pt, Max: pt.Add(image.Pt(textWidth(p.face, s), m.Height.Ceil()))}
	clip := p.clip.Intersect(bounds)
	if clip.Empty() {
		return bounds
	}
	d := font.Drawer{
		Dst:  p.dst.SubImage(clip).(*image.RGBA),
		Src:  image.NewUniform(c),
		Face: p.face,
		Dot:  fixed.P(pt.X, pt.Y+m.Ascent.Ceil()),
	}
	d.DrawString(s)
	return bounds
}

// drawImage scales img to fit r, keeping its aspect ratio, and centres it.
func (p painter) drawImage(r image.Rectangle, img image.Image) {
	if img == nil || r.Empty() {
		return
	}
	fitted := imaging.Fit(img, r.Dx(), r.Dy(), imaging.Lanczos)
	fb := fitted.Bounds()
	at := r.Min.Add(image.Pt((r.Dx()-fb.Dx())/2, (r.Dy()-fb.Dy())/2))
	target := image.Rectangle{Min: at, Max: at.Add(fb.Size())}.Intersect(p.clip)
	if target.Empty() {
		return
	}
	draw.Draw(p.dst, target, fitted, fb.Min.Add(target.Min.Sub(at)), draw.Over)
}

// shadow darkens four rings around r, or inside it when inset.
func (p painter) shadow(r image.Rectangle, inset bool) {
	for i, a := range shadowAlpha {
		ring := r.Inset(-(i + 1))
		if inset {
			ring = r.Inset(i)
		}
		p.blendOutline(ring, color.Black, a)
	}
}
