package scroll

import (
	"image/color"

	"github.com/odvcencio/glint/pkg/config"
	"github.com/odvcencio/glint/pkg/ui/compositor"
	"github.com/odvcencio/glint/pkg/ui/geom"
	"github.com/odvcencio/glint/pkg/ui/runtime"
	"github.com/odvcencio/glint/pkg/ui/touch"
)

const barThickness = 4

var (
	trackColor = color.RGBA{R: 48, G: 48, B: 56, A: 255}
	thumbColor = color.RGBA{R: 160, G: 160, B: 176, A: 255}
)

// ContentFunc paints the scrolled content. origin is where the content's
// (0,0) lands on screen; the clip is already set to the viewport.
type ContentFunc func(cv *compositor.Canvas, origin geom.Point)

// View is a widget showing a scrollable region of content.
type View struct {
	*Controller
	node    *runtime.Node
	content ContentFunc
	last    geom.Point
}

// NewView creates the widget in tree. The viewport follows the node bounds.
func NewView(tree *runtime.Tree, name string, bounds geom.Rect, content geom.Size, paint ContentFunc, cfg config.ScrollConfig, opts ...Option) (*View, error) {
	v := &View{content: paint}
	n, err := tree.NewWidget(name, bounds, v)
	if err != nil {
		return nil, err
	}
	v.node = n
	v.Controller = NewController(cfg, append([]Option{WithOnChange(v.redraw)}, opts...)...)
	if err := v.SetViewport(bounds.Size()); err != nil {
		return nil, err
	}
	if err := v.SetContentSize(content); err != nil {
		return nil, err
	}
	return v, nil
}

// Node returns the widget node.
func (v *View) Node() *runtime.Node { return v.node }

// SetBounds moves the widget and resizes the viewport.
func (v *View) SetBounds(r geom.Rect) error {
	if err := v.SetViewport(r.Size()); err != nil {
		return err
	}
	return v.node.SetBounds(r.X, r.Y, r.Width, r.Height)
}

func (v *View) redraw() {
	_ = v.node.Invalidate()
}

// Paint draws the content shifted by the offset, then the scrollbars.
func (v *View) Paint(pc runtime.PaintContext) {
	off := v.Offset()
	if v.content != nil {
		v.content(pc.Canvas, pc.Bounds.Origin().Sub(off))
	}
	if !v.BarsVisible() {
		return
	}
	content := v.ContentSize()
	b := pc.Bounds
	if v.NeedsScroll(Vertical) {
		track := geom.NewRect(b.Right()-barThickness, b.Y, barThickness, b.Height)
		pc.Canvas.FillRect(track, trackColor)
		pos, size := thumb(off.Y, b.Height, content.Height)
		pc.Canvas.FillRect(geom.NewRect(track.X, b.Y+pos, barThickness, size), thumbColor)
	}
	if v.NeedsScroll(Horizontal) {
		track := geom.NewRect(b.X, b.Bottom()-barThickness, b.Width, barThickness)
		pc.Canvas.FillRect(track, trackColor)
		pos, size := thumb(off.X, b.Width, content.Width)
		pc.Canvas.FillRect(geom.NewRect(b.X+pos, track.Y, size, barThickness), thumbColor)
	}
}

// thumb sizes the scrollbar thumb in proportion to the visible fraction.
func thumb(offset, view, total int) (pos, size int) {
	if total <= view || view <= 0 {
		return 0, view
	}
	size = max(1, view*view/total)
	pos = offset * (view - size) / (total - view)
	return pos, size
}

// HandleTouch turns moves into drags and gestures into flings.
func (v *View) HandleTouch(_ *runtime.Node, ev touch.Event) bool {
	switch ev.Kind {
	case touch.KindDown:
		v.Stop()
		v.last = ev.Point
		return true
	case touch.KindMove:
		v.Drag(v.last, ev.Point)
		v.last = ev.Point
		return true
	case touch.KindUp:
		v.EndDrag()
		return false
	case touch.KindGesture:
		return v.Fling(ev.Direction, ev.Force)
	}
	return false
}

var (
	_ runtime.Painter      = (*View)(nil)
	_ runtime.TouchHandler = (*View)(nil)
)
