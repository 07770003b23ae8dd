package runtime

import (
	"slices"

	"github.com/odvcencio/glint/pkg/errors"
	"github.com/odvcencio/glint/pkg/ui/compositor"
	"github.com/odvcencio/glint/pkg/ui/geom"
)

// Container is a node that owns an ordered list of children. Index 0 is the
// top of the z-order; painting runs from the last child to the first.
type Container struct {
	*Node
	children []ID
	active   ID
}

// Len returns the number of children.
func (c *Container) Len() int { return len(c.children) }

// Children returns the children front to back.
func (c *Container) Children() []*Node {
	out := make([]*Node, 0, len(c.children))
	for _, id := range c.children {
		if n := c.tree.Node(id); n != nil {
			out = append(out, n)
		}
	}
	return out
}

// ChildAt returns the child at index i, or nil.
func (c *Container) ChildAt(i int) *Node {
	if i < 0 || i >= len(c.children) {
		return nil
	}
	return c.tree.Node(c.children[i])
}

// IndexOf returns the z-order index of w, or -1.
func (c *Container) IndexOf(w *Node) int {
	if w == nil {
		return -1
	}
	return slices.Index(c.children, w.id)
}

// AddChild reparents w into c. If c has no active child and w can take
// focus, w becomes active and is activated.
func (c *Container) AddChild(w *Node) error {
	if err := w.Reparent(c); err != nil {
		return err
	}
	c.adopt(w)
	return nil
}

// AddChildren inserts ws in order and recomputes offsets once at the end.
func (c *Container) AddChildren(ws ...*Node) error {
	for _, w := range ws {
		if w.tree != c.tree || w == c.Node {
			return errors.New(errors.ErrCodeInvalidInput, "cannot add child").
				WithContext("widget", w.name)
		}
	}
	for _, w := range ws {
		if old := w.Parent(); old != nil {
			old.detach(w)
		}
		w.parent = c.id
		c.children = append(c.children, w.id)
	}
	c.UpdateOffsets()
	for _, w := range ws {
		c.adopt(w)
	}
	return nil
}

func (c *Container) adopt(w *Node) {
	if c.active == NoID && w.acceptsFocus() {
		c.active = w.id
		c.activate(w)
	}
}

// RemoveChild removes w and redraws the area it occupied.
func (c *Container) RemoveChild(w *Node) error {
	i := c.IndexOf(w)
	if i < 0 {
		name := ""
		if w != nil {
			name = w.name
		}
		return errors.New(errors.ErrCodeWidgetNotFound, "widget is not a child").
			WithContext("container", c.name).
			WithContext("widget", name)
	}
	return c.RemoveAt(i)
}

// RemoveAt removes the child at index i and redraws the area it occupied.
func (c *Container) RemoveAt(i int) error {
	if i < 0 || i >= len(c.children) {
		return errors.Newf(errors.ErrCodeInvalidInput, "child index %d out of range", i).
			WithContext("container", c.name)
	}
	w := c.tree.Node(c.children[i])
	prior := w.AbsBounds()
	c.detach(w)
	w.UpdateOffsets()
	return c.invalidate(prior)
}

// detach unlinks w without redrawing. An active child is deactivated first.
func (c *Container) detach(w *Node) {
	i := slices.Index(c.children, w.id)
	if i < 0 {
		return
	}
	if c.active == w.id {
		c.active = NoID
		c.deactivate(w)
	}
	if len(c.children) == 1 {
		c.children = nil
	} else {
		c.children = slices.Delete(c.children, i, i+1)
	}
	w.parent = NoID
}

// BringToFront moves w to the top of the z-order and redraws it.
func (c *Container) BringToFront(w *Node) error {
	i := c.IndexOf(w)
	if i < 0 {
		return errors.New(errors.ErrCodeWidgetNotFound, "widget is not a child").
			WithContext("container", c.name)
	}
	if i > 0 {
		id := c.children[i]
		copy(c.children[1:i+1], c.children[:i])
		c.children[0] = id
	}
	return w.Invalidate()
}

// CanRender reports whether drawing into c would reach the screen: its
// top-level ancestor must be the screen's active container, and neither c
// nor any ancestor may be suspended or hidden.
func (c *Container) CanRender() bool {
	s := c.tree.screen
	if s == nil {
		return false
	}
	root := c.Root()
	if root.container == nil || s.Active() != root.container {
		return false
	}
	return !c.EffectivelySuspended() && c.Shown()
}

// Render paints c and its descendants inside region, then flushes the part
// of region c covers when flush is set. It does nothing when c cannot render.
func (c *Container) Render(region geom.Rect, flush bool) error {
	if !c.CanRender() {
		return nil
	}
	s := c.tree.screen
	var err error
	s.comp.Frame(func(cv *compositor.Canvas) {
		area := region.Intersection(c.AbsBounds()).Intersection(cv.Bounds())
		if area.Empty() {
			return
		}
		c.Node.paint(cv, area)
		if flush {
			err = cv.Flush(area)
		}
	})
	return err
}

// Invalidate recomposites and flushes region through the top-level container
// so every overlapping sibling is redrawn in z-order.
func (c *Container) Invalidate(region geom.Rect) error {
	return c.Node.invalidate(region)
}

func (n *Node) paint(cv *compositor.Canvas, clip geom.Rect) {
	if !n.visible || n.suspended {
		return
	}
	area := clip.Intersection(n.AbsBounds())
	if area.Empty() {
		return
	}
	if p, ok := n.behavior.(Painter); ok {
		cv.SetClip(area)
		n.tree.guard("paint", func() {
			p.Paint(PaintContext{Node: n, Canvas: cv, Bounds: n.AbsBounds()})
		})
	}
	c := n.container
	if c == nil {
		return
	}
	for i := len(c.children) - 1; i >= 0; i-- {
		if child := n.tree.Node(c.children[i]); child != nil {
			child.paint(cv, area)
		}
	}
}
