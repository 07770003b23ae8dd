package runtime

import (
	"slices"

	"github.com/odvcencio/glint/pkg/errors"
	"github.com/odvcencio/glint/pkg/logging"
)

// ActiveChild returns the focused child, or nil.
func (c *Container) ActiveChild() *Node {
	return c.tree.Node(c.active)
}

// SetActiveChild moves focus to w. The previous child is deactivated, which
// also abandons any press in progress on it. Setting the current value is a
// no-op; nil clears focus.
func (c *Container) SetActiveChild(w *Node) error {
	if w != nil && c.IndexOf(w) < 0 {
		return errors.New(errors.ErrCodeWidgetNotFound, "widget is not a child").
			WithContext("container", c.name).
			WithContext("widget", w.name)
	}
	next := NoID
	if w != nil {
		next = w.id
	}
	if next == c.active {
		return nil
	}
	if prev := c.ActiveChild(); prev != nil {
		c.active = NoID
		c.deactivate(prev)
	}
	c.active = next
	if w != nil {
		c.activate(w)
	}
	return nil
}

// NextChild focuses the next child that accepts focus, wrapping at the end.
// With nothing focused the first focusable child is chosen. It reports
// whether focus moved.
func (c *Container) NextChild() bool {
	n := len(c.children)
	if n == 0 {
		return false
	}
	start := slices.Index(c.children, c.active)
	for i := 1; i <= n; i++ {
		idx := (start + i) % n
		if c.focusAt(idx) {
			return true
		}
	}
	return false
}

// PreviousChild focuses the previous child that accepts focus, wrapping at
// the start. With nothing focused it behaves like NextChild.
func (c *Container) PreviousChild() bool {
	n := len(c.children)
	start := slices.Index(c.children, c.active)
	if start < 0 {
		return c.NextChild()
	}
	for i := 1; i <= n; i++ {
		idx := (start - i + n) % n
		if c.focusAt(idx) {
			return true
		}
	}
	return false
}

func (c *Container) focusAt(i int) bool {
	w := c.tree.Node(c.children[i])
	if w == nil || !w.acceptsFocus() {
		return false
	}
	if w.id == c.active {
		return false
	}
	_ = c.SetActiveChild(w)
	c.tree.screen.logFocus(c, w)
	return true
}

func (c *Container) activate(w *Node) {
	if a, ok := w.behavior.(Activator); ok {
		c.tree.guard("activate", func() { a.Activate(w) })
	}
}

func (c *Container) deactivate(w *Node) {
	if s := c.tree.screen; s != nil {
		s.cancelTouch(w)
	}
	if a, ok := w.behavior.(Activator); ok {
		c.tree.guard("deactivate", func() { a.Deactivate(w) })
	}
}

// activateChain activates c and then each active descendant.
func (c *Container) activateChain() {
	if a, ok := c.behavior.(Activator); ok {
		c.tree.guard("activate", func() { a.Activate(c.Node) })
	}
	w := c.ActiveChild()
	if w == nil {
		return
	}
	if wc, ok := w.Container(); ok {
		wc.activateChain()
		return
	}
	c.activate(w)
}

// deactivateChain is the reverse of activateChain. Focus pointers are left in
// place so a later activation restores them.
func (c *Container) deactivateChain() {
	if w := c.ActiveChild(); w != nil {
		if wc, ok := w.Container(); ok {
			wc.deactivateChain()
		} else {
			c.deactivate(w)
		}
	}
	if s := c.tree.screen; s != nil {
		s.cancelTouch(c.Node)
	}
	if a, ok := c.behavior.(Activator); ok {
		c.tree.guard("deactivate", func() { a.Deactivate(c.Node) })
	}
}

func (s *Screen) logFocus(c *Container, w *Node) {
	if s == nil {
		return
	}
	s.log.WithCategory(logging.CategoryFocus).Debug("focus moved",
		"container", c.name, "widget", w.name)
}
