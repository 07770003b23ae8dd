package runtime

import (
	"github.com/odvcencio/glint/pkg/ui/geom"
	"github.com/odvcencio/glint/pkg/ui/input"
	"github.com/odvcencio/glint/pkg/ui/touch"
)

// DispatchButton routes a physical button to the active container. The
// active child sees it first, then the container's own hook and listeners,
// then the default focus movement.
func (s *Screen) DispatchButton(b input.Button, pressed bool) bool {
	c := s.active
	if c == nil || !c.CanRender() {
		return false
	}
	return c.dispatchButton(b, pressed)
}

// DispatchKey routes a key event the same way. Tab and Backtab cycle focus
// when nothing else handled the key.
func (s *Screen) DispatchKey(k input.KeyEvent) bool {
	c := s.active
	if c == nil || !c.CanRender() {
		return false
	}
	return c.dispatchKey(k)
}

func (c *Container) dispatchButton(b input.Button, pressed bool) bool {
	if w := c.ActiveChild(); w != nil && w.receivesInput() {
		var handled bool
		if wc, ok := w.Container(); ok {
			handled = wc.dispatchButton(b, pressed)
		} else {
			handled = w.deliverButton(b, pressed)
		}
		if handled {
			return true
		}
	}
	if c.Node.deliverButton(b, pressed) {
		return true
	}
	if !pressed {
		return false
	}
	switch b {
	case input.ButtonUp, input.ButtonLeft:
		return c.PreviousChild()
	case input.ButtonDown, input.ButtonRight:
		return c.NextChild()
	}
	return false
}

func (c *Container) dispatchKey(k input.KeyEvent) bool {
	if w := c.ActiveChild(); w != nil && w.receivesInput() {
		var handled bool
		if wc, ok := w.Container(); ok {
			handled = wc.dispatchKey(k)
		} else {
			handled = w.deliverKey(k)
		}
		if handled {
			return true
		}
	}
	if c.Node.deliverKey(k) {
		return true
	}
	if !k.Pressed {
		return false
	}
	switch {
	case k.Key == input.KeyBacktab, k.Key == input.KeyTab && k.Shift:
		return c.PreviousChild()
	case k.Key == input.KeyTab:
		return c.NextChild()
	}
	return false
}

func (n *Node) deliverButton(b input.Button, pressed bool) bool {
	handled := false
	if h, ok := n.behavior.(ButtonHandler); ok {
		n.tree.guard("button", func() { handled = h.HandleButton(n, b, pressed) })
	}
	if handled {
		return true
	}
	for _, fn := range n.buttonListeners.snapshot() {
		n.tree.guard("button.listener", func() { fn(n, b, pressed) })
	}
	return false
}

func (n *Node) deliverKey(k input.KeyEvent) bool {
	handled := false
	if h, ok := n.behavior.(KeyHandler); ok {
		n.tree.guard("key", func() { handled = h.HandleKey(n, k) })
	}
	if handled {
		return true
	}
	for _, fn := range n.keyListeners.snapshot() {
		n.tree.guard("key.listener", func() { fn(n, k) })
	}
	return false
}

// HitTest returns the front-most enabled, visible node under p in the active
// container.
func (s *Screen) HitTest(p geom.Point) (touch.Target, bool) {
	c := s.active
	if c == nil || !c.CanRender() {
		return nil, false
	}
	n := c.Node.hit(p)
	if n == nil {
		return nil, false
	}
	return n, true
}

func (n *Node) hit(p geom.Point) *Node {
	if !n.visible || !n.enabled || n.suspended || !n.HitTest(p) {
		return nil
	}
	if c := n.container; c != nil {
		for _, id := range c.children {
			if child := n.tree.Node(id); child != nil {
				if h := child.hit(p); h != nil {
					return h
				}
			}
		}
	}
	return n
}

// Deliver runs the node's touch hook, then its listeners if the hook did not
// handle the event.
func (s *Screen) Deliver(t touch.Target, ev touch.Event) bool {
	n, ok := t.(*Node)
	if !ok || !n.live() {
		return false
	}
	handled := false
	if h, ok := n.behavior.(TouchHandler); ok {
		s.guard("touch."+ev.Kind.String(), func() { handled = h.HandleTouch(n, ev) })
	}
	if handled {
		return true
	}
	for _, fn := range n.touchListeners.snapshot() {
		s.guard("touch.listener", func() { fn(n, ev) })
	}
	return false
}

// Alive reports whether t can still receive a hold: it must be live, enabled,
// shown and not suspended, inside the active container.
func (s *Screen) Alive(t touch.Target) bool {
	n, ok := t.(*Node)
	if !ok || !n.live() || !n.enabled || !n.Shown() || n.EffectivelySuspended() {
		return false
	}
	root := n.Root()
	return root.container != nil && root.container == s.active
}

var _ touch.Router = (*Screen)(nil)
