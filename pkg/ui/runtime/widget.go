// Package runtime provides the retained widget tree for glint: an arena of
// nodes and containers, the focus chain, input routing, and the event loop
// that ties the touch pipeline and the compositor together.
//
// A widget's behaviour is any value attached to its node. The runtime looks
// for the optional interfaces below (Painter, TouchHandler, ButtonHandler,
// KeyHandler, Activator) and calls whichever ones it implements. Hooks
// return true to mark an event handled, which stops fallback routing and
// keeps the event away from external listeners.
//
// The tree is confined to the UI goroutine. Background tasks hand work to it
// with App.Post or App.Do.
package runtime

import (
	"github.com/odvcencio/glint/pkg/ui/compositor"
	"github.com/odvcencio/glint/pkg/ui/geom"
	"github.com/odvcencio/glint/pkg/ui/input"
	"github.com/odvcencio/glint/pkg/ui/touch"
)

// PaintContext is handed to a Painter with the clip already installed.
type PaintContext struct {
	Node   *Node
	Canvas *compositor.Canvas
	// Bounds are the node's absolute screen coordinates.
	Bounds geom.Rect
}

// Painter issues drawing primitives for a node. Paint runs under the
// compositor lock and must not render or flush.
type Painter interface {
	Paint(pc PaintContext)
}

// TouchHandler receives every touch event routed to a node: down, move, up,
// tap, double-tap, hold and gesture.
type TouchHandler interface {
	HandleTouch(n *Node, ev touch.Event) bool
}

// ButtonHandler receives physical button presses and releases.
type ButtonHandler interface {
	HandleButton(n *Node, b input.Button, pressed bool) bool
}

// KeyHandler receives keyboard events.
type KeyHandler interface {
	HandleKey(n *Node, k input.KeyEvent) bool
}

// Activator is told when a node gains or loses focus.
type Activator interface {
	Activate(n *Node)
	Deactivate(n *Node)
}

// Hooks adapts plain functions to the behaviour interfaces. Nil fields are
// skipped.
type Hooks struct {
	OnPaint      func(pc PaintContext)
	OnTouch      func(n *Node, ev touch.Event) bool
	OnButton     func(n *Node, b input.Button, pressed bool) bool
	OnKey        func(n *Node, k input.KeyEvent) bool
	OnActivate   func(n *Node)
	OnDeactivate func(n *Node)
}

func (h *Hooks) Paint(pc PaintContext) {
	if h.OnPaint != nil {
		h.OnPaint(pc)
	}
}

func (h *Hooks) HandleTouch(n *Node, ev touch.Event) bool {
	return h.OnTouch != nil && h.OnTouch(n, ev)
}

func (h *Hooks) HandleButton(n *Node, b input.Button, pressed bool) bool {
	return h.OnButton != nil && h.OnButton(n, b, pressed)
}

func (h *Hooks) HandleKey(n *Node, k input.KeyEvent) bool {
	return h.OnKey != nil && h.OnKey(n, k)
}

func (h *Hooks) Activate(n *Node) {
	if h.OnActivate != nil {
		h.OnActivate(n)
	}
}

func (h *Hooks) Deactivate(n *Node) {
	if h.OnDeactivate != nil {
		h.OnDeactivate(n)
	}
}

var (
	_ Painter       = (*Hooks)(nil)
	_ TouchHandler  = (*Hooks)(nil)
	_ ButtonHandler = (*Hooks)(nil)
	_ KeyHandler    = (*Hooks)(nil)
	_ Activator     = (*Hooks)(nil)
)
