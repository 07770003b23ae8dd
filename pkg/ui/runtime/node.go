package runtime

import (
	"github.com/odvcencio/glint/pkg/errors"
	"github.com/odvcencio/glint/pkg/ui/geom"
	"github.com/odvcencio/glint/pkg/ui/input"
	"github.com/odvcencio/glint/pkg/ui/touch"
)

// ID is a node's slot in its tree. The zero ID refers to no node.
type ID int

const NoID ID = 0

// Tree is an arena of nodes. Containers refer to their children by ID and
// every node refers to its parent by ID, so there are no pointer cycles.
type Tree struct {
	screen *Screen
	slots  []*Node
	live   int
}

// NewTree creates an empty tree drawing to s.
func NewTree(s *Screen) *Tree {
	return &Tree{screen: s, slots: make([]*Node, 1)}
}

// Screen returns the screen the tree draws to.
func (t *Tree) Screen() *Screen { return t.screen }

// Len returns the number of live nodes.
func (t *Tree) Len() int { return t.live }

// Node returns the node for id, or nil if it was released.
func (t *Tree) Node(id ID) *Node {
	if id <= NoID || int(id) >= len(t.slots) {
		return nil
	}
	return t.slots[id]
}

// NewWidget allocates a leaf node. Negative sizes are rejected.
func (t *Tree) NewWidget(name string, bounds geom.Rect, behavior any) (*Node, error) {
	if err := checkSize(name, bounds.Width, bounds.Height); err != nil {
		return nil, err
	}
	n := &Node{
		tree:     t,
		id:       ID(len(t.slots)),
		name:     name,
		bounds:   bounds,
		behavior: behavior,
		enabled:  true,
		visible:  true,
	}
	n.abs = bounds.Origin()
	t.slots = append(t.slots, n)
	t.live++
	return n, nil
}

// NewContainer allocates a node that can own children.
func (t *Tree) NewContainer(name string, bounds geom.Rect, behavior any) (*Container, error) {
	n, err := t.NewWidget(name, bounds, behavior)
	if err != nil {
		return nil, err
	}
	c := &Container{Node: n}
	n.container = c
	return c, nil
}

// Release frees id and everything below it. The node is detached from its
// parent first.
func (t *Tree) Release(id ID) {
	n := t.Node(id)
	if n == nil {
		return
	}
	if p := n.Parent(); p != nil {
		p.detach(n)
	}
	t.free(n)
}

// Destroy releases every node in the tree. A screen showing one of its
// containers is left with none.
func (t *Tree) Destroy() {
	if s := t.screen; s != nil && s.active != nil && s.active.tree == t {
		_ = s.SetActive(nil)
	}
	for id := range t.slots {
		if n := t.slots[id]; n != nil && n.parent == NoID {
			t.free(n)
		}
	}
}

func (t *Tree) free(n *Node) {
	if c := n.container; c != nil {
		for _, cid := range c.children {
			if child := t.Node(cid); child != nil {
				t.free(child)
			}
		}
		c.children = nil
		c.active = NoID
	}
	t.slots[n.id] = nil
	t.live--
}

func (t *Tree) guard(where string, fn func()) {
	if t.screen != nil {
		t.screen.guard(where, fn)
		return
	}
	defer func() { _ = recover() }()
	fn()
}

func checkSize(name string, w, h int) error {
	if w < 0 || h < 0 {
		return errors.Newf(errors.ErrCodeInvalidGeometry, "negative size %dx%d", w, h).
			WithContext("widget", name)
	}
	return nil
}

// Node is one widget in a tree.
type Node struct {
	tree      *Tree
	id        ID
	name      string
	parent    ID
	container *Container
	behavior  any

	bounds geom.Rect  // relative to the parent
	abs    geom.Point // absolute origin

	enabled   bool
	visible   bool
	suspended bool
	canFocus  bool

	touchListeners  observers[func(*Node, touch.Event)]
	buttonListeners observers[func(*Node, input.Button, bool)]
	keyListeners    observers[func(*Node, input.KeyEvent)]
}

func (n *Node) ID() ID { return n.id }
func (n *Node) Name() string { return n.name }
func (n *Node) Tree() *Tree { return n.tree }
func (n *Node) Behavior() any { return n.behavior }
func (n *Node) SetBehavior(b any) { n.behavior = b }

// Container returns the container view of n, if it is one.
func (n *Node) Container() (*Container, bool) {
	return n.container, n.container != nil
}

// Bounds returns the position and size relative to the parent.
func (n *Node) Bounds() geom.Rect { return n.bounds }

// Offset returns the absolute screen origin.
func (n *Node) Offset() geom.Point { return n.abs }

// AbsBounds returns the bounds in screen coordinates.
func (n *Node) AbsBounds() geom.Rect {
	return geom.NewRect(n.abs.X, n.abs.Y, n.bounds.Width, n.bounds.Height)
}

// SetBounds moves or resizes the node and invalidates the union of the old
// and new screen rectangles through the top-level container.
func (n *Node) SetBounds(x, y, w, h int) error {
	if err := checkSize(n.name, w, h); err != nil {
		return err
	}
	next := geom.NewRect(x, y, w, h)
	if next == n.bounds {
		return nil
	}
	old := n.AbsBounds()
	n.bounds = next
	n.UpdateOffsets()
	return n.invalidate(old.Union(n.AbsBounds()))
}

// Parent returns the owning container, or nil for a root.
func (n *Node) Parent() *Container {
	p := n.tree.Node(n.parent)
	if p == nil {
		return nil
	}
	return p.container
}

// Root returns the top-most ancestor, which may be n itself.
func (n *Node) Root() *Node {
	r := n
	for p := r.Parent(); p != nil; p = r.Parent() {
		r = p.Node
	}
	return r
}

// Reparent moves n under c, or detaches it when c is nil, and recomputes
// absolute offsets for n and its descendants.
func (n *Node) Reparent(c *Container) error {
	if c != nil {
		if c.tree != n.tree {
			return errors.New(errors.ErrCodeInvalidInput, "cannot reparent across trees").
				WithContext("widget", n.name)
		}
		for a := c.Node; a != nil; {
			if a == n {
				return errors.New(errors.ErrCodeInvalidInput, "cannot reparent a node under itself").
					WithContext("widget", n.name)
			}
			p := a.Parent()
			if p == nil {
				break
			}
			a = p.Node
		}
	}
	if old := n.Parent(); old != nil {
		old.detach(n)
	}
	if c != nil {
		n.parent = c.id
		c.children = append(c.children, n.id)
	}
	n.UpdateOffsets()
	return nil
}

// UpdateOffsets recomputes the absolute origin of n and every descendant.
// It is idempotent.
func (n *Node) UpdateOffsets() {
	var base geom.Point
	if p := n.Parent(); p != nil {
		base = p.abs
	}
	n.abs = base.Add(n.bounds.Origin())
	if c := n.container; c != nil {
		for _, id := range c.children {
			if child := n.tree.Node(id); child != nil {
				child.UpdateOffsets()
			}
		}
	}
}

// HitTest reports whether p lies within the absolute bounds.
func (n *Node) HitTest(p geom.Point) bool {
	return n.AbsBounds().ContainsPoint(p)
}

func (n *Node) Enabled() bool { return n.enabled }

// SetEnabled changes whether the node receives input.
func (n *Node) SetEnabled(v bool) {
	if n.enabled == v {
		return
	}
	n.enabled = v
	_ = n.Invalidate()
}

func (n *Node) Visible() bool { return n.visible }

// SetVisible shows or hides the node and redraws the area it covers.
func (n *Node) SetVisible(v bool) {
	if n.visible == v {
		return
	}
	n.visible = v
	_ = n.invalidate(n.AbsBounds())
}

func (n *Node) Suspended() bool { return n.suspended }

// SetSuspended stops the node and its descendants from rendering and
// receiving input. It does not redraw.
func (n *Node) SetSuspended(v bool) { n.suspended = v }

// EffectivelySuspended reports whether n or any ancestor is suspended.
func (n *Node) EffectivelySuspended() bool {
	for a := n; a != nil; {
		if a.suspended {
			return true
		}
		p := a.Parent()
		if p == nil {
			return false
		}
		a = p.Node
	}
	return false
}

// Shown reports whether n and all its ancestors are visible.
func (n *Node) Shown() bool {
	for a := n; a != nil; {
		if !a.visible {
			return false
		}
		p := a.Parent()
		if p == nil {
			return true
		}
		a = p.Node
	}
	return true
}

func (n *Node) CanFocus() bool { return n.canFocus }
func (n *Node) SetCanFocus(v bool) { n.canFocus = v }

// acceptsFocus is the focus-chain filter.
func (n *Node) acceptsFocus() bool {
	return n.canFocus && n.enabled && n.visible
}

func (n *Node) receivesInput() bool {
	return n.enabled && n.visible && !n.suspended
}

// Find returns the first node named name, searching depth first from n.
func (n *Node) Find(name string) *Node {
	if n.name == name {
		return n
	}
	if c := n.container; c != nil {
		for _, id := range c.children {
			if child := n.tree.Node(id); child != nil {
				if found := child.Find(name); found != nil {
					return found
				}
			}
		}
	}
	return nil
}

// Invalidate redraws the node's screen rectangle.
func (n *Node) Invalidate() error {
	return n.invalidate(n.AbsBounds())
}

// invalidate routes region through the top-level container so overlapping
// siblings are repainted in order.
func (n *Node) invalidate(region geom.Rect) error {
	root := n.Root()
	if root.container == nil {
		return nil
	}
	return root.container.Render(region, true)
}

// OnTouch registers a listener for touch events no hook handled.
func (n *Node) OnTouch(fn func(*Node, touch.Event)) (unsubscribe func()) {
	return n.touchListeners.add(fn)
}

// OnButton registers a listener for unhandled button events.
func (n *Node) OnButton(fn func(*Node, input.Button, bool)) (unsubscribe func()) {
	return n.buttonListeners.add(fn)
}

// OnKey registers a listener for unhandled key events.
func (n *Node) OnKey(fn func(*Node, input.KeyEvent)) (unsubscribe func()) {
	return n.keyListeners.add(fn)
}

// Released reports whether the node has been freed from its tree.
func (n *Node) Released() bool { return !n.live() }

// live reports whether n still occupies its slot.
func (n *Node) live() bool {
	return n.tree.Node(n.id) == n
}

// observers is an ordered list of callbacks with removal tokens.
type observers[F any] struct {
	next int
	list []observer[F]
}

type observer[F any] struct {
	id int
	fn F
}

func (o *observers[F]) add(fn F) func() {
	o.next++
	id := o.next
	o.list = append(o.list, observer[F]{id: id, fn: fn})
	return func() {
		for i, e := range o.list {
			if e.id == id {
				o.list = append(o.list[:i:i], o.list[i+1:]...)
				return
			}
		}
	}
}

func (o *observers[F]) snapshot() []F {
	out := make([]F, len(o.list))
	for i, e := range o.list {
		out[i] = e.fn
	}
	return out
}
