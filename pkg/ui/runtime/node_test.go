package runtime

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/glint/pkg/errors"
	"github.com/odvcencio/glint/pkg/ui/backend"
	"github.com/odvcencio/glint/pkg/ui/compositor"
	"github.com/odvcencio/glint/pkg/ui/geom"
	"github.com/odvcencio/glint/pkg/ui/touch"
)

var (
	red   = color.RGBA{R: 255, A: 255}
	green = color.RGBA{G: 255, A: 255}
	blue  = color.RGBA{B: 255, A: 255}
	black = color.RGBA{A: 255}
)

type cancelRecorder struct {
	cancelled []touch.Target
}

func (r *cancelRecorder) Cancel(t touch.Target) { r.cancelled = append(r.cancelled, t) }

func newTestScreen(t *testing.T, w, h int) (*Screen, *backend.Memory) {
	t.Helper()
	dev := backend.NewMemory(w, h)
	return NewScreen(compositor.New(dev)), dev
}

func fill(c color.Color) *Hooks {
	return &Hooks{OnPaint: func(pc PaintContext) {
		pc.Canvas.FillRect(pc.Bounds, c)
	}}
}

func mustContainer(t *testing.T, tree *Tree, name string, r geom.Rect, b any) *Container {
	t.Helper()
	c, err := tree.NewContainer(name, r, b)
	require.NoError(t, err)
	return c
}

func mustWidget(t *testing.T, tree *Tree, name string, r geom.Rect, b any) *Node {
	t.Helper()
	n, err := tree.NewWidget(name, r, b)
	require.NoError(t, err)
	return n
}

func TestTree_NewWidgetRejectsNegativeSize(t *testing.T) {
	tree := NewTree(nil)
	_, err := tree.NewWidget("bad", geom.NewRect(0, 0, -1, 4), nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidGeometry))

	n := mustWidget(t, tree, "ok", geom.NewRect(0, 0, 4, 4), nil)
	err = n.SetBounds(0, 0, 4, -2)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidGeometry))
	assert.Equal(t, geom.NewRect(0, 0, 4, 4), n.Bounds())
}

func TestNode_OffsetsFollowParents(t *testing.T) {
	tree := NewTree(nil)
	root := mustContainer(t, tree, "root", geom.NewRect(10, 10, 100, 100), nil)
	panel := mustContainer(t, tree, "panel", geom.NewRect(5, 5, 50, 50), nil)
	leaf := mustWidget(t, tree, "leaf", geom.NewRect(1, 2, 10, 10), nil)

	require.NoError(t, panel.AddChild(leaf))
	assert.Equal(t, geom.Pt(6, 7), leaf.Offset())

	require.NoError(t, root.AddChild(panel.Node))
	assert.Equal(t, geom.Pt(16, 17), leaf.Offset(), "descendants are recomputed on reparent")

	require.NoError(t, panel.SetBounds(20, 0, 50, 50))
	assert.Equal(t, geom.Pt(31, 12), leaf.Offset())
	assert.Equal(t, geom.NewRect(31, 12, 10, 10), leaf.AbsBounds())

	root.UpdateOffsets()
	root.UpdateOffsets()
	assert.Equal(t, geom.Pt(31, 12), leaf.Offset(), "recomputation is idempotent")

	assert.True(t, leaf.HitTest(geom.Pt(31, 12)))
	assert.False(t, leaf.HitTest(geom.Pt(41, 12)))
}

func TestNode_ReparentMovesBetweenContainers(t *testing.T) {
	tree := NewTree(nil)
	a := mustContainer(t, tree, "a", geom.NewRect(0, 0, 50, 50), nil)
	b := mustContainer(t, tree, "b", geom.NewRect(100, 0, 50, 50), nil)
	w := mustWidget(t, tree, "w", geom.NewRect(1, 1, 5, 5), nil)

	require.NoError(t, a.AddChild(w))
	require.NoError(t, w.Reparent(b))
	assert.Equal(t, 0, a.Len())
	assert.Equal(t, 1, b.Len())
	assert.Same(t, b, w.Parent())
	assert.Equal(t, geom.Pt(101, 1), w.Offset())

	require.NoError(t, w.Reparent(nil))
	assert.Nil(t, w.Parent())
	assert.Equal(t, geom.Pt(1, 1), w.Offset())
}

func TestNode_ReparentRejectsCycles(t *testing.T) {
	tree := NewTree(nil)
	outer := mustContainer(t, tree, "outer", geom.NewRect(0, 0, 50, 50), nil)
	inner := mustContainer(t, tree, "inner", geom.NewRect(0, 0, 10, 10), nil)
	require.NoError(t, outer.AddChild(inner.Node))

	err := outer.Reparent(inner)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))
	assert.Nil(t, outer.Parent())

	other := NewTree(nil)
	stranger := mustWidget(t, other, "x", geom.NewRect(0, 0, 1, 1), nil)
	assert.Error(t, stranger.Reparent(outer))
}

func TestTree_ReleaseFreesSubtree(t *testing.T) {
	tree := NewTree(nil)
	root := mustContainer(t, tree, "root", geom.NewRect(0, 0, 50, 50), nil)
	panel := mustContainer(t, tree, "panel", geom.NewRect(0, 0, 10, 10), nil)
	leaf := mustWidget(t, tree, "leaf", geom.NewRect(0, 0, 1, 1), nil)
	require.NoError(t, panel.AddChild(leaf))
	require.NoError(t, root.AddChild(panel.Node))
	require.Equal(t, 3, tree.Len())

	tree.Release(panel.ID())
	assert.Equal(t, 1, tree.Len())
	assert.Equal(t, 0, root.Len())
	assert.Nil(t, tree.Node(leaf.ID()))
	assert.False(t, leaf.live())
}

func TestTree_DestroyReleasesEverything(t *testing.T) {
	screen, _ := newTestScreen(t, 20, 20)
	tree := NewTree(screen)
	root := mustContainer(t, tree, "root", geom.NewRect(0, 0, 20, 20), fill(red))
	leaf := mustWidget(t, tree, "leaf", geom.NewRect(0, 0, 2, 2), nil)
	loose := mustWidget(t, tree, "loose", geom.NewRect(0, 0, 2, 2), nil)
	require.NoError(t, root.AddChild(leaf))
	require.NoError(t, screen.SetActive(root))

	tree.Destroy()
	assert.Equal(t, 0, tree.Len())
	assert.True(t, leaf.Released())
	assert.True(t, loose.Released())
	assert.Nil(t, screen.Active(), "the screen no longer shows a destroyed tree")
}

func TestNode_FindAndFlags(t *testing.T) {
	tree := NewTree(nil)
	root := mustContainer(t, tree, "root", geom.NewRect(0, 0, 50, 50), nil)
	panel := mustContainer(t, tree, "panel", geom.NewRect(0, 0, 10, 10), nil)
	leaf := mustWidget(t, tree, "leaf", geom.NewRect(0, 0, 1, 1), nil)
	require.NoError(t, panel.AddChild(leaf))
	require.NoError(t, root.AddChild(panel.Node))

	assert.Same(t, leaf, root.Find("leaf"))
	assert.Nil(t, root.Find("missing"))
	assert.Same(t, root.Node, leaf.Root())

	panel.SetSuspended(true)
	assert.True(t, leaf.EffectivelySuspended())
	assert.False(t, root.EffectivelySuspended())

	root.SetVisible(false)
	assert.False(t, leaf.Shown())
}

func TestNode_ListenersUnsubscribe(t *testing.T) {
	s, _ := newTestScreen(t, 20, 20)
	tree := NewTree(s)
	n := mustWidget(t, tree, "w", geom.NewRect(0, 0, 5, 5), nil)

	var got []touch.Kind
	stop := n.OnTouch(func(_ *Node, ev touch.Event) { got = append(got, ev.Kind) })
	assert.False(t, s.Deliver(n, touch.Event{Kind: touch.KindTap}))
	stop()
	s.Deliver(n, touch.Event{Kind: touch.KindTap})
	assert.Equal(t, []touch.Kind{touch.KindTap}, got)
}
