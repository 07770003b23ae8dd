package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/odvcencio/glint/pkg/config"
	"github.com/odvcencio/glint/pkg/ui/geom"
	"github.com/odvcencio/glint/pkg/ui/input"
	"github.com/odvcencio/glint/pkg/ui/touch"
)

type routeLog []string

func (l *routeLog) button(name string, handle bool) *Hooks {
	return &Hooks{OnButton: func(n *Node, b input.Button, pressed bool) bool {
		*l = append(*l, name+":"+b.String())
		return handle
	}}
}

func buildRoutingTree(t *testing.T, childHandles, rootHandles bool) (*Screen, *Container, *Node, *Node, *routeLog) {
	t.Helper()
	s, _ := newTestScreen(t, 40, 40)
	tree := NewTree(s)
	log := &routeLog{}
	root := mustContainer(t, tree, "root", geom.NewRect(0, 0, 40, 40), log.button("root", rootHandles))
	a := mustWidget(t, tree, "a", geom.NewRect(0, 0, 10, 10), log.button("a", childHandles))
	b := mustWidget(t, tree, "b", geom.NewRect(10, 0, 10, 10), log.button("b", childHandles))
	a.SetCanFocus(true)
	b.SetCanFocus(true)
	require.NoError(t, root.AddChildren(a, b))
	require.NoError(t, s.SetActive(root))
	return s, root, a, b, log
}

func TestDispatchButton_ActiveChildFirst(t *testing.T) {
	s, root, a, _, log := buildRoutingTree(t, true, true)

	assert.True(t, s.DispatchButton(input.ButtonSelect, true))
	assert.Equal(t, routeLog{"a:select"}, *log)
	assert.Same(t, a, root.ActiveChild())
}

func TestDispatchButton_FallsBackToContainer(t *testing.T) {
	s, root, _, b, log := buildRoutingTree(t, false, false)

	var heard []string
	stop := root.OnButton(func(n *Node, btn input.Button, pressed bool) {
		heard = append(heard, n.Name()+":"+btn.String())
	})
	defer stop()

	assert.True(t, s.DispatchButton(input.ButtonDown, true), "default navigation moves focus")
	assert.Equal(t, routeLog{"a:down", "root:down"}, *log)
	assert.Equal(t, []string{"root:down"}, heard)
	assert.Same(t, b, root.ActiveChild())

	assert.True(t, s.DispatchButton(input.ButtonUp, true))
	assert.Equal(t, "a", root.ActiveChild().Name())

	assert.False(t, s.DispatchButton(input.ButtonDown, false), "releases do not navigate")
	assert.False(t, s.DispatchButton(input.ButtonMenu, true))
}

func TestDispatchButton_ContainerHookSuppressesNavigation(t *testing.T) {
	s, root, a, _, _ := buildRoutingTree(t, false, true)
	assert.True(t, s.DispatchButton(input.ButtonDown, true))
	assert.Same(t, a, root.ActiveChild())
}

func TestDispatchButton_RecursesIntoNestedContainers(t *testing.T) {
	s, _ := newTestScreen(t, 40, 40)
	tree := NewTree(s)
	log := &routeLog{}
	root := mustContainer(t, tree, "root", geom.NewRect(0, 0, 40, 40), log.button("root", false))
	panel := mustContainer(t, tree, "panel", geom.NewRect(0, 0, 20, 20), log.button("panel", false))
	x := mustWidget(t, tree, "x", geom.NewRect(0, 0, 5, 5), log.button("x", false))
	y := mustWidget(t, tree, "y", geom.NewRect(5, 0, 5, 5), log.button("y", false))
	panel.SetCanFocus(true)
	x.SetCanFocus(true)
	y.SetCanFocus(true)
	require.NoError(t, panel.AddChildren(x, y))
	require.NoError(t, root.AddChild(panel.Node))
	require.NoError(t, s.SetActive(root))

	assert.True(t, s.DispatchButton(input.ButtonRight, true))
	assert.Equal(t, routeLog{"x:right", "panel:right"}, *log, "the inner container navigates first")
	assert.Same(t, y, panel.ActiveChild())
}

func TestDispatchKey_TabCyclesFocus(t *testing.T) {
	s, root, a, b, _ := buildRoutingTree(t, false, false)

	assert.True(t, s.DispatchKey(input.KeyEvent{Key: input.KeyTab, Pressed: true}))
	assert.Same(t, b, root.ActiveChild())
	assert.True(t, s.DispatchKey(input.KeyEvent{Key: input.KeyTab, Shift: true, Pressed: true}))
	assert.Same(t, a, root.ActiveChild())
	assert.True(t, s.DispatchKey(input.KeyEvent{Key: input.KeyBacktab, Pressed: true}))
	assert.Same(t, b, root.ActiveChild())

	var keys []rune
	a.SetBehavior(&Hooks{OnKey: func(_ *Node, k input.KeyEvent) bool {
		keys = append(keys, k.Rune)
		return true
	}})
	require.NoError(t, root.SetActiveChild(a))
	assert.True(t, s.DispatchKey(input.KeyEvent{Key: input.KeyTab, Pressed: true}), "handled by the child")
	assert.Same(t, a, root.ActiveChild())
	assert.Equal(t, []rune{0}, keys)
}

func TestDispatch_InactiveScreenDropsInput(t *testing.T) {
	s, _ := newTestScreen(t, 10, 10)
	assert.False(t, s.DispatchButton(input.ButtonSelect, true))
	assert.False(t, s.DispatchKey(input.KeyEvent{Key: input.KeyTab, Pressed: true}))
	_, ok := s.HitTest(geom.Pt(1, 1))
	assert.False(t, ok)
}

func TestScreen_HitTestFindsFrontMostLeaf(t *testing.T) {
	s, _ := newTestScreen(t, 40, 40)
	tree := NewTree(s)
	root := mustContainer(t, tree, "root", geom.NewRect(0, 0, 40, 40), nil)
	panel := mustContainer(t, tree, "panel", geom.NewRect(10, 10, 20, 20), nil)
	inner := mustWidget(t, tree, "inner", geom.NewRect(0, 0, 5, 5), nil)
	under := mustWidget(t, tree, "under", geom.NewRect(10, 10, 10, 10), nil)
	require.NoError(t, panel.AddChild(inner))
	require.NoError(t, root.AddChildren(panel.Node, under))
	require.NoError(t, s.SetActive(root))

	hit := func(x, y int) string {
		target, ok := s.HitTest(geom.Pt(x, y))
		if !ok {
			return ""
		}
		return target.(*Node).Name()
	}

	assert.Equal(t, "inner", hit(12, 12))
	assert.Equal(t, "panel", hit(18, 18), "panel is above under")
	assert.Equal(t, "root", hit(2, 2))
	assert.Equal(t, "", hit(50, 50))

	inner.SetEnabled(false)
	assert.Equal(t, "panel", hit(12, 12))
	panel.SetVisible(false)
	assert.Equal(t, "under", hit(12, 12))
}

func TestScreen_AliveTracksNodeState(t *testing.T) {
	s, _ := newTestScreen(t, 20, 20)
	tree := NewTree(s)
	root := mustContainer(t, tree, "root", geom.NewRect(0, 0, 20, 20), nil)
	w := mustWidget(t, tree, "w", geom.NewRect(0, 0, 5, 5), nil)
	require.NoError(t, root.AddChild(w))
	assert.False(t, s.Alive(w), "tree is not on screen")

	require.NoError(t, s.SetActive(root))
	assert.True(t, s.Alive(w))

	root.SetSuspended(true)
	assert.False(t, s.Alive(w))
	root.SetSuspended(false)

	tree.Release(w.ID())
	assert.False(t, s.Alive(w))
	assert.False(t, s.Alive("not a node"))
}

func TestScreen_TouchPipelineDeliversToNodes(t *testing.T) {
	s, _ := newTestScreen(t, 40, 40)
	fc := testingclock.NewFakeClock(time.Unix(0, 0))
	p := touch.NewPipeline(s, config.TouchConfig{}, touch.WithClock(fc), touch.WithScheduler(func(func()) {}))
	t.Cleanup(p.Reset)
	s.SetTouch(p)

	tree := NewTree(s)
	root := mustContainer(t, tree, "root", geom.NewRect(0, 0, 40, 40), nil)
	var kinds []touch.Kind
	button := mustWidget(t, tree, "button", geom.NewRect(5, 5, 10, 10), &Hooks{
		OnTouch: func(_ *Node, ev touch.Event) bool {
			kinds = append(kinds, ev.Kind)
			return ev.Kind == touch.KindTap
		},
	})
	var heard []touch.Kind
	button.OnTouch(func(_ *Node, ev touch.Event) { heard = append(heard, ev.Kind) })
	require.NoError(t, root.AddChild(button))
	require.NoError(t, s.SetActive(root))

	p.Sample(8, 8, true)
	fc.Step(50 * time.Millisecond)
	p.Sample(0, 0, false)

	assert.Equal(t, []touch.Kind{touch.KindDown, touch.KindUp, touch.KindTap}, kinds)
	assert.Equal(t, []touch.Kind{touch.KindDown, touch.KindUp}, heard, "handled taps skip listeners")
}

func TestScreen_FocusChangeCancelsPress(t *testing.T) {
	s, _ := newTestScreen(t, 40, 40)
	fc := testingclock.NewFakeClock(time.Unix(0, 0))
	p := touch.NewPipeline(s, config.TouchConfig{}, touch.WithClock(fc), touch.WithScheduler(func(func()) {}))
	t.Cleanup(p.Reset)
	s.SetTouch(p)

	tree := NewTree(s)
	root := mustContainer(t, tree, "root", geom.NewRect(0, 0, 40, 40), nil)
	var kinds []touch.Kind
	a := mustWidget(t, tree, "a", geom.NewRect(0, 0, 10, 10), &Hooks{
		OnTouch: func(_ *Node, ev touch.Event) bool {
			kinds = append(kinds, ev.Kind)
			return true
		},
	})
	b := mustWidget(t, tree, "b", geom.NewRect(20, 0, 10, 10), nil)
	a.SetCanFocus(true)
	b.SetCanFocus(true)
	require.NoError(t, root.AddChildren(a, b))
	require.NoError(t, s.SetActive(root))

	p.Sample(2, 2, true)
	require.True(t, p.Pressed())
	require.NoError(t, root.SetActiveChild(b))
	assert.False(t, p.Pressed())

	p.Sample(0, 0, false)
	assert.Equal(t, []touch.Kind{touch.KindDown}, kinds, "no up or tap after the press is abandoned")
}
