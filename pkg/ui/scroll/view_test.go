package scroll

import (
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/odvcencio/glint/pkg/ui/backend"
	"github.com/odvcencio/glint/pkg/ui/compositor"
	"github.com/odvcencio/glint/pkg/ui/geom"
	"github.com/odvcencio/glint/pkg/ui/runtime"
	"github.com/odvcencio/glint/pkg/ui/touch"
)

var (
	bandA = color.RGBA{R: 200, A: 255}
	bandB = color.RGBA{G: 200, A: 255}
)

// stripes paints 10px horizontal bands alternating between two colours.
func stripes(cv *compositor.Canvas, origin geom.Point) {
	for i := 0; i < 10; i++ {
		c := bandA
		if i%2 == 1 {
			c = bandB
		}
		cv.FillRect(geom.NewRect(origin.X, origin.Y+i*10, 20, 10), c)
	}
}

func newTestView(t *testing.T, opts ...Option) (*View, *backend.Memory, *testingclock.FakeClock, chan func()) {
	t.Helper()
	dev := backend.NewMemory(40, 40)
	screen := runtime.NewScreen(compositor.New(dev))
	tree := runtime.NewTree(screen)
	root, err := tree.NewContainer("root", geom.NewRect(0, 0, 40, 40), nil)
	require.NoError(t, err)

	fc := testingclock.NewFakeClock(time.Unix(0, 0))
	scheduled := make(chan func(), 64)
	opts = append([]Option{WithClock(fc), WithScheduler(func(fn func()) { scheduled <- fn })}, opts...)
	v, err := NewView(tree, "list", geom.NewRect(0, 0, 20, 20), geom.Size{Width: 20, Height: 100}, stripes, testScroll, opts...)
	require.NoError(t, err)
	t.Cleanup(v.Close)

	require.NoError(t, root.AddChild(v.Node()))
	require.NoError(t, screen.SetActive(root))
	return v, dev, fc, scheduled
}

func TestView_DragScrollsContent(t *testing.T) {
	v, dev, _, _ := newTestView(t)
	assert.Equal(t, bandA, dev.Pixels().RGBAAt(5, 5))
	assert.Equal(t, 80, v.Max(Vertical))

	n := v.Node()
	assert.True(t, v.HandleTouch(n, touch.Event{Kind: touch.KindDown, Point: geom.Pt(5, 15)}))
	assert.True(t, v.HandleTouch(n, touch.Event{Kind: touch.KindMove, Point: geom.Pt(5, 5)}))
	assert.Equal(t, geom.Pt(0, 10), v.Offset())

	px := dev.Pixels()
	assert.Equal(t, bandB, px.RGBAAt(5, 5), "content moved up one band")
	assert.Equal(t, thumbColor, px.RGBAAt(18, 3), "scrollbar shown while moving")

	v.HandleTouch(n, touch.Event{Kind: touch.KindMove, Point: geom.Pt(5, -500)})
	assert.Equal(t, geom.Pt(0, 80), v.Offset())
	v.HandleTouch(n, touch.Event{Kind: touch.KindUp, Point: geom.Pt(5, -500)})
	assert.False(t, v.Moving())
}

func TestView_AutoHideRedraws(t *testing.T) {
	v, dev, fc, scheduled := newTestView(t)
	n := v.Node()
	v.HandleTouch(n, touch.Event{Kind: touch.KindDown, Point: geom.Pt(5, 15)})
	v.HandleTouch(n, touch.Event{Kind: touch.KindMove, Point: geom.Pt(5, 5)})
	v.HandleTouch(n, touch.Event{Kind: touch.KindUp, Point: geom.Pt(5, 5)})
	require.NotEqual(t, bandB, dev.Pixels().RGBAAt(18, 5))

	fc.Step(testScroll.AutoHide)
	fn := <-scheduled
	fn()
	assert.False(t, v.BarsVisible())
	assert.Equal(t, bandB, dev.Pixels().RGBAAt(18, 5), "bar area repainted with content")
}

func TestView_GestureFlings(t *testing.T) {
	v, _, fc, scheduled := newTestView(t)
	n := v.Node()
	require.True(t, v.HandleTouch(n, touch.Event{Kind: touch.KindGesture, Direction: touch.DirUp, Force: 0.99}))
	assert.True(t, v.Animating())

	for v.Animating() {
		stepAnimation(t, fc)
		(<-scheduled)()
	}
	assert.Equal(t, geom.Pt(0, 20), v.Offset())

	assert.True(t, v.HandleTouch(n, touch.Event{Kind: touch.KindGesture, Direction: touch.DirDown, Force: 0.5}))
	assert.True(t, v.HandleTouch(n, touch.Event{Kind: touch.KindDown, Point: geom.Pt(1, 1)}))
	assert.False(t, v.Animating(), "touching the region stops the fling")
}

func TestView_SetBoundsResizesViewport(t *testing.T) {
	v, _, _, _ := newTestView(t)
	require.NoError(t, v.SetBounds(geom.NewRect(0, 0, 20, 40)))
	assert.Equal(t, geom.Size{Width: 20, Height: 40}, v.Viewport())
	assert.Equal(t, 60, v.Max(Vertical))
}
