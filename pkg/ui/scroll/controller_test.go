package scroll

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/odvcencio/glint/pkg/config"
	"github.com/odvcencio/glint/pkg/errors"
	"github.com/odvcencio/glint/pkg/ui/geom"
	"github.com/odvcencio/glint/pkg/ui/touch"
)

var testScroll = config.ScrollConfig{
	AutoHide:      time.Second,
	AnimationTick: 25 * time.Millisecond,
	FlingStep:     24,
}

func newTestController(t *testing.T, cfg config.ScrollConfig, content, viewport geom.Size) (*Controller, *testingclock.FakeClock, *atomic.Int32) {
	t.Helper()
	fc := testingclock.NewFakeClock(time.Unix(0, 0))
	var changes atomic.Int32
	c := NewController(cfg, WithClock(fc), WithOnChange(func() { changes.Add(1) }))
	t.Cleanup(c.Close)
	require.NoError(t, c.SetViewport(viewport))
	require.NoError(t, c.SetContentSize(content))
	return c, fc, &changes
}

func TestController_Extents(t *testing.T) {
	c, _, _ := newTestController(t, testScroll, geom.Size{Width: 100, Height: 300}, geom.Size{Width: 100, Height: 100})

	assert.Equal(t, 0, c.Max(Horizontal))
	assert.Equal(t, 200, c.Max(Vertical))
	assert.False(t, c.NeedsScroll(Horizontal))
	assert.True(t, c.NeedsScroll(Vertical))

	require.NoError(t, c.SetContentSize(geom.Size{Width: 50, Height: 50}))
	assert.Equal(t, 0, c.Max(Vertical), "content smaller than the viewport does not scroll")

	err := c.SetContentSize(geom.Size{Width: -1})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidGeometry))
	err = c.SetViewport(geom.Size{Height: -5})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidGeometry))
}

func TestController_DragClampsUnderOvershoot(t *testing.T) {
	c, _, _ := newTestController(t, testScroll, geom.Size{Width: 300, Height: 300}, geom.Size{Width: 100, Height: 100})

	deltas := []geom.Point{
		{X: 0, Y: -1000}, {X: 0, Y: 5000}, {X: -7, Y: -3}, {X: 250, Y: 250}, {X: -401, Y: -401},
		{X: 0, Y: 199}, {X: 3, Y: -1}, {X: -1_000_000, Y: 1_000_000}, {X: 12, Y: 12},
	}
	origin := geom.Pt(50, 50)
	for _, d := range deltas {
		c.Drag(origin, origin.Add(d))
		off := c.Offset()
		assert.GreaterOrEqual(t, off.X, 0)
		assert.LessOrEqual(t, off.X, 200)
		assert.GreaterOrEqual(t, off.Y, 0)
		assert.LessOrEqual(t, off.Y, 200)
	}

	c.Drag(geom.Pt(0, 0), geom.Pt(0, -1000))
	assert.Equal(t, 200, c.Offset().Y, "dragging up scrolls toward the end")
	c.Drag(geom.Pt(0, 0), geom.Pt(0, 30))
	assert.Equal(t, 170, c.Offset().Y)
}

func TestController_ContentShrinkReclamps(t *testing.T) {
	c, _, _ := newTestController(t, testScroll, geom.Size{Width: 100, Height: 300}, geom.Size{Width: 100, Height: 100})
	require.NoError(t, c.ScrollTo(geom.Pt(0, 200)))
	require.NoError(t, c.SetContentSize(geom.Size{Width: 100, Height: 150}))
	assert.Equal(t, geom.Pt(0, 50), c.Offset())
}

func TestController_StrictScrollTo(t *testing.T) {
	permissive, _, _ := newTestController(t, testScroll, geom.Size{Width: 100, Height: 300}, geom.Size{Width: 100, Height: 100})
	require.NoError(t, permissive.ScrollTo(geom.Pt(-4, 900)))
	assert.Equal(t, geom.Pt(0, 200), permissive.Offset())

	cfg := testScroll
	cfg.Strict = true
	strict, _, _ := newTestController(t, cfg, geom.Size{Width: 100, Height: 300}, geom.Size{Width: 100, Height: 100})
	err := strict.ScrollTo(geom.Pt(0, 900))
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidGeometry))
	err = strict.ScrollTo(geom.Pt(-1, 0))
	assert.Error(t, err)
	assert.Equal(t, geom.Pt(0, 0), strict.Offset())
	require.NoError(t, strict.ScrollTo(geom.Pt(0, 120)))
	assert.Equal(t, geom.Pt(0, 120), strict.Offset())
}

func TestController_AutoHide(t *testing.T) {
	c, fc, changes := newTestController(t, testScroll, geom.Size{Width: 100, Height: 300}, geom.Size{Width: 100, Height: 100})

	require.NoError(t, c.ScrollTo(geom.Pt(0, 10)))
	assert.True(t, c.BarsVisible())

	fc.Step(500 * time.Millisecond)
	c.Drag(geom.Pt(0, 0), geom.Pt(0, 400))
	assert.True(t, c.Moving())
	assert.Equal(t, 0, c.Offset().Y, "clamped drag")

	fc.Step(time.Second)
	assert.True(t, c.BarsVisible(), "activity cancelled the countdown")

	c.EndDrag()
	assert.False(t, c.Moving())
	before := changes.Load()
	fc.Step(999 * time.Millisecond)
	assert.True(t, c.BarsVisible())
	fc.Step(time.Millisecond)
	waitFor(t, func() bool { return !c.BarsVisible() })
	waitFor(t, func() bool { return changes.Load() == before+1 })
}

func TestController_AutoHideOnWallClock(t *testing.T) {
	cfg := testScroll
	cfg.AutoHide = 50 * time.Millisecond
	c := NewController(cfg)
	t.Cleanup(c.Close)
	require.NoError(t, c.SetViewport(geom.Size{Width: 100, Height: 100}))
	require.NoError(t, c.SetContentSize(geom.Size{Width: 100, Height: 300}))

	require.NoError(t, c.ScrollTo(geom.Pt(0, 10)))
	assert.True(t, c.BarsVisible())
	waitFor(t, func() bool { return !c.BarsVisible() })
}

func TestController_FlingAnimatesToTarget(t *testing.T) {
	c, fc, _ := newTestController(t, testScroll, geom.Size{Width: 100, Height: 1000}, geom.Size{Width: 100, Height: 100})
	require.NoError(t, c.ScrollTo(geom.Pt(0, 500)))

	require.True(t, c.Fling(touch.DirUp, 0.5))
	assert.True(t, c.Animating())

	stepAnimation(t, fc)
	waitFor(t, func() bool { return c.Offset().Y == 512 })

	for c.Animating() {
		stepAnimation(t, fc)
	}
	assert.Equal(t, 600, c.Offset().Y, "stops exactly at one viewport away")

	fc.Step(testScroll.AutoHide)
	waitFor(t, func() bool { return !c.BarsVisible() })
}

func TestController_FlingMinimumStep(t *testing.T) {
	c, fc, _ := newTestController(t, testScroll, geom.Size{Width: 100, Height: 1000}, geom.Size{Width: 100, Height: 100})
	require.True(t, c.Fling(touch.DirUp, 0.01))
	stepAnimation(t, fc)
	waitFor(t, func() bool { return c.Offset().Y == 1 })
	c.Stop()
	assert.False(t, c.Animating())
}

func TestController_FlingStopsAtBoundary(t *testing.T) {
	c, fc, _ := newTestController(t, testScroll, geom.Size{Width: 300, Height: 1000}, geom.Size{Width: 100, Height: 100})

	assert.False(t, c.Fling(touch.DirDown, 0.99), "already at the top")
	assert.False(t, c.Fling(touch.DirNone, 0.99))

	require.NoError(t, c.ScrollTo(geom.Pt(190, 890)))
	require.True(t, c.Fling(touch.DirUpLeft, 0.99))
	stepAnimation(t, fc)
	waitFor(t, func() bool { return !c.Animating() })
	assert.Equal(t, geom.Pt(200, 900), c.Offset())
}

func TestController_SchedulerReceivesBackgroundChanges(t *testing.T) {
	fc := testingclock.NewFakeClock(time.Unix(0, 0))
	scheduled := make(chan func(), 16)
	var ran atomic.Int32
	c := NewController(testScroll,
		WithClock(fc),
		WithOnChange(func() { ran.Add(1) }),
		WithScheduler(func(fn func()) { scheduled <- fn }))
	defer c.Close()
	require.NoError(t, c.SetViewport(geom.Size{Width: 10, Height: 10}))
	require.NoError(t, c.SetContentSize(geom.Size{Width: 10, Height: 100}))

	require.True(t, c.Fling(touch.DirUp, 0.99))
	stepAnimation(t, fc)
	fn := <-scheduled
	assert.Equal(t, int32(0), ran.Load(), "nothing runs until the scheduler does")
	fn()
	assert.Equal(t, int32(1), ran.Load())
}

func stepAnimation(t *testing.T, fc *testingclock.FakeClock) {
	t.Helper()
	waitFor(t, fc.HasWaiters)
	fc.Step(testScroll.AnimationTick)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
