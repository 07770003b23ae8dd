// Package scroll implements scrollable regions: offset clamping, drag and
// fling handling, inertial animation, and scrollbar auto-hide.
package scroll

import (
	"context"
	"math"
	"sync"

	"k8s.io/utils/clock"

	"github.com/odvcencio/glint/pkg/config"
	"github.com/odvcencio/glint/pkg/errors"
	"github.com/odvcencio/glint/pkg/logging"
	"github.com/odvcencio/glint/pkg/telemetry"
	"github.com/odvcencio/glint/pkg/ui/geom"
	"github.com/odvcencio/glint/pkg/ui/touch"
)

// Axis selects the horizontal or vertical component.
type Axis int

const (
	Horizontal Axis = iota
	Vertical
)

func (a Axis) String() string {
	if a == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// animation is one inertial scroll in flight.
type animation struct {
	target geom.Point
	step   geom.Point
	cancel context.CancelFunc
	done   chan struct{}
}

// Controller holds the scroll state of one region. The offset on each axis
// stays within [0, content - viewport] after every mutation.
type Controller struct {
	mu       sync.Mutex
	content  geom.Size
	viewport geom.Size
	offset   geom.Point

	barsVisible bool
	moving      bool
	hideTimer   clock.Timer
	hideGen     uint64
	anim        *animation

	onChange func()
	schedule func(func())

	cfg     config.ScrollConfig
	clock   clock.WithTickerAndDelayedExecution
	log     *logging.Logger
	metrics *telemetry.Metrics
}

// Option configures a Controller.
type Option func(*Controller)

func WithClock(c clock.WithTickerAndDelayedExecution) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

func WithLogger(l *logging.Logger) Option {
	return func(ctl *Controller) { ctl.log = l }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(ctl *Controller) { ctl.metrics = m }
}

// WithScheduler routes change notifications raised by the animator and the
// auto-hide timer onto the UI goroutine, typically App.Do.
func WithScheduler(fn func(func())) Option {
	return func(ctl *Controller) { ctl.schedule = fn }
}

// WithOnChange sets the callback fired whenever the offset or scrollbar
// visibility changes.
func WithOnChange(fn func()) Option {
	return func(ctl *Controller) { ctl.onChange = fn }
}

// NewController creates a controller with empty content and viewport.
func NewController(cfg config.ScrollConfig, opts ...Option) *Controller {
	c := &Controller{
		cfg:      cfg,
		clock:    clock.RealClock{},
		schedule: func(fn func()) { fn() },
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.AutoHide <= 0 {
		c.cfg.AutoHide = config.DefaultAutoHide
	}
	if c.cfg.AnimationTick <= 0 {
		c.cfg.AnimationTick = config.DefaultAnimationTick
	}
	if c.cfg.FlingStep <= 0 {
		c.cfg.FlingStep = config.DefaultFlingStep
	}
	c.log = logging.OrDiscard(c.log).WithCategory(logging.CategoryScroll)
	return c
}

// SetOnChange replaces the change callback.
func (c *Controller) SetOnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// SetContentSize sets the scrollable extent and re-clamps the offset.
func (c *Controller) SetContentSize(s geom.Size) error {
	if s.Width < 0 || s.Height < 0 {
		return errors.Newf(errors.ErrCodeInvalidGeometry, "negative content size %dx%d", s.Width, s.Height)
	}
	c.mu.Lock()
	c.content = s
	c.offset = c.clampLocked(c.offset)
	c.mu.Unlock()
	return nil
}

// SetViewport sets the visible size and re-clamps the offset.
func (c *Controller) SetViewport(s geom.Size) error {
	if s.Width < 0 || s.Height < 0 {
		return errors.Newf(errors.ErrCodeInvalidGeometry, "negative viewport %dx%d", s.Width, s.Height)
	}
	c.mu.Lock()
	c.viewport = s
	c.offset = c.clampLocked(c.offset)
	c.mu.Unlock()
	return nil
}

// ContentSize returns the scrollable extent.
func (c *Controller) ContentSize() geom.Size {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content
}

// Viewport returns the visible size.
func (c *Controller) Viewport() geom.Size {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewport
}

// Offset returns the current scroll position.
func (c *Controller) Offset() geom.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}

// Max returns the largest offset on axis.
func (c *Controller) Max(a Axis) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rangeLocked(a).Max
}

// NeedsScroll reports whether content overflows the viewport on axis.
func (c *Controller) NeedsScroll(a Axis) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rangeLocked(a).Max > 0
}

// BarsVisible reports whether scrollbars should be drawn.
func (c *Controller) BarsVisible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.barsVisible
}

// Moving reports whether a drag or animation is in progress.
func (c *Controller) Moving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.moving || c.anim != nil
}

// Animating reports whether a fling is in flight.
func (c *Controller) Animating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.anim != nil
}

func (c *Controller) rangeLocked(a Axis) geom.Range {
	if a == Vertical {
		return geom.NormalizeRange(0, c.content.Height-c.viewport.Height)
	}
	return geom.NormalizeRange(0, c.content.Width-c.viewport.Width)
}

func (c *Controller) clampLocked(p geom.Point) geom.Point {
	return geom.Pt(c.rangeLocked(Horizontal).Clamp(p.X), c.rangeLocked(Vertical).Clamp(p.Y))
}

// ScrollTo moves to p. Out-of-range positions are clamped, or rejected with
// INVALID_GEOMETRY in strict mode.
func (c *Controller) ScrollTo(p geom.Point) error {
	c.mu.Lock()
	if c.cfg.Strict {
		for _, ax := range []struct {
			axis Axis
			v    int
		}{{Horizontal, p.X}, {Vertical, p.Y}} {
			r := c.rangeLocked(ax.axis)
			_, lowErr := geom.ValidateRange(r.Min, ax.v)
			_, highErr := geom.ValidateRange(ax.v, r.Max)
			if lowErr != nil || highErr != nil {
				c.mu.Unlock()
				return errors.Newf(errors.ErrCodeInvalidGeometry, "%s offset %d outside [%d, %d]",
					ax.axis, ax.v, r.Min, r.Max)
			}
		}
	}
	c.stopAnimationLocked()
	changed := c.moveLocked(p)
	c.restartHideLocked()
	fn := c.onChange
	c.mu.Unlock()
	if changed && fn != nil {
		fn()
	}
	return nil
}

// Drag applies the movement from prev to cur. The delta is subtracted from the
// offset and the result clamped; even a fully clamped drag marks the region
// moving and cancels the pending auto-hide.
func (c *Controller) Drag(prev, cur geom.Point) bool {
	d := cur.Sub(prev)
	c.mu.Lock()
	c.stopAnimationLocked()
	c.moving = true
	c.cancelHideLocked()
	c.barsVisible = true
	changed := c.moveLocked(c.offset.Sub(d))
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
	return changed
}

// EndDrag marks the drag finished and starts the auto-hide countdown.
func (c *Controller) EndDrag() {
	c.mu.Lock()
	c.moving = false
	if c.anim == nil {
		c.restartHideLocked()
	}
	c.mu.Unlock()
}

// Fling starts an inertial scroll for a gesture. The content follows the
// finger, so a downward stroke scrolls toward the top. The target is one
// viewport away; each tick moves round(force*FlingStep) units, at least 1.
func (c *Controller) Fling(dir touch.Direction, force float64) bool {
	sx, sy := directionSigns(dir)
	if sx == 0 && sy == 0 {
		return false
	}
	mag := max(1, int(math.Round(force*float64(c.cfg.FlingStep))))

	c.mu.Lock()
	c.stopAnimationLocked()
	step := geom.Pt(-sx*mag, -sy*mag)
	target := c.clampLocked(geom.Pt(
		c.offset.X-sx*c.viewport.Width,
		c.offset.Y-sy*c.viewport.Height,
	))
	if target == c.offset {
		c.restartHideLocked()
		c.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &animation{target: target, step: step, cancel: cancel, done: make(chan struct{})}
	c.anim = a
	c.cancelHideLocked()
	c.barsVisible = true
	c.mu.Unlock()

	c.metrics.AnimationStarted()
	c.log.Debug("fling", "direction", dir.String(), "force", force, "step", step.String(), "target", target.String())
	go c.animate(ctx, a)
	return true
}

// Stop cancels any fling in flight and waits for the animator to exit.
func (c *Controller) Stop() {
	c.mu.Lock()
	a := c.anim
	c.stopAnimationLocked()
	c.mu.Unlock()
	if a != nil {
		<-a.done
	}
}

// Close stops the animator and the auto-hide timer.
func (c *Controller) Close() {
	c.Stop()
	c.mu.Lock()
	c.cancelHideLocked()
	c.mu.Unlock()
}

func (c *Controller) animate(ctx context.Context, a *animation) {
	defer close(a.done)
	defer c.metrics.AnimationStopped()

	ticker := c.clock.NewTicker(c.cfg.AnimationTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		}

		c.mu.Lock()
		if c.anim != a {
			c.mu.Unlock()
			return
		}
		next := geom.Pt(advance(c.offset.X, a.step.X, a.target.X), advance(c.offset.Y, a.step.Y, a.target.Y))
		clamped := c.clampLocked(next)
		c.offset = clamped
		finished := clamped == a.target || clamped != next
		if finished {
			c.anim = nil
			if !c.moving {
				c.restartHideLocked()
			}
		}
		fn := c.onChange
		c.mu.Unlock()

		if fn != nil {
			c.schedule(fn)
		}
		if finished {
			return
		}
	}
}

// advance moves v by step without passing target.
func advance(v, step, target int) int {
	if step == 0 {
		return v
	}
	next := v + step
	if (step > 0 && next > target) || (step < 0 && next < target) {
		return target
	}
	return next
}

func (c *Controller) moveLocked(p geom.Point) bool {
	next := c.clampLocked(p)
	if next == c.offset {
		return false
	}
	c.offset = next
	return true
}

func (c *Controller) stopAnimationLocked() {
	if c.anim == nil {
		return
	}
	c.anim.cancel()
	c.anim = nil
}

func (c *Controller) cancelHideLocked() {
	c.hideGen++
	if c.hideTimer != nil {
		c.hideTimer.Stop()
		c.hideTimer = nil
	}
}

// restartHideLocked shows the scrollbars and arms a one-shot timer that hides
// them unless more activity arrives first.
func (c *Controller) restartHideLocked() {
	c.cancelHideLocked()
	c.barsVisible = true
	gen := c.hideGen
	c.hideTimer = c.clock.AfterFunc(c.cfg.AutoHide, func() {
		c.mu.Lock()
		if c.hideGen != gen || c.moving || c.anim != nil {
			c.mu.Unlock()
			return
		}
		c.hideTimer = nil
		c.barsVisible = false
		fn := c.onChange
		c.mu.Unlock()
		if fn != nil {
			c.schedule(fn)
		}
	})
}

// directionSigns maps a compass bucket to unit x/y signs in screen space.
func directionSigns(d touch.Direction) (int, int) {
	switch d {
	case touch.DirUp:
		return 0, -1
	case touch.DirUpRight:
		return 1, -1
	case touch.DirRight:
		return 1, 0
	case touch.DirDownRight:
		return 1, 1
	case touch.DirDown:
		return 0, 1
	case touch.DirDownLeft:
		return -1, 1
	case touch.DirLeft:
		return -1, 0
	case touch.DirUpLeft:
		return -1, -1
	}
	return 0, 0
}
