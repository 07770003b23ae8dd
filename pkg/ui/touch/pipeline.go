package touch

import (
	"context"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/odvcencio/glint/pkg/config"
	"github.com/odvcencio/glint/pkg/errors"
	"github.com/odvcencio/glint/pkg/logging"
	"github.com/odvcencio/glint/pkg/telemetry"
	"github.com/odvcencio/glint/pkg/ui/geom"
)

// Target identifies the widget a touch is routed to. Targets must be
// comparable; the pipeline compares them to pair taps into double-taps.
type Target any

// Router connects the pipeline to a widget tree. Router methods are called
// with the pipeline lock held, except Deliver, and must not call back into
// the Pipeline.
type Router interface {
	// HitTest returns the front-most target under p.
	HitTest(p geom.Point) (Target, bool)
	// Deliver runs the target's hooks and reports whether one handled ev.
	Deliver(t Target, ev Event) bool
	// Alive reports whether t is still enabled, visible and not suspended.
	Alive(t Target) bool
}

// Listener observes events no hook handled. t is nil when the touch
// started outside every widget.
type Listener func(t Target, ev Event)

type holdState int

const (
	holdIdle holdState = iota
	holdWaiting
	holdNormal
	holdFired
)

type pending struct {
	target Target
	ev     Event
}

type listenerEntry struct {
	id int
	fn Listener
}

// Pipeline is the touch state machine. Feed it one sample per poll interval
// with Sample.
type Pipeline struct {
	mu       sync.Mutex
	cfg      config.TouchConfig
	clock    clock.WithTicker
	router   Router
	schedule func(func())
	log      *logging.Logger
	metrics  *telemetry.Metrics

	listeners    []listenerEntry
	nextListener int

	seen         bool
	awaitRelease bool
	down         bool
	pos, downPos geom.Point
	downTime     time.Time
	target       Target
	hasTarget    bool

	dir       Direction
	cancelled bool

	hold       holdState
	holdCancel context.CancelFunc
	gen        uint64

	lastTap       time.Time
	lastTapTarget Target
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithClock(c clock.WithTicker) Option {
	return func(p *Pipeline) { p.clock = c }
}

func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithScheduler sets how the hold watchdog hands its event back. The app
// loop passes a function that posts to the UI goroutine; by default the
// watchdog delivers directly.
func WithScheduler(fn func(func())) Option {
	return func(p *Pipeline) { p.schedule = fn }
}

// NewPipeline creates a pipeline routing through r.
func NewPipeline(r Router, cfg config.TouchConfig, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    withDefaults(cfg),
		clock:  clock.RealClock{},
		router: r,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.schedule == nil {
		p.schedule = func(fn func()) { fn() }
	}
	p.log = logging.OrDiscard(p.log).WithCategory(logging.CategoryTouch)
	return p
}

func withDefaults(cfg config.TouchConfig) config.TouchConfig {
	if cfg.NoiseThreshold <= 0 {
		cfg.NoiseThreshold = config.DefaultNoiseThreshold
	}
	if cfg.GestureThreshold <= 0 {
		cfg.GestureThreshold = config.DefaultGestureThreshold
	}
	if cfg.TapHold <= 0 {
		cfg.TapHold = config.DefaultTapHold
	}
	if cfg.HoldPoll <= 0 {
		cfg.HoldPoll = config.DefaultHoldPoll
	}
	if cfg.DoubleTap <= 0 {
		cfg.DoubleTap = config.DefaultDoubleTap
	}
	if cfg.GestureMax <= 0 {
		cfg.GestureMax = config.DefaultGestureMax
	}
	return cfg
}

// Subscribe registers a listener for unhandled events.
func (p *Pipeline) Subscribe(fn Listener) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextListener++
	id := p.nextListener
	p.listeners = append(p.listeners, listenerEntry{id: id, fn: fn})
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, l := range p.listeners {
			if l.id == id {
				p.listeners = append(p.listeners[:i], p.listeners[i+1:]...)
				return
			}
		}
	}
}

// Pressed reports whether the pen is down.
func (p *Pipeline) Pressed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.down
}

// Sample feeds one sensor reading. ok is false when nothing touches the panel.
func (p *Pipeline) Sample(x, y int, ok bool) {
	p.mu.Lock()
	now := p.clock.Now()
	var out []pending

	if !ok {
		switch {
		case p.awaitRelease:
			p.awaitRelease = false
		case p.down:
			out = p.holdDueLocked(now)
			out = append(out, p.penUpLocked(now)...)
		}
		p.mu.Unlock()
		p.dispatch(out)
		return
	}

	pt := geom.Pt(x, y)
	switch {
	case !p.seen:
		p.seen = true
		if p.cfg.FirstSampleTap {
			// The first contact after start-up is unreliable on resistive
			// panels; report it as a tap and wait for a clean release.
			out = p.syntheticTapLocked(pt, now)
			p.awaitRelease = true
			break
		}
		out = p.penDownLocked(pt, now)
	case p.awaitRelease:
	case !p.down:
		out = p.penDownLocked(pt, now)
	default:
		out = p.holdDueLocked(now)
		out = append(out, p.moveLocked(pt, now)...)
	}
	p.mu.Unlock()
	p.dispatch(out)
}

// Cancel abandons the press in progress if it targets t. The pipeline then
// ignores samples until the pen lifts; no up, tap or gesture is reported.
func (p *Pipeline) Cancel(t Target) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.down || !p.hasTarget || p.target != t {
		return
	}
	p.resetLocked()
	p.awaitRelease = true
}

// Reset drops all state, including the first-sample latch and tap history.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	p.seen = false
	p.awaitRelease = false
	p.lastTap = time.Time{}
	p.lastTapTarget = nil
}

func (p *Pipeline) syntheticTapLocked(pt geom.Point, now time.Time) []pending {
	t, ok := p.router.HitTest(pt)
	if !ok {
		t = nil
	}
	return []pending{
		{t, Event{Kind: KindDown, Point: pt, Time: now}},
		{t, Event{Kind: KindUp, Point: pt, Time: now}},
		{t, Event{Kind: KindTap, Point: pt, Time: now}},
	}
}

func (p *Pipeline) penDownLocked(pt geom.Point, now time.Time) []pending {
	p.resetLocked()
	p.down = true
	p.pos, p.downPos = pt, pt
	p.downTime = now
	p.target, p.hasTarget = p.router.HitTest(pt)
	if !p.hasTarget {
		p.target = nil
	}
	p.hold = holdNormal
	if p.hasTarget {
		p.hold = holdWaiting
		p.armWatchdogLocked()
	}
	return []pending{{p.target, Event{Kind: KindDown, Point: pt, Time: now}}}
}

func (p *Pipeline) moveLocked(pt geom.Point, now time.Time) []pending {
	dx, dy := pt.X-p.pos.X, pt.Y-p.pos.Y
	if abs(dx) <= p.cfg.NoiseThreshold && abs(dy) <= p.cfg.NoiseThreshold {
		return nil
	}
	p.pos = pt
	if p.hold == holdWaiting {
		p.hold = holdNormal
		p.stopWatchdogLocked()
	}

	// The whole stroke must stay in one compass bucket to count.
	d := Classify(pt.X-p.downPos.X, pt.Y-p.downPos.Y, p.cfg.GestureThreshold)
	if d != DirNone {
		if p.dir == DirNone {
			p.dir = d
		} else if d != p.dir {
			p.cancelled = true
		}
	}
	return []pending{{p.target, Event{Kind: KindMove, Point: pt, Time: now}}}
}

func (p *Pipeline) penUpLocked(now time.Time) []pending {
	pt := p.pos
	out := []pending{{p.target, Event{Kind: KindUp, Point: pt, Time: now}}}

	switch {
	case p.hold == holdFired:
		// A press that produced a hold never also produces a tap.
	case p.dir != DirNone:
		elapsed := now.Sub(p.downTime)
		if !p.cancelled && elapsed <= p.cfg.GestureMax {
			out = append(out, pending{p.target, Event{
				Kind:      KindGesture,
				Point:     pt,
				Time:      now,
				Direction: p.dir,
				Force:     Force(elapsed),
			}})
		}
	case p.hasTarget:
		if hit, ok := p.router.HitTest(pt); ok && hit == p.target {
			out = append(out, pending{p.target, p.tapLocked(pt, now)})
		}
	}

	p.resetLocked()
	return out
}

// tapLocked pairs taps on the same target within the double-tap window. A
// double-tap clears the clock so a third quick tap starts a new pair.
func (p *Pipeline) tapLocked(pt geom.Point, now time.Time) Event {
	if !p.lastTap.IsZero() && p.lastTapTarget == p.target && now.Sub(p.lastTap) < p.cfg.DoubleTap {
		p.lastTap = time.Time{}
		p.lastTapTarget = nil
		return Event{Kind: KindDoubleTap, Point: pt, Time: now}
	}
	p.lastTap = now
	p.lastTapTarget = p.target
	return Event{Kind: KindTap, Point: pt, Time: now}
}

// holdDueLocked reports a hold once the deadline has passed while still
// waiting. The target must still be alive to receive it.
func (p *Pipeline) holdDueLocked(now time.Time) []pending {
	if p.hold != holdWaiting || now.Sub(p.downTime) < p.cfg.TapHold {
		return nil
	}
	p.stopWatchdogLocked()
	if !p.hasTarget || !p.router.Alive(p.target) {
		p.hold = holdNormal
		return nil
	}
	p.hold = holdFired
	return []pending{{p.target, Event{Kind: KindHold, Point: p.pos, Time: now}}}
}

func (p *Pipeline) resetLocked() {
	p.stopWatchdogLocked()
	p.gen++
	p.down = false
	p.target = nil
	p.hasTarget = false
	p.dir = DirNone
	p.cancelled = false
	p.hold = holdIdle
}

func (p *Pipeline) armWatchdogLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	p.holdCancel = cancel
	go p.watch(ctx, p.gen)
}

func (p *Pipeline) stopWatchdogLocked() {
	if p.holdCancel != nil {
		p.holdCancel()
		p.holdCancel = nil
	}
}

// watch polls the hold deadline for press gen.
func (p *Pipeline) watch(ctx context.Context, gen uint64) {
	ticker := p.clock.NewTicker(p.cfg.HoldPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		}

		p.mu.Lock()
		due := p.gen == gen && p.hold == holdWaiting && p.clock.Since(p.downTime) >= p.cfg.TapHold
		p.mu.Unlock()
		if due {
			p.schedule(func() { p.fireHold(gen) })
			return
		}
	}
}

func (p *Pipeline) fireHold(gen uint64) {
	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		return
	}
	out := p.holdDueLocked(p.clock.Now())
	p.mu.Unlock()
	p.dispatch(out)
}

// dispatch delivers outside the lock: hooks first, then listeners for
// anything left unhandled.
func (p *Pipeline) dispatch(out []pending) {
	if len(out) == 0 {
		return
	}
	for _, d := range out {
		p.metrics.TouchEvent(d.ev.Kind.String())
		handled := false
		if d.target != nil {
			handled = p.deliver(d.target, d.ev)
		}
		if handled {
			continue
		}
		p.mu.Lock()
		listeners := make([]listenerEntry, len(p.listeners))
		copy(listeners, p.listeners)
		p.mu.Unlock()
		for _, l := range listeners {
			p.notify(l.fn, d.target, d.ev)
		}
	}
}

func (p *Pipeline) deliver(t Target, ev Event) (handled bool) {
	defer func() {
		if r := recover(); r != nil {
			p.fault("touch."+ev.Kind.String(), r)
			handled = true
		}
	}()
	return p.router.Deliver(t, ev)
}

func (p *Pipeline) notify(fn Listener, t Target, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			p.fault("touch.listener", r)
		}
	}()
	fn(t, ev)
}

func (p *Pipeline) fault(where string, r any) {
	err := errors.FromPanic(r, where)
	p.log.Fault(where, err)
	p.metrics.HandlerFault(where)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
