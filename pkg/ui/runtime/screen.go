package runtime

import (
	"github.com/odvcencio/glint/pkg/errors"
	"github.com/odvcencio/glint/pkg/logging"
	"github.com/odvcencio/glint/pkg/telemetry"
	"github.com/odvcencio/glint/pkg/ui/compositor"
	"github.com/odvcencio/glint/pkg/ui/geom"
	"github.com/odvcencio/glint/pkg/ui/touch"
)

// TouchCanceller abandons a press in progress on a target.
type TouchCanceller interface {
	Cancel(t touch.Target)
}

// ScreenOption configures a Screen.
type ScreenOption func(*Screen)

func WithScreenLogger(l *logging.Logger) ScreenOption {
	return func(s *Screen) { s.log = l }
}

func WithScreenMetrics(m *telemetry.Metrics) ScreenOption {
	return func(s *Screen) { s.metrics = m }
}

// Screen is the single physical display: the compositor plus the one
// top-level container allowed to draw to it.
type Screen struct {
	comp    *compositor.Compositor
	active  *Container
	touch   TouchCanceller
	log     *logging.Logger
	metrics *telemetry.Metrics
}

// NewScreen wraps comp. No container is active until SetActive.
func NewScreen(comp *compositor.Compositor, opts ...ScreenOption) *Screen {
	s := &Screen{comp: comp}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.OrDiscard(s.log).WithCategory(logging.CategoryRender)
	return s
}

// Compositor returns the underlying compositor.
func (s *Screen) Compositor() *compositor.Compositor { return s.comp }

// Bounds returns the screen rectangle.
func (s *Screen) Bounds() geom.Rect { return s.comp.Bounds() }

// Active returns the container that owns the screen, or nil.
func (s *Screen) Active() *Container { return s.active }

// SetTouch installs the pipeline that focus changes cancel presses on.
func (s *Screen) SetTouch(tc TouchCanceller) { s.touch = tc }

// SetActive hands the screen to c. The previous container is deactivated and
// suspended before c is resumed, activated and fully redrawn, so two trees
// never draw at once. Passing the current container is a no-op.
func (s *Screen) SetActive(c *Container) error {
	if c != nil && c.Parent() != nil {
		return errors.New(errors.ErrCodeInvalidInput, "only top-level containers can own the screen").
			WithContext("container", c.name)
	}
	if c == s.active {
		return nil
	}
	if prev := s.active; prev != nil {
		prev.deactivateChain()
		prev.SetSuspended(true)
	}
	s.active = c
	if c == nil {
		return nil
	}
	c.SetSuspended(false)
	c.activateChain()
	s.log.Debug("active container changed", "container", c.name)
	return s.Redraw()
}

// Redraw repaints and flushes the whole screen.
func (s *Screen) Redraw() error {
	if s.active == nil {
		return nil
	}
	return s.active.Render(s.Bounds(), true)
}

func (s *Screen) cancelTouch(n *Node) {
	if s.touch != nil {
		s.touch.Cancel(n)
	}
}

// guard runs fn and turns a panic into a logged, counted fault.
func (s *Screen) guard(where string, fn func()) (faulted bool) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.FromPanic(r, where)
			s.log.Fault(where, err)
			s.metrics.HandlerFault(where)
			faulted = true
		}
	}()
	fn()
	return false
}
