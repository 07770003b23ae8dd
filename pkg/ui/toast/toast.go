// Package toast drives the transient notification overlay: a single message
// box drawn above the widgets that holds for a while, fades out, and removes
// itself.
package toast

import (
	"context"
	"image"
	"image/color"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"k8s.io/utils/clock"

	"github.com/odvcencio/glint/pkg/config"
	"github.com/odvcencio/glint/pkg/logging"
	"github.com/odvcencio/glint/pkg/telemetry"
	"github.com/odvcencio/glint/pkg/ui/compositor"
	"github.com/odvcencio/glint/pkg/ui/geom"
)

// ToastLevel indicates the severity of a toast notification.
type ToastLevel string

const (
	ToastInfo    ToastLevel = "info"
	ToastSuccess ToastLevel = "success"
	ToastWarning ToastLevel = "warning"
	ToastError   ToastLevel = "error"
)

const opaque = 256

// Toast represents a toast notification.
type Toast struct {
	ID    string
	Level ToastLevel
	Text  string
	Image image.Image
	// Bounds places the overlay. Empty bounds centre it in the lower third.
	Bounds geom.Rect
	// Hold overrides how long the overlay stays opaque before fading.
	Hold      time.Duration
	CreatedAt time.Time
}

// Flusher is the part of the compositor the manager needs.
type Flusher interface {
	Bounds() geom.Rect
	SafeFlush(region geom.Rect) error
}

type palette struct {
	background, border color.RGBA
}

var palettes = map[ToastLevel]palette{
	ToastInfo:    {color.RGBA{R: 32, G: 48, B: 80, A: 255}, color.RGBA{R: 96, G: 128, B: 192, A: 255}},
	ToastSuccess: {color.RGBA{R: 24, G: 80, B: 40, A: 255}, color.RGBA{R: 80, G: 176, B: 104, A: 255}},
	ToastWarning: {color.RGBA{R: 96, G: 72, B: 16, A: 255}, color.RGBA{R: 208, G: 160, B: 48, A: 255}},
	ToastError:   {color.RGBA{R: 112, G: 24, B: 24, A: 255}, color.RGBA{R: 224, G: 80, B: 80, A: 255}},
}

// active is the overlay currently shown and the task fading it.
type active struct {
	toast   Toast
	opacity int
	cancel  context.CancelFunc
	done    chan struct{}
}

// Manager owns the overlay lifecycle. At most one overlay is visible; showing
// a new one drains the old one first.
type Manager struct {
	// showMu serialises replacement so a drain and the following install are
	// seen as one step.
	showMu sync.Mutex

	mu       sync.Mutex
	current  *active
	onChange func(*Toast)

	flusher Flusher
	clock   clock.WithTicker
	cfg     config.OverlayConfig
	log     *logging.Logger
	metrics *telemetry.Metrics
}

// Option configures a Manager.
type Option func(*Manager)

func WithClock(c clock.WithTicker) Option {
	return func(m *Manager) { m.clock = c }
}

func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.log = l }
}

func WithMetrics(mt *telemetry.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// NewManager creates a manager that flushes through f.
func NewManager(f Flusher, cfg config.OverlayConfig, opts ...Option) *Manager {
	m := &Manager{
		flusher: f,
		clock:   clock.RealClock{},
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.cfg.FadeStep <= 0 {
		m.cfg.FadeStep = config.DefaultFadeStep
	}
	if m.cfg.FadeTick <= 0 {
		m.cfg.FadeTick = config.DefaultFadeTick
	}
	m.log = logging.OrDiscard(m.log).WithCategory(logging.CategoryOverlay)
	return m
}

// SetOnChange configures the callback fired when the overlay appears or goes
// away. It receives nil on removal.
func (m *Manager) SetOnChange(fn func(*Toast)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Show replaces any current overlay with t and starts its fade task.
func (m *Manager) Show(t Toast) string {
	if m == nil {
		return ""
	}
	m.showMu.Lock()
	defer m.showMu.Unlock()

	m.drain()

	if t.ID == "" {
		t.ID = ulid.Make().String()
	}
	if t.Level == "" {
		t.Level = ToastInfo
	}
	t.Text = strings.TrimSpace(t.Text)
	t.CreatedAt = m.clock.Now()
	if t.Bounds.Empty() {
		t.Bounds = m.placement(t.Text)
	}
	hold := t.Hold
	if hold <= 0 {
		hold = m.cfg.Hold
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &active{toast: t, opacity: opaque, cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	m.current = a
	cb := m.onChange
	m.mu.Unlock()

	m.metrics.OverlayShown()
	m.flush(t.Bounds)
	if cb != nil {
		shown := t
		cb(&shown)
	}

	go m.fade(ctx, a, hold)
	return t.ID
}

// Info shows an informational toast.
func (m *Manager) Info(text string) string {
	return m.Show(Toast{Level: ToastInfo, Text: text})
}

// Success shows a success toast.
func (m *Manager) Success(text string) string {
	return m.Show(Toast{Level: ToastSuccess, Text: text})
}

// Warning shows a warning toast.
func (m *Manager) Warning(text string) string {
	return m.Show(Toast{Level: ToastWarning, Text: text})
}

// Error shows an error toast.
func (m *Manager) Error(text string) string {
	return m.Show(Toast{Level: ToastError, Text: text})
}

// Dismiss removes the overlay immediately if id is the one shown.
func (m *Manager) Dismiss(id string) {
	if m == nil || strings.TrimSpace(id) == "" {
		return
	}
	m.showMu.Lock()
	defer m.showMu.Unlock()

	m.mu.Lock()
	match := m.current != nil && m.current.toast.ID == id
	m.mu.Unlock()
	if match {
		m.drain()
	}
}

// Close stops any fade in progress and removes the overlay.
func (m *Manager) Close() {
	m.showMu.Lock()
	defer m.showMu.Unlock()
	m.drain()
}

// Current returns the overlay shown and its opacity.
func (m *Manager) Current() (Toast, int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Toast{}, 0, false
	}
	return m.current.toast, m.current.opacity, true
}

// ActiveOverlay implements compositor.OverlaySource.
func (m *Manager) ActiveOverlay() (compositor.Overlay, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return compositor.Overlay{}, false
	}
	t := m.current.toast
	p, ok := palettes[t.Level]
	if !ok {
		p = palettes[ToastInfo]
	}
	return compositor.Overlay{
		Bounds:     t.Bounds,
		Text:       t.Text,
		Image:      t.Image,
		Foreground: color.White,
		Background: p.background,
		Border:     p.border,
		Opacity:    m.current.opacity,
	}, true
}

// drain stops the current fade task, waits for it, and clears the overlay.
// Callers hold showMu.
func (m *Manager) drain() {
	m.mu.Lock()
	a := m.current
	m.mu.Unlock()
	if a == nil {
		return
	}
	a.cancel()
	<-a.done
	m.remove(a)
}

// remove clears a if it is still current, flushes its area and notifies.
func (m *Manager) remove(a *active) {
	m.mu.Lock()
	if m.current != a {
		m.mu.Unlock()
		return
	}
	m.current = nil
	cb := m.onChange
	m.mu.Unlock()

	m.flush(a.toast.Bounds)
	if cb != nil {
		cb(nil)
	}
}

// fade holds the overlay opaque, then lowers its opacity each tick and
// removes it once fully transparent.
func (m *Manager) fade(ctx context.Context, a *active, hold time.Duration) {
	defer close(a.done)

	if hold > 0 {
		timer := m.clock.NewTimer(hold)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C():
		}
	}

	ticker := m.clock.NewTicker(m.cfg.FadeTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		}

		m.mu.Lock()
		if m.current != a {
			m.mu.Unlock()
			return
		}
		a.opacity -= m.cfg.FadeStep
		finished := a.opacity <= 0
		if finished {
			a.opacity = 0
		}
		m.mu.Unlock()

		if finished {
			m.remove(a)
			return
		}
		m.flush(a.toast.Bounds)
	}
}

func (m *Manager) flush(r geom.Rect) {
	if m.flusher == nil {
		return
	}
	if err := m.flusher.SafeFlush(r); err != nil {
		m.log.Warn("overlay flush failed", "error", err)
	}
}

// placement centres a box sized to text in the lower third of the screen.
func (m *Manager) placement(text string) geom.Rect {
	screen := geom.NewRect(0, 0, 320, 240)
	if m.flusher != nil {
		screen = m.flusher.Bounds()
	}
	size := compositor.MeasureText(compositor.DefaultFace, text)
	w := min(size.Width+16, max(screen.Width-16, 0))
	h := size.Height + 12
	x := screen.X + (screen.Width-w)/2
	y := screen.Y + screen.Height*2/3 - h/2
	return geom.NewRect(x, y, w, h)
}
