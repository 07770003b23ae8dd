package runtime

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/odvcencio/glint/pkg/config"
	"github.com/odvcencio/glint/pkg/errors"
	"github.com/odvcencio/glint/pkg/logging"
	"github.com/odvcencio/glint/pkg/telemetry"
	"github.com/odvcencio/glint/pkg/ui/backend"
	"github.com/odvcencio/glint/pkg/ui/compositor"
	"github.com/odvcencio/glint/pkg/ui/geom"
	"github.com/odvcencio/glint/pkg/ui/input"
	"github.com/odvcencio/glint/pkg/ui/toast"
	"github.com/odvcencio/glint/pkg/ui/touch"
)

// AppConfig configures a runtime App.
type AppConfig struct {
	Device backend.Device
	// Sensor and Input default to Device when it implements them.
	Sensor backend.Sensor
	Input  backend.InputSource

	Touch      config.TouchConfig
	Overlay    config.OverlayConfig
	ShowCursor bool

	// OnTick runs on the UI goroutine every TickRate.
	OnTick   func(now time.Time)
	TickRate time.Duration

	MessageBuffer int
	Clock         clock.WithTicker
	Logger        *logging.Logger
	Metrics       *telemetry.Metrics
}

// App owns the device and runs the UI goroutine: every tree mutation,
// render and hook call happens inside Run.
type App struct {
	device  backend.Device
	sensor  backend.Sensor
	input   backend.InputSource
	comp    *compositor.Compositor
	screen  *Screen
	touch   *touch.Pipeline
	toasts  *toast.Manager
	tree    *Tree
	pollInt time.Duration

	showCursor bool
	onTick     func(time.Time)
	tickRate   time.Duration

	messages chan Message
	clock    clock.WithTicker
	log      *logging.Logger
	metrics  *telemetry.Metrics
}

// NewApp initializes the device and wires the compositor, touch pipeline
// and overlay manager around it.
func NewApp(cfg AppConfig) (*App, error) {
	if cfg.Device == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "device is required")
	}
	if err := cfg.Device.Init(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDeviceFlush, "init device")
	}

	bufferSize := cfg.MessageBuffer
	if bufferSize <= 0 {
		bufferSize = 128
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	log := logging.OrDiscard(cfg.Logger)

	a := &App{
		device:     cfg.Device,
		sensor:     cfg.Sensor,
		input:      cfg.Input,
		pollInt:    cfg.Touch.PollInterval,
		showCursor: cfg.ShowCursor,
		onTick:     cfg.OnTick,
		tickRate:   cfg.TickRate,
		messages:   make(chan Message, bufferSize),
		clock:      clk,
		log:        log,
		metrics:    cfg.Metrics,
	}
	if a.sensor == nil {
		a.sensor, _ = cfg.Device.(backend.Sensor)
	}
	if a.input == nil {
		a.input, _ = cfg.Device.(backend.InputSource)
	}

	a.comp = compositor.New(cfg.Device,
		compositor.WithLogger(log),
		compositor.WithMetrics(cfg.Metrics))
	a.screen = NewScreen(a.comp,
		WithScreenLogger(log),
		WithScreenMetrics(cfg.Metrics))
	a.tree = NewTree(a.screen)
	a.touch = touch.NewPipeline(a.screen, cfg.Touch,
		touch.WithClock(clk),
		touch.WithLogger(log),
		touch.WithMetrics(cfg.Metrics),
		touch.WithScheduler(a.Do))
	a.screen.SetTouch(a.touch)
	a.toasts = toast.NewManager(a.comp, cfg.Overlay,
		toast.WithClock(clk),
		toast.WithLogger(log),
		toast.WithMetrics(cfg.Metrics))
	a.comp.SetOverlaySource(a.toasts)
	if a.showCursor {
		if err := a.comp.ShowCursor(); err != nil {
			log.Warn("show cursor", "error", err)
		}
	}
	return a, nil
}

func (a *App) Screen() *Screen { return a.screen }
func (a *App) Compositor() *compositor.Compositor { return a.comp }
func (a *App) Touch() *touch.Pipeline { return a.touch }
func (a *App) Toasts() *toast.Manager { return a.toasts }

// Tree returns the default tree drawing to the screen. Modules may create
// their own with NewTree(app.Screen()).
func (a *App) Tree() *Tree { return a.tree }

// Post sends a message to the event loop. It never blocks; the message is
// dropped when the queue is full.
func (a *App) Post(msg Message) {
	select {
	case a.messages <- msg:
	default:
		a.log.Warn("message queue full, dropping", "message", msg)
	}
}

// Do runs fn on the UI goroutine.
func (a *App) Do(fn func()) {
	a.Post(FuncMsg{Fn: fn})
}

// Quit stops Run.
func (a *App) Quit() {
	a.Post(QuitMsg{})
}

// Run processes messages until Quit or ctx is cancelled, then releases the
// device. The touch poller and input pump run alongside the loop.
func (a *App) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if a.sensor != nil {
		poller := touch.NewPoller(a.sensor, a.pollInt, func(x, y int, ok bool) {
			// Samples are never dropped; losing a pen-up would leave the
			// pipeline pressed.
			select {
			case a.messages <- SampleMsg{X: x, Y: y, OK: ok}:
			case <-gctx.Done():
			}
		}, a.clock)
		g.Go(func() error { return poller.Run(gctx) })
	}

	if a.input != nil {
		g.Go(func() error {
			a.pumpInput(gctx)
			return nil
		})
	}

	g.Go(func() error {
		defer a.device.Fini()
		defer cancel()
		return a.loop(gctx)
	})

	err := g.Wait()
	a.toasts.Close()
	return err
}

func (a *App) pumpInput(ctx context.Context) {
	for {
		ev := a.input.PollEvent()
		if ev == nil || ctx.Err() != nil {
			return
		}
		var msg Message
		switch e := ev.(type) {
		case input.ButtonEvent:
			msg = ButtonMsg{Button: e.Button, Pressed: e.Pressed}
		case input.KeyEvent:
			msg = KeyMsg{KeyEvent: e}
		case input.ResizeEvent:
			msg = ResizeMsg{Width: e.Width, Height: e.Height}
		default:
			continue
		}
		select {
		case a.messages <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) loop(ctx context.Context) error {
	var ticks <-chan time.Time
	if a.tickRate > 0 && a.onTick != nil {
		ticker := a.clock.NewTicker(a.tickRate)
		defer ticker.Stop()
		ticks = ticker.C()
	}

	if err := a.screen.Redraw(); err != nil {
		a.log.Warn("initial redraw", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-a.messages:
			if a.handle(msg) {
				return nil
			}
		case now := <-ticks:
			a.handle(TickMsg{Time: now})
		}
	}
}

// handle processes one message and reports whether the loop should stop.
func (a *App) handle(msg Message) (quit bool) {
	switch m := msg.(type) {
	case QuitMsg:
		return true
	case ButtonMsg:
		a.screen.DispatchButton(m.Button, m.Pressed)
	case KeyMsg:
		if a.screen.DispatchKey(m.KeyEvent) {
			return false
		}
		if m.Pressed && m.Key == input.KeyCtrlC {
			return true
		}
		if b, ok := input.ButtonForKey(m.Key); ok {
			a.screen.DispatchButton(b, m.Pressed)
		}
	case ResizeMsg:
		a.comp.Resize(m.Width, m.Height)
		a.redraw(geom.Rect{})
	case SampleMsg:
		a.touch.Sample(m.X, m.Y, m.OK)
		if m.OK && a.showCursor {
			if err := a.comp.MoveCursor(geom.Pt(m.X, m.Y)); err != nil {
				a.log.Warn("move cursor", "error", err)
			}
		}
	case TickMsg:
		if a.onTick != nil {
			a.screen.guard("tick", func() { a.onTick(m.Time) })
		}
	case FuncMsg:
		if m.Fn != nil {
			a.screen.guard("func", m.Fn)
		}
	case RedrawMsg:
		a.redraw(m.Region)
	}
	return false
}

func (a *App) redraw(region geom.Rect) {
	var err error
	if region.Empty() {
		err = a.screen.Redraw()
	} else if c := a.screen.Active(); c != nil {
		err = c.Invalidate(region)
	}
	if err != nil {
		a.log.Warn("redraw", "error", err)
	}
}
