package main

import (
	"fmt"
	"image/color"
	"slices"
	"time"

	"github.com/odvcencio/glint/pkg/apphost"
	"github.com/odvcencio/glint/pkg/bus"
	"github.com/odvcencio/glint/pkg/config"
	"github.com/odvcencio/glint/pkg/ui/compositor"
	"github.com/odvcencio/glint/pkg/ui/geom"
	"github.com/odvcencio/glint/pkg/ui/runtime"
	"github.com/odvcencio/glint/pkg/ui/scroll"
	"github.com/odvcencio/glint/pkg/ui/touch"
)

const (
	topicClockTick      = "clock.tick"
	topicContextClosed  = "context.closed"
	topicCatalogChanged = "catalog.changed"
	topicNotify         = "shell.notify"

	titleHeight = 24
	rowHeight   = 20
	padding     = 6
)

var (
	background = color.RGBA{R: 16, G: 18, B: 24, A: 255}
	titleBar   = color.RGBA{R: 36, G: 40, B: 52, A: 255}
	foreground = color.RGBA{R: 220, G: 222, B: 230, A: 255}
	muted      = color.RGBA{R: 120, G: 124, B: 140, A: 255}
)

// builtinModules returns the modules compiled into the binary. Work that
// swaps or tears down the screen from inside a dispatch is handed to do.
func builtinModules(app *runtime.App, do func(func()), cfg *config.Config, reg *apphost.Registry, catalog *apphost.Catalog) []apphost.Module {
	return []apphost.Module{
		{
			Name: cfg.Apps.Shell,
			Meta: apphost.Meta{Title: "Launcher", Version: "1.0", Description: "Lists installed modules"},
			Exports: []apphost.Export{func() any {
				return &shell{app: app, do: do, scrollCfg: cfg.Scroll, registry: reg, catalog: catalog}
			}},
		},
		{
			Name: "clock",
			Meta: apphost.Meta{Title: "Clock", Version: "1.0"},
			Exports: []apphost.Export{func() any {
				return &clockApp{do: do}
			}},
		},
	}
}

func fullScreen(c *apphost.Context) geom.Rect {
	b := c.Tree().Screen().Bounds()
	return geom.NewRect(0, 0, b.Width, b.Height)
}

func paintTitle(cv *compositor.Canvas, b geom.Rect, title string) {
	bar := geom.NewRect(b.X, b.Y, b.Width, titleHeight)
	cv.FillRect(b, background)
	cv.FillRect(bar, titleBar)
	size := cv.MeasureText(title)
	cv.DrawText(geom.Pt(b.X+padding, b.Y+(titleHeight-size.Height)/2), title, foreground)
}

// shell lists launchable modules and starts the one tapped.
type shell struct {
	app       *runtime.App
	do        func(func())
	scrollCfg config.ScrollConfig
	registry  *apphost.Registry
	catalog   *apphost.Catalog

	ctx   *apphost.Context
	view  *scroll.View
	names []string
}

func (s *shell) Start(c *apphost.Context, _, _ string, _ []string) error {
	s.ctx = c
	bounds := fullScreen(c)
	root, err := c.Tree().NewContainer("shell", bounds, &runtime.Hooks{
		OnPaint: func(pc runtime.PaintContext) { paintTitle(pc.Canvas, pc.Bounds, c.Meta().Title) },
	})
	if err != nil {
		return err
	}

	s.names = s.launchable()
	list := geom.NewRect(0, titleHeight, bounds.Width, max(0, bounds.Height-titleHeight))
	s.view, err = scroll.NewView(c.Tree(), "modules", list, s.contentSize(list.Width), s.paintRows, s.scrollCfg,
		scroll.WithScheduler(s.do),
		scroll.WithLogger(c.Logger()))
	if err != nil {
		return err
	}
	s.view.Node().OnTouch(s.onTouch)
	if err := root.AddChild(s.view.Node()); err != nil {
		return err
	}

	if err := c.Listen(s.onMessage, topicCatalogChanged, topicNotify, topicContextClosed); err != nil {
		return err
	}
	return c.Show(root)
}

func (s *shell) Terminate() error {
	if s.view != nil {
		s.view.Close()
	}
	return nil
}

func (s *shell) launchable() []string {
	names := slices.DeleteFunc(s.registry.Names(), func(n string) bool { return n == s.ctx.Module() })
	for _, e := range s.catalog.Entries() {
		if !slices.Contains(names, e.Name) {
			names = append(names, e.Name)
		}
	}
	return names
}

func (s *shell) contentSize(width int) geom.Size {
	return geom.Size{Width: width, Height: len(s.names) * rowHeight}
}

func (s *shell) paintRows(cv *compositor.Canvas, origin geom.Point) {
	for i, name := range s.names {
		y := origin.Y + i*rowHeight
		cv.DrawText(geom.Pt(origin.X+padding, y+2), name, foreground)
		cv.FillRect(geom.NewRect(origin.X, y+rowHeight-1, s.view.Viewport().Width, 1), titleBar)
	}
	if len(s.names) == 0 {
		cv.DrawText(geom.Pt(origin.X+padding, origin.Y+2), "no modules installed", muted)
	}
}

func (s *shell) onTouch(n *runtime.Node, ev touch.Event) {
	if ev.Kind != touch.KindTap {
		return
	}
	row := (ev.Point.Y - n.AbsBounds().Y + s.view.Offset().Y) / rowHeight
	if row < 0 || row >= len(s.names) {
		return
	}
	name := s.names[row]
	// Launching swaps the screen; leave the dispatch that delivered the tap first.
	s.do(func() {
		if _, err := s.ctx.Launch(name, "", nil); err != nil {
			s.app.Toasts().Error(fmt.Sprintf("%s: %v", name, err))
		}
	})
}

func (s *shell) onMessage(m bus.Message) {
	s.do(func() {
		if s.view == nil || s.view.Node().Released() {
			return
		}
		switch m.Topic {
		case topicNotify:
			if len(m.Args) > 0 {
				s.app.Toasts().Info(fmt.Sprint(m.Args[0]))
			}
		default:
			s.names = s.launchable()
			if err := s.view.SetContentSize(s.contentSize(s.view.Viewport().Width)); err != nil {
				s.ctx.Logger().Warn("resize module list", "error", err)
			}
			_ = s.view.Node().Invalidate()
		}
	})
}

// clockApp shows the time broadcast on every runtime tick. A double tap or
// a horizontal swipe closes it.
type clockApp struct {
	do     func(func())
	ctx    *apphost.Context
	face   *runtime.Node
	layout string
	now    time.Time
}

func (a *clockApp) Start(c *apphost.Context, _, arg string, _ []string) error {
	a.ctx = c
	a.layout = "15:04:05"
	if arg == "12h" {
		a.layout = "3:04:05 PM"
	}
	a.now = time.Now()

	bounds := fullScreen(c)
	root, err := c.Tree().NewContainer("clock", bounds, &runtime.Hooks{
		OnPaint: func(pc runtime.PaintContext) { paintTitle(pc.Canvas, pc.Bounds, c.Meta().Title) },
		OnTouch: a.onTouch,
	})
	if err != nil {
		return err
	}
	face := geom.NewRect(0, titleHeight, bounds.Width, max(0, bounds.Height-titleHeight))
	a.face, err = c.Tree().NewWidget("face", face, &runtime.Hooks{OnPaint: a.paint, OnTouch: a.onTouch})
	if err != nil {
		return err
	}
	if err := root.AddChild(a.face); err != nil {
		return err
	}
	if err := c.Listen(a.onTick, topicClockTick); err != nil {
		return err
	}
	return c.Show(root)
}

func (a *clockApp) Terminate() error { return nil }

func (a *clockApp) paint(pc runtime.PaintContext) {
	text := a.now.Format(a.layout)
	size := pc.Canvas.MeasureText(text)
	b := pc.Bounds
	pc.Canvas.DrawText(geom.Pt(b.X+(b.Width-size.Width)/2, b.Y+(b.Height-size.Height)/2), text, foreground)
}

func (a *clockApp) onTick(m bus.Message) {
	now := m.Time
	if len(m.Args) > 0 {
		if s, ok := m.Args[0].(string); ok {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				now = t
			}
		}
	}
	a.do(func() {
		if a.face.Released() {
			return
		}
		a.now = now.Local()
		_ = a.face.Invalidate()
	})
}

func (a *clockApp) onTouch(_ *runtime.Node, ev touch.Event) bool {
	closing := ev.Kind == touch.KindDoubleTap ||
		(ev.Kind == touch.KindGesture && (ev.Direction == touch.DirLeft || ev.Direction == touch.DirRight))
	if !closing {
		return false
	}
	a.do(func() {
		if err := a.ctx.Exit(); err != nil {
			a.ctx.Logger().Warn("exit clock", "error", err)
		}
	})
	return true
}
