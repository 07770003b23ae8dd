package apphost

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/utils/clock"

	"github.com/odvcencio/glint/pkg/bus"
	"github.com/odvcencio/glint/pkg/config"
	"github.com/odvcencio/glint/pkg/errors"
	"github.com/odvcencio/glint/pkg/logging"
	"github.com/odvcencio/glint/pkg/telemetry"
	"github.com/odvcencio/glint/pkg/ui/runtime"
)

// Closure is sent to closure subscribers when a context ends. When the
// application's termination hook failed only ID and Err are set.
type Closure struct {
	ID     string
	Module string
	Meta   Meta
	Uptime time.Duration
	Err    error
}

// HostOption configures a Host.
type HostOption func(*Host)

func WithLogger(l *logging.Logger) HostOption {
	return func(h *Host) { h.log = logging.OrDiscard(l).WithCategory(logging.CategoryModule) }
}

func WithMetrics(m *telemetry.Metrics) HostOption {
	return func(h *Host) { h.metrics = m }
}

func WithClock(c clock.PassiveClock) HostOption {
	return func(h *Host) { h.clock = c }
}

// WithBus lets contexts listen and broadcast.
func WithBus(b *bus.Bus) HostOption {
	return func(h *Host) { h.bus = b }
}

// WithCatalog resolves names that are not registered through descriptors
// found in a module directory.
func WithCatalog(c *Catalog) HostOption {
	return func(h *Host) { h.catalog = c }
}

// Host launches and terminates application contexts. Load and Terminate
// touch the screen, so they must run on the UI goroutine.
type Host struct {
	registry *Registry
	screen   *runtime.Screen
	cfg      config.AppsConfig
	bus      *bus.Bus
	catalog  *Catalog

	mu        sync.Mutex
	contexts  map[string]*Context
	order     []string
	pending   int
	listeners []closeListener
	nextID    int

	log     *logging.Logger
	metrics *telemetry.Metrics
	clock   clock.PassiveClock
}

// NewHost creates a host loading modules from reg onto screen.
func NewHost(reg *Registry, screen *runtime.Screen, cfg config.AppsConfig, opts ...HostOption) *Host {
	h := &Host{
		registry: reg,
		screen:   screen,
		cfg:      cfg,
		contexts: make(map[string]*Context),
		log:      logging.Discard(),
		clock:    clock.RealClock{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Registry returns the host's module registry.
func (h *Host) Registry() *Registry { return h.registry }

// launch is a resolved load request.
type launch struct {
	module *Module
	meta   Meta
	deps   []string
	arg    string
	args   []string
}

func (h *Host) resolve(ref, arg string, args []string) (*launch, error) {
	var desc *Descriptor
	if IsDescriptorPath(ref) {
		d, err := LoadDescriptor(ref)
		if err != nil {
			return nil, err
		}
		desc = d
	} else if _, ok := h.registry.Lookup(ref); !ok && h.catalog != nil {
		if entry, ok := h.catalog.Lookup(ref); ok {
			desc = entry.Descriptor
		}
	}

	name := ref
	if desc != nil {
		name = desc.Module
	}
	m, ok := h.registry.Lookup(name)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeModuleNotFound, "module %q is not registered", name).
			WithContext("ref", ref)
	}

	l := &launch{module: m, meta: m.Meta, deps: m.Dependencies, arg: arg, args: args}
	if desc != nil {
		if desc.Meta != (Meta{}) {
			l.meta = desc.Meta
		}
		l.deps = mergeNames(m.Dependencies, desc.Dependencies)
		if l.arg == "" {
			l.arg = desc.Arg
		}
		if l.args == nil {
			l.args = desc.Args
		}
	}
	return l, nil
}

// Load starts the module named by ref in a new context and returns the
// context id. ref is a registered module name or a descriptor path. On any
// failure the partly built context is destroyed and nothing is registered.
func (h *Host) Load(ctx context.Context, ref, arg string, args []string) (id string, err error) {
	ctx, span := telemetry.StartSpan(ctx, "apphost.Load",
		trace.WithAttributes(telemetry.AttrAppModule.String(ref)))
	start := h.clock.Now()
	defer func() {
		h.metrics.AppLoad(err == nil, h.clock.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "load failed")
			h.log.Warn("module not launched", "ref", ref, "error", err)
		} else {
			span.SetAttributes(telemetry.AttrAppID.String(id))
		}
		span.End()
	}()

	if err := h.reserve(); err != nil {
		return "", err
	}
	defer h.release()

	l, err := h.resolve(ref, arg, args)
	if err != nil {
		return "", err
	}

	c, err := h.newContext(ctx, l)
	if err != nil {
		return "", err
	}
	if err := h.start(c, l); err != nil {
		h.unwind(c)
		return "", err
	}

	h.mu.Lock()
	h.contexts[c.id] = c
	h.order = append(h.order, c.id)
	n := len(h.contexts)
	h.mu.Unlock()
	h.metrics.SetContexts(n)

	c.log.Info("module launched", "module", c.module, "deps", len(l.deps))
	return c.id, nil
}

func (h *Host) reserve() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if limit := h.cfg.MaxContexts; limit > 0 && len(h.contexts)+h.pending >= limit {
		return errors.Newf(errors.ErrCodeContextLimit, "context limit %d reached", limit)
	}
	h.pending++
	return nil
}

func (h *Host) release() {
	h.mu.Lock()
	h.pending--
	h.mu.Unlock()
}

// newContext builds the boundary: its own cancellable context and tree.
func (h *Host) newContext(parent context.Context, l *launch) (*Context, error) {
	if err := parent.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBoundary, "create boundary")
	}
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(logging.ContextWithApp(context.WithoutCancel(parent), id))
	return &Context{
		id:       id,
		module:   l.module.Name,
		meta:     l.meta,
		arg:      l.arg,
		args:     l.args,
		started:  h.clock.Now(),
		host:     h,
		ctx:      ctx,
		cancel:   cancel,
		tree:     runtime.NewTree(h.screen),
		log:      h.log.WithApp(id, l.module.Name),
		previous: h.screen.Active(),
	}, nil
}

// start preloads dependencies, picks the application export and runs it.
func (h *Host) start(c *Context, l *launch) error {
	deps, err := h.registry.Dependencies(l.module.Name, l.deps...)
	if err != nil {
		return err
	}
	for _, dep := range deps {
		if err := h.setup(c, dep); err != nil {
			return errors.Wrap(err, errors.ErrCodeDependency, "preload dependency").
				WithContext("dependency", dep.Name)
		}
	}
	if err := h.setup(c, l.module); err != nil {
		return errors.Wrap(err, errors.ErrCodeLoadFailed, "module setup")
	}

	app, err := h.application(c, l.module)
	if err != nil {
		return err
	}
	c.app = app

	if err := c.run("apphost.start", func() error { return app.Start(c, c.id, c.arg, c.args) }); err != nil {
		return errors.Wrap(err, errors.ErrCodeLoadFailed, "application start").
			WithContext("module", c.module)
	}
	return nil
}

func (h *Host) setup(c *Context, m *Module) error {
	if m.Setup == nil {
		return nil
	}
	return c.run("apphost.setup."+m.Name, func() error { return m.Setup(c) })
}

// application instantiates exports in order until one is an Application.
func (h *Host) application(c *Context, m *Module) (Application, error) {
	for i, export := range m.Exports {
		if export == nil {
			continue
		}
		var v any
		if err := c.run("apphost.export", func() error { v = export(); return nil }); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeLoadFailed, "instantiate export").
				WithContext("export", i)
		}
		if app, ok := v.(Application); ok {
			return app, nil
		}
	}
	return nil, errors.Newf(errors.ErrCodeNoApplication, "module %q exports no application", m.Name)
}

// unwind destroys a context that never finished loading.
func (h *Host) unwind(c *Context) {
	h.restoreScreen(c)
	c.destroy()
}

// restoreScreen gives the screen back to the container that was active when
// c loaded, if c currently owns it.
func (h *Host) restoreScreen(c *Context) {
	active := h.screen.Active()
	if active != nil && active.Tree() != c.tree {
		return
	}
	prev := c.previous
	if prev != nil && prev.Released() {
		prev = nil
	}
	if err := h.screen.SetActive(prev); err != nil {
		c.log.Warn("restore previous container", "error", err)
	}
}

// Terminate ends the context id. The previous container gets the screen
// back and contexts launched from id inherit it. Then the termination hook
// runs, the boundary is destroyed and closure subscribers are told. A failing
// hook is returned but does not stop the teardown.
func (h *Host) Terminate(id string) error {
	h.mu.Lock()
	c, ok := h.contexts[id]
	if ok {
		delete(h.contexts, id)
		for i, other := range h.order {
			if other == id {
				h.order = append(h.order[:i], h.order[i+1:]...)
				break
			}
		}
		// Contexts launched from c return to whatever c would have.
		for _, other := range h.contexts {
			if other.previous != nil && other.previous.Tree() == c.tree {
				other.previous = c.previous
			}
		}
	}
	n := len(h.contexts)
	h.mu.Unlock()
	if !ok {
		return errors.Newf(errors.ErrCodeContextNotFound, "no context %q", id)
	}

	_, span := telemetry.StartSpan(c.ctx, "apphost.Terminate",
		trace.WithAttributes(telemetry.AttrAppID.String(id), telemetry.AttrAppModule.String(c.module)))
	defer span.End()

	h.restoreScreen(c)
	err := c.run("apphost.terminate", c.app.Terminate)
	c.destroy()
	h.metrics.SetContexts(n)

	closure := Closure{ID: id, Err: err}
	if err == nil {
		closure.Module = c.module
		closure.Meta = c.meta
		closure.Uptime = h.clock.Since(c.started)
		c.log.Info("module terminated", "uptime", closure.Uptime)
	} else {
		span.RecordError(err)
		span.SetStatus(codes.Error, "terminate failed")
		c.log.Warn("module terminated with error", "error", err)
	}
	h.notify(closure)
	return err
}

// TerminateAll ends every context, newest first.
func (h *Host) TerminateAll() {
	h.mu.Lock()
	ids := append([]string(nil), h.order...)
	h.mu.Unlock()
	for i := len(ids) - 1; i >= 0; i-- {
		_ = h.Terminate(ids[i])
	}
}

type closeListener struct {
	id int
	fn func(Closure)
}

// OnClosed subscribes fn to context closures.
func (h *Host) OnClosed(fn func(Closure)) (unsubscribe func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.listeners = append(h.listeners, closeListener{id: id, fn: fn})
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, l := range h.listeners {
			if l.id == id {
				h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
				return
			}
		}
	}
}

func (h *Host) notify(c Closure) {
	h.mu.Lock()
	listeners := append([]closeListener(nil), h.listeners...)
	h.mu.Unlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					err := errors.FromPanic(r, "apphost.closed")
					h.log.Fault("apphost.closed", err, "app_id", c.ID)
					h.metrics.HandlerFault("apphost.closed")
				}
			}()
			l.fn(c)
		}()
	}
}

// Contexts lists running contexts in launch order.
func (h *Host) Contexts() []Info {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Info, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.contexts[id].Info())
	}
	return out
}

// Lookup returns the running context id.
func (h *Host) Lookup(id string) (*Context, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.contexts[id]
	return c, ok
}

// Len returns the number of running contexts.
func (h *Host) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.contexts)
}
