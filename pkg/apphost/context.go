package apphost

import (
	"context"
	"sync"
	"time"

	"github.com/odvcencio/glint/pkg/bus"
	"github.com/odvcencio/glint/pkg/errors"
	"github.com/odvcencio/glint/pkg/logging"
	"github.com/odvcencio/glint/pkg/ui/runtime"
)

// Context is one running application: its boundary, widget tree and bus
// registration. Applications reach the rest of the device only through it.
type Context struct {
	id      string
	module  string
	meta    Meta
	arg     string
	args    []string
	started time.Time

	host     *Host
	ctx      context.Context
	cancel   context.CancelFunc
	tree     *runtime.Tree
	log      *logging.Logger
	previous *runtime.Container
	app      Application

	mu         sync.Mutex
	unregister func()
}

// Info is a snapshot of a running context.
type Info struct {
	ID      string    `json:"id"`
	Module  string    `json:"module"`
	Meta    Meta      `json:"meta"`
	Arg     string    `json:"arg,omitempty"`
	Args    []string  `json:"args,omitempty"`
	Started time.Time `json:"started"`
}

func (c *Context) ID() string { return c.id }
func (c *Context) Module() string { return c.module }
func (c *Context) Meta() Meta { return c.meta }
func (c *Context) Tree() *runtime.Tree { return c.tree }
func (c *Context) Logger() *logging.Logger { return c.log }
func (c *Context) Context() context.Context { return c.ctx }
func (c *Context) Previous() *runtime.Container { return c.previous }

// Info returns a snapshot of the context.
func (c *Context) Info() Info {
	return Info{
		ID:      c.id,
		Module:  c.module,
		Meta:    c.meta,
		Arg:     c.arg,
		Args:    append([]string(nil), c.args...),
		Started: c.started,
	}
}

// Show hands the screen to root, which must be a top-level container of this
// context's tree.
func (c *Context) Show(root *runtime.Container) error {
	if root == nil || root.Tree() != c.tree {
		return errors.New(errors.ErrCodeInvalidInput, "container does not belong to this context").
			WithContext("app_id", c.id)
	}
	return c.tree.Screen().SetActive(root)
}

// Listen registers the context on the host's bus. topics filter what is
// delivered; none means everything. A context has one registration.
func (c *Context) Listen(h bus.Handler, topics ...string) error {
	b := c.host.bus
	if b == nil {
		return errors.New(errors.ErrCodeNotImplemented, "host has no message bus")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unregister != nil {
		return errors.New(errors.ErrCodeInvalidInput, "context already listening").WithContext("app_id", c.id)
	}
	unregister, err := b.Register(c.id, h, topics...)
	if err != nil {
		return err
	}
	c.unregister = unregister
	return nil
}

// Broadcast sends topic to every other listening context.
func (c *Context) Broadcast(topic string, args ...any) (int, error) {
	if c.host.bus == nil {
		return 0, errors.New(errors.ErrCodeNotImplemented, "host has no message bus")
	}
	return c.host.bus.Broadcast(c.id, topic, args...)
}

// Launch loads another module from inside this context.
func (c *Context) Launch(ref, arg string, args []string) (string, error) {
	return c.host.Load(c.ctx, ref, arg, args)
}

// Exit terminates this context.
func (c *Context) Exit() error {
	return c.host.Terminate(c.id)
}

func (c *Context) stopListening() {
	c.mu.Lock()
	unregister := c.unregister
	c.unregister = nil
	c.mu.Unlock()
	if unregister != nil {
		unregister()
	}
}

// run calls fn inside the boundary: a panic becomes an error.
func (c *Context) run(where string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.FromPanic(r, where).WithContext("app_id", c.id)
			c.log.Fault(where, err)
			c.host.metrics.HandlerFault(where)
		}
	}()
	return fn()
}

// destroy tears the boundary down. Safe to call on a partly built context.
func (c *Context) destroy() {
	c.stopListening()
	if c.cancel != nil {
		c.cancel()
	}
	if c.tree != nil {
		c.tree.Destroy()
	}
}
