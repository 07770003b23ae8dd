// Package apphost loads application modules into isolated contexts and tears
// them down again. Modules are registered explicitly; a module's exports are
// factories, and the first one producing an Application becomes the
// context's entry point.
package apphost

import (
	"sort"
	"strings"
	"sync"

	"github.com/odvcencio/glint/pkg/errors"
)

// Application is the contract a loadable module must export.
type Application interface {
	// Start runs inside the context's boundary. id is freshly generated for
	// this launch; arg and args come from the caller or the descriptor.
	Start(ctx *Context, id, arg string, args []string) error
	Terminate() error
}

// Meta describes a module to the user.
type Meta struct {
	Title       string `yaml:"title" json:"title,omitempty"`
	Version     string `yaml:"version" json:"version,omitempty"`
	Description string `yaml:"description" json:"description,omitempty"`
}

// Export produces one value a module offers. Exports run inside the
// loading context's boundary.
type Export func() any

// Module is a registered unit of code. Modules without an Application
// export are libraries: they can only be loaded as dependencies.
type Module struct {
	Name         string
	Meta         Meta
	Exports      []Export
	Dependencies []string

	// Setup, when set, runs once in every boundary the module is loaded
	// into, before any application starts.
	Setup func(ctx *Context) error
}

// Registry holds the modules a host can load.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*Module
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]*Module)}
}

// Register adds m. Names are unique.
func (r *Registry) Register(m Module) error {
	name := strings.TrimSpace(m.Name)
	if name == "" {
		return errors.New(errors.ErrCodeInvalidInput, "module name is required")
	}
	m.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[name]; exists {
		return errors.Newf(errors.ErrCodeInvalidInput, "module %q already registered", name)
	}
	r.modules[name] = &m
	return nil
}

// Lookup returns the module registered under name.
func (r *Registry) Lookup(name string) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	return m, ok
}

// Names lists registered modules alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dependencies returns every module that name needs, transitively, in load
// order (a module always follows its own dependencies). extra lists
// dependencies declared outside the registration, such as a descriptor's.
// The named module itself is not included.
func (r *Registry) Dependencies(name string, extra ...string) ([]*Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		order    []*Module
		done     = make(map[string]bool)
		visiting = make(map[string]bool)
	)

	var visit func(name string, path []string) error
	visit = func(dep string, path []string) error {
		if done[dep] {
			return nil
		}
		if visiting[dep] {
			return errors.Newf(errors.ErrCodeDependency, "dependency cycle: %s", strings.Join(append(path, dep), " -> "))
		}
		m, ok := r.modules[dep]
		if !ok {
			return errors.Newf(errors.ErrCodeDependency, "missing dependency %q", dep).
				WithContext("required_by", strings.Join(path, " -> "))
		}
		visiting[dep] = true
		for _, next := range m.Dependencies {
			if err := visit(next, append(path, dep)); err != nil {
				return err
			}
		}
		visiting[dep] = false
		done[dep] = true
		if dep != name {
			order = append(order, m)
		}
		return nil
	}

	if err := visit(name, nil); err != nil {
		return nil, err
	}
	for _, dep := range extra {
		if err := visit(dep, []string{name}); err != nil {
			return nil, err
		}
	}
	return order, nil
}
