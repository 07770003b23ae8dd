package apphost

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/odvcencio/glint/pkg/logging"
)

// Entry is one descriptor found in the module directory.
type Entry struct {
	Name       string      `json:"name"`
	Path       string      `json:"path"`
	Descriptor *Descriptor `json:"-"`
}

// Catalog lists the descriptors in a module directory. Entries are named
// after their file without the extension.
type Catalog struct {
	dir string
	log *logging.Logger

	mu       sync.RWMutex
	entries  map[string]Entry
	onChange func()
}

// NewCatalog creates a catalog over dir. Call Scan to populate it.
func NewCatalog(dir string, log *logging.Logger) *Catalog {
	return &Catalog{
		dir:     dir,
		log:     logging.OrDiscard(log).WithCategory(logging.CategoryModule),
		entries: make(map[string]Entry),
	}
}

// Dir returns the watched directory.
func (c *Catalog) Dir() string { return c.dir }

// OnChange sets fn to run after every rescan triggered by Watch.
func (c *Catalog) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Scan rereads every descriptor in the directory. Unreadable descriptors
// are logged and left out.
func (c *Catalog) Scan() error {
	files, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}

	entries := make(map[string]Entry)
	for _, f := range files {
		if f.IsDir() || !IsDescriptorPath(f.Name()) {
			continue
		}
		path := filepath.Join(c.dir, f.Name())
		d, err := LoadDescriptor(path)
		if err != nil {
			c.log.Warn("skipping descriptor", "path", path, "error", err)
			continue
		}
		name := strings.TrimSuffix(f.Name(), filepath.Ext(f.Name()))
		entries[name] = Entry{Name: name, Path: path, Descriptor: d}
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}

// Entries lists the catalog sorted by name.
func (c *Catalog) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the entry called name.
func (c *Catalog) Lookup(name string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	return e, ok
}

// Watch rescans whenever a descriptor or manifest in the directory changes.
// It blocks until ctx is done.
func (c *Catalog) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(c.dir); err != nil {
		return err
	}
	if err := c.Scan(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			if err := c.Scan(); err != nil {
				c.log.Warn("rescan failed", "dir", c.dir, "error", err)
				continue
			}
			c.log.Debug("catalog updated", "file", ev.Name, "op", ev.Op.String())
			c.mu.RLock()
			fn := c.onChange
			c.mu.RUnlock()
			if fn != nil {
				fn()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.log.Warn("watch error", "dir", c.dir, "error", err)
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	return IsDescriptorPath(ev.Name) || strings.EqualFold(filepath.Ext(ev.Name), ManifestExt)
}
