package apphost

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/odvcencio/glint/pkg/errors"
)

// ManifestExt is the suffix of the optional dependency manifest that sits
// next to a descriptor: clock.yaml pairs with clock.deps.
const ManifestExt = ".deps"

// Descriptor is the YAML file form of a launchable module.
type Descriptor struct {
	// Module names the registered module providing the code.
	Module string `yaml:"module"`

	Meta `yaml:",inline"`

	Dependencies []string `yaml:"dependencies"`

	// Arg and Args are used when the launcher supplies none.
	Arg  string   `yaml:"arg"`
	Args []string `yaml:"args"`

	// Path is the file this descriptor was read from (set by the loader).
	Path string `yaml:"-"`
}

// IsDescriptorPath reports whether ref names a descriptor file rather than a
// registered module.
func IsDescriptorPath(ref string) bool {
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadDescriptor reads a descriptor and merges the sibling manifest, if any,
// into its dependencies.
func LoadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeModuleNotFound, "read descriptor").WithContext("path", path)
	}

	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLoadFailed, "parse descriptor").WithContext("path", path)
	}
	d.Path = path
	d.Module = strings.TrimSpace(d.Module)
	if d.Module == "" {
		d.Module = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	manifest := strings.TrimSuffix(path, filepath.Ext(path)) + ManifestExt
	deps, err := ReadManifest(manifest)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, errors.ErrCodeDependency, "read manifest").WithContext("path", manifest)
	}
	d.Dependencies = mergeNames(d.Dependencies, deps)
	return &d, nil
}

// ReadManifest reads a dependency manifest: sibling module names separated
// by newlines or commas. File extensions are ignored and lines starting
// with # are comments.
func ReadManifest(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseManifest(string(data)), nil
}

// ParseManifest splits manifest text into module names.
func ParseManifest(text string) []string {
	var names []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, field := range strings.Split(line, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			names = append(names, strings.TrimSuffix(field, filepath.Ext(field)))
		}
	}
	return names
}

func mergeNames(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, name := range list {
			name = strings.TrimSpace(name)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("%s (%s)", d.Module, d.Path)
}
