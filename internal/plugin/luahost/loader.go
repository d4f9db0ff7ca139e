package luahost

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Loader errors.
var (
	// ErrPluginNotFound is returned when a plugin cannot be located.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrNoEntryPoint is returned when a plugin directory has no manifest
	// and no init.lua.
	ErrNoEntryPoint = errors.New("plugin has no entry point")
)

// Info describes a discovered plugin.
type Info struct {
	Name     string
	Path     string
	Manifest *Manifest
	Err      error // Non-nil when the manifest failed to load or validate.
}

// Loader discovers Lua plugins on the filesystem.
type Loader struct {
	// Search paths, checked in order. The first plugin found under a name
	// wins.
	paths []string

	discovered map[string]*Info
	order      []string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithPaths sets the plugin search paths.
func WithPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.paths = paths
	}
}

// NewLoader creates a plugin loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		discovered: make(map[string]*Info),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Paths returns the configured search paths.
func (l *Loader) Paths() []string {
	return l.paths
}

// Discover scans the search paths for plugins and returns them sorted by
// name. A directory entry with a plugin.json becomes a manifest plugin; a
// directory with only an init.lua gets a synthesized manifest, as does a
// bare .lua file. Manifest failures are reported on the Info rather than
// aborting discovery.
func (l *Loader) Discover() ([]*Info, error) {
	l.discovered = make(map[string]*Info)
	l.order = nil

	for _, root := range l.paths {
		entries, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to scan plugin path %q: %w", root, err)
		}

		for _, entry := range entries {
			info := l.inspect(root, entry.Name(), entry.IsDir())
			if info == nil {
				continue
			}
			if _, seen := l.discovered[info.Name]; seen {
				continue
			}
			l.discovered[info.Name] = info
			l.order = append(l.order, info.Name)
		}
	}

	sort.Strings(l.order)
	result := make([]*Info, 0, len(l.order))
	for _, name := range l.order {
		result = append(result, l.discovered[name])
	}
	return result, nil
}

// inspect examines one directory entry and returns its Info, or nil when
// the entry is not a plugin.
func (l *Loader) inspect(root, name string, isDir bool) *Info {
	full := filepath.Join(root, name)

	if !isDir {
		if filepath.Ext(name) != ".lua" {
			return nil
		}
		stem := strings.TrimSuffix(name, ".lua")
		return &Info{
			Name:     stem,
			Path:     full,
			Manifest: NewManifestMinimal(stem, root, name),
		}
	}

	if _, err := os.Stat(filepath.Join(full, "plugin.json")); err == nil {
		m, err := LoadManifestFromDir(full)
		if err != nil {
			return &Info{Name: name, Path: full, Err: err}
		}
		return &Info{Name: m.Name, Path: full, Manifest: m}
	}

	if _, err := os.Stat(filepath.Join(full, "init.lua")); err == nil {
		return &Info{
			Name:     name,
			Path:     full,
			Manifest: NewManifestMinimal(name, full, "init.lua"),
		}
	}

	return &Info{
		Name: name,
		Path: full,
		Err:  fmt.Errorf("%w: %s", ErrNoEntryPoint, full),
	}
}

// Find returns a discovered plugin by name, running discovery if it has
// not happened yet.
func (l *Loader) Find(name string) (*Info, error) {
	if len(l.discovered) == 0 {
		if _, err := l.Discover(); err != nil {
			return nil, err
		}
	}

	info, ok := l.discovered[name]
	if !ok {
		return nil, fmt.Errorf("plugin %q: %w", name, ErrPluginNotFound)
	}
	return info, nil
}
