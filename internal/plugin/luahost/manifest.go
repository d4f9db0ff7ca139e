package luahost

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// Manifest describes an on-disk Lua plugin.
type Manifest struct {
	// Identity
	Name        string `json:"name"`        // Unique identifier, also the registry namespace
	Version     string `json:"version"`     // Informational; validated as semver for hygiene
	DisplayName string `json:"displayName"` // Human-readable name
	Description string `json:"description"` // Short description

	// Entry point, relative to the plugin directory (default: "init.lua")
	Main string `json:"main"`

	// Dependencies lists plugin names that must be loaded first.
	Dependencies []string `json:"dependencies"`

	// ScopeConfig configures the plugin's scope.
	ScopeConfig ManifestScopeConfig `json:"scopeConfig"`

	// path to the plugin directory
	path string
}

// ManifestScopeConfig is the scope section of a manifest.
type ManifestScopeConfig struct {
	// MaxStateSize is the byte ceiling for the plugin's state store.
	// Zero means unbounded.
	MaxStateSize int `json:"maxStateSize"`
}

// Manifest validation errors.
var (
	ErrMissingName      = errors.New("manifest: name is required")
	ErrInvalidName      = errors.New("manifest: name must be lowercase alphanumeric with hyphens")
	ErrInvalidVersion   = errors.New("manifest: version must be valid semver")
	ErrInvalidMain      = errors.New("manifest: main must be a .lua file")
	ErrInvalidStateSize = errors.New("manifest: maxStateSize must not be negative")
	ErrSelfDependency   = errors.New("manifest: plugin cannot depend on itself")
)

// namePattern validates plugin names.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$|^[a-z]$`)

// semverPattern validates version strings (simplified semver).
var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

// LoadManifest loads and validates a manifest from a file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	m.path = filepath.Dir(path)
	m.applyDefaults()

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifestFromDir loads plugin.json from a plugin directory.
func LoadManifestFromDir(dir string) (*Manifest, error) {
	return LoadManifest(filepath.Join(dir, "plugin.json"))
}

// NewManifestMinimal creates a manifest for a single-file plugin: name from
// the file stem, main pointing at the file itself.
func NewManifestMinimal(name, dir, main string) *Manifest {
	return &Manifest{
		Name:    name,
		Version: "0.0.0",
		Main:    main,
		path:    dir,
	}
}

// applyDefaults sets default values for optional fields.
func (m *Manifest) applyDefaults() {
	if m.Main == "" {
		m.Main = "init.lua"
	}
	if m.Version == "" {
		m.Version = "0.0.0"
	}
}

// Validate checks that the manifest is valid.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return ErrMissingName
	}
	if !namePattern.MatchString(m.Name) {
		return fmt.Errorf("%w: %s", ErrInvalidName, m.Name)
	}
	if !semverPattern.MatchString(m.Version) {
		return fmt.Errorf("%w: %s", ErrInvalidVersion, m.Version)
	}
	if filepath.Ext(m.Main) != ".lua" {
		return fmt.Errorf("%w: %s", ErrInvalidMain, m.Main)
	}
	if m.ScopeConfig.MaxStateSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidStateSize, m.ScopeConfig.MaxStateSize)
	}
	for _, dep := range m.Dependencies {
		if dep == m.Name {
			return fmt.Errorf("%w: %s", ErrSelfDependency, m.Name)
		}
	}
	return nil
}

// Path returns the plugin directory.
func (m *Manifest) Path() string {
	return m.path
}

// MainPath returns the full path to the main Lua file.
func (m *Manifest) MainPath() string {
	return filepath.Join(m.path, m.Main)
}

// String returns a short human-readable identity.
func (m *Manifest) String() string {
	display := m.DisplayName
	if display == "" {
		display = m.Name
	}
	return fmt.Sprintf("%s v%s", display, m.Version)
}
