package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/schemaflow/schemaflow/internal/registry"
)

// Manager owns the set of loaded plugins, their dependency graph, and
// lifecycle hook invocation. The definition and scope maps it keeps are the
// canonical sources of truth: "loaded" means exactly "present in the
// definition map".
//
// The manager is designed for a cooperative execution model: callers await
// each Load/Unload before issuing the next for a dependent chain. The
// internal mutex only guards map access; Register, OnLoad, and OnUnload run
// outside any lock.
type Manager struct {
	mu sync.RWMutex

	// Shared resources injected into every scope.
	registry *registry.Registry
	global   *Bus

	// Loaded plugins by name. defs is the definition of "loaded".
	defs   map[string]*Definition
	scopes map[string]*Scope

	// Transient lifecycle states, keyed by name. Absent = StateUnloaded.
	states map[string]State

	// Load order, for deterministic enumeration and reverse-order UnloadAll.
	loadOrder []string

	// Lifecycle notification handlers (protected by mu).
	notifyHandlers []NotifyHandler
}

// NotifyHandler observes plugin lifecycle transitions. Handlers must be
// non-blocking and should not call back into the Manager to avoid
// deadlocks. Panics in handlers are recovered.
type NotifyHandler func(n Notification)

// Notification describes a lifecycle transition.
type Notification struct {
	Type   NotificationType
	Plugin string
	Err    error
}

// NotificationType is the kind of lifecycle notification.
type NotificationType int

const (
	// NotifyLoaded is emitted after a plugin is recorded as loaded.
	NotifyLoaded NotificationType = iota
	// NotifyUnloaded is emitted after a plugin is removed.
	NotifyUnloaded
	// NotifyError is emitted when a load or unload fails.
	NotifyError
)

// String returns a string representation of the notification type.
func (t NotificationType) String() string {
	switch t {
	case NotifyLoaded:
		return "loaded"
	case NotifyUnloaded:
		return "unloaded"
	case NotifyError:
		return "error"
	default:
		return "unknown"
	}
}

// NewManager creates a plugin manager bound to an injected component
// registry. The manager constructs the shared global event bus that every
// scope signals on. Independent managers (e.g., in tests) never interfere.
func NewManager(reg *registry.Registry) *Manager {
	return &Manager{
		registry: reg,
		global:   NewBus(),
		defs:     make(map[string]*Definition),
		scopes:   make(map[string]*Scope),
		states:   make(map[string]State),
	}
}

// Registry returns the injected component registry.
func (m *Manager) Registry() *registry.Registry {
	return m.registry
}

// GlobalBus returns the shared cross-plugin event bus. Hosts may subscribe
// or emit on it directly; plugin code reaches it through its scope.
func (m *Manager) GlobalBus() *Bus {
	return m.global
}

// LoadOption configures a single Load call.
type LoadOption func(*loadOptions)

type loadOptions struct {
	direct bool
}

// WithDirectRegistration selects the legacy scope-less path: the manager
// calls def.RegisterDirect with the component registry and constructs no
// scope. Registrations made this way are not namespaced and are not
// reversed on unload.
func WithDirectRegistration() LoadOption {
	return func(o *loadOptions) {
		o.direct = true
	}
}

// Load loads a plugin definition.
//
// Loading an already-loaded name is a no-op that returns nil without
// re-invoking Register or OnLoad. A missing dependency fails with a
// dependency error naming both plugins and mutates nothing. On the normal
// path the manager constructs a scope bound to def.Name, runs
// def.Register(scope), awaits def.OnLoad, and only then records the plugin
// as loaded. If Register or OnLoad fails, the partially built scope is torn
// down and the manager is left unchanged.
func (m *Manager) Load(ctx context.Context, def *Definition, opts ...LoadOption) error {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := def.validate(o.direct); err != nil {
		return err
	}
	name := def.Name

	// Dependency check and transition claim (brief lock).
	m.mu.Lock()
	if _, loaded := m.defs[name]; loaded {
		m.mu.Unlock()
		return nil
	}
	if st := m.states[name]; st == StateLoading || st == StateUnloading {
		m.mu.Unlock()
		return fmt.Errorf("plugin %q: %w", name, ErrBusy)
	}
	for _, dep := range def.Dependencies {
		if _, loaded := m.defs[dep]; !loaded {
			m.mu.Unlock()
			return fmt.Errorf("plugin %q requires %q: %w", name, dep, ErrDependencyNotFound)
		}
	}
	m.states[name] = StateLoading
	m.mu.Unlock()

	// Registration and OnLoad run outside the lock; they may suspend.
	scope, err := m.runRegistration(ctx, def, o.direct)
	if err != nil {
		m.mu.Lock()
		delete(m.states, name)
		m.mu.Unlock()
		m.notify(Notification{Type: NotifyError, Plugin: name, Err: err})
		return err
	}

	// Record as loaded. Only after this point does IsLoaded report true.
	m.mu.Lock()
	m.defs[name] = def
	if scope != nil {
		m.scopes[name] = scope
	}
	m.states[name] = StateLoaded
	m.loadOrder = append(m.loadOrder, name)
	m.mu.Unlock()

	m.notify(Notification{Type: NotifyLoaded, Plugin: name})
	return nil
}

// runRegistration builds the scope (unless direct), invokes the
// registration function, and awaits OnLoad. On failure the scope is torn
// down so no registration survives.
func (m *Manager) runRegistration(ctx context.Context, def *Definition, direct bool) (*Scope, error) {
	var scope *Scope

	if direct {
		if err := def.RegisterDirect(m.registry); err != nil {
			return nil, fmt.Errorf("failed to register plugin %q: %w", def.Name, err)
		}
	} else {
		scope = newScope(def.Name, m.registry, m.global, def.ScopeConfig)
		if err := def.Register(scope); err != nil {
			scope.teardown()
			return nil, fmt.Errorf("failed to register plugin %q: %w", def.Name, err)
		}
	}

	if def.OnLoad != nil {
		if err := def.OnLoad(ctx); err != nil {
			if scope != nil {
				scope.teardown()
			}
			return nil, fmt.Errorf("plugin %q onLoad failed: %w", def.Name, err)
		}
	}

	return scope, nil
}

// Unload unloads a plugin by name.
//
// Fails with a not-loaded error when the name has no loaded definition, and
// with a dependents-exist error naming the blocking dependent when another
// loaded plugin lists the target as a dependency; both leave the manager
// unchanged. Otherwise the manager awaits def.OnUnload, removes the plugin,
// and tears its scope down. An OnUnload error does not stop teardown; it is
// returned after the plugin has been removed.
func (m *Manager) Unload(ctx context.Context, name string) error {
	// Dependent scan and transition claim (brief lock).
	m.mu.Lock()
	def, loaded := m.defs[name]
	if !loaded {
		m.mu.Unlock()
		return fmt.Errorf("plugin %q: %w", name, ErrNotLoaded)
	}
	if st := m.states[name]; st == StateLoading || st == StateUnloading {
		m.mu.Unlock()
		return fmt.Errorf("plugin %q: %w", name, ErrBusy)
	}
	for other, otherDef := range m.defs {
		if other == name {
			continue
		}
		for _, dep := range otherDef.Dependencies {
			if dep == name {
				m.mu.Unlock()
				return fmt.Errorf("cannot unload plugin %q: %q depends on it: %w",
					name, other, ErrDependentsExist)
			}
		}
	}
	m.states[name] = StateUnloading
	m.mu.Unlock()

	// OnUnload runs outside the lock, before teardown.
	var hookErr error
	if def.OnUnload != nil {
		if err := def.OnUnload(ctx); err != nil {
			hookErr = fmt.Errorf("plugin %q onUnload failed: %w", name, err)
			m.notify(Notification{Type: NotifyError, Plugin: name, Err: hookErr})
		}
	}

	// Remove from the loaded set, then destroy the scope.
	m.mu.Lock()
	scope := m.scopes[name]
	delete(m.defs, name)
	delete(m.scopes, name)
	delete(m.states, name)
	m.removeFromLoadOrder(name)
	m.mu.Unlock()

	if scope != nil {
		scope.teardown()
	}

	m.notify(Notification{Type: NotifyUnloaded, Plugin: name})
	return hookErr
}

// UnloadAll unloads every plugin in reverse load order, which satisfies the
// dependents-exist guard as long as dependencies were loaded before their
// dependents.
func (m *Manager) UnloadAll(ctx context.Context) error {
	m.mu.RLock()
	names := make([]string, len(m.loadOrder))
	for i, name := range m.loadOrder {
		names[len(m.loadOrder)-1-i] = name
	}
	m.mu.RUnlock()

	var unloadErrors []error
	for _, name := range names {
		if err := m.Unload(ctx, name); err != nil {
			unloadErrors = append(unloadErrors, fmt.Errorf("%s: %w", name, err))
		}
	}

	if len(unloadErrors) > 0 {
		return fmt.Errorf("failed to unload %d plugins: %w", len(unloadErrors), errors.Join(unloadErrors...))
	}
	return nil
}

// IsLoaded reports whether name has a loaded definition.
func (m *Manager) IsLoaded(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, loaded := m.defs[name]
	return loaded
}

// Get returns the loaded definition for name.
func (m *Manager) Get(name string) (*Definition, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	def, ok := m.defs[name]
	return def, ok
}

// All returns every loaded definition in load order.
func (m *Manager) All() []*Definition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Definition, 0, len(m.loadOrder))
	for _, name := range m.loadOrder {
		if def, ok := m.defs[name]; ok {
			result = append(result, def)
		}
	}
	return result
}

// Loaded returns the names of all loaded plugins in load order.
func (m *Manager) Loaded() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]string{}, m.loadOrder...)
}

// Scope returns the live scope for a loaded plugin. Plugins loaded through
// the legacy direct path have no scope.
func (m *Manager) Scope(name string) (*Scope, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scope, ok := m.scopes[name]
	return scope, ok
}

// Count returns the number of loaded plugins.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.defs)
}

// Subscribe adds a lifecycle notification handler and returns an
// unsubscribe function.
func (m *Manager) Subscribe(handler NotifyHandler) func() {
	if handler == nil {
		return func() {}
	}

	m.mu.Lock()
	m.notifyHandlers = append(m.notifyHandlers, handler)
	index := len(m.notifyHandlers) - 1
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		// Nil out instead of removing to avoid index shifts.
		if index < len(m.notifyHandlers) {
			m.notifyHandlers[index] = nil
		}
	}
}

// notify sends a notification to all handlers, outside any lock, with
// per-handler panic recovery.
func (m *Manager) notify(n Notification) {
	m.mu.RLock()
	handlers := make([]NotifyHandler, len(m.notifyHandlers))
	copy(handlers, m.notifyHandlers)
	m.mu.RUnlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		func() {
			defer func() {
				recover()
			}()
			handler(n)
		}()
	}
}

// removeFromLoadOrder removes a name from the load order slice.
// Must be called with mu held.
func (m *Manager) removeFromLoadOrder(name string) {
	for i, n := range m.loadOrder {
		if n == name {
			m.loadOrder = append(m.loadOrder[:i], m.loadOrder[i+1:]...)
			return
		}
	}
}
