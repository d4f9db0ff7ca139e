package plugin

import (
	"fmt"
	"sync"

	"github.com/schemaflow/schemaflow/internal/registry"
)

// Scope is the isolated context created for one loaded plugin. It is the
// only surface a plugin's Register function touches, composing the
// plugin's state store, its private event bus, the shared global bus, and
// namespaced access to the component registry.
//
// A scope is created when load begins and destroyed on unload. Every
// registration made during Register is attributed to it so teardown can
// reverse them.
type Scope struct {
	name     string
	store    *Store
	bus      *Bus
	global   *Bus
	registry *registry.Registry

	mu sync.Mutex

	// Registered component types, for teardown.
	components []string

	// Unsubscribe functions for global-bus subscriptions made through
	// this scope, dropped on teardown.
	globalUnsubs []func()

	closed bool
}

// newScope creates a scope bound to a plugin name.
func newScope(name string, reg *registry.Registry, global *Bus, cfg ScopeConfig) *Scope {
	return &Scope{
		name:     name,
		store:    NewStore(cfg.MaxStateSize),
		bus:      NewBus(),
		global:   global,
		registry: reg,
	}
}

// Name returns the plugin name this scope is bound to, which is also its
// registry namespace.
func (s *Scope) Name() string {
	return s.name
}

// RegisterComponent registers a component handler in the shared registry
// under this plugin's namespace, so two plugins may register the same
// type name without collision.
func (s *Scope) RegisterComponent(typ string, handler registry.Handler, meta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: %s", ErrScopeClosed, s.name)
	}
	if err := s.registry.Register(s.name, typ, handler, meta); err != nil {
		return err
	}
	s.components = append(s.components, typ)
	return nil
}

// Component looks a type up under this plugin's own namespace first, then
// falls back to the registry's bare entry. This lets a plugin both shadow
// and fall back to globally registered components (e.g., a base "button").
func (s *Scope) Component(typ string) (registry.Handler, bool) {
	return s.registry.Get(typ, s.name)
}

// HasComponent reports whether a type resolves for this scope.
func (s *Scope) HasComponent(typ string) bool {
	return s.registry.Has(typ, s.name)
}

// ComponentConfig returns the metadata for a type, with the same probe
// order as Component.
func (s *Scope) ComponentConfig(typ string) (map[string]any, bool) {
	return s.registry.Config(typ, s.name)
}

// State returns the value stored under key in this plugin's store.
func (s *Scope) State(key string) (any, bool) {
	if s.isClosed() {
		return nil, false
	}
	return s.store.Get(key)
}

// SetState writes a value into this plugin's store. Fails with
// ErrStateSizeExceeded when the write would push the store past its
// configured ceiling.
func (s *Scope) SetState(key string, value any) error {
	if s.isClosed() {
		return fmt.Errorf("%w: %s", ErrScopeClosed, s.name)
	}
	return s.store.Set(key, value)
}

// UseState returns the current value for key, seeding it with initial when
// absent, together with a setter bound to that key.
func (s *Scope) UseState(key string, initial any) (any, func(any) error, error) {
	if s.isClosed() {
		return nil, nil, fmt.Errorf("%w: %s", ErrScopeClosed, s.name)
	}
	return s.store.Use(key, initial)
}

// On subscribes a handler on this plugin's private bus and returns an
// unsubscribe function.
func (s *Scope) On(event string, handler EventHandler) func() {
	if s.isClosed() {
		return func() {}
	}
	return s.bus.On(event, handler)
}

// Emit delivers an event to handlers subscribed on this same scope only.
func (s *Scope) Emit(event string, payload any) {
	if s.isClosed() {
		return
	}
	s.bus.Emit(event, payload)
}

// OnGlobal subscribes a handler on the shared global bus. The subscription
// is attributed to this scope and dropped when the plugin unloads.
func (s *Scope) OnGlobal(event string, handler EventHandler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return func() {}
	}
	unsub := s.global.On(event, handler)
	s.globalUnsubs = append(s.globalUnsubs, unsub)
	return unsub
}

// EmitGlobal delivers an event to every global subscriber across all
// scopes, in registration order.
func (s *Scope) EmitGlobal(event string, payload any) {
	if s.isClosed() {
		return
	}
	s.global.Emit(event, payload)
}

// teardown destroys the scope: state cleared, scoped handlers dropped,
// global subscriptions removed, namespaced registry entries unregistered.
// A torn-down scope is inert; further use fails with ErrScopeClosed.
func (s *Scope) teardown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	components := s.components
	globalUnsubs := s.globalUnsubs
	s.components = nil
	s.globalUnsubs = nil
	s.mu.Unlock()

	for _, typ := range components {
		s.registry.Unregister(s.name, typ)
	}
	for _, unsub := range globalUnsubs {
		unsub()
	}
	s.bus.Clear()
	s.store.Clear()
}

func (s *Scope) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
