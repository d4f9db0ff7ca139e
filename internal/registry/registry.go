// Package registry provides the shared component registry for the
// Schemaflow interpreter.
//
// Components are stored under an optional namespace. A namespaced
// registration is keyed as "<namespace>:<type>" so two plugins can register
// the same type name without collision. Lookups probe the namespaced key
// first and fall back to the bare key, which lets a plugin shadow a
// globally registered component (e.g., a base "button") while still
// reaching it when no shadow exists.
//
// A Registry is an injectable instance, not a package-level singleton.
// Independent registries (one per test, one per embedded interpreter) never
// interfere with each other.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Handler renders a component node. It receives the node's properties and
// the already-rendered children, in document order.
type Handler func(props map[string]any, children []string) (string, error)

// Registry errors.
var (
	// ErrNilHandler is returned when registering a nil handler.
	ErrNilHandler = errors.New("component handler is nil")

	// ErrMissingType is returned when registering an empty component type.
	ErrMissingType = errors.New("component type is required")
)

type entry struct {
	handler Handler
	meta    map[string]any
}

// Registry is a namespaced component type -> handler map.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry

	warn func(msg string)
}

// Option configures a Registry.
type Option func(*Registry)

// WithWarnFunc sets the hook invoked for deprecation-style warnings, such
// as registering a component without a namespace. The registry never logs
// on its own.
func WithWarnFunc(fn func(msg string)) Option {
	return func(r *Registry) {
		r.warn = fn
	}
}

// New creates an empty component registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]entry),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// key returns the storage key for a type under a namespace.
// An empty namespace yields the bare type.
func key(namespace, typ string) string {
	if namespace == "" {
		return typ
	}
	return namespace + ":" + typ
}

// Register stores a handler for a component type under the given namespace.
// Registering with an empty namespace is accepted but flagged through the
// warning hook, since a bare registration cannot coexist safely with
// same-named registrations from other sources. Re-registering a key
// replaces the previous entry.
func (r *Registry) Register(namespace, typ string, handler Handler, meta map[string]any) error {
	if typ == "" {
		return ErrMissingType
	}
	if handler == nil {
		return fmt.Errorf("%w: %s", ErrNilHandler, typ)
	}

	r.mu.Lock()
	r.entries[key(namespace, typ)] = entry{handler: handler, meta: meta}
	warn := r.warn
	r.mu.Unlock()

	if namespace == "" && warn != nil {
		warn(fmt.Sprintf("component %q registered without a namespace; namespaced registration is preferred", typ))
	}
	return nil
}

// Unregister removes a component type from the given namespace.
// Removing an absent key is a no-op.
func (r *Registry) Unregister(namespace, typ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key(namespace, typ))
}

// Get returns the handler for a type, probing the namespaced key first and
// falling back to the bare key.
func (r *Registry) Get(typ, namespace string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if namespace != "" {
		if e, ok := r.entries[key(namespace, typ)]; ok {
			return e.handler, true
		}
	}
	e, ok := r.entries[typ]
	if !ok {
		return nil, false
	}
	return e.handler, true
}

// Has reports whether a type resolves under the namespace or as a bare
// registration.
func (r *Registry) Has(typ, namespace string) bool {
	_, ok := r.Get(typ, namespace)
	return ok
}

// Config returns the metadata recorded for a type, with the same
// namespace-then-bare probe order as Get.
func (r *Registry) Config(typ, namespace string) (map[string]any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if namespace != "" {
		if e, ok := r.entries[key(namespace, typ)]; ok {
			return e.meta, true
		}
	}
	e, ok := r.entries[typ]
	if !ok {
		return nil, false
	}
	return e.meta, true
}

// List returns all registered keys in sorted order. Namespaced entries
// appear as "<namespace>:<type>".
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
