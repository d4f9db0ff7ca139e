package plugin

import (
	"context"

	"github.com/schemaflow/schemaflow/internal/registry"
)

// RegisterFunc is a plugin's registration function. It is invoked exactly
// once per successful load with the plugin's private scope.
type RegisterFunc func(scope *Scope) error

// DirectRegisterFunc is the legacy registration form: the function receives
// the shared component registry directly and no scope is constructed.
// Selected with the WithDirectRegistration load option.
type DirectRegisterFunc func(reg *registry.Registry) error

// HookFunc is an optional lifecycle callback. OnLoad runs after
// registration completes; OnUnload runs before scope teardown.
type HookFunc func(ctx context.Context) error

// ScopeConfig configures the scope constructed for a plugin.
type ScopeConfig struct {
	// MaxStateSize is the byte ceiling for the plugin's state store,
	// measured against the store's total serialized size after each write.
	// Zero means unbounded.
	MaxStateSize int
}

// Definition is the immutable descriptor a caller submits to load a plugin.
type Definition struct {
	// Name uniquely identifies the plugin and doubles as the namespace for
	// every registration made through its scope.
	Name string

	// Version is informational only; no version resolution is performed.
	Version string

	// Dependencies lists plugin names that must already be loaded before
	// this plugin's registration function may run.
	Dependencies []string

	// Register is invoked with the plugin's scope on load.
	Register RegisterFunc

	// RegisterDirect is the legacy scope-less registration function, used
	// only when loading with WithDirectRegistration.
	RegisterDirect DirectRegisterFunc

	// OnLoad, if set, is awaited after registration completes and before
	// the plugin is recorded as loaded.
	OnLoad HookFunc

	// OnUnload, if set, is awaited before the plugin's scope is torn down.
	OnUnload HookFunc

	// ScopeConfig configures the plugin's scope.
	ScopeConfig ScopeConfig
}

// validate checks the definition for the selected load path.
func (d *Definition) validate(direct bool) error {
	if d == nil {
		return ErrNilDefinition
	}
	if d.Name == "" {
		return ErrMissingName
	}
	if direct {
		if d.RegisterDirect == nil {
			return ErrMissingRegister
		}
		return nil
	}
	if d.Register == nil {
		return ErrMissingRegister
	}
	return nil
}
