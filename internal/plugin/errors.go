package plugin

import "errors"

// Plugin runtime errors.
var (
	// ErrNilDefinition is returned when a nil definition is provided.
	ErrNilDefinition = errors.New("plugin definition is nil")

	// ErrMissingName is returned when a definition has no name.
	ErrMissingName = errors.New("plugin name is required")

	// ErrMissingRegister is returned when a definition has no registration
	// function for the selected load path.
	ErrMissingRegister = errors.New("plugin has no registration function")

	// ErrNotLoaded is returned when an operation targets a plugin that is
	// not loaded.
	ErrNotLoaded = errors.New("plugin is not loaded")

	// ErrDependencyNotFound is returned when a required dependency is not
	// yet loaded.
	ErrDependencyNotFound = errors.New("plugin dependency not loaded")

	// ErrDependentsExist is returned when unloading a plugin that another
	// loaded plugin still depends on.
	ErrDependentsExist = errors.New("plugin has loaded dependents")

	// ErrBusy is returned when a load or unload targets a plugin whose
	// transition is still in progress.
	ErrBusy = errors.New("plugin load or unload in progress")

	// ErrStateSizeExceeded is returned by a scope's state store when a
	// write would push the store past its size ceiling.
	ErrStateSizeExceeded = errors.New("state size exceeded")

	// ErrScopeClosed is returned when using a scope after its plugin was
	// unloaded.
	ErrScopeClosed = errors.New("plugin scope is closed")
)
