package plugin

// State represents the lifecycle state of a plugin.
type State int

// Plugin states. Only StateLoaded is a stable, externally observable state;
// StateLoading and StateUnloading are transient and not re-entrant.
const (
	// StateUnloaded - Plugin is not loaded.
	StateUnloaded State = iota

	// StateLoading - Plugin registration is in progress.
	StateLoading

	// StateLoaded - Plugin is loaded and its scope is live.
	StateLoaded

	// StateUnloading - Plugin teardown is in progress.
	StateUnloading
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateUnloading:
		return "unloading"
	default:
		return "unknown"
	}
}
