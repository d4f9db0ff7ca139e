// Package plugin provides the plugin runtime for Schemaflow.
//
// Plugins are installable feature modules that register capabilities into a
// shared host application: renderable component types, per-plugin state, and
// event channels. The runtime guarantees isolation between plugins,
// deterministic load/unload ordering under a dependency graph, and safe
// cross-plugin signaling through one shared global event channel.
//
// # Quick Start
//
//	reg := registry.New()
//	mgr := plugin.NewManager(reg)
//
//	def := &plugin.Definition{
//	    Name:    "charts",
//	    Version: "1.0.0",
//	    Register: func(s *plugin.Scope) error {
//	        return s.RegisterComponent("grid", renderGrid, nil)
//	    },
//	}
//
//	if err := mgr.Load(context.Background(), def); err != nil {
//	    // handle
//	}
//	defer mgr.Unload(context.Background(), "charts")
//
// # Scopes
//
// Each loaded plugin owns a Scope, the only surface its Register function
// touches. The scope composes:
//
//   - a state store (Get/Set/Use) with an optional byte ceiling
//   - a private event bus (On/Emit) plus access to the shared global bus
//     (OnGlobal/EmitGlobal)
//   - namespaced component registration, qualified as "<plugin>:<type>"
//
// State written through one plugin's scope is never visible through
// another's, and events emitted on a scoped bus are delivered only to
// handlers subscribed on that same scope.
//
// # Lifecycle
//
// Plugins move through these states:
//
//	Unloaded -> Load() -> Loaded
//	Loaded -> Unload() -> Unloaded
//
// Load verifies every declared dependency is already loaded, runs the
// plugin's Register function against a fresh scope, then awaits OnLoad.
// Only after that does IsLoaded report true. Loading a name that is already
// loaded is a no-op. Unload refuses while another loaded plugin declares
// the target as a dependency, awaits OnUnload, then tears the scope down:
// state cleared, event subscriptions dropped, namespaced registry entries
// removed.
//
// # Failure semantics
//
// Dependency-missing, not-loaded, dependents-exist, and state-size failures
// are synchronous errors of the requested operation only; they leave the
// runtime's state unchanged and are never retried. The one deliberately
// contained failure is an event handler panic, which is recovered
// per-handler so a misbehaving plugin cannot break another plugin's
// delivery.
//
// The runtime performs no logging. Hosts that want to observe lifecycle
// transitions subscribe with Manager.Subscribe.
package plugin
