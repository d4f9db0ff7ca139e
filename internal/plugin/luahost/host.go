package luahost

import (
	"context"
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/schemaflow/schemaflow/internal/plugin"
	"github.com/schemaflow/schemaflow/internal/registry"
)

// ErrNilManifest is returned when constructing a host without a manifest.
var ErrNilManifest = errors.New("manifest is nil")

// Host adapts one Lua plugin into a plugin.Definition. The script runs
// when the lifecycle manager invokes the definition's Register; its
// optional setup() and teardown() globals become the OnLoad and OnUnload
// hooks, and the Lua state is closed when the plugin unloads.
type Host struct {
	manifest *Manifest

	// Live only between Register and OnUnload.
	rt     *Runtime
	bridge *Bridge
}

// NewHost creates a host for a validated manifest.
func NewHost(m *Manifest) (*Host, error) {
	if m == nil {
		return nil, ErrNilManifest
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &Host{manifest: m}, nil
}

// Manifest returns the plugin manifest.
func (h *Host) Manifest() *Manifest {
	return h.manifest
}

// Definition builds the plugin definition the lifecycle manager loads.
func (h *Host) Definition() *plugin.Definition {
	return &plugin.Definition{
		Name:         h.manifest.Name,
		Version:      h.manifest.Version,
		Dependencies: append([]string{}, h.manifest.Dependencies...),
		ScopeConfig: plugin.ScopeConfig{
			MaxStateSize: h.manifest.ScopeConfig.MaxStateSize,
		},
		Register: h.register,
		OnLoad:   h.onLoad,
		OnUnload: h.onUnload,
	}
}

// register creates the restricted runtime, installs the host module bound
// to the plugin's scope, and runs the main script.
func (h *Host) register(scope *plugin.Scope) error {
	rt := NewRuntime()
	h.rt = rt
	h.bridge = NewBridge(rt.LuaState())

	h.installHostModule(scope)

	if err := rt.DoFile(h.manifest.MainPath()); err != nil {
		rt.Close()
		h.rt = nil
		return fmt.Errorf("failed to run %s: %w", h.manifest.MainPath(), err)
	}
	return nil
}

// onLoad calls the script's optional setup() function.
func (h *Host) onLoad(ctx context.Context) error {
	if h.rt == nil || !h.rt.HasFunction("setup") {
		return nil
	}
	_, err := h.rt.Call("setup")
	return err
}

// onUnload calls the script's optional teardown() function, then closes
// the Lua state.
func (h *Host) onUnload(ctx context.Context) error {
	if h.rt == nil {
		return nil
	}

	var err error
	if h.rt.HasFunction("teardown") {
		_, err = h.rt.Call("teardown")
	}
	h.rt.Close()
	h.rt = nil
	return err
}

// installHostModule exposes the plugin scope to the script as a global
// "host" table.
func (h *Host) installHostModule(scope *plugin.Scope) {
	h.rt.RegisterModule("host", map[string]lua.LGFunction{
		"register_component": func(L *lua.LState) int {
			typ := L.CheckString(1)
			fn := L.CheckFunction(2)
			var meta map[string]any
			if L.GetTop() >= 3 {
				meta = h.bridge.ToGoMap(L.Get(3))
			}
			if err := scope.RegisterComponent(typ, h.wrapComponent(fn), meta); err != nil {
				L.RaiseError("%s", err.Error())
			}
			return 0
		},

		"get_state": func(L *lua.LState) int {
			v, ok := scope.State(L.CheckString(1))
			if !ok {
				L.Push(lua.LNil)
				return 1
			}
			L.Push(h.bridge.ToLua(v))
			return 1
		},

		"set_state": func(L *lua.LState) int {
			key := L.CheckString(1)
			if err := scope.SetState(key, h.bridge.ToGo(L.Get(2))); err != nil {
				L.RaiseError("%s", err.Error())
			}
			return 0
		},

		"use_state": func(L *lua.LState) int {
			key := L.CheckString(1)
			v, _, err := scope.UseState(key, h.bridge.ToGo(L.Get(2)))
			if err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}
			L.Push(h.bridge.ToLua(v))
			return 1
		},

		"on": func(L *lua.LState) int {
			event := L.CheckString(1)
			fn := L.CheckFunction(2)
			unsub := scope.On(event, h.wrapEventHandler(fn))
			L.Push(L.NewFunction(func(*lua.LState) int {
				unsub()
				return 0
			}))
			return 1
		},

		"emit": func(L *lua.LState) int {
			scope.Emit(L.CheckString(1), h.bridge.ToGo(L.Get(2)))
			return 0
		},

		"on_global": func(L *lua.LState) int {
			event := L.CheckString(1)
			fn := L.CheckFunction(2)
			unsub := scope.OnGlobal(event, h.wrapEventHandler(fn))
			L.Push(L.NewFunction(func(*lua.LState) int {
				unsub()
				return 0
			}))
			return 1
		},

		"emit_global": func(L *lua.LState) int {
			scope.EmitGlobal(L.CheckString(1), h.bridge.ToGo(L.Get(2)))
			return 0
		},

		"render": func(L *lua.LState) int {
			typ := L.CheckString(1)
			handler, ok := scope.Component(typ)
			if !ok {
				L.RaiseError("unknown component %q", typ)
				return 0
			}
			props := h.bridge.ToGoMap(L.Get(2))
			children := h.bridge.ToGoStrings(L.Get(3))
			out, err := handler(props, children)
			if err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}
			L.Push(lua.LString(out))
			return 1
		},
	})
}

// wrapComponent adapts a Lua function into a registry handler. The first
// return value becomes the rendered output; non-string results are
// stringified.
func (h *Host) wrapComponent(fn *lua.LFunction) registry.Handler {
	return func(props map[string]any, children []string) (string, error) {
		if h.rt == nil || h.rt.IsClosed() {
			return "", ErrRuntimeClosed
		}
		results, err := h.bridge.CallFunc(fn, props, children)
		if err != nil {
			return "", fmt.Errorf("component handler failed: %w", err)
		}
		if len(results) == 0 || results[0] == nil {
			return "", nil
		}
		if s, ok := results[0].(string); ok {
			return s, nil
		}
		return fmt.Sprint(results[0]), nil
	}
}

// wrapEventHandler adapts a Lua function into an event handler. Script
// errors are contained, matching the bus's per-handler guarantee.
func (h *Host) wrapEventHandler(fn *lua.LFunction) plugin.EventHandler {
	return func(payload any) {
		if h.rt == nil || h.rt.IsClosed() {
			return
		}
		_, _ = h.bridge.CallFunc(fn, payload)
	}
}
