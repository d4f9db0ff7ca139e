package luahost

import (
	"errors"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// ErrRuntimeClosed is returned when using a runtime after Close.
var ErrRuntimeClosed = errors.New("lua runtime is closed")

// Runtime wraps a gopher-lua state restricted to safe operations.
//
// gopher-lua's LState is not goroutine-safe. The mutex here protects
// against concurrent access from Go code; Lua execution itself is
// single-threaded, which matches the runtime's cooperative execution model.
type Runtime struct {
	L *lua.LState

	mu     sync.Mutex
	closed bool
}

// NewRuntime creates a restricted Lua state. Only the base, table, string,
// and math libraries are opened; io, os, debug, and package are withheld,
// and the code-loading globals are removed.
func NewRuntime() *Runtime {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// dofile and friends would let a script escape the plugin directory.
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}

	return &Runtime{L: L}
}

// DoFile executes a Lua file. The call blocks until completion or error.
func (r *Runtime) DoFile(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRuntimeClosed
	}
	return r.withRecovery(func() error {
		return r.L.DoFile(path)
	})
}

// DoString executes a Lua string.
func (r *Runtime) DoString(code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRuntimeClosed
	}
	return r.withRecovery(func() error {
		return r.L.DoString(code)
	})
}

// Call calls a global Lua function with the given arguments and returns its
// results. Returns an empty slice when the function returns nothing.
func (r *Runtime) Call(fn string, args ...lua.LValue) ([]lua.LValue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRuntimeClosed
	}

	fnVal := r.L.GetGlobal(fn)
	if fnVal.Type() != lua.LTFunction {
		return nil, fmt.Errorf("%q is not a function (got %s)", fn, fnVal.Type())
	}

	stackTop := r.L.GetTop()
	r.L.Push(fnVal)
	for _, arg := range args {
		r.L.Push(arg)
	}

	var callErr error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				callErr = fmt.Errorf("lua panic: %v", rec)
			}
		}()
		callErr = r.L.PCall(len(args), lua.MultRet, nil)
	}()
	if callErr != nil {
		return nil, callErr
	}

	nRet := r.L.GetTop() - stackTop
	if nRet <= 0 {
		return []lua.LValue{}, nil
	}
	results := make([]lua.LValue, nRet)
	for i := 0; i < nRet; i++ {
		results[i] = r.L.Get(stackTop + i + 1)
	}
	r.L.Pop(nRet)

	return results, nil
}

// HasFunction reports whether the script defines the named global function.
func (r *Runtime) HasFunction(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	return r.L.GetGlobal(name).Type() == lua.LTFunction
}

// RegisterModule installs a table of Go functions as a global module.
func (r *Runtime) RegisterModule(name string, funcs map[string]lua.LGFunction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	mod := r.L.SetFuncs(r.L.NewTable(), funcs)
	r.L.SetGlobal(name, mod)
}

// LuaState returns the underlying gopher-lua state. Direct access bypasses
// the mutex; callers must not use it concurrently with Runtime methods.
func (r *Runtime) LuaState() *lua.LState {
	return r.L
}

// IsClosed reports whether Close has been called.
func (r *Runtime) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close releases the Lua state. Further calls return ErrRuntimeClosed.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.L.Close()
	r.closed = true
}

// withRecovery executes fn converting panics into errors. Caller holds mu.
func (r *Runtime) withRecovery(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("lua panic: %v", rec)
		}
	}()
	return fn()
}
