// Package luaenv provides the sandboxed execution environment that evaluates
// module source text. Each Env owns one Lua VM state with a fresh global
// scope; one Env is created per loader instance and never shared.
package luaenv

import (
	"strings"

	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"

	"github.com/selune/selune/internal/config"
)

// builtins names the modules supplied by the Lua VM itself. Requests for
// these are deferred to the VM's own module system, never intercepted.
var builtins = map[string]bool{
	"table":     true,
	"string":    true,
	"math":      true,
	"os":        true,
	"coroutine": true,
}

// IsBuiltin reports whether name is a host built-in module.
func IsBuiltin(name string) bool {
	return builtins[name]
}

// Bindings are the values injected into a module body during evaluation.
type Bindings struct {
	Module   *lua.LTable
	Exports  lua.LValue
	Require  *lua.LFunction
	Filename string
	Dirname  string
}

// Env is a per-loader-instance Lua execution environment.
type Env struct {
	State  *lua.LState
	ID     string
	config *config.Config
}

// New creates an environment with a fresh Lua state and the standard
// libraries opened.
func New(cfg *config.Config) *Env {
	L := lua.NewState()

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	lua.OpenOs(L)
	lua.OpenCoroutine(L)

	e := &Env{
		State:  L,
		ID:     uuid.NewString(),
		config: cfg,
	}
	cfg.Log(3, "luaenv: created environment %s", e.ID)
	return e
}

// Close releases the underlying Lua state.
func (e *Env) Close() {
	e.State.Close()
	e.config.Log(3, "luaenv: closed environment %s", e.ID)
}

// Builtin resolves a host built-in module through the VM's own globals.
// The VM's cache is authoritative; results are returned as-is.
func (e *Env) Builtin(name string) (lua.LValue, bool) {
	if !builtins[name] {
		return lua.LNil, false
	}
	return e.State.GetGlobal(name), true
}

// evalPrelude receives the injected bindings as chunk varargs. It shares the
// first source line so reported line numbers match the file exactly.
const evalPrelude = "local module, exports, require, __filename, __dirname = ...; "

// Eval compiles source as a chunk named with the module's absolute path and
// runs it with the given bindings. Chunk naming by absolute path is what lets
// VM tracebacks carry real file positions.
func (e *Env) Eval(source, path string, b Bindings) error {
	L := e.State

	fn, err := L.Load(strings.NewReader(evalPrelude+source), path)
	if err != nil {
		return err
	}

	L.Push(fn)
	L.Push(b.Module)
	L.Push(b.Exports)
	L.Push(b.Require)
	L.Push(lua.LString(b.Filename))
	L.Push(lua.LString(b.Dirname))
	return L.PCall(5, 0, nil)
}

// Call invokes a Lua function previously obtained from a loaded module.
// Used by embedders and tests to exercise module-defined functions.
func (e *Env) Call(fn *lua.LFunction, args ...lua.LValue) (lua.LValue, error) {
	L := e.State
	L.Push(fn)
	for _, arg := range args {
		L.Push(arg)
	}
	if err := L.PCall(len(args), 1, nil); err != nil {
		return lua.LNil, err
	}
	ret := L.Get(-1)
	L.Pop(1)
	return ret, nil
}
