// Package loader implements module resolution, loading, and mock
// substitution on top of a per-instance Lua execution environment.
//
// A Loader behaves like the VM's native require: same path semantics, same
// caching, same error messages, same stack traces. On top of that it resolves
// registry names declared inside modules (via the shared resource map) and
// substitutes manual mocks for modules that do not otherwise exist.
//
// One Loader is created per test or run, with its own execution environment
// and its own module cache. Only the immutable resource map is shared across
// instances.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"

	"github.com/selune/selune/internal/config"
	"github.com/selune/selune/internal/luaenv"
	"github.com/selune/selune/internal/resmap"
)

// Loader orchestrates resolution, mock substitution, caching, sandboxed
// evaluation, and parent/child linkage. Not safe for concurrent use; the
// only reentrancy is strictly nested require-during-evaluate.
type Loader struct {
	ID     string
	config *config.Config
	env    *luaenv.Env
	rmap   *resmap.ResourceMap
	reg    *registry
	events func(Event)
	depth  int // evaluation nesting, for one-shot stack normalization
}

// New creates a loader. The resource map must already be built; it is taken
// by reference and never mutated.
func New(cfg *config.Config, env *luaenv.Env, rmap *resmap.ResourceMap) *Loader {
	return &Loader{
		ID:     uuid.NewString(),
		config: cfg,
		env:    env,
		rmap:   rmap,
		reg:    newRegistry(),
	}
}

// SetEventSink registers a callback receiving load events. A nil sink (the
// default) disables event emission.
func (l *Loader) SetEventSink(fn func(Event)) {
	l.events = fn
}

// MarkDoNotMock records that requests for name issued by callerID must
// always load the real module, even when a manual mock is registered.
func (l *Loader) MarkDoNotMock(callerID, name string) {
	l.reg.markDoNotMock(callerID, name)
}

// Overrides returns the names callerID has marked do-not-mock, sorted.
// Intended for privileged callers (test and debug use).
func (l *Loader) Overrides(callerID string) []string {
	return l.reg.overridesFor(callerID)
}

// RequireModule resolves and loads a module on behalf of callerID. The
// caller identity is the absolute path of the requesting module, or "" for
// the synthetic root. Two requires that resolve to the same identity within
// one loader return the reference-identical export value.
func (l *Loader) RequireModule(callerID, request string) (lua.LValue, error) {
	res, err := l.resolve(callerID, request)
	if err != nil {
		l.emit(Event{Type: EventRequireFailed, Name: request, Caller: callerID, Detail: err.Error()})
		return lua.LNil, err
	}

	// Host built-ins defer to the VM's own module system; its cache is
	// authoritative and this loader never caches them.
	if res.kind == kindBuiltin {
		val, _ := l.env.Builtin(res.resolvedID)
		return val, nil
	}

	// Cache hit returns the identical export value unconditionally, JSON
	// included. A record mid-evaluation returns its current exports, which
	// breaks require cycles the way the native system does.
	if rec, ok := l.reg.get(res.resolvedID); ok {
		return l.recordExports(rec), nil
	}

	if res.kind == kindJSON {
		return l.loadJSON(res.resolvedID)
	}
	return l.loadModule(callerID, res)
}

// loadJSON parses a JSON file and caches the parsed value so repeated
// requires return the identical object, not a fresh parse.
func (l *Loader) loadJSON(path string) (lua.LValue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return lua.LNil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	val, err := luaenv.JSONToLua(l.env.State, data)
	if err != nil {
		return lua.LNil, fmt.Errorf("%s: %w", path, err)
	}
	l.reg.insert(&moduleRecord{resolvedID: path, kind: kindJSON, exports: val})
	l.config.Log(1, "loader %s: loaded json %s", l.ID, path)
	return val, nil
}

// loadModule evaluates a real module or manual mock in the execution
// environment with CommonJS-style bindings.
func (l *Loader) loadModule(callerID string, res resolution) (lua.LValue, error) {
	path := res.resolvedID
	source, err := os.ReadFile(path)
	if err != nil {
		return lua.LNil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	L := l.env.State
	module, exports := l.newModuleTable(callerID, path)

	// Insert before evaluating: a cyclic require must observe the
	// partially-populated exports instead of re-entering evaluation.
	rec := &moduleRecord{resolvedID: path, kind: res.kind, module: module}
	l.reg.insert(rec)

	bindings := luaenv.Bindings{
		Module:   module,
		Exports:  exports,
		Require:  l.boundRequire(path),
		Filename: path,
		Dirname:  filepath.Dir(path),
	}

	l.depth++
	evalErr := l.env.Eval(string(source), path, bindings)
	l.depth--

	if evalErr != nil {
		// Failures are never cached; a later require re-attempts.
		l.reg.remove(path)
		l.emit(Event{Type: EventRequireFailed, Name: path, Caller: callerID, Detail: evalErr.Error()})
		if l.depth == 0 {
			// Outermost evaluation boundary: normalize exactly once.
			return lua.LNil, NormalizeError(evalErr, path)
		}
		return lua.LNil, evalErr
	}

	final := L.GetField(module, "exports")
	rec.exports = final

	evType := EventModuleLoaded
	if res.kind == kindMock {
		evType = EventMockSubstituted
		l.config.Log(1, "loader %s: substituted mock %s", l.ID, path)
	} else {
		l.config.Log(1, "loader %s: loaded %s", l.ID, path)
	}
	if l.events != nil {
		l.emit(Event{Type: evType, Name: filepath.Base(path), Path: path, Caller: callerID, Exports: luaenv.LuaToGo(final)})
	}
	return final, nil
}

// newModuleTable builds the module record handed to an evaluated body:
// id, a fresh exports table, and parent linkage to the requesting module.
func (l *Loader) newModuleTable(callerID, path string) (*lua.LTable, lua.LValue) {
	L := l.env.State

	module := L.NewTable()
	exports := L.NewTable()
	L.SetField(module, "id", lua.LString(path))
	L.SetField(module, "exports", exports)
	L.SetField(module, "filename", lua.LString(path))

	parent := L.NewTable()
	L.SetField(parent, "id", lua.LString(callerID))
	if rec, ok := l.reg.get(callerID); ok {
		L.SetField(parent, "exports", l.recordExports(rec))
	} else {
		L.SetField(parent, "exports", L.NewTable())
	}
	L.SetField(module, "parent", parent)

	return module, exports
}

// boundRequire returns the require function injected into a module body,
// bound to this loader and the module's own identity.
func (l *Loader) boundRequire(selfID string) *lua.LFunction {
	L := l.env.State
	return L.NewFunction(func(L *lua.LState) int {
		request := L.CheckString(1)
		val, err := l.RequireModule(selfID, request)
		if err != nil {
			// Re-raise only the message; the outermost boundary owns
			// trace normalization.
			msg := err.Error()
			var apiErr *lua.ApiError
			if errors.As(err, &apiErr) {
				msg = apiErr.Object.String()
			}
			L.RaiseError("%s", msg)
			return 0
		}
		L.Push(val)
		return 1
	})
}

// recordExports returns a record's current export value. For records with a
// module table the live module.exports field is authoritative, so cyclic
// requires see reassignments made before the cycle re-entered.
func (l *Loader) recordExports(rec *moduleRecord) lua.LValue {
	if rec.module != nil {
		return l.env.State.GetField(rec.module, "exports")
	}
	return rec.exports
}

func (l *Loader) emit(ev Event) {
	if l.events != nil {
		ev.Loader = l.ID
		l.events(ev)
	}
}
