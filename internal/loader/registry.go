package loader

import (
	"sort"

	lua "github.com/yuin/gopher-lua"
)

// moduleRecord is one resolved, loaded (or loading) module. A record is
// inserted before evaluation begins so cyclic requires observe the
// partially-populated exports; failed evaluations remove it again.
type moduleRecord struct {
	resolvedID string
	kind       kind
	// module is the module table handed to the evaluated body. Nil for
	// JSON modules, which have no body.
	module *lua.LTable
	// exports is the cached export value. For records with a module table
	// the live module.exports field is authoritative until loading
	// completes.
	exports lua.LValue
}

// registry tracks one loader instance's loaded modules and per-caller
// override directives. It is private to its loader and never shared; the
// only reentrancy is strictly nested require-during-evaluate, so no locking
// is needed.
type registry struct {
	records   map[string]*moduleRecord
	overrides map[string]map[string]bool // callerID -> name -> do-not-mock
}

func newRegistry() *registry {
	return &registry{
		records:   make(map[string]*moduleRecord),
		overrides: make(map[string]map[string]bool),
	}
}

func (r *registry) get(resolvedID string) (*moduleRecord, bool) {
	rec, ok := r.records[resolvedID]
	return rec, ok
}

func (r *registry) insert(rec *moduleRecord) {
	r.records[rec.resolvedID] = rec
}

// remove drops a record. Called when evaluation fails so a later require of
// the same id re-attempts from scratch.
func (r *registry) remove(resolvedID string) {
	delete(r.records, resolvedID)
}

// markDoNotMock records that requests for name from callerID must always
// load the real module.
func (r *registry) markDoNotMock(callerID, name string) {
	m, ok := r.overrides[callerID]
	if !ok {
		m = make(map[string]bool)
		r.overrides[callerID] = m
	}
	m[name] = true
}

func (r *registry) isDoNotMock(callerID, name string) bool {
	return r.overrides[callerID][name]
}

// overridesFor returns the names marked do-not-mock by a caller, sorted.
func (r *registry) overridesFor(callerID string) []string {
	m := r.overrides[callerID]
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
