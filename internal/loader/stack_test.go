package loader

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func TestTopLevelThrowNormalized(t *testing.T) {
	root := t.TempDir()
	modPath := filepath.Join(root, "boom.lua")
	writeFile(t, modPath, `local greeting = "hi"
error("boom at top")
`)

	ldr, _ := newTestLoader(t, root)

	_, err := ldr.RequireModule("", modPath)
	if err == nil {
		t.Fatal("Expected evaluation error")
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("Expected EvaluationError, got %T", err)
	}

	if !strings.HasPrefix(evalErr.Stack, "Error: boom at top\n    at ") {
		t.Errorf("Unexpected trace head:\n%s", evalErr.Stack)
	}
	// The frame reports the original absolute path and line of the throw.
	if !strings.Contains(evalErr.Stack, modPath+":2") {
		t.Errorf("Trace should name %s:2:\n%s", modPath, evalErr.Stack)
	}
	// Runtime-internal frames are suppressed.
	if strings.Contains(evalErr.Stack, "[G]") {
		t.Errorf("Trace leaked runtime internals:\n%s", evalErr.Stack)
	}
	if evalErr.Unwrap() == nil {
		t.Error("EvaluationError should wrap the raw VM error")
	}
}

func TestFunctionThrowNormalized(t *testing.T) {
	root := t.TempDir()
	modPath := filepath.Join(root, "deferred.lua")
	writeFile(t, modPath, `function detonate()
  error("pow")
end
exports.run = function()
  detonate()
end
`)

	ldr, env := newTestLoader(t, root)

	val, err := ldr.RequireModule("", modPath)
	if err != nil {
		t.Fatalf("RequireModule failed: %v", err)
	}

	run, ok := env.State.GetField(val, "run").(*lua.LFunction)
	if !ok {
		t.Fatal("Expected exports.run to be a function")
	}
	_, callErr := env.Call(run)
	if callErr == nil {
		t.Fatal("Expected the deferred call to throw")
	}

	evalErr := NormalizeError(callErr, modPath)
	if !strings.HasPrefix(evalErr.Stack, "Error: pow\n") {
		t.Errorf("Unexpected trace head:\n%s", evalErr.Stack)
	}
	// The first internal frame names the throwing function and its
	// originating file and line.
	if !strings.Contains(evalErr.Stack, fmt.Sprintf("detonate (%s:2)", modPath)) {
		t.Errorf("Trace should name detonate at %s:2:\n%s", modPath, evalErr.Stack)
	}
	if strings.Contains(evalErr.Stack, "[G]") {
		t.Errorf("Trace leaked runtime internals:\n%s", evalErr.Stack)
	}
}

func TestNestedRequireFailureSurfacesOnce(t *testing.T) {
	root := t.TempDir()
	outer := filepath.Join(root, "outer.lua")
	writeFile(t, outer, `require("./inner.lua")
`)
	writeFile(t, filepath.Join(root, "inner.lua"), `error("inner fault")
`)

	ldr, _ := newTestLoader(t, root)

	_, err := ldr.RequireModule("", outer)
	if err == nil {
		t.Fatal("Expected evaluation error")
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("Expected a single normalized EvaluationError, got %T", err)
	}
	if !strings.Contains(evalErr.Stack, "inner fault") {
		t.Errorf("Inner message lost:\n%s", evalErr.Stack)
	}
	if strings.Count(evalErr.Stack, "Error: ") != 1 {
		t.Errorf("Normalization must be applied exactly once:\n%s", evalErr.Stack)
	}
}

func TestNormalizeNonVMError(t *testing.T) {
	plain := errors.New("disk on fire")
	evalErr := NormalizeError(plain, "/some/mod.lua")
	if evalErr.Stack != "Error: disk on fire\n    at /some/mod.lua" {
		t.Errorf("Unexpected trace: %q", evalErr.Stack)
	}
}
