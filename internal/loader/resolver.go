package loader

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/selune/selune/internal/luaenv"
)

// kind classifies what a request resolved to. Decided once by the resolver
// and consumed by a single dispatch point in RequireModule.
type kind int

const (
	kindModule kind = iota
	kindJSON
	kindMock
	kindBuiltin
)

func (k kind) String() string {
	switch k {
	case kindModule:
		return "module"
	case kindJSON:
		return "json"
	case kindMock:
		return "mock"
	case kindBuiltin:
		return "builtin"
	}
	return "unknown"
}

// resolution is the transient result of resolving one request. It is
// consumed immediately by RequireModule, never cached independently.
type resolution struct {
	resolvedID string
	kind       kind
}

const jsonExt = ".json"

// resolve determines the absolute identity and kind of a request.
// Resolution order, first match wins: host built-in, relative/absolute path,
// registry name, manual-mock fallback.
func (l *Loader) resolve(callerID, request string) (resolution, error) {
	// 1. Host built-ins are deferred to the VM, never intercepted.
	if luaenv.IsBuiltin(request) {
		return resolution{resolvedID: request, kind: kindBuiltin}, nil
	}

	// 2. Relative and absolute paths resolve against the caller's directory.
	if isPathRequest(request) {
		return l.resolvePath(callerID, request)
	}

	// 3. Registry name.
	if path, ok := l.rmap.ModulePath(request); ok {
		return resolution{resolvedID: path, kind: kindModule}, nil
	}

	// Manual-mock fallback: used only when no real module exists under this
	// name, and only when the caller has not marked it do-not-mock. A
	// resolvable real module always wins; this narrow precedence is a legacy
	// affordance and must not be generalized.
	if path, ok := l.rmap.MockPath(request); ok && !l.reg.isDoNotMock(callerID, request) {
		return resolution{resolvedID: path, kind: kindMock}, nil
	}

	return resolution{}, &ModuleNotFoundError{Request: request, FromDir: callerDir(callerID)}
}

// resolvePath resolves a relative or absolute path request. Tried in order:
// exact path, path + source extension, path + JSON extension, directory
// index file.
func (l *Loader) resolvePath(callerID, request string) (resolution, error) {
	var base string
	if filepath.IsAbs(request) {
		base = filepath.Clean(request)
	} else {
		// A relative request with no caller is a contract violation,
		// surfaced as an ordinary resolution failure.
		if callerID == "" {
			return resolution{}, &ModuleNotFoundError{Request: request, FromDir: "."}
		}
		base = filepath.Join(filepath.Dir(callerID), request)
	}

	ext := l.config.Modules.SourceExt
	candidates := []string{
		base,
		base + ext,
		base + jsonExt,
		filepath.Join(base, "init"+ext),
	}
	for _, candidate := range candidates {
		if isFile(candidate) {
			k := kindModule
			if strings.HasSuffix(candidate, jsonExt) {
				k = kindJSON
			}
			l.config.Log(2, "loader %s: resolved %s -> %s (%s)", l.ID, request, candidate, k)
			return resolution{resolvedID: candidate, kind: k}, nil
		}
	}

	return resolution{}, &ModuleNotFoundError{Request: request, FromDir: callerDir(callerID)}
}

// isPathRequest reports whether a request is a relative or absolute path
// rather than a registry name.
func isPathRequest(request string) bool {
	return filepath.IsAbs(request) ||
		strings.HasPrefix(request, "./") ||
		strings.HasPrefix(request, "../")
}

// callerDir returns the directory used in error messages: the caller's
// directory, or "." for the synthetic root.
func callerDir(callerID string) string {
	if callerID == "" {
		return "."
	}
	return filepath.Dir(callerID)
}

// isFile reports whether path exists and is a regular file.
func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
