package loader

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// VM errors carry their location as a "path:line: " message prefix; frames
// in the traceback block read "path:line: in <description>".
var (
	messageLocRe = regexp.MustCompile(`(?s)^(.+?):(\d+): (.*)$`)
	frameRe      = regexp.MustCompile(`^\s*(.+?):(\d+): in (.+)$`)
	namedFnRe    = regexp.MustCompile(`^function '(.+)'$`)
	anonFnRe     = regexp.MustCompile(`^function <.+>$`)
)

// NormalizeError rewrites an evaluation error's trace so each frame of
// loaded module code reports the original absolute file path and line, with
// the native formatting convention. Frames originating from the runtime's
// own internals are suppressed. Applied exactly once, at the outermost
// evaluation boundary.
func NormalizeError(err error, path string) *EvaluationError {
	msg, frames := normalizeStack(err, path)

	var b strings.Builder
	fmt.Fprintf(&b, "Error: %s", msg)
	for _, frame := range frames {
		b.WriteString("\n    ")
		b.WriteString(frame)
	}

	return &EvaluationError{Path: path, Stack: b.String(), Err: err}
}

// normalizeStack extracts the bare message and the user-facing frames from
// a VM error.
func normalizeStack(err error, path string) (string, []string) {
	var apiErr *lua.ApiError
	if !errors.As(err, &apiErr) {
		// Compile errors and plain Go errors have no Lua trace; attribute
		// them to the module being loaded.
		return err.Error(), []string{"at " + path}
	}

	msg := apiErr.Object.String()
	var topFrame string
	if m := messageLocRe.FindStringSubmatch(msg); m != nil && filepath.IsAbs(m[1]) {
		topFrame = fmt.Sprintf("at %s:%s", m[1], m[2])
		msg = m[3]
	}

	frames := tracebackFrames(apiErr.StackTrace)
	if len(frames) == 0 {
		if topFrame != "" {
			frames = []string{topFrame}
		} else {
			frames = []string{"at " + path}
		}
	}
	return msg, frames
}

// tracebackFrames converts a VM "stack traceback:" block into normalized
// frame lines. Frames without an absolute file position are runtime
// internals and are dropped.
func tracebackFrames(trace string) []string {
	var frames []string
	for _, line := range strings.Split(trace, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "stack traceback:" {
			continue
		}
		m := frameRe.FindStringSubmatch(line)
		if m == nil || !filepath.IsAbs(m[1]) {
			continue
		}
		loc := m[1] + ":" + m[2]
		desc := m[3]

		switch {
		case desc == "main chunk":
			frames = append(frames, "at "+loc)
		case anonFnRe.MatchString(desc):
			frames = append(frames, "at "+loc)
		default:
			if fn := namedFnRe.FindStringSubmatch(desc); fn != nil {
				frames = append(frames, fmt.Sprintf("at %s (%s)", fn[1], loc))
			} else {
				frames = append(frames, "at "+loc)
			}
		}
	}
	return frames
}
