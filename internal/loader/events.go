package loader

// Event types emitted through the loader's event sink.
const (
	EventModuleLoaded    = "module-loaded"
	EventMockSubstituted = "mock-substituted"
	EventRequireFailed   = "require-failed"
)

// Event describes one load-time occurrence for debug consumers such as the
// inspector.
type Event struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Path   string `json:"path,omitempty"`
	Caller string `json:"caller,omitempty"`
	Detail string `json:"detail,omitempty"`
	Loader string `json:"loader"`
	// Exports is a plain-Go snapshot of the loaded module's export value,
	// populated only for successful loads.
	Exports interface{} `json:"exports,omitempty"`
}
