package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Modules.SourceExt != ".lua" {
		t.Errorf("Expected source ext .lua, got %s", cfg.Modules.SourceExt)
	}
	if cfg.Modules.MockDirName != "__mocks__" {
		t.Errorf("Expected mock dir __mocks__, got %s", cfg.Modules.MockDirName)
	}
	if cfg.Inspector.Enabled {
		t.Error("Inspector should be disabled by default")
	}
}

func TestLoadFlags(t *testing.T) {
	cfg, rest, err := Load([]string{"-roots", "a,b", "-vv", "entry"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(cfg.Modules.Roots, []string{"a", "b"}) {
		t.Errorf("Expected roots [a b], got %v", cfg.Modules.Roots)
	}
	if cfg.Verbosity() != 2 {
		t.Errorf("Expected verbosity 2 from -vv, got %d", cfg.Verbosity())
	}
	if len(rest) != 1 || rest[0] != "entry" {
		t.Errorf("Expected remaining args [entry], got %v", rest)
	}
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "selune.toml")
	content := `[modules]
roots = ["/srv/mods"]
source_ext = ".lua"

[inspector]
enabled = true
addr = "127.0.0.1:9999"

[logging]
verbosity = 3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, _, err := Load([]string{"-config", path})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(cfg.Modules.Roots, []string{"/srv/mods"}) {
		t.Errorf("Expected roots from TOML, got %v", cfg.Modules.Roots)
	}
	if !cfg.Inspector.Enabled || cfg.Inspector.Addr != "127.0.0.1:9999" {
		t.Errorf("Inspector config not applied: %+v", cfg.Inspector)
	}
	if cfg.Verbosity() != 3 {
		t.Errorf("Expected verbosity 3, got %d", cfg.Verbosity())
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("SELUNE_ROOTS", "/env/root")
	t.Setenv("SELUNE_VERBOSITY", "1")

	cfg, _, err := Load([]string{"-roots", "/flag/root"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(cfg.Modules.Roots, []string{"/flag/root"}) {
		t.Errorf("Flags must override env, got %v", cfg.Modules.Roots)
	}
	// Env still applies where no flag was given.
	if cfg.Verbosity() != 1 {
		t.Errorf("Expected verbosity 1 from env, got %d", cfg.Verbosity())
	}
}

func TestExpandVerbosityFlags(t *testing.T) {
	got := expandVerbosityFlags([]string{"-vvv", "-roots", "x", "-v"})
	want := []string{"-v", "-v", "-v", "-roots", "x", "-v"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}
