// Package config handles configuration loading from CLI flags, environment variables, and TOML files.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration settings for the selune runtime.
type Config struct {
	Modules   ModulesConfig   `toml:"modules"`
	Inspector InspectorConfig `toml:"inspector"`
	Logging   LoggingConfig   `toml:"logging"`
}

// ModulesConfig holds module resolution settings.
type ModulesConfig struct {
	// Roots are the directories scanned for modules and manual mocks.
	Roots []string `toml:"roots"`
	// SourceExt is the source file extension tried during path resolution.
	SourceExt string `toml:"source_ext"`
	// MockDirName is the directory basename that marks manual-mock files.
	MockDirName string `toml:"mock_dir"`
}

// InspectorConfig holds debug inspector settings.
type InspectorConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Verbosity int `toml:"verbosity"` // 0=none, 1=loads, 2=resolution, 3=evaluation detail
}

// verbosityCounter implements flag.Value for counting -v flags.
type verbosityCounter int

func (v *verbosityCounter) String() string {
	return fmt.Sprintf("%d", *v)
}

func (v *verbosityCounter) Set(string) error {
	*v++
	return nil
}

func (v *verbosityCounter) IsBoolFlag() bool {
	return true
}

// expandVerbosityFlags preprocesses args to expand -vvv into -v -v -v.
// This allows both "-v -v -v" and "-vvv" styles to work.
func expandVerbosityFlags(args []string) []string {
	result := make([]string, 0, len(args))
	for _, arg := range args {
		if len(arg) > 2 && arg[0] == '-' && arg[1] != '-' && arg[1] == 'v' {
			allV := true
			for _, c := range arg[1:] {
				if c != 'v' {
					allV = false
					break
				}
			}
			if allV {
				for range arg[1:] {
					result = append(result, "-v")
				}
				continue
			}
		}
		result = append(result, arg)
	}
	return result
}

// DefaultConfig returns a Config with all default values.
func DefaultConfig() *Config {
	return &Config{
		Modules: ModulesConfig{
			Roots:       []string{"."},
			SourceExt:   ".lua",
			MockDirName: "__mocks__",
		},
		Inspector: InspectorConfig{
			Enabled: false,
			Addr:    "127.0.0.1:7320",
		},
		Logging: LoggingConfig{
			Verbosity: 0,
		},
	}
}

// Load loads configuration from CLI flags, environment variables, and TOML file.
// Priority: CLI flags > env vars > TOML file > defaults.
// Returns the config and the remaining non-flag arguments.
func Load(args []string) (*Config, []string, error) {
	cfg := DefaultConfig()

	args = expandVerbosityFlags(args)

	fs := flag.NewFlagSet("selune", flag.ContinueOnError)
	roots := fs.String("roots", "", "Comma-separated module root directories")
	sourceExt := fs.String("source-ext", "", "Source file extension (default .lua)")
	configPath := fs.String("config", "", "Path to TOML config file")

	inspector := fs.Bool("inspector", false, "Enable the debug inspector")
	inspectorAddr := fs.String("inspector-addr", "", "Inspector listen address")

	var verbosity verbosityCounter
	fs.Var(&verbosity, "v", "Verbosity level (use -v, -vv, or -vvv)")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	// Load TOML config if present
	path := "selune.toml"
	if *configPath != "" {
		path = *configPath
	}
	if err := cfg.loadTOML(path); err != nil && !os.IsNotExist(err) {
		return nil, nil, err
	}

	// Apply environment variables
	cfg.applyEnv()

	// Apply CLI flags (highest priority)
	if *roots != "" {
		cfg.Modules.Roots = strings.Split(*roots, ",")
	}
	if *sourceExt != "" {
		cfg.Modules.SourceExt = *sourceExt
	}
	if *inspector {
		cfg.Inspector.Enabled = true
	}
	if *inspectorAddr != "" {
		cfg.Inspector.Addr = *inspectorAddr
		cfg.Inspector.Enabled = true
	}
	if verbosity > 0 {
		cfg.Logging.Verbosity = int(verbosity)
	}

	return cfg, fs.Args(), nil
}

// loadTOML loads configuration from a TOML file.
func (c *Config) loadTOML(path string) error {
	_, err := toml.DecodeFile(path, c)
	return err
}

// applyEnv applies environment variable overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv("SELUNE_ROOTS"); v != "" {
		c.Modules.Roots = strings.Split(v, ",")
	}
	if v := os.Getenv("SELUNE_SOURCE_EXT"); v != "" {
		c.Modules.SourceExt = v
	}
	if v := os.Getenv("SELUNE_INSPECTOR"); v != "" {
		c.Inspector.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("SELUNE_INSPECTOR_ADDR"); v != "" {
		c.Inspector.Addr = v
	}
	if v := os.Getenv("SELUNE_VERBOSITY"); v != "" {
		if verbosity, err := strconv.Atoi(v); err == nil {
			c.Logging.Verbosity = verbosity
		}
	}
}

// Verbosity returns the configured verbosity level.
func (c *Config) Verbosity() int {
	return c.Logging.Verbosity
}

// Log writes a message to stderr if the configured verbosity is at least level.
func (c *Config) Log(level int, format string, args ...interface{}) {
	if c.Logging.Verbosity >= level {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
