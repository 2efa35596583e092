// Package cli provides the command-line interface for selune.
// It exports Run() and RunWithHooks() to allow extension by wrapper projects.
package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/selune/selune/internal/config"
	"github.com/selune/selune/internal/inspector"
	"github.com/selune/selune/internal/loader"
	"github.com/selune/selune/internal/luaenv"
	"github.com/selune/selune/internal/resmap"
)

// Version is the selune release version.
const Version = "0.3.0"

// Hooks allows extending the CLI with additional commands.
type Hooks struct {
	// BeforeDispatch is called before command dispatch.
	// Return (handled=true, exitCode) to skip normal dispatch.
	BeforeDispatch func(command string, args []string) (handled bool, exitCode int)

	// CustomHelp returns additional help text to append.
	CustomHelp func() string
}

// Run executes the CLI with the given arguments.
// Returns exit code (0 = success, non-zero = error).
func Run(args []string) int {
	return RunWithHooks(args, nil)
}

// RunWithHooks executes the CLI with extension hooks.
func RunWithHooks(args []string, hooks *Hooks) int {
	if len(args) < 1 {
		printUsage(hooks)
		return 1
	}

	command := args[0]
	cmdArgs := args[1:]

	if hooks != nil && hooks.BeforeDispatch != nil {
		if handled, code := hooks.BeforeDispatch(command, cmdArgs); handled {
			return code
		}
	}

	switch command {
	case "run":
		return runRun(cmdArgs)
	case "scan":
		return runScan(cmdArgs)
	case "version":
		fmt.Println("selune " + Version)
		return 0
	case "help", "-h", "--help":
		printUsage(hooks)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage(hooks)
		return 1
	}
}

func printUsage(hooks *Hooks) {
	fmt.Fprint(os.Stderr, `usage: selune <command> [flags]

commands:
  run <module>   load and execute a module (registry name or path)
  scan           build and print the resource map
  version        print the version
`)
	if hooks != nil && hooks.CustomHelp != nil {
		fmt.Fprint(os.Stderr, hooks.CustomHelp())
	}
}

// runRun builds the resource map, creates a fresh environment and loader,
// and requires the entry module from the synthetic root.
func runRun(args []string) int {
	cfg, rest, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if len(rest) < 1 {
		fmt.Fprintln(os.Stderr, "error: run requires a module name or path")
		return 1
	}
	entry := rest[0]

	rmap, err := resmap.Build(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	env := luaenv.New(cfg)
	defer env.Close()
	ldr := loader.New(cfg, env, rmap)

	if cfg.Inspector.Enabled {
		ins := inspector.New(cfg)
		if err := ins.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "error: inspector: %v\n", err)
			return 1
		}
		defer ins.Stop()
		ldr.SetEventSink(ins.Sink())
	}

	if _, err := ldr.RequireModule("", entry); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	return 0
}

// runScan prints the resource map for the configured roots.
func runScan(args []string) int {
	cfg, _, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	rmap, err := resmap.Build(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	names := rmap.Names()
	sort.Strings(names)
	for _, name := range names {
		path, _ := rmap.ModulePath(name)
		fmt.Printf("module  %s  %s\n", name, path)
	}

	mocks := rmap.MockNames()
	sort.Strings(mocks)
	for _, name := range mocks {
		path, _ := rmap.MockPath(name)
		fmt.Printf("mock    %s  %s\n", name, path)
	}
	return 0
}
