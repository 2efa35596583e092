// Package main is the entry point for the selune runtime.
// This is a thin wrapper around the cli package.
package main

import (
	"os"

	"github.com/selune/selune/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
