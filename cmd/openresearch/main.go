// Command openresearch runs the research orchestration engine.
//
// Subcommands:
//
//	serve  run the HTTP API (and MCP endpoint) until interrupted
//	run    drive one research task to completion in the terminal
//
// Configuration is read from --config, OPENRESEARCH_CONFIG, ./config.yaml or
// /etc/openresearch/config.yaml, then overridden by OPENRESEARCH_* variables.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
