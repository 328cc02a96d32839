// cmd/layoutweave/main.go
//
// Entry point for the layoutweave CLI. Each subcommand loads the add-on
// manifests of a project, installs the requested modules in load order and
// reports which template fragment wins each document slot.

package main

import (
	"fmt"
	"os"
	"strings"
)

const usage = `Usage: layoutweave <command> [flags]

Commands:
  init       create .layoutweave/ with a default config
  resolve    install modules and print the resolved slot mapping
  validate   parse and validate every manifest
  order      print the load order for the modules to install
  inspect    browse the resolved mapping in a terminal UI
  watch      re-resolve whenever manifests change
  history    show recent resolution history

Run "layoutweave <command> --help" for command flags.
`

type command func(args []string) error

var commands = map[string]command{
	"init":     runInit,
	"resolve":  runResolve,
	"validate": runValidate,
	"order":    runOrder,
	"inspect":  runInspect,
	"watch":    runWatch,
	"history":  runHistory,
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	name := strings.TrimSpace(os.Args[1])
	if name == "help" || name == "-h" || name == "--help" {
		fmt.Print(usage)
		return
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", name, usage)
		os.Exit(2)
	}
	if err := cmd(os.Args[2:]); err != nil {
		die("%v", err)
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
