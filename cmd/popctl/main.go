package main

import (
	"fmt"
	"os"
)

const version = "popctl 0.1.0"

type command struct {
	name  string
	usage string
	run   func(args []string) error
}

var commands = []command{
	{"init", "Initialize a local profile (writes config.toml)", initCommand},
	{"ping", "Call the daemon ping endpoint via IPC", pingCommand},
	{"list", "List every stored popup", listCommand},
	{"get", "Fetch one popup by --id", getCommand},
	{"create", "Create a popup from a JSON payload", createCommand},
	{"update", "Replace a popup from a JSON payload carrying its id", updateCommand},
	{"delete", "Delete a popup by --id", deleteCommand},
	{"snapshot", "Fetch the page snapshot payload", snapshotCommand},
	{"eligible", "Evaluate which popups a page view should open", eligibleCommand},
	{"diag", "Print profile configuration paths", diagCommand},
	{"remote", "Manage Git remote configuration (set/show)", remoteCommand},
	{"vcs", "Trigger VCS push, pull or status via the daemon", vcsCommand},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	name := os.Args[1]
	if name == "version" {
		fmt.Println(version)
		return
	}
	for _, cmd := range commands {
		if cmd.name != name {
			continue
		}
		if err := cmd.run(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "%s error: %v\n", name, err)
			os.Exit(1)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", name)
	usage()
	os.Exit(1)
}

func usage() {
	fmt.Println("Usage: popctl <command> [options]")
	fmt.Println("Commands:")
	for _, cmd := range commands {
		fmt.Printf("  %-9s %s\n", cmd.name, cmd.usage)
	}
	fmt.Printf("  %-9s %s\n", "version", "Print CLI version")
}
