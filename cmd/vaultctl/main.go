// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// vaultctl is a command-line front end for the secrets vault: get, set,
// delete, list, and manage entries in a local, machine-bound credential
// store.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/secretsvault/internal/vault"
	"github.com/jeranaias/secretsvault/internal/vaultconfig"
)

var (
	version = "0.1.0"
	commit  = "unknown"
)

// command identifies the subcommand vaultctl was invoked with.
type command int

const (
	cmdHelp command = iota
	cmdVersion
	cmdInit
	cmdGet
	cmdSet
	cmdHas
	cmdDelete
	cmdKeys
	cmdSize
	cmdDestroy
	cmdRepl
	cmdBrowse
)

// args holds the parsed command line.
type args struct {
	cmd     command
	name    string
	value   string
	pattern string
	confirm bool
	json    bool
	path    string
	color   string
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	a, err := parseArgs(argv)
	if err != nil {
		fmt.Fprintln(os.Stderr, "vaultctl:", err)
		return 2
	}

	cfg, err := vaultconfig.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "vaultctl: loading preferences:", err)
		return 1
	}
	if a.color != "" {
		cfg.Color = a.color
	}
	lipgloss.SetColorProfile(colorProfile(cfg.Color))

	if a.cmd == cmdHelp {
		fmt.Print(usageText)
		return 0
	}
	if a.cmd == cmdVersion {
		fmt.Printf("vaultctl %s (%s)\n", version, commit)
		return 0
	}

	opts := vault.Options{}
	if a.path != "" {
		opts.Path = a.path
	} else if cfg.Path != "" {
		opts.Path = cfg.Path
	} else if cfg.Location != "" {
		opts.Location = vault.Location(cfg.Location)
	}

	if a.cmd == cmdRepl {
		return runRepl(opts, cfg)
	}
	if a.cmd == cmdBrowse {
		return runBrowse(opts, cfg)
	}

	e, err := vault.Open(opts)
	if err != nil {
		reportError(err, a.json)
		return 1
	}
	defer e.Close()

	return dispatch(e, a, cfg)
}

func dispatch(e *vault.Engine, a args, cfg *vaultconfig.Config) int {
	switch a.cmd {
	case cmdInit:
		fmt.Println(e.StoragePath())
		return 0

	case cmdGet:
		value, found, err := e.Get(a.name)
		if err != nil {
			reportError(err, a.json)
			return 1
		}
		if !found {
			fmt.Fprintf(os.Stderr, "vaultctl: no such key: %s\n", a.name)
			return 1
		}
		fmt.Println(value)
		return 0

	case cmdSet:
		if err := e.Set(a.name, a.value); err != nil {
			reportError(err, a.json)
			return 1
		}
		return 0

	case cmdHas:
		ok, err := e.Has(a.name)
		if err != nil {
			reportError(err, a.json)
			return 1
		}
		if !ok {
			return 1
		}
		return 0

	case cmdDelete:
		removed, err := e.Delete(a.name)
		if err != nil {
			reportError(err, a.json)
			return 1
		}
		if !removed {
			fmt.Fprintf(os.Stderr, "vaultctl: no such key: %s\n", a.name)
			return 1
		}
		return 0

	case cmdKeys:
		keys, err := e.Keys(a.pattern)
		if err != nil {
			reportError(err, a.json)
			return 1
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		return 0

	case cmdSize:
		size, err := e.Size()
		if err != nil {
			reportError(err, a.json)
			return 1
		}
		fmt.Println(size)
		return 0

	case cmdDestroy:
		if cfg.ConfirmDestroy && !a.confirm {
			if !confirmDestroy(e.StoragePath()) {
				fmt.Fprintln(os.Stderr, "vaultctl: aborted")
				return 1
			}
		}
		if err := e.Destroy(); err != nil {
			reportError(err, a.json)
			return 1
		}
		return 0

	default:
		fmt.Print(usageText)
		return 2
	}
}

func reportError(err error, jsonMode bool) {
	type coded interface {
		Code() vault.Code
	}
	if jsonMode {
		code := ""
		if c, ok := err.(coded); ok {
			code = string(c.Code())
		}
		fmt.Fprintf(os.Stderr, `{"error": %q, "code": %q}`+"\n", err.Error(), code)
		return
	}
	fmt.Fprintln(os.Stderr, "vaultctl:", err)
}

const usageText = `vaultctl - local secrets vault

Usage:
  vaultctl init
  vaultctl get <name>
  vaultctl set <name> <value>
  vaultctl has <name>
  vaultctl delete <name>
  vaultctl keys [pattern]
  vaultctl size
  vaultctl destroy [--confirm]
  vaultctl repl
  vaultctl browse
  vaultctl version

Global flags:
  --path <dir>      explicit storage directory (overrides preferences)
  --color <mode>     "auto", "always", or "never"
  --json             emit machine-readable error output
`

func parseArgs(argv []string) (args, error) {
	a := args{cmd: cmdHelp}
	if len(argv) == 0 {
		return a, nil
	}

	var positional []string
	i := 0
	for i < len(argv) {
		tok := argv[i]
		switch {
		case tok == "--confirm":
			a.confirm = true
		case tok == "--json":
			a.json = true
		case tok == "--path":
			i++
			if i >= len(argv) {
				return a, fmt.Errorf("--path requires a value")
			}
			a.path = argv[i]
		case tok == "--color":
			i++
			if i >= len(argv) {
				return a, fmt.Errorf("--color requires a value")
			}
			a.color = argv[i]
		case strings.HasPrefix(tok, "--path="):
			a.path = strings.TrimPrefix(tok, "--path=")
		case strings.HasPrefix(tok, "--color="):
			a.color = strings.TrimPrefix(tok, "--color=")
		default:
			positional = append(positional, tok)
		}
		i++
	}

	if len(positional) == 0 {
		return a, nil
	}

	switch positional[0] {
	case "help", "-h", "--help":
		a.cmd = cmdHelp
	case "version", "-v", "--version":
		a.cmd = cmdVersion
	case "init":
		a.cmd = cmdInit
	case "get":
		if len(positional) < 2 {
			return a, fmt.Errorf("get requires a key name")
		}
		a.cmd = cmdGet
		a.name = positional[1]
	case "set":
		if len(positional) < 3 {
			return a, fmt.Errorf("set requires a key name and a value")
		}
		a.cmd = cmdSet
		a.name = positional[1]
		a.value = positional[2]
	case "has":
		if len(positional) < 2 {
			return a, fmt.Errorf("has requires a key name")
		}
		a.cmd = cmdHas
		a.name = positional[1]
	case "delete", "rm":
		if len(positional) < 2 {
			return a, fmt.Errorf("delete requires a key name")
		}
		a.cmd = cmdDelete
		a.name = positional[1]
	case "keys", "ls":
		a.cmd = cmdKeys
		if len(positional) > 1 {
			a.pattern = positional[1]
		}
	case "size":
		a.cmd = cmdSize
	case "destroy":
		a.cmd = cmdDestroy
	case "repl":
		a.cmd = cmdRepl
	case "browse":
		a.cmd = cmdBrowse
	default:
		return a, fmt.Errorf("unknown command %q", positional[0])
	}

	return a, nil
}
