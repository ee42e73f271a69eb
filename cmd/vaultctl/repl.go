// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/jeranaias/secretsvault/internal/vault"
	"github.com/jeranaias/secretsvault/internal/vaultconfig"
)

var replPrompt = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))

// runRepl opens the vault and drops into an interactive line-editing
// shell. Command history is kept in memory for the session only and is
// never persisted to disk: a `set` line would otherwise write a
// plaintext secret value into a history file next to the vault it's
// meant to protect.
func runRepl(opts vault.Options, cfg *vaultconfig.Config) int {
	e, err := vault.Open(opts)
	if err != nil {
		reportError(err, false)
		return 1
	}
	defer e.Close()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Printf("vaultctl repl — %s (type \"help\" for commands, Ctrl-D to exit)\n", e.StoragePath())

	prompt := replPrompt.Render("vault> ")
	for {
		input, err := line.Prompt(prompt)
		if err != nil {
			if err == liner.ErrPromptAborted {
				return 0
			}
			fmt.Println()
			return 0
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if !replDispatch(e, input) {
			return 0
		}
	}
}

// replDispatch executes one REPL line, returning false to end the
// session.
func replDispatch(e *vault.Engine, input string) bool {
	fields := strings.Fields(input)
	cmd := fields[0]
	rest := fields[1:]

	switch cmd {
	case "exit", "quit":
		return false

	case "help":
		fmt.Print(replHelpText)

	case "get":
		if len(rest) != 1 {
			fmt.Println("usage: get <name>")
			return true
		}
		value, found, err := e.Get(rest[0])
		if err != nil {
			reportError(err, false)
		} else if !found {
			fmt.Println("(no such key)")
		} else {
			fmt.Println(value)
		}

	case "set":
		if len(rest) < 2 {
			fmt.Println("usage: set <name> <value>")
			return true
		}
		value := strings.Join(rest[1:], " ")
		if err := e.Set(rest[0], value); err != nil {
			reportError(err, false)
		}

	case "has":
		if len(rest) != 1 {
			fmt.Println("usage: has <name>")
			return true
		}
		ok, err := e.Has(rest[0])
		if err != nil {
			reportError(err, false)
		} else {
			fmt.Println(ok)
		}

	case "delete", "rm":
		if len(rest) != 1 {
			fmt.Println("usage: delete <name>")
			return true
		}
		removed, err := e.Delete(rest[0])
		if err != nil {
			reportError(err, false)
		} else if !removed {
			fmt.Println("(no such key)")
		}

	case "keys", "ls":
		pattern := ""
		if len(rest) == 1 {
			pattern = rest[0]
		}
		keys, err := e.Keys(pattern)
		if err != nil {
			reportError(err, false)
			break
		}
		for _, k := range keys {
			fmt.Println(k)
		}

	case "size":
		size, err := e.Size()
		if err != nil {
			reportError(err, false)
		} else {
			fmt.Println(size)
		}

	default:
		fmt.Printf("unknown command %q (try \"help\")\n", cmd)
	}

	return true
}

const replHelpText = `commands:
  get <name>
  set <name> <value>
  has <name>
  delete <name>
  keys [pattern]
  size
  exit
`
