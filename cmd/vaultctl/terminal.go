// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"os"
	"sync"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// isStdinTTY reports whether stdin is a terminal; confirmDestroy refuses
// to prompt without one.
func isStdinTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// isStdoutTTY reports whether stdout is a terminal; colored output is
// disabled otherwise.
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

var (
	colorOnce    sync.Once
	colorEnabled bool
)

// colorsEnabled resolves NO_COLOR, a "color" preference of "always" or
// "never", and TTY detection, in that precedence order.
func colorsEnabled(preference string) bool {
	colorOnce.Do(func() {
		if os.Getenv("NO_COLOR") != "" {
			colorEnabled = false
			return
		}
		switch preference {
		case "always":
			colorEnabled = true
		case "never":
			colorEnabled = false
		default:
			colorEnabled = isStdoutTTY()
		}
	})
	return colorEnabled
}

// colorProfile returns the termenv profile vaultctl's lipgloss styles
// should render with, given the resolved color preference.
func colorProfile(preference string) termenv.Profile {
	if !colorsEnabled(preference) {
		return termenv.Ascii
	}
	return termenv.ColorProfile()
}
