// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/secretsvault/internal/util"
	"github.com/jeranaias/secretsvault/internal/vault"
	"github.com/jeranaias/secretsvault/internal/vaultconfig"
)

var (
	browseHeaderStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	browseItemStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	browseSelectedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	browseValueStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	browseMutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
)

const (
	browseMaxItems  = 12
	browseNameWidth = 60
)

// browseModel is the bubbletea model backing vaultctl browse: a
// filterable list of key names with an on-demand, revealed-on-request
// value preview.
type browseModel struct {
	engine   *vault.Engine
	input    textinput.Model
	all      []string
	filtered []string
	selected int
	revealed string
	err      error
}

func newBrowseModel(e *vault.Engine) (browseModel, error) {
	keys, err := e.Keys("")
	if err != nil {
		return browseModel{}, err
	}

	ti := textinput.New()
	ti.Placeholder = "filter (glob, e.g. openai.*)"
	ti.Prompt = "/ "
	ti.Focus()
	ti.CharLimit = 200
	ti.Width = 50

	m := browseModel{engine: e, input: ti, all: keys, filtered: keys}
	return m, nil
}

func (m browseModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "ctrl+p":
			if len(m.filtered) > 0 {
				m.selected = (m.selected - 1 + len(m.filtered)) % len(m.filtered)
				m.revealed = ""
			}
			return m, nil
		case "down", "ctrl+n":
			if len(m.filtered) > 0 {
				m.selected = (m.selected + 1) % len(m.filtered)
				m.revealed = ""
			}
			return m, nil
		case "enter":
			if m.selected < len(m.filtered) {
				value, found, err := m.engine.Get(m.filtered[m.selected])
				if err != nil {
					m.err = err
				} else if found {
					m.revealed = value
				}
			}
			return m, nil
		case "q":
			if !m.input.Focused() {
				return m, tea.Quit
			}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m *browseModel) applyFilter() {
	pattern := strings.TrimSpace(m.input.Value())
	if pattern == "" {
		m.filtered = m.all
	} else {
		if !strings.Contains(pattern, "*") {
			pattern = "*" + pattern + "*"
		}
		m.filtered = nil
		for _, name := range m.all {
			if vault.MatchPattern(pattern, name) {
				m.filtered = append(m.filtered, name)
			}
		}
	}
	if m.selected >= len(m.filtered) {
		m.selected = 0
	}
	m.revealed = ""
}

func (m browseModel) View() string {
	var b strings.Builder
	b.WriteString(browseHeaderStyle.Render(fmt.Sprintf("vaultctl browse — %d keys", len(m.all))))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(browseMutedStyle.Render("error: "+m.err.Error()) + "\n")
	}

	if len(m.filtered) == 0 {
		b.WriteString(browseMutedStyle.Render("(no matching keys)") + "\n")
	}

	shown := m.filtered
	if len(shown) > browseMaxItems {
		shown = shown[:browseMaxItems]
	}
	for i, name := range shown {
		display := util.TruncateWidth(name, browseNameWidth)
		if i == m.selected {
			b.WriteString(browseSelectedStyle.Render("> "+display) + "\n")
		} else {
			b.WriteString(browseItemStyle.Render("  "+display) + "\n")
		}
	}
	if len(m.filtered) > browseMaxItems {
		b.WriteString(browseMutedStyle.Render(fmt.Sprintf("  ... %d more", len(m.filtered)-browseMaxItems)) + "\n")
	}

	b.WriteString("\n")
	if m.revealed != "" {
		b.WriteString(browseValueStyle.Render(m.revealed) + "\n")
	}
	b.WriteString(browseMutedStyle.Render("enter: reveal value  ·  up/down: move  ·  esc: quit"))

	return b.String()
}

func runBrowse(opts vault.Options, _ *vaultconfig.Config) int {
	e, err := vault.Open(opts)
	if err != nil {
		reportError(err, false)
		return 1
	}
	defer e.Close()

	model, err := newBrowseModel(e)
	if err != nil {
		reportError(err, false)
		return 1
	}

	if _, err := tea.NewProgram(model).Run(); err != nil {
		reportError(err, false)
		return 1
	}
	return 0
}
