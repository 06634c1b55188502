// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Styles renders report output. The renderer detects the color profile
// of w, so colors are dropped when the output is not a terminal.
type Styles struct {
	Heading lipgloss.Style
	Label   lipgloss.Style
	Pass    lipgloss.Style
	Fail    lipgloss.Style
	Faint   lipgloss.Style
}

// NewStyles returns styles for w.
func NewStyles(w io.Writer) Styles {
	renderer := lipgloss.NewRenderer(w)
	return Styles{
		Heading: renderer.NewStyle().Bold(true),
		Label:   renderer.NewStyle().Width(22),
		Pass:    renderer.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		Fail:    renderer.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		Faint:   renderer.NewStyle().Faint(true),
	}
}

// Verdict renders "PASS" or "FAIL".
func (s Styles) Verdict(ok bool) string {
	if ok {
		return s.Pass.Render("PASS")
	}
	return s.Fail.Render("FAIL")
}

// Row renders a label and value on one line.
func (s Styles) Row(label, value string) string {
	return s.Label.Render(label) + value + "\n"
}
