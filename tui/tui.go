// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package tui holds the terminal styles shared by the command line output.
package tui

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	TextTitle = lipgloss.NewStyle().
			Bold(true).
			Render

	TextRed = lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Render

	TextGreen = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Render

	TextBlue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Render

	TextLightGray = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Render

	TextYellow = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Render
)

// IsTerminal reports whether w is attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Plain renders its input unstyled.
func Plain(s ...string) string {
	return strings.Join(s, " ")
}

// Styled returns style when w is a terminal and Plain otherwise.
func Styled(w io.Writer, style func(...string) string) func(...string) string {
	if IsTerminal(w) {
		return style
	}

	return Plain
}
