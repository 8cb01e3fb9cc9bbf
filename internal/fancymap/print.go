// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, Unikraft GmbH and The KraftKit Authors.
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package fancymap prints a titled, aligned key-value list.
package fancymap

import (
	"fmt"
	"io"
	"strings"

	"tremokit.sh/tui"
)

type FancyMapEntry struct {
	Key   string
	Value string
	Right string
}

// PrintFancyMap writes entries to w below a title marked with the success
// state.  Colors are only used when w is a terminal.
func PrintFancyMap(w io.Writer, title string, success bool, entries ...FancyMapEntry) {
	keyPad, valPad, bracketPad := 0, 0, 0

	for _, entry := range entries {
		if newLen := len(entry.Key); newLen+1 > keyPad {
			keyPad = newLen + 1
		}
		if newLen := len(entry.Value); newLen > valPad {
			valPad = newLen
		}
		if newLen := len(entry.Right); newLen > bracketPad {
			bracketPad = newLen
		}
	}

	gray := tui.Styled(w, tui.TextLightGray)
	color := tui.Styled(w, tui.TextRed)
	if success {
		color = tui.Styled(w, tui.TextGreen)
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprint(w, gray("["))
	fmt.Fprint(w, color("●"))
	fmt.Fprint(w, gray("]"))
	fmt.Fprintf(w, " ")
	fmt.Fprint(w, title)
	fmt.Fprintf(w, "\n ")
	fmt.Fprint(w, gray("│"))
	fmt.Fprintf(w, "\n")

	for i, entry := range entries {
		fmt.Fprintf(w, " ")
		anchor := "├"
		if i == len(entries)-1 {
			anchor = "└"
		}
		fmt.Fprint(w, gray(anchor))
		fmt.Fprint(w, gray(strings.Repeat("─", keyPad-len(entry.Key))))
		fmt.Fprint(w, " ")
		fmt.Fprint(w, gray(entry.Key))
		fmt.Fprint(w, ": ")
		fmt.Fprint(w, entry.Value)
		if len(entry.Right) > 0 {
			fmt.Fprint(w, strings.Repeat(" ", valPad-len(entry.Value)+1))
			fmt.Fprint(w, entry.Right)
		}
		fmt.Fprintf(w, "\n")
	}

	fmt.Fprintf(w, "\n")
}
