// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package tui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"golang.org/x/term"
)

const defaultProgressWidth = 40

// ProgressBar redraws a single status line with a completion bar.  It is
// safe for concurrent use.
type ProgressBar struct {
	mu    sync.Mutex
	out   io.Writer
	title string
	bar   progress.Model
	last  int
}

// NewProgressBar returns a bar titled title drawing to out.
func NewProgressBar(out io.Writer, title string) *ProgressBar {
	bar := progress.New(progress.WithoutPercentage())
	bar.Full = '#'
	bar.Empty = ' '
	bar.Width = defaultProgressWidth

	if f, ok := out.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			if w := width - len(title) - 10; w > 10 && w < bar.Width {
				bar.Width = w
			}
		}
	}

	return &ProgressBar{
		out:   out,
		title: title,
		bar:   bar,
		last:  -1,
	}
}

// Update draws the bar at percent, a value between 0 and 1.  Redraws which
// would not change the displayed percentage are skipped.
func (p *ProgressBar) Update(percent float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	shown := int(percent * 100)
	if shown == p.last {
		return
	}
	p.last = shown

	fmt.Fprintf(p.out, "\r%s [%s] %3d%%", p.title, p.bar.ViewAs(percent), shown)
}

// Done terminates the status line.
func (p *ProgressBar) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.last >= 0 {
		fmt.Fprintln(p.out)
	}
}
