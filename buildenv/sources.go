// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package buildenv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gobwas/glob"

	"tremokit.sh/log"
)

// DefaultSrcFilter selects every source file.
const DefaultSrcFilter = "+<*>"

// SourceExtensions lists the file extensions collected by BuildSources.
var SourceExtensions = []string{".c", ".cc", ".cpp", ".cxx", ".S", ".s", ".sx", ".asm"}

var filterToken = regexp.MustCompile(`([+-])<([^>]*)>`)

type filterRule struct {
	include bool
	pattern string
	glob    glob.Glob
}

// matches reports whether rel, or any directory containing it, matches the
// rule's pattern.
func (r filterRule) matches(rel string) bool {
	for candidate := rel; candidate != "." && candidate != ""; candidate = path.Dir(candidate) {
		if r.glob.Match(candidate) {
			return true
		}
	}

	return false
}

// SrcFilter is an ordered list of `+<glob>` and `-<glob>` rules.  The last
// matching rule decides whether a file is selected.
type SrcFilter []filterRule

// ParseSrcFilter compiles filter expressions.  Each expression may hold
// several rules, e.g. `+<*> -<printf-stdarg.c>`.
func ParseSrcFilter(exprs ...string) (SrcFilter, error) {
	if len(exprs) == 0 {
		exprs = []string{DefaultSrcFilter}
	}

	var filter SrcFilter

	for _, expr := range exprs {
		tokens := filterToken.FindAllStringSubmatch(expr, -1)
		if len(tokens) == 0 && strings.TrimSpace(expr) != "" {
			return nil, fmt.Errorf("invalid source filter %q: expected +<pattern> or -<pattern>", expr)
		}

		for _, token := range tokens {
			pattern := strings.Trim(strings.TrimSpace(token[2]), "/")
			if pattern == "" {
				pattern = "*"
			}

			g, err := glob.Compile(pattern, '/')
			if err != nil {
				return nil, fmt.Errorf("invalid source filter pattern %q: %w", pattern, err)
			}

			filter = append(filter, filterRule{
				include: token[1] == "+",
				pattern: pattern,
				glob:    g,
			})
		}
	}

	return filter, nil
}

// Match reports whether the slash separated relative path is selected.
func (f SrcFilter) Match(rel string) bool {
	selected := false

	for _, rule := range f {
		if rule.matches(rel) {
			selected = rule.include
		}
	}

	return selected
}

func isSourceFile(name string) bool {
	ext := filepath.Ext(name)
	for _, candidate := range SourceExtensions {
		if ext == candidate {
			return true
		}
	}

	return false
}

// CollectSources walks srcDir and returns the slash separated relative paths
// of every source file selected by the filter, in lexical order.
func CollectSources(srcDir string, filter SrcFilter) ([]string, error) {
	var sources []string

	err := filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			// Hidden directories (.git, .pio) are never part of a build
			if p != srcDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !isSourceFile(d.Name()) {
			return nil
		}

		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}

		rel = filepath.ToSlash(rel)
		if filter.Match(rel) {
			sources = append(sources, rel)
		}

		return nil
	})

	return sources, err
}

// BuildSources registers an object node for every selected source file below
// srcDir.  Objects are placed in variantDir, mirroring the source tree, and
// appended to the build files.  Both directories are substituted.  A missing
// source directory registers nothing.
func (env *Environment) BuildSources(ctx context.Context, variantDir, srcDir string, filter ...string) ([]*Node, error) {
	variantDir = env.Subst(variantDir)
	srcDir = env.Subst(srcDir)

	f, err := ParseSrcFilter(filter...)
	if err != nil {
		return nil, err
	}

	if stat, err := os.Stat(srcDir); errors.Is(err, os.ErrNotExist) || (err == nil && !stat.IsDir()) {
		log.G(ctx).
			WithField("dir", srcDir).
			Warn("source directory not found, nothing to build")
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	rels, err := CollectSources(srcDir, f)
	if err != nil {
		return nil, fmt.Errorf("could not collect sources from %s: %w", srcDir, err)
	}

	nodes := make([]*Node, 0, len(rels))
	for _, rel := range rels {
		obj := strings.TrimSuffix(rel, path.Ext(rel)) + ".o"
		nodes = append(nodes, env.Object(
			filepath.Join(variantDir, filepath.FromSlash(obj)),
			filepath.Join(srcDir, filepath.FromSlash(rel)),
		))
	}

	log.G(ctx).
		WithField("dir", srcDir).
		WithField("sources", len(nodes)).
		Debug("registered sources")

	env.AppendBuildFiles(nodes...)

	return nodes, nil
}
