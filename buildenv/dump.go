// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package buildenv

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xlab/treeprint"
)

// Dump writes every construction variable, one per line, as `KEY = value`.
// List variables are rendered with one item per continuation line.
func (env *Environment) Dump(w io.Writer) error {
	for _, key := range env.Keys() {
		values := env.vars[key]

		var err error
		switch len(values) {
		case 0:
			_, err = fmt.Fprintf(w, "%s =\n", key)
		case 1:
			_, err = fmt.Fprintf(w, "%s = %s\n", key, values[0])
		default:
			_, err = fmt.Fprintf(w, "%s =\n    %s\n", key, strings.Join(values, "\n    "))
		}

		if err != nil {
			return err
		}
	}

	return nil
}

// Graph renders the default targets and custom targets as a tree, each node
// listing what it is produced from.  Paths below root are shown relative to
// it.
func (env *Environment) Graph(root string) string {
	tree := treeprint.NewWithRoot(env.Get(PIOENV))

	rel := func(p string) string {
		if root == "" {
			return p
		}

		if r, err := filepath.Rel(root, p); err == nil && !strings.HasPrefix(r, "..") {
			return r
		}

		return p
	}

	var add func(branch treeprint.Tree, n *Node, seen map[*Node]bool)
	add = func(branch treeprint.Tree, n *Node, seen map[*Node]bool) {
		label := fmt.Sprintf("%s [%s]", rel(n.Path), n.Kind)

		if n.Kind == KindObject {
			branch.AddBranch(label).AddNode(rel(n.Source))
			return
		}

		if seen[n] {
			branch.AddNode(label + " (cycle)")
			return
		}

		seen[n] = true
		defer delete(seen, n)

		sub := branch.AddBranch(label)
		for _, dep := range n.Deps {
			add(sub, dep, seen)
		}
	}

	for _, n := range env.defaults {
		add(tree, n, map[*Node]bool{})
	}

	for _, name := range env.CustomTargets() {
		t := env.targets[name]
		sub := tree.AddBranch(fmt.Sprintf("%s [target]", name))
		for _, dep := range t.Dependencies {
			sub.AddNode(fmt.Sprintf("%s [%s]", rel(dep.Path), dep.Kind))
		}
	}

	return tree.String()
}
