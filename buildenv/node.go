// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package buildenv

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// NodeKind identifies how a node is produced.
type NodeKind int

const (
	// KindObject is compiled or assembled from a single source file.
	KindObject NodeKind = iota
	// KindProgram is linked from object nodes.
	KindProgram
	// KindCommand is produced by an explicit action.
	KindCommand
)

func (k NodeKind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindProgram:
		return "program"
	case KindCommand:
		return "command"
	default:
		return "unknown"
	}
}

// Action is a command template with a short human readable description.
// Templates may reference construction variables as well as `$SOURCE`,
// `$SOURCES` and `$TARGET`.
type Action struct {
	Command     string
	Description string
}

// VerboseAction returns an action printed as description unless the build is
// verbose, in which case the full command is shown.
func VerboseAction(command, description string) Action {
	return Action{
		Command:     command,
		Description: description,
	}
}

// Node is a file produced by the build.
type Node struct {
	// Path is the absolute or project-relative file produced by the node.
	Path string

	// Kind determines the builder used to produce the node.
	Kind NodeKind

	// Source is the input file of an object node.
	Source string

	// Deps are the nodes which must be produced first.  Their paths are the
	// inputs of program and command nodes.
	Deps []*Node

	// Action is set for command nodes.
	Action *Action
}

// Inputs returns the files the node is produced from.
func (n *Node) Inputs() []string {
	if n.Kind == KindObject {
		return []string{n.Source}
	}

	inputs := make([]string, 0, len(n.Deps))
	for _, dep := range n.Deps {
		inputs = append(inputs, dep.Path)
	}

	return inputs
}

func (n *Node) String() string {
	return n.Path
}

// CustomTarget is a named, phony target which runs its actions after all of
// its dependencies have been produced.  It is never up to date.
type CustomTarget struct {
	Name         string
	Title        string
	Description  string
	Dependencies []*Node
	Actions      []Action
}

func (env *Environment) register(n *Node) *Node {
	if existing, ok := env.nodes[n.Path]; ok {
		return existing
	}

	env.nodes[n.Path] = n
	env.order = append(env.order, n)

	return n
}

// Object registers an object node compiled from source.  Both paths are
// substituted.  Registering the same target twice returns the first node.
func (env *Environment) Object(target, source string) *Node {
	return env.register(&Node{
		Path:   filepath.Clean(env.Subst(target)),
		Kind:   KindObject,
		Source: filepath.Clean(env.Subst(source)),
	})
}

// Program registers an executable image linked from the given nodes.
func (env *Environment) Program(target string, sources []*Node) *Node {
	return env.register(&Node{
		Path: filepath.Clean(env.Subst(target)),
		Kind: KindProgram,
		Deps: append([]*Node{}, sources...),
	})
}

// Command registers a node produced from source by running action.
func (env *Environment) Command(target string, source *Node, action Action) *Node {
	return env.register(&Node{
		Path:   filepath.Clean(env.Subst(target)),
		Kind:   KindCommand,
		Deps:   []*Node{source},
		Action: &action,
	})
}

// Nodes returns every registered node in registration order.
func (env *Environment) Nodes() []*Node {
	return append([]*Node{}, env.order...)
}

// Node returns the node producing path.
func (env *Environment) Node(path string) (*Node, bool) {
	n, ok := env.nodes[filepath.Clean(path)]
	return n, ok
}

// AppendBuildFiles adds nodes to the inputs of the final link.
func (env *Environment) AppendBuildFiles(nodes ...*Node) {
	env.buildFiles = append(env.buildFiles, nodes...)
}

// BuildFiles returns the nodes registered as inputs of the final link.
func (env *Environment) BuildFiles() []*Node {
	return append([]*Node{}, env.buildFiles...)
}

// Default marks nodes as built when no explicit target is requested.  A node
// is only ever listed once and keeps its first position.
func (env *Environment) Default(nodes ...*Node) {
	for _, n := range nodes {
		found := false
		for _, d := range env.defaults {
			if d == n {
				found = true
				break
			}
		}

		if !found {
			env.defaults = append(env.defaults, n)
		}
	}
}

// Defaults returns the default nodes in the order they were declared.
func (env *Environment) Defaults() []*Node {
	return append([]*Node{}, env.defaults...)
}

// AddCustomTarget registers a named target.
func (env *Environment) AddCustomTarget(target CustomTarget) error {
	if strings.TrimSpace(target.Name) == "" {
		return fmt.Errorf("custom target name cannot be empty")
	}

	if _, ok := env.targets[target.Name]; ok {
		return fmt.Errorf("custom target %q already registered", target.Name)
	}

	t := target
	env.targets[target.Name] = &t

	return nil
}

// CustomTarget returns the named custom target.
func (env *Environment) CustomTarget(name string) (*CustomTarget, bool) {
	t, ok := env.targets[name]
	return t, ok
}

// CustomTargets returns the names of every custom target.
func (env *Environment) CustomTargets() []string {
	names := make([]string, 0, len(env.targets))
	for name := range env.targets {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// ExpandAction substitutes an action's command for the given node.
func (env *Environment) ExpandAction(action Action, sources []string, target string) string {
	quoted := make([]string, 0, len(sources))
	for _, s := range sources {
		quoted = append(quoted, quote(s))
	}

	extra := map[string]string{
		"TARGET":  quote(target),
		"SOURCES": strings.Join(quoted, " "),
		"SOURCE":  "",
	}

	if len(quoted) > 0 {
		extra["SOURCE"] = quoted[0]
	}

	return env.subst(action.Command, extra, 0)
}

func quote(s string) string {
	if s == "" || !strings.ContainsAny(s, " \t\"'") {
		return s
	}

	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
