// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package buildenv implements the build environment: a mutable set of
// construction variables (toolchain names, flag lists, paths) together with
// the graph of nodes (objects, programs, commands and custom targets) that a
// framework registers for one build invocation.
package buildenv

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tremokit.sh/board"
	"tremokit.sh/project"
)

// Construction variables understood by the toolchain and the engine.
const (
	CC      = "CC"
	CXX     = "CXX"
	AS      = "AS"
	AR      = "AR"
	LINK    = "LINK"
	OBJCOPY = "OBJCOPY"
	OBJDUMP = "OBJDUMP"
	SIZE    = "SIZE"

	CPPPATH       = "CPPPATH"
	CPPDEFINES    = "CPPDEFINES"
	CCFLAGS       = "CCFLAGS"
	CFLAGS        = "CFLAGS"
	CXXFLAGS      = "CXXFLAGS"
	ASFLAGS       = "ASFLAGS"
	LINKFLAGS     = "LINKFLAGS"
	LIBPATH       = "LIBPATH"
	LIBS          = "LIBS"
	LDSCRIPT_PATH = "LDSCRIPT_PATH"

	BUILD_DIR       = "BUILD_DIR"
	PROJECT_DIR     = "PROJECT_DIR"
	PROJECT_SRC_DIR = "PROJECT_SRC_DIR"
	PROGNAME        = "PROGNAME"
	PIOENV          = "PIOENV"
	PIOFRAMEWORK    = "PIOFRAMEWORK"
	PYTHONEXE       = "PYTHONEXE"
	PLATFORM_DIR    = "PLATFORM_DIR"
	UPLOAD_PORT     = "UPLOAD_PORT"
	UPLOAD_SPEED    = "UPLOAD_SPEED"
)

const (
	// DefaultProgName is the base name of the produced firmware images.
	DefaultProgName = "firmware"

	// substDepth bounds recursive variable expansion.
	substDepth = 16
)

// Environment is the mutable build configuration for a single build
// invocation.  It is not safe for concurrent mutation.
type Environment struct {
	vars    map[string][]string
	project *project.Environment
	board   *board.Board

	nodes      map[string]*Node
	order      []*Node
	buildFiles []*Node
	defaults   []*Node
	targets    map[string]*CustomTarget
}

// EnvironmentOption configures a new Environment.
type EnvironmentOption func(env *Environment) error

// WithProjectEnvironment attaches the project options read by
// GetProjectOption.
func WithProjectEnvironment(penv *project.Environment) EnvironmentOption {
	return func(env *Environment) error {
		env.project = penv
		return nil
	}
}

// WithProjectOptions declares project options over those of the attached
// project environment, as command line overrides do.
func WithProjectOptions(options map[string]string) EnvironmentOption {
	return func(env *Environment) error {
		if env.project == nil {
			env.project = project.NewEnvironment("", nil)
		}

		env.project = env.project.Override(options)
		return nil
	}
}

// WithBoard attaches the board configuration.
func WithBoard(b *board.Board) EnvironmentOption {
	return func(env *Environment) error {
		env.board = b
		return nil
	}
}

// WithVar sets a construction variable.
func WithVar(key string, values ...string) EnvironmentOption {
	return func(env *Environment) error {
		if key == "" {
			return fmt.Errorf("variable name cannot be empty")
		}

		env.Replace(key, values...)
		return nil
	}
}

// New returns an environment seeded with the base variables.
func New(opts ...EnvironmentOption) (*Environment, error) {
	env := &Environment{
		vars:    map[string][]string{},
		nodes:   map[string]*Node{},
		targets: map[string]*CustomTarget{},
	}

	env.Replace(PROGNAME, DefaultProgName)
	env.Replace(LINK, "$CC")
	env.Replace(PYTHONEXE, "python3")

	for _, opt := range opts {
		if err := opt(env); err != nil {
			return nil, fmt.Errorf("could not apply environment option: %w", err)
		}
	}

	return env, nil
}

// NewFromProject prepares the environment for the named project environment:
// build and source directories, requested frameworks, project options and
// board configuration.
func NewFromProject(proj *project.Project, penv *project.Environment, b *board.Board, opts ...EnvironmentOption) (*Environment, error) {
	base := []EnvironmentOption{
		WithProjectEnvironment(penv),
		WithBoard(b),
		WithVar(PROJECT_DIR, proj.Dir()),
		WithVar(PROJECT_SRC_DIR, proj.SrcDir()),
		WithVar(BUILD_DIR, filepath.Join(proj.BuildDir(), penv.Name)),
		WithVar(PIOENV, penv.Name),
		WithVar(PIOFRAMEWORK, penv.Frameworks()...),
	}

	return New(append(base, opts...)...)
}

// Replace overwrites a construction variable.
func (env *Environment) Replace(key string, values ...string) {
	env.vars[key] = append([]string{}, values...)
}

// Append adds values to the end of a construction variable.
func (env *Environment) Append(key string, values ...string) {
	env.vars[key] = append(env.vars[key], values...)
}

// Has reports whether the variable is set.
func (env *Environment) Has(key string) bool {
	_, ok := env.vars[key]
	return ok
}

// List returns a copy of the unexpanded values of a variable.
func (env *Environment) List(key string) []string {
	return append([]string{}, env.vars[key]...)
}

// Get returns the unexpanded value of a variable with list items joined by a
// space.
func (env *Environment) Get(key string) string {
	return strings.Join(env.vars[key], " ")
}

// Keys returns the names of all set variables, sorted.
func (env *Environment) Keys() []string {
	keys := make([]string, 0, len(env.vars))
	for k := range env.vars {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Subst expands `$VAR` and `${VAR}` references recursively.  Unknown
// variables expand to the empty string and `$$` yields a literal `$`.
func (env *Environment) Subst(s string) string {
	return env.subst(s, nil, 0)
}

// SubstList expands every item of a variable individually.  Items that expand
// to nothing are dropped.
func (env *Environment) SubstList(key string) []string {
	var out []string

	for _, item := range env.vars[key] {
		if expanded := env.Subst(item); expanded != "" {
			out = append(out, expanded)
		}
	}

	return out
}

func (env *Environment) subst(s string, extra map[string]string, depth int) string {
	if depth >= substDepth || !strings.Contains(s, "$") {
		return s
	}

	return os.Expand(s, func(name string) string {
		if name == "$" {
			return "$"
		}

		if value, ok := extra[name]; ok {
			return value
		}

		values, ok := env.vars[name]
		if !ok {
			return ""
		}

		return env.subst(strings.Join(values, " "), extra, depth+1)
	})
}

// GetProjectOption returns a project option, or def when it is not declared.
func (env *Environment) GetProjectOption(key, def string) string {
	return env.project.Get(key, def)
}

// ProjectEnvironment returns the attached project options.
func (env *Environment) ProjectEnvironment() *project.Environment {
	return env.project
}

// BoardConfig returns the attached board configuration.
func (env *Environment) BoardConfig() *board.Board {
	if env.board == nil {
		return board.New("", nil)
	}

	return env.board
}
