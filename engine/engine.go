// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package engine executes the node graph registered in a build environment.
// Objects are compiled concurrently, then programs, commands and custom
// targets run in dependency order.  File nodes which are newer than all of
// their inputs, and whose command line is unchanged since they were last
// produced, are skipped.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tremokit.sh/buildenv"
	"tremokit.sh/exec"
	"tremokit.sh/internal/errs"
	"tremokit.sh/log"
	"tremokit.sh/toolchain"
)

// Engine builds the nodes of one environment.
type Engine struct {
	env        *buildenv.Environment
	jobs       int
	dryRun     bool
	verbose    bool
	force      bool
	stdout     io.Writer
	stderr     io.Writer
	runner     Runner
	onProgress func(float64)

	mu      sync.Mutex
	rebuilt map[*buildenv.Node]bool
	sigs    *signatures

	progressMu sync.Mutex
	done       int
	total      int
}

// New prepares an engine for env.
func New(env *buildenv.Environment, opts ...EngineOption) (*Engine, error) {
	if env == nil {
		return nil, fmt.Errorf("cannot build without an environment")
	}

	e := &Engine{env: env}
	defaultOptions(e)

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("could not apply engine option: %w", err)
		}
	}

	return e, nil
}

func runProcess(ctx context.Context, dir string, argv []string, stdout, stderr io.Writer) error {
	executable, err := exec.FromArgv(argv...)
	if err != nil {
		return err
	}

	process, err := exec.NewProcessFromExecutable(executable,
		exec.WithDir(dir),
		exec.WithStdout(stdout),
		exec.WithStderr(stderr),
		exec.WithLogger(log.G(ctx)),
	)
	if err != nil {
		return err
	}

	return process.StartAndWait(ctx)
}

// resolve maps a requested target onto a custom target or a file node.  File
// targets may be given as absolute paths or relative to the build or project
// directory.
func (e *Engine) resolve(name string) (*buildenv.CustomTarget, *buildenv.Node, error) {
	if t, ok := e.env.CustomTarget(name); ok {
		return t, nil, nil
	}

	candidates := []string{name, e.env.Subst(name)}
	if !filepath.IsAbs(name) {
		candidates = append(candidates,
			filepath.Join(e.env.Subst("$BUILD_DIR"), name),
			filepath.Join(e.env.Subst("$PROJECT_DIR"), name),
		)
	}

	for _, candidate := range candidates {
		if n, ok := e.env.Node(candidate); ok {
			return nil, n, nil
		}
	}

	return nil, nil, fmt.Errorf("%w: unknown target %q", errs.ErrNotFound, name)
}

// Plan returns every node reachable from roots, dependencies first.  A
// dependency cycle is an error.
func Plan(roots ...*buildenv.Node) ([]*buildenv.Node, error) {
	const (
		visiting = 1
		visited  = 2
	)

	state := map[*buildenv.Node]int{}
	var order []*buildenv.Node

	var visit func(n *buildenv.Node, path []string) error
	visit = func(n *buildenv.Node, path []string) error {
		switch state[n] {
		case visited:
			return nil
		case visiting:
			return fmt.Errorf("%w: dependency cycle: %s -> %s", errs.ErrInvalid, strings.Join(path, " -> "), n.Path)
		}

		state[n] = visiting
		next := append(append([]string{}, path...), n.Path)
		for _, dep := range n.Deps {
			if err := visit(dep, next); err != nil {
				return err
			}
		}
		state[n] = visited

		order = append(order, n)

		return nil
	}

	for _, root := range roots {
		if err := visit(root, nil); err != nil {
			return nil, err
		}
	}

	return order, nil
}

// Build produces the requested targets, or the environment's defaults when
// none are given.  The first failing command stops the build; its error is
// classified as a toolchain error.
func (e *Engine) Build(ctx context.Context, targets ...string) (*Report, error) {
	start := time.Now()
	report := &Report{DryRun: e.dryRun}

	var roots []*buildenv.Node
	var customs []*buildenv.CustomTarget

	if len(targets) == 0 {
		roots = e.env.Defaults()
		if len(roots) == 0 {
			return nil, fmt.Errorf("%w: no default targets registered", errs.ErrNotFound)
		}
	}

	for _, name := range targets {
		custom, node, err := e.resolve(name)
		if err != nil {
			return nil, err
		}

		if custom != nil {
			customs = append(customs, custom)
			roots = append(roots, custom.Dependencies...)
		} else {
			roots = append(roots, node)
		}
	}

	order, err := Plan(roots...)
	if err != nil {
		return nil, err
	}

	var objects, others []*buildenv.Node
	for _, n := range order {
		if n.Kind == buildenv.KindObject {
			objects = append(objects, n)
		} else {
			others = append(others, n)
		}
	}

	sigPath := ""
	if buildDir := e.env.Subst("$BUILD_DIR"); buildDir != "" {
		sigPath = filepath.Join(buildDir, SignatureFile)
	}

	if e.sigs, err = loadSignatures(sigPath); err != nil {
		return nil, err
	}

	if !e.dryRun {
		defer func() {
			if err := e.sigs.save(); err != nil {
				log.G(ctx).WithError(err).Warn("could not save build signatures")
			}
		}()
	}

	e.rebuilt = map[*buildenv.Node]bool{}
	e.done = 0
	e.total = len(order) + len(customs)

	log.G(ctx).
		WithField("objects", len(objects)).
		WithField("jobs", e.jobs).
		Debug("building")

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.jobs)

	for _, n := range objects {
		n := n
		eg.Go(func() error {
			return e.buildNode(egctx, n, report)
		})
	}

	if err := eg.Wait(); err != nil {
		report.Duration = time.Since(start)
		return report, err
	}

	for _, n := range others {
		if err := e.buildNode(ctx, n, report); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}

		report.Artifacts = append(report.Artifacts, n.Path)
	}

	for _, custom := range customs {
		if err := e.runCustomTarget(ctx, custom); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}

		report.Targets = append(report.Targets, custom.Name)
		e.progress()
	}

	report.Duration = time.Since(start)

	return report, nil
}

func (e *Engine) progress() {
	e.progressMu.Lock()
	defer e.progressMu.Unlock()

	e.done++
	if e.onProgress != nil && e.total > 0 {
		e.onProgress(float64(e.done) / float64(e.total))
	}
}

func (e *Engine) printf(format string, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fmt.Fprintf(e.stdout, format, args...)
}

// display shortens paths below the project directory.
func (e *Engine) display(p string) string {
	root := e.env.Subst("$PROJECT_DIR")
	if root == "" {
		return p
	}

	if rel, err := filepath.Rel(root, p); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}

	return p
}

func (e *Engine) isRebuilt(n *buildenv.Node) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.rebuilt[n]
}

// checkSource fails when an object's source file is missing.
func (e *Engine) checkSource(n *buildenv.Node) error {
	if n.Kind != buildenv.KindObject {
		return nil
	}

	if _, err := os.Stat(n.Source); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: source %s needed by %s", errs.ErrNotFound, n.Source, e.display(n.Path))
	}

	return nil
}

// upToDate reports whether the node's file exists, is at least as recent as
// every input and was last produced by the same command line.
func (e *Engine) upToDate(n *buildenv.Node, sig string) bool {
	if e.force {
		return false
	}

	for _, dep := range n.Deps {
		if e.isRebuilt(dep) {
			return false
		}
	}

	if !e.sigs.matches(n.Path, sig) {
		return false
	}

	target, err := os.Stat(n.Path)
	if err != nil {
		return false
	}

	for _, input := range n.Inputs() {
		stat, err := os.Stat(input)
		if err != nil || stat.ModTime().After(target.ModTime()) {
			return false
		}
	}

	return true
}

func (e *Engine) label(n *buildenv.Node) string {
	switch n.Kind {
	case buildenv.KindObject:
		return "Compiling " + e.display(n.Path)
	case buildenv.KindProgram:
		return "Linking " + e.display(n.Path)
	}

	if n.Action != nil && n.Action.Description != "" {
		return n.Action.Description
	}

	return "Building " + e.display(n.Path)
}

func (e *Engine) buildNode(ctx context.Context, n *buildenv.Node, report *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	defer e.progress()

	if err := e.checkSource(n); err != nil {
		return err
	}

	argv, err := toolchain.NodeCommand(e.env, n)
	if err != nil {
		return fmt.Errorf("%s: %w", e.display(n.Path), err)
	}

	sig := Signature(argv)
	if e.upToDate(n, sig) {
		log.G(ctx).WithField("target", n.Path).Trace("up to date")

		e.mu.Lock()
		report.Skipped++
		e.mu.Unlock()

		return nil
	}

	if err := e.execute(ctx, argv, e.label(n), filepath.Dir(n.Path)); err != nil {
		e.sigs.forget(n.Path)
		return errs.Toolchain(fmt.Errorf("%s: %w", e.display(n.Path), err))
	}

	e.sigs.record(n.Path, sig)

	e.mu.Lock()
	e.rebuilt[n] = true
	if n.Kind == buildenv.KindObject {
		report.Compiled++
	} else {
		report.Linked++
	}
	e.mu.Unlock()

	return nil
}

func (e *Engine) runCustomTarget(ctx context.Context, t *buildenv.CustomTarget) error {
	sources := make([]string, 0, len(t.Dependencies))
	for _, dep := range t.Dependencies {
		sources = append(sources, dep.Path)
	}

	for _, action := range t.Actions {
		argv, err := toolchain.ActionCommand(e.env, action, sources, t.Name)
		if err != nil {
			return fmt.Errorf("%s: %w", t.Name, err)
		}

		label := action.Description
		if label == "" {
			label = t.Title
		}

		if err := e.execute(ctx, argv, label, ""); err != nil {
			return errs.Toolchain(fmt.Errorf("%s: %w", t.Name, err))
		}
	}

	return nil
}

// execute prints and runs one command.  outDir, when set, is created first.
func (e *Engine) execute(ctx context.Context, argv []string, label, outDir string) error {
	if e.dryRun || e.verbose || label == "" {
		e.printf("%s\n", toolchain.Cmdline(argv))
	} else {
		e.printf("%s\n", label)
	}

	if e.dryRun {
		return nil
	}

	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("could not create %s: %w", outDir, err)
		}
	}

	return e.runner(ctx, e.env.Subst("$PROJECT_DIR"), argv, e.stdout, e.stderr)
}
