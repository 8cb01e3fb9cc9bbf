// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
)

// Runner executes an argument vector in dir, wiring the child's output to
// stdout and stderr.
type Runner func(ctx context.Context, dir string, argv []string, stdout, stderr io.Writer) error

// EngineOption configures an Engine.
type EngineOption func(e *Engine) error

// WithJobs limits the number of objects compiled concurrently.  Values below
// one mean one job per CPU.
func WithJobs(jobs int) EngineOption {
	return func(e *Engine) error {
		if jobs < 1 {
			jobs = runtime.NumCPU()
		}

		e.jobs = jobs
		return nil
	}
}

// WithDryRun prints every command line instead of executing it.
func WithDryRun(dryRun bool) EngineOption {
	return func(e *Engine) error {
		e.dryRun = dryRun
		return nil
	}
}

// WithVerbose prints full command lines instead of action descriptions.
func WithVerbose(verbose bool) EngineOption {
	return func(e *Engine) error {
		e.verbose = verbose
		return nil
	}
}

// WithForce rebuilds every file node regardless of timestamps.
func WithForce(force bool) EngineOption {
	return func(e *Engine) error {
		e.force = force
		return nil
	}
}

// WithStdout sets the writer receiving progress lines and child output.
func WithStdout(stdout io.Writer) EngineOption {
	return func(e *Engine) error {
		if stdout == nil {
			return fmt.Errorf("stdout cannot be nil")
		}

		e.stdout = stdout
		return nil
	}
}

// WithStderr sets the writer receiving the children's standard error.
func WithStderr(stderr io.Writer) EngineOption {
	return func(e *Engine) error {
		if stderr == nil {
			return fmt.Errorf("stderr cannot be nil")
		}

		e.stderr = stderr
		return nil
	}
}

// WithRunner replaces the function used to execute commands.
func WithRunner(runner Runner) EngineOption {
	return func(e *Engine) error {
		if runner == nil {
			return fmt.Errorf("runner cannot be nil")
		}

		e.runner = runner
		return nil
	}
}

// WithOnProgress registers a callback receiving the fraction of scheduled
// nodes handled so far, between 0 and 1.
func WithOnProgress(onProgress func(float64)) EngineOption {
	return func(e *Engine) error {
		e.onProgress = onProgress
		return nil
	}
}

func defaultOptions(e *Engine) {
	e.jobs = runtime.NumCPU()
	e.stdout = os.Stdout
	e.stderr = os.Stderr
	e.runner = runProcess
}
