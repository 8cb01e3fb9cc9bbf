// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package utils holds the project set up shared by the subcommands.
package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tremokit.sh/buildenv"
	"tremokit.sh/cmdfactory"
	"tremokit.sh/config"
	"tremokit.sh/engine"
	"tremokit.sh/platform"
	"tremokit.sh/project"
)

// Workdir returns the project directory named by args, or the working
// directory.
func Workdir(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return filepath.Abs(args[0])
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("could not determine working directory: %w", err)
	}

	return cwd, nil
}

// SetupOptions selects and adjusts the environment to configure.
type SetupOptions struct {
	// Env names the project environment, empty for the default.
	Env string

	// UploadPort and UploadSpeed seed UPLOAD_PORT and UPLOAD_SPEED, used
	// when the project does not declare upload_port or upload_speed.
	UploadPort  string
	UploadSpeed string

	// ProjectOptions are `KEY=VALUE` pairs declared over the project's own
	// options.
	ProjectOptions []string
}

// ParseProjectOptions splits `KEY=VALUE` pairs.
func ParseProjectOptions(pairs []string) (map[string]string, error) {
	options := map[string]string{}

	for _, pair := range pairs {
		if pair == "" {
			continue
		}

		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, cmdfactory.FlagErrorf("invalid project option %q: expected KEY=VALUE", pair)
		}

		options[key] = strings.TrimSpace(value)
	}

	return options, nil
}

// Setup loads the project in workdir and configures the build environment
// described by sopts.
func Setup(ctx context.Context, workdir string, sopts SetupOptions) (*buildenv.Environment, error) {
	overrides, err := ParseProjectOptions(sopts.ProjectOptions)
	if err != nil {
		return nil, err
	}

	proj, err := project.Load(workdir)
	if err != nil {
		return nil, err
	}

	cfg := config.G(ctx)

	platformDir, err := config.ExpandPath(cfg.Paths.Platform)
	if err != nil {
		return nil, err
	}

	var opts []buildenv.EnvironmentOption
	if cfg.Python != "" {
		opts = append(opts, buildenv.WithVar(buildenv.PYTHONEXE, cfg.Python))
	}

	if sopts.UploadPort != "" {
		opts = append(opts, buildenv.WithVar(buildenv.UPLOAD_PORT, sopts.UploadPort))
	}

	if sopts.UploadSpeed != "" {
		opts = append(opts, buildenv.WithVar(buildenv.UPLOAD_SPEED, sopts.UploadSpeed))
	}

	if len(overrides) > 0 {
		opts = append(opts, buildenv.WithProjectOptions(overrides))
	}

	return platform.Setup(ctx, proj, sopts.Env, platformDir, opts...)
}

// EngineOptions returns the engine options derived from the configuration.
func EngineOptions(ctx context.Context) []engine.EngineOption {
	cfg := config.G(ctx)

	jobs := cfg.Jobs
	if cfg.NoParallel {
		jobs = 1
	}

	return []engine.EngineOption{
		engine.WithJobs(jobs),
	}
}
