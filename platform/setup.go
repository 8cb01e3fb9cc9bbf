// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package platform

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"tremokit.sh/board"
	"tremokit.sh/buildenv"
	"tremokit.sh/project"
)

// boardOverridePrefix marks project options overriding board manifest keys,
// e.g. `board_upload.offset_address`.
const boardOverridePrefix = "board_"

// LoadBoard finds the environment's board manifest in the project's boards
// directory, then in the platform's, and applies project overrides.
func LoadBoard(proj *project.Project, penv *project.Environment, platformDir string) (*board.Board, error) {
	dirs := []string{proj.BoardsDir()}
	if platformDir != "" {
		dirs = append(dirs, filepath.Join(platformDir, "boards"))
	}

	b, err := board.Find(penv.Board(), dirs...)
	if err != nil {
		return nil, err
	}

	overrides := map[string]string{}
	for _, key := range penv.Keys() {
		if name, ok := strings.CutPrefix(key, boardOverridePrefix); ok && name != "" {
			overrides[name] = penv.Get(key, "")
		}
	}

	if len(overrides) == 0 {
		return b, nil
	}

	return b.Override(overrides), nil
}

// Setup prepares the build environment of the named project environment: it
// loads the board, seeds the base variables, dispatches to the framework and
// finally applies the project's `build_flags`.
func Setup(ctx context.Context, proj *project.Project, envName, platformDir string, opts ...buildenv.EnvironmentOption) (*buildenv.Environment, error) {
	penv, err := proj.Environment(envName)
	if err != nil {
		return nil, err
	}

	b, err := LoadBoard(proj, penv, platformDir)
	if err != nil {
		return nil, fmt.Errorf("could not load board %q: %w", penv.Board(), err)
	}

	base := []buildenv.EnvironmentOption{
		buildenv.WithVar(buildenv.PLATFORM_DIR, platformDir),
	}

	env, err := buildenv.NewFromProject(proj, penv, b, append(base, opts...)...)
	if err != nil {
		return nil, err
	}

	if err := Dispatch(ctx, env); err != nil {
		return nil, err
	}

	if err := env.ProcessProjectFlags(); err != nil {
		return nil, err
	}

	return env, nil
}
