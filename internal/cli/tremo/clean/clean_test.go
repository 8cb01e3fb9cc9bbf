// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package clean_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tremokit.sh/internal/cli/tremo/clean"
	"tremokit.sh/internal/errs"
	"tremokit.sh/log"
	"tremokit.sh/project"
)

const ini = `[platformio]
default_envs = b

[env:a]
framework = tremo

[env:b]
framework = tremo
`

func newProject(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "platformio.ini"), []byte(ini), 0o644))

	for _, env := range []string{"a", "b"} {
		out := filepath.Join(dir, ".pio", "build", env)
		require.NoError(t, os.MkdirAll(out, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(out, "firmware.elf"), nil, 0o644))
	}

	return dir
}

func TestDirs(t *testing.T) {
	dir := newProject(t)
	proj, err := project.Load(dir)
	require.NoError(t, err)

	tests := []struct {
		name string
		env  string
		all  bool
		want []string
	}{
		{name: "default environment", want: []string{filepath.Join(dir, ".pio", "build", "b")}},
		{name: "named environment", env: "a", want: []string{filepath.Join(dir, ".pio", "build", "a")}},
		{name: "all", all: true, want: []string{filepath.Join(dir, ".pio", "build")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := clean.Dirs(proj, tt.env, tt.all)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err = clean.Dirs(proj, "c", false)
	assert.True(t, errs.IsNotFoundError(err))
}

func TestRunRemovesEnvironment(t *testing.T) {
	dir := newProject(t)

	var logs bytes.Buffer
	ctx := log.WithLogger(context.Background(), log.New(&logs, log.BASIC, "info", false))

	opts := &clean.CleanOptions{Env: "a", Yes: true}
	require.NoError(t, opts.Run(ctx, []string{dir}))

	assert.NoDirExists(t, filepath.Join(dir, ".pio", "build", "a"))
	assert.DirExists(t, filepath.Join(dir, ".pio", "build", "b"))
	assert.Contains(t, logs.String(), `msg=removed`)

	logs.Reset()
	require.NoError(t, opts.Run(ctx, []string{dir}))
	assert.Contains(t, logs.String(), `msg="nothing to clean"`)
}

func TestRunRemovesAll(t *testing.T) {
	dir := newProject(t)

	opts := &clean.CleanOptions{All: true, Yes: true}
	require.NoError(t, opts.Run(context.Background(), []string{dir}))

	assert.NoDirExists(t, filepath.Join(dir, ".pio", "build"))
	assert.FileExists(t, filepath.Join(dir, "platformio.ini"))
}
