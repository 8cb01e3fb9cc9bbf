// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package platform

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tremokit.sh/buildenv"
	"tremokit.sh/internal/errs"
	"tremokit.sh/project"
)

// withConfigurators swaps the registry for the duration of a test.
func withConfigurators(t *testing.T, registry map[string]Configurator) {
	t.Helper()

	mu.Lock()
	saved := configurators
	configurators = registry
	mu.Unlock()

	t.Cleanup(func() {
		mu.Lock()
		configurators = saved
		mu.Unlock()
	})
}

func TestRegister(t *testing.T) {
	withConfigurators(t, map[string]Configurator{})

	noop := func(context.Context, *buildenv.Environment) error { return nil }

	require.NoError(t, Register("tremo", noop))
	require.NoError(t, Register("arduino", noop))
	assert.Equal(t, []string{"arduino", "tremo"}, Registered())

	err := Register("tremo", noop)
	assert.True(t, errs.IsInvalidError(err))

	assert.True(t, errs.IsInvalidError(Register("", noop)))
	assert.True(t, errs.IsInvalidError(Register("mbed", nil)))
}

func TestDispatch(t *testing.T) {
	var called int
	withConfigurators(t, map[string]Configurator{
		SupportedFramework: func(_ context.Context, env *buildenv.Environment) error {
			called++
			env.Replace(buildenv.CC, "arm-none-eabi-gcc")
			return nil
		},
	})

	tests := []struct {
		name       string
		frameworks []string
		calls      int
		wantErr    string
	}{
		{name: "tremo", frameworks: []string{"tremo"}, calls: 1},
		{name: "tremo among others", frameworks: []string{"arduino", "tremo"}, calls: 1},
		{name: "other framework", frameworks: []string{"arduino"}, wantErr: "Unsupported framework: [arduino]"},
		{name: "no framework", wantErr: "Unsupported framework: []"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called = 0

			env, err := buildenv.New(buildenv.WithVar(buildenv.PIOFRAMEWORK, tt.frameworks...))
			require.NoError(t, err)

			err = Dispatch(context.Background(), env)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, errs.IsUnsupportedError(err))
				assert.Equal(t, tt.wantErr, err.Error())
				assert.False(t, env.Has(buildenv.CC))
				assert.Zero(t, called)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.calls, called)
			assert.Equal(t, "arm-none-eabi-gcc", env.Get(buildenv.CC))
		})
	}
}

func TestDispatchWithoutConfigurator(t *testing.T) {
	withConfigurators(t, map[string]Configurator{})

	env, err := buildenv.New(buildenv.WithVar(buildenv.PIOFRAMEWORK, SupportedFramework))
	require.NoError(t, err)

	assert.True(t, errs.IsUnsupportedError(Dispatch(context.Background(), env)))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadBoard(t *testing.T) {
	dir := t.TempDir()
	platformDir := t.TempDir()

	writeFile(t, filepath.Join(dir, "platformio.ini"), `[env:local]
board = mine
board_upload.offset_address = 0x08010000

[env:shared]
board = asr6601
`)
	writeFile(t, filepath.Join(dir, "boards", "mine.json"), `{"upload": {"offset_address": "0x08000000", "maximum_size": 131072}}`)
	writeFile(t, filepath.Join(platformDir, "boards", "asr6601.json"), `{"build": {"mcu": "asr6601"}}`)
	writeFile(t, filepath.Join(platformDir, "boards", "mine.json"), `{"build": {"mcu": "shadowed"}}`)

	proj, err := project.Load(dir)
	require.NoError(t, err)

	local, err := proj.Environment("local")
	require.NoError(t, err)

	b, err := LoadBoard(proj, local, platformDir)
	require.NoError(t, err)
	assert.Equal(t, "0x08010000", b.Get("upload.offset_address", ""))
	assert.Equal(t, "131072", b.Get("upload.maximum_size", ""))
	assert.Equal(t, "", b.Get("build.mcu", ""))

	shared, err := proj.Environment("shared")
	require.NoError(t, err)

	b, err = LoadBoard(proj, shared, platformDir)
	require.NoError(t, err)
	assert.Equal(t, "asr6601", b.Get("build.mcu", ""))
}

func TestSetupAppliesBuildFlagsAfterDispatch(t *testing.T) {
	withConfigurators(t, map[string]Configurator{
		SupportedFramework: func(_ context.Context, env *buildenv.Environment) error {
			env.Append(buildenv.CPPDEFINES, "CONFIG_DEBUG_UART=UART0")
			return nil
		},
	})

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "platformio.ini"), `[env:asr6601]
framework = tremo
build_flags =
    -DAPP=1
    -Iinclude -lm
`)

	proj, err := project.Load(dir)
	require.NoError(t, err)

	env, err := Setup(context.Background(), proj, "", "/opt/platform")
	require.NoError(t, err)

	assert.Equal(t, "/opt/platform", env.Get(buildenv.PLATFORM_DIR))
	assert.Equal(t, filepath.Join(dir, ".pio", "build", "asr6601"), env.Get(buildenv.BUILD_DIR))
	assert.Equal(t, []string{"CONFIG_DEBUG_UART=UART0", "APP=1"}, env.List(buildenv.CPPDEFINES))
	assert.Equal(t, []string{"include"}, env.List(buildenv.CPPPATH))
	assert.Equal(t, []string{"m"}, env.List(buildenv.LIBS))
}

func TestSetupErrors(t *testing.T) {
	withConfigurators(t, map[string]Configurator{})

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "platformio.ini"), "[env:asr6601]\nframework = tremo\nboard = broken\n")
	writeFile(t, filepath.Join(dir, "boards", "broken.json"), "{")

	proj, err := project.Load(dir)
	require.NoError(t, err)

	_, err = Setup(context.Background(), proj, "nope", "")
	assert.True(t, errs.IsNotFoundError(err))

	_, err = Setup(context.Background(), proj, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `could not load board "broken"`)
}
