// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package build_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tremokit.sh/config"
	"tremokit.sh/internal/cli/tremo/build"
	"tremokit.sh/internal/errs"
	"tremokit.sh/log"

	_ "tremokit.sh/framework/tremo"
)

const sizeOutput = "   text\t   data\t    bss\t    dec\t    hex\tfilename\n  10244\t    112\t   2096\t  12452\t   30a4\tfirmware.elf\n"

// toolRunner stands in for the cross toolchain: it creates the file a tool
// would produce and prints Berkeley sizes for the size tool.
type toolRunner struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *toolRunner) run(_ context.Context, _ string, argv []string, stdout, _ io.Writer) error {
	r.mu.Lock()
	r.calls = append(r.calls, argv)
	r.mu.Unlock()

	switch {
	case strings.HasSuffix(argv[0], "-size"):
		_, err := io.WriteString(stdout, sizeOutput)
		return err
	case strings.HasSuffix(argv[0], "-objcopy"):
		return os.WriteFile(argv[len(argv)-1], []byte("bin"), 0o644)
	}

	for i, arg := range argv {
		if arg == "-o" && i+1 < len(argv) {
			return os.WriteFile(argv[i+1], []byte("obj"), 0o644)
		}
	}

	return nil
}

func (r *toolRunner) find(prefix string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, call := range r.calls {
		if strings.HasPrefix(strings.Join(call, " "), prefix) {
			return call
		}
	}

	return nil
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

type fixture struct {
	ctx      context.Context
	logs     *bytes.Buffer
	project  string
	platform string
}

func newFixture(t *testing.T, ini string) fixture {
	t.Helper()

	sdk := t.TempDir()
	writeFiles(t, sdk, map[string]string{
		"system/system_cm4.c":                 "",
		"system/printf-stdarg.c":              "",
		"drivers/peripheral/src/tremo_uart.c": "",
	})

	f := fixture{
		logs:     &bytes.Buffer{},
		project:  t.TempDir(),
		platform: t.TempDir(),
	}

	writeFiles(t, f.project, map[string]string{
		"platformio.ini": fmt.Sprintf(ini, sdk),
		"src/main.c":     "int main(void) { return 0; }\n",
	})

	cfgm, err := config.NewConfigManager()
	require.NoError(t, err)
	cfgm.Config.Paths.Platform = f.platform
	cfgm.Config.Python = "python3.11"
	cfgm.Config.Jobs = 2

	f.ctx = config.WithConfigManager(context.Background(), cfgm)
	f.ctx = log.WithLogger(f.ctx, log.New(f.logs, log.BASIC, "info", false))

	return f
}

const projectIni = `[env:asr6601]
framework = tremo
board = asr6601
asr_framework_path = %s
upload_port = /dev/ttyUSB0
`

func TestRunBuildsDefaults(t *testing.T) {
	f := newFixture(t, projectIni)
	runner := &toolRunner{}

	var out bytes.Buffer
	opts := &build.BuildOptions{Workdir: f.project, Out: &out, Runner: runner.run}
	require.NoError(t, opts.Run(f.ctx, nil))

	buildDir := filepath.Join(f.project, ".pio", "build", "asr6601")
	assert.FileExists(t, filepath.Join(buildDir, "firmware.elf"))
	assert.FileExists(t, filepath.Join(buildDir, "firmware.bin"))

	assert.Contains(t, out.String(), "Compiling .pio/build/asr6601/src/main.o")
	assert.Contains(t, out.String(), "Generating BIN from ELF")

	logs := f.logs.String()
	assert.Contains(t, logs, `msg="build completed successfully"`)
	assert.Contains(t, logs, "env=asr6601")
	assert.Contains(t, logs, "elf=.pio/build/asr6601/firmware.elf")
	assert.Contains(t, logs, `flash="10 kB"`)
	assert.Contains(t, logs, `ram="2.2 kB"`)

	// The upload target is not part of the defaults.
	assert.Nil(t, runner.find("python3.11"))
}

func TestRunUpToDate(t *testing.T) {
	f := newFixture(t, projectIni)
	runner := &toolRunner{}

	opts := &build.BuildOptions{Workdir: f.project, Out: io.Discard, Runner: runner.run}
	require.NoError(t, opts.Run(f.ctx, nil))

	f.logs.Reset()

	opts = &build.BuildOptions{Workdir: f.project, Out: io.Discard, Runner: runner.run}
	require.NoError(t, opts.Run(f.ctx, nil))

	assert.Contains(t, f.logs.String(), `msg="everything is up to date."`)
}

func TestBuildDryRunRunsNothing(t *testing.T) {
	f := newFixture(t, projectIni)
	runner := &toolRunner{}

	var out bytes.Buffer
	report, err := build.Build(f.ctx, &build.BuildOptions{
		Workdir: f.project,
		DryRun:  true,
		Out:     &out,
		Runner:  runner.run,
	})
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Empty(t, runner.calls)
	assert.Contains(t, out.String(), "arm-none-eabi-gcc ")
	assert.NoDirExists(t, filepath.Join(f.project, ".pio"))
}

func TestBuildUploadTarget(t *testing.T) {
	f := newFixture(t, projectIni)
	runner := &toolRunner{}

	_, err := build.Build(f.ctx, &build.BuildOptions{
		Workdir:     f.project,
		Targets:     []string{"upload"},
		UploadSpeed: "115200",
		Out:         io.Discard,
		Runner:      runner.run,
	})
	require.NoError(t, err)

	bin := filepath.Join(f.project, ".pio", "build", "asr6601", "firmware.bin")
	assert.Equal(t, []string{
		"python3.11",
		filepath.Join(f.platform, "builder", "scripts", "tremo_loader.py"),
		"-p", "/dev/ttyUSB0",
		"-b", "115200",
		"flash", "0x08000000",
		bin,
	}, runner.find("python3.11"))
}

func TestBuildProjectOptionOverride(t *testing.T) {
	f := newFixture(t, projectIni)
	runner := &toolRunner{}

	_, err := build.Build(f.ctx, &build.BuildOptions{
		Workdir:        f.project,
		ProjectOptions: []string{"debug_uart=UART2"},
		Out:            io.Discard,
		Runner:         runner.run,
	})
	require.NoError(t, err)

	compile := runner.find("arm-none-eabi-gcc -Wall")
	require.NotNil(t, compile)
	assert.Contains(t, compile, "-DCONFIG_DEBUG_UART=UART2")
}

func (r *toolRunner) count(pred func(argv []string) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, call := range r.calls {
		if pred(call) {
			n++
		}
	}

	return n
}

func isCompile(argv []string) bool {
	for _, arg := range argv {
		if arg == "-c" {
			return true
		}
	}

	return false
}

func hasArg(argv []string, want string) bool {
	for _, arg := range argv {
		if arg == want {
			return true
		}
	}

	return false
}

func TestBuildRebuildsWhenOptionsChange(t *testing.T) {
	f := newFixture(t, projectIni)

	rebuild := func(options ...string) *toolRunner {
		t.Helper()

		runner := &toolRunner{}
		_, err := build.Build(f.ctx, &build.BuildOptions{
			Workdir:        f.project,
			ProjectOptions: options,
			Out:            io.Discard,
			Runner:         runner.run,
		})
		require.NoError(t, err)

		return runner
	}

	runner := rebuild()
	require.Equal(t, 3, runner.count(isCompile))

	t.Run("debug uart recompiles every object", func(t *testing.T) {
		runner := rebuild("debug_uart=UART2")
		assert.Equal(t, 3, runner.count(isCompile))
		assert.Equal(t, 3, runner.count(func(argv []string) bool {
			return isCompile(argv) && hasArg(argv, "-DCONFIG_DEBUG_UART=UART2")
		}))
		assert.NotNil(t, runner.find("arm-none-eabi-objcopy"))

		assert.Empty(t, rebuild("debug_uart=UART2").calls)
	})

	t.Run("printf support recompiles with the define and wraps", func(t *testing.T) {
		runner := rebuild("debug_uart=UART2", "use_printf=yes")
		assert.Equal(t, 4, runner.count(func(argv []string) bool {
			return isCompile(argv) && hasArg(argv, "-DUSE_PRINTF")
		}))

		link := runner.find("arm-none-eabi-gcc -o")
		require.NotNil(t, link)
		assert.Contains(t, link, "-Wl,--wrap=printf")
	})

	t.Run("disabling printf relinks without the wraps", func(t *testing.T) {
		runner := rebuild("debug_uart=UART2", "use_printf=no")
		assert.Equal(t, 3, runner.count(isCompile))

		link := runner.find("arm-none-eabi-gcc -o")
		require.NotNil(t, link)
		assert.NotContains(t, link, "-Wl,--wrap=printf")
		assert.Zero(t, runner.count(func(argv []string) bool {
			return hasArg(argv, filepath.Join(f.project, ".pio", "build", "asr6601", "framework", "system", "printf-stdarg.o"))
		}))
	})
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name    string
		ini     string
		opts    build.BuildOptions
		check   func(error) bool
		message string
	}{
		{
			name:    "unsupported framework",
			ini:     "[env:asr6601]\nframework = arduino\nasr_framework_path = %s\n",
			check:   errs.IsUnsupportedError,
			message: "Unsupported framework: [arduino]",
		},
		{
			name:    "missing upload port",
			ini:     "[env:asr6601]\nframework = tremo\nasr_framework_path = %s\n",
			check:   errs.IsConfigError,
			message: "upload_port is not defined (e.g. /dev/ttyUSB0)",
		},
		{
			name:    "bad project option",
			ini:     projectIni,
			opts:    build.BuildOptions{ProjectOptions: []string{"debug_uart"}},
			check:   errs.IsInvalidError,
			message: `invalid project option "debug_uart": expected KEY=VALUE`,
		},
		{
			name:    "unknown environment",
			ini:     projectIni,
			opts:    build.BuildOptions{Env: "nope"},
			check:   errs.IsNotFoundError,
			message: `unknown environment "nope"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.ini)
			runner := &toolRunner{}

			opts := tt.opts
			opts.Workdir = f.project
			opts.Out = io.Discard
			opts.Runner = runner.run

			_, err := build.Build(f.ctx, &opts)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error class: %v", err)
			assert.Contains(t, err.Error(), tt.message)
			assert.Empty(t, runner.calls)
		})
	}
}

func TestBuildUploadPortFallback(t *testing.T) {
	f := newFixture(t, "[env:asr6601]\nframework = tremo\nasr_framework_path = %s\n")
	runner := &toolRunner{}

	_, err := build.Build(f.ctx, &build.BuildOptions{
		Workdir:    f.project,
		Targets:    []string{"upload"},
		UploadPort: " /dev/ttyACM0 ",
		Out:        io.Discard,
		Runner:     runner.run,
	})
	require.NoError(t, err)

	upload := runner.find("python3.11")
	require.NotNil(t, upload)
	assert.Equal(t, []string{"-p", "/dev/ttyACM0", "-b", "921600"}, upload[2:6])
}
