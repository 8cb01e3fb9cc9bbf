// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package buildenv

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tremokit.sh/project"
)

func newEnv(t *testing.T, opts ...EnvironmentOption) *Environment {
	t.Helper()

	env, err := New(opts...)
	require.NoError(t, err)

	return env
}

func touch(t *testing.T, paths ...string) {
	t.Helper()

	for _, p := range paths {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("/* */\n"), 0o644))
	}
}

func TestSubst(t *testing.T) {
	env := newEnv(t,
		WithVar(BUILD_DIR, "/w/.pio/build/asr"),
		WithVar(CCFLAGS, "-Os", "-mthumb"),
		WithVar("LOOP", "$LOOP"),
	)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "no variables", "no variables"},
		{"bare", "$BUILD_DIR/x.o", "/w/.pio/build/asr/x.o"},
		{"braced", "$BUILD_DIR/${PROGNAME}.elf", "/w/.pio/build/asr/firmware.elf"},
		{"list", "gcc $CCFLAGS", "gcc -Os -mthumb"},
		{"nested", "$LINK", ""},
		{"unknown", "a${NOPE}b", "ab"},
		{"escaped", "$$HOME", "$HOME"},
		{"cycle", "$LOOP", "$LOOP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, env.Subst(tt.in))
		})
	}

	env.Replace(CC, "arm-none-eabi-gcc")
	assert.Equal(t, "arm-none-eabi-gcc", env.Subst("$LINK"))
}

func TestReplaceAndAppend(t *testing.T) {
	env := newEnv(t)

	env.Append(CPPPATH, "a")
	env.Append(CPPPATH, "b", "c")
	assert.Equal(t, []string{"a", "b", "c"}, env.List(CPPPATH))

	env.Replace(CPPPATH, "z")
	assert.Equal(t, "z", env.Get(CPPPATH))
	assert.True(t, env.Has(CPPPATH))
	assert.False(t, env.Has(LIBS))

	env.Append(CPPDEFINES, "A", "$EMPTY", "B")
	assert.Equal(t, []string{"A", "B"}, env.SubstList(CPPDEFINES))
}

func TestNewFromProject(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, project.DefaultFileName), []byte("[env:asr]\nframework = tremo\nuse_printf = yes\n"), 0o644))

	proj, err := project.Load(dir)
	require.NoError(t, err)

	penv, err := proj.Environment("")
	require.NoError(t, err)

	env, err := NewFromProject(proj, penv, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, ".pio", "build", "asr"), env.Get(BUILD_DIR))
	assert.Equal(t, filepath.Join(dir, "src"), env.Get(PROJECT_SRC_DIR))
	assert.Equal(t, []string{"tremo"}, env.List(PIOFRAMEWORK))
	assert.Equal(t, "asr", env.Get(PIOENV))
	assert.Equal(t, "yes", env.GetProjectOption("use_printf", "no"))
	assert.Equal(t, "UART0", env.GetProjectOption("debug_uart", "UART0"))
	assert.Equal(t, "0x08000000", env.BoardConfig().Get("upload.offset_address", "0x08000000"))
}

func TestWithProjectOptions(t *testing.T) {
	penv := project.NewEnvironment("asr", map[string]string{"upload_port": "/dev/ttyUSB0"})

	env := newEnv(t,
		WithProjectEnvironment(penv),
		WithProjectOptions(map[string]string{"upload_port": "COM3", "upload_speed": "115200"}),
	)

	assert.Equal(t, "COM3", env.GetProjectOption("upload_port", ""))
	assert.Equal(t, "115200", env.GetProjectOption("upload_speed", ""))
	assert.Equal(t, "/dev/ttyUSB0", penv.Get("upload_port", ""))

	bare := newEnv(t, WithProjectOptions(map[string]string{"debug_uart": "UART1"}))
	assert.Equal(t, "UART1", bare.GetProjectOption("debug_uart", "UART0"))
}

func TestNodesDeduplicate(t *testing.T) {
	env := newEnv(t, WithVar(BUILD_DIR, "/b"))

	a := env.Object("$BUILD_DIR/a.o", "/s/a.c")
	again := env.Object("/b/a.o", "/s/other.c")
	assert.Same(t, a, again)

	elf := env.Program("$BUILD_DIR/${PROGNAME}.elf", []*Node{a})
	bin := env.Command("$BUILD_DIR/${PROGNAME}.bin", elf, VerboseAction("$OBJCOPY -O binary $SOURCE $TARGET", "bin"))

	env.Default(elf)
	env.Default(elf, bin)
	assert.Equal(t, []*Node{elf, bin}, env.Defaults())

	n, ok := env.Node("/b/firmware.bin")
	require.True(t, ok)
	assert.Same(t, bin, n)
	assert.Equal(t, []string{"/b/firmware.elf"}, bin.Inputs())
	assert.Equal(t, []string{"/s/a.c"}, a.Inputs())
}

func TestCustomTargets(t *testing.T) {
	env := newEnv(t)

	require.NoError(t, env.AddCustomTarget(CustomTarget{Name: "upload"}))
	assert.Error(t, env.AddCustomTarget(CustomTarget{Name: "upload"}))
	assert.Error(t, env.AddCustomTarget(CustomTarget{Name: " "}))

	_, ok := env.CustomTarget("upload")
	assert.True(t, ok)
	assert.Equal(t, []string{"upload"}, env.CustomTargets())
}

func TestExpandAction(t *testing.T) {
	env := newEnv(t, WithVar(OBJCOPY, "arm-none-eabi-objcopy"))

	got := env.ExpandAction(
		VerboseAction("$OBJCOPY -O binary $SOURCE $TARGET", "Generating BIN from ELF"),
		[]string{"/my project/firmware.elf"},
		"/my project/firmware.bin",
	)

	assert.Equal(t, `arm-none-eabi-objcopy -O binary "/my project/firmware.elf" "/my project/firmware.bin"`, got)
}

func TestSrcFilter(t *testing.T) {
	tests := []struct {
		name   string
		exprs  []string
		path   string
		expect bool
	}{
		{"default", nil, "main.c", true},
		{"default nested", nil, "drivers/uart.c", true},
		{"excluded file", []string{"+<*>", "-<printf-stdarg.c>"}, "printf-stdarg.c", false},
		{"other file kept", []string{"+<*>", "-<printf-stdarg.c>"}, "system_cm4.c", true},
		{"single expression", []string{"+<*> -<printf-stdarg.c>"}, "printf-stdarg.c", false},
		{"excluded dir", []string{"+<*>", "-<test/>"}, "test/unit.c", false},
		{"reincluded", []string{"-<*>", "+<keep.c>"}, "keep.c", true},
		{"not included", []string{"+<a.c>"}, "b.c", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseSrcFilter(tt.exprs...)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, f.Match(tt.path))
		})
	}

	_, err := ParseSrcFilter("printf-stdarg.c")
	assert.Error(t, err)
}

func TestBuildSources(t *testing.T) {
	src := t.TempDir()
	touch(t,
		filepath.Join(src, "system_cm4.c"),
		filepath.Join(src, "printf-stdarg.c"),
		filepath.Join(src, "startup_cm4.S"),
		filepath.Join(src, "sub", "util.cpp"),
		filepath.Join(src, "README.md"),
		filepath.Join(src, ".hidden", "skip.c"),
	)

	env := newEnv(t, WithVar(BUILD_DIR, "/b"))

	nodes, err := env.BuildSources(context.Background(), "$BUILD_DIR/framework/system", src, "+<*>", "-<printf-stdarg.c>")
	require.NoError(t, err)

	var paths []string
	for _, n := range nodes {
		assert.Equal(t, KindObject, n.Kind)
		paths = append(paths, n.Path)
	}

	assert.Equal(t, []string{
		"/b/framework/system/startup_cm4.o",
		"/b/framework/system/sub/util.o",
		"/b/framework/system/system_cm4.o",
	}, paths)
	assert.Equal(t, nodes, env.BuildFiles())
	assert.Equal(t, filepath.Join(src, "startup_cm4.S"), nodes[0].Source)
}

func TestBuildSourcesMissingDir(t *testing.T) {
	env := newEnv(t)

	nodes, err := env.BuildSources(context.Background(), "/b", filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, nodes)
	assert.Empty(t, env.BuildFiles())
}

func TestParseFlags(t *testing.T) {
	parsed, err := ParseFlags(`-DFOO=1 -D BAR -Iinclude -I "my inc" -L/opt/lib -lm -Wl,-Map,out.map -O2`)
	require.NoError(t, err)

	assert.Equal(t, ParsedFlags{
		CPPDEFINES: {"FOO=1", "BAR"},
		CPPPATH:    {"include", "my inc"},
		LIBPATH:    {"/opt/lib"},
		LIBS:       {"m"},
		LINKFLAGS:  {"-Wl,-Map,out.map"},
		CCFLAGS:    {"-O2"},
	}, parsed)

	_, err = ParseFlags("-I")
	assert.Error(t, err)
}

func TestProcessProjectFlags(t *testing.T) {
	env := newEnv(t,
		WithProjectEnvironment(project.NewEnvironment("asr", map[string]string{
			"build_flags": "\n-DAPP_VERSION=2\n-Wl,--print-memory-usage",
		})),
		WithVar(CPPDEFINES, "USE_PRINTF"),
	)

	require.NoError(t, env.ProcessProjectFlags())
	assert.Equal(t, []string{"USE_PRINTF", "APP_VERSION=2"}, env.List(CPPDEFINES))
	assert.Equal(t, []string{"-Wl,--print-memory-usage"}, env.List(LINKFLAGS))
}

func TestDumpAndGraph(t *testing.T) {
	env := newEnv(t, WithVar(BUILD_DIR, "/b"), WithVar(PIOENV, "asr"), WithVar(CCFLAGS, "-Os", "-mthumb"))

	obj := env.Object("/b/src/main.o", "/p/src/main.c")
	elf := env.Program("/b/firmware.elf", []*Node{obj})
	env.Default(elf)
	require.NoError(t, env.AddCustomTarget(CustomTarget{Name: "upload", Dependencies: []*Node{elf}}))

	var buf bytes.Buffer
	require.NoError(t, env.Dump(&buf))
	assert.Contains(t, buf.String(), "BUILD_DIR = /b\n")
	assert.Contains(t, buf.String(), "CCFLAGS =\n    -Os\n    -mthumb\n")

	graph := env.Graph("/b")
	assert.Contains(t, graph, "asr")
	assert.Contains(t, graph, "firmware.elf [program]")
	assert.Contains(t, graph, "src/main.o [object]")
	assert.Contains(t, graph, "upload [target]")
}
