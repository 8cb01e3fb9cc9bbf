// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package upload

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
	"tremokit.sh/log"
)

type recorder struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recorder) run(_ context.Context, _ string, argv []string, _, _ io.Writer) error {
	r.mu.Lock()
	r.calls = append(r.calls, argv)
	r.mu.Unlock()

	if strings.HasSuffix(argv[0], "-objcopy") {
		return os.WriteFile(argv[len(argv)-1], nil, 0o644)
	}

	for i, arg := range argv {
		if arg == "-o" && i+1 < len(argv) {
			return os.WriteFile(argv[i+1], nil, 0o644)
		}
	}

	return nil
}

func (r *recorder) loader() []string {
	for _, call := range r.calls {
		if call[0] == "python3" {
			return call
		}
	}

	return nil
}

func setup(t *testing.T) (context.Context, *bytes.Buffer, string) {
	t.Helper()

	sdk := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(sdk, "system"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sdk, "system", "system_cm4.c"), nil, 0o644))

	project := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(project, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(project, "src", "main.c"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(project, "platformio.ini"), []byte(fmt.Sprintf(
		"[env:asr6601]\nframework = tremo\nboard = asr6601\nasr_framework_path = %s\n", sdk,
	)), 0o644))

	cfgm, err := config.NewConfigManager()
	require.NoError(t, err)
	cfgm.Config.Paths.Platform = t.TempDir()
	cfgm.Config.Python = "python3"

	logs := &bytes.Buffer{}
	ctx := config.WithConfigManager(context.Background(), cfgm)
	ctx = log.WithLogger(ctx, log.New(logs, log.BASIC, "info", false))

	return ctx, logs, project
}

func TestRunFlashesOverPort(t *testing.T) {
	ctx, logs, project := setup(t)
	r := &recorder{}

	opts := &UploadOptions{UploadPort: "/dev/ttyUSB1", UploadSpeed: "460800"}
	opts.build.Out = io.Discard
	opts.build.Runner = r.run

	require.NoError(t, opts.Run(ctx, []string{project}))

	loader := r.loader()
	require.NotNil(t, loader)
	assert.Equal(t, []string{"-p", "/dev/ttyUSB1", "-b", "460800", "flash", "0x08000000"}, loader[2:8])
	assert.Equal(t, filepath.Join(project, ".pio", "build", "asr6601", "firmware.bin"), loader[8])
	assert.Contains(t, logs.String(), `msg="firmware uploaded"`)
}

func TestRunDryRun(t *testing.T) {
	ctx, logs, project := setup(t)
	r := &recorder{}

	var out bytes.Buffer
	opts := &UploadOptions{DryRun: true, UploadPort: "/dev/ttyUSB1"}
	opts.build.Out = &out
	opts.build.Runner = r.run

	require.NoError(t, opts.Run(ctx, []string{project}))

	assert.Empty(t, r.calls)
	assert.Contains(t, out.String(), "python3 ")
	assert.Contains(t, out.String(), "-p /dev/ttyUSB1")
	assert.NotContains(t, logs.String(), "firmware uploaded")
}

func TestRunRequiresPort(t *testing.T) {
	ctx, _, project := setup(t)
	r := &recorder{}

	opts := &UploadOptions{}
	opts.build.Out = io.Discard
	opts.build.Runner = r.run

	err := opts.Run(ctx, []string{project})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload_port is not defined")
	assert.Empty(t, r.calls)
}
