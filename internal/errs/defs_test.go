// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package errs

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassification(t *testing.T) {
	testCases := []struct {
		desc        string
		err         error
		config      bool
		toolchain   bool
		unsupported bool
	}{
		{
			desc:   "missing option",
			err:    Config("asr_framework_path not defined in platformio.ini"),
			config: true,
		},
		{
			desc:        "unsupported framework",
			err:         Unsupported("Unsupported framework: %v", []string{"arduino"}),
			config:      true,
			unsupported: true,
		},
		{
			desc:      "compiler failure",
			err:       Toolchain(errors.New("exit status 1")),
			toolchain: true,
		},
		{
			desc:   "wrapped configuration error",
			err:    fmt.Errorf("could not configure: %w", Config("bad")),
			config: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.config, IsConfigError(tc.err))
			assert.Equal(t, tc.toolchain, IsToolchainError(tc.err))
			assert.Equal(t, tc.unsupported, IsUnsupportedError(tc.err))
			assert.Equal(t, 1, ExitCode(tc.err))
		})
	}
}

func TestExitCodeNil(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Nil(t, Toolchain(nil))
}

func TestExitCodePropagatesChildStatus(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	err := exec.CommandContext(context.Background(), "sh", "-c", "exit 3").Run()
	require.Error(t, err)

	assert.Equal(t, 3, ExitCode(Toolchain(fmt.Errorf("linking: %w", err))))
	// Unclassified failures never leak the child status
	assert.Equal(t, 1, ExitCode(err))
}
