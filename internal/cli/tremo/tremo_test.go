// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package tremo

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCmdSubcommands(t *testing.T) {
	cmd := NewCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}

	assert.ElementsMatch(t, []string{"build", "upload", "clean", "env", "version"}, names)
	assert.True(t, cmd.ContainsGroup("build"))
	assert.True(t, cmd.ContainsGroup("misc"))
}

func TestHelpGroupsCommands(t *testing.T) {
	cmd := NewCmd()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))

	help := out.String()
	build := strings.Index(help, "BUILD COMMANDS")
	misc := strings.Index(help, "MISCELLANEOUS COMMANDS")
	require.NotEqual(t, -1, build)
	require.NotEqual(t, -1, misc)
	assert.Less(t, build, misc)
	assert.Contains(t, help, "Build the firmware of a project")
	assert.Contains(t, help, "Show the configured build environment")
}

func TestRunWithoutSubcommandShowsHelp(t *testing.T) {
	opts := &TremoOptions{}
	assert.ErrorIs(t, opts.Run(context.Background(), nil), pflag.ErrHelp)
}

func TestEnvAlias(t *testing.T) {
	cmd := NewCmd()

	found, _, err := cmd.Find([]string{"envdump"})
	require.NoError(t, err)
	assert.Equal(t, "env", found.Name())
}
