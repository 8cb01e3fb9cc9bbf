// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package board

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const asr6601 = `{
  "build": {
    "cpu": "cortex-m4",
    "f_cpu": 48000000
  },
  "name": "ASR6601",
  "upload": {
    "maximum_size": 262144,
    "offset_address": "0x08000000",
    "protocol": "tremo_loader"
  }
}`

func TestFindAndLookup(t *testing.T) {
	platformBoards := t.TempDir()
	projectBoards := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(platformBoards, "asr6601.json"), []byte(asr6601), 0o644))

	b, err := Find("asr6601", projectBoards, platformBoards)
	require.NoError(t, err)

	assert.Equal(t, "asr6601", b.ID())
	assert.Equal(t, "0x08000000", b.Get("upload.offset_address", "0x0"))
	assert.Equal(t, "48000000", b.Get("build.f_cpu", ""))
	assert.Equal(t, "fallback", b.Get("upload", "fallback"))
	assert.Equal(t, "fallback", b.Get("upload.offset_address.x", "fallback"))
}

func TestMissingManifestUsesDefaults(t *testing.T) {
	b, err := Find("unknown", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "0x08000000", b.Get("upload.offset_address", "0x08000000"))

	var nilBoard *Board
	assert.Equal(t, "d", nilBoard.Get("a.b", "d"))
}

func TestOverride(t *testing.T) {
	b, err := Parse("asr6601", []byte(asr6601))
	require.NoError(t, err)

	o := b.Override(map[string]string{"upload.offset_address": "0x08010000"})

	assert.Equal(t, "0x08010000", o.Get("upload.offset_address", ""))
	assert.Equal(t, "0x08000000", b.Get("upload.offset_address", ""))
	assert.Equal(t, "tremo_loader", o.Get("upload.protocol", ""))
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse("broken", []byte("{"))
	assert.Error(t, err)
}
