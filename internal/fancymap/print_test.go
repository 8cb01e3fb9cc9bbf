// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package fancymap

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintFancyMap(t *testing.T) {
	var buf bytes.Buffer

	PrintFancyMap(&buf, "Build complete", true,
		FancyMapEntry{Key: "env", Value: "asr6601"},
		FancyMapEntry{Key: "firmware", Value: ".pio/build/asr6601/firmware.bin", Right: "(52 kB)"},
	)

	want := "\n" +
		"[●] Build complete\n" +
		" │\n" +
		" ├────── env: asr6601\n" +
		" └─ firmware: .pio/build/asr6601/firmware.bin (52 kB)\n" +
		"\n"

	assert.Equal(t, want, buf.String())
}

func TestPrintFancyMapNoEntries(t *testing.T) {
	var buf bytes.Buffer

	PrintFancyMap(&buf, "Nothing to do", false)

	assert.Equal(t, "\n[●] Nothing to do\n │\n\n", buf.String())
}
