// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package toolchain

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Size holds the section sizes of a linked image.
type Size struct {
	Text uint64
	Data uint64
	BSS  uint64
}

// Flash returns the bytes stored in flash: code, read-only data and the
// initializers of the data section.
func (s Size) Flash() uint64 {
	return s.Text + s.Data
}

// RAM returns the statically allocated memory.
func (s Size) RAM() uint64 {
	return s.Data + s.BSS
}

// ParseSize parses the output of `size -B -d`:
//
//	   text    data     bss     dec     hex filename
//	  10244     112    2096   12452    30a4 firmware.elf
func ParseSize(out []byte) (*Size, error) {
	scanner := bufio.NewScanner(bytes.NewReader(out))

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 || fields[0] == "text" {
			continue
		}

		var values [3]uint64
		for i := range values {
			v, err := strconv.ParseUint(fields[i], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("unexpected size output %q: %w", scanner.Text(), err)
			}
			values[i] = v
		}

		return &Size{
			Text: values[0],
			Data: values[1],
			BSS:  values[2],
		}, nil
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return nil, fmt.Errorf("no section sizes in size output")
}
