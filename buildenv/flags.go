// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package buildenv

import (
	"fmt"
	"strings"

	"github.com/mattn/go-shellwords"

	"tremokit.sh/internal/errs"
)

// ParsedFlags holds a compiler/linker command line sorted into construction
// variables.
type ParsedFlags map[string][]string

// ParseFlags splits a command line the way a POSIX shell would and sorts each
// argument into the construction variable it belongs to:
//
//	-DNAME[=value]  CPPDEFINES
//	-Ipath          CPPPATH
//	-Lpath          LIBPATH
//	-lname          LIBS
//	-Wl,...         LINKFLAGS
//	anything else   CCFLAGS
//
// Options taking a separate argument (`-I path`, `-D NAME`) are accepted too.
func ParseFlags(flags ...string) (ParsedFlags, error) {
	parsed := ParsedFlags{}

	parser := shellwords.NewParser()
	parser.ParseEnv = false
	parser.ParseBacktick = false

	var args []string
	for _, line := range flags {
		words, err := parser.Parse(line)
		if err != nil {
			return nil, fmt.Errorf("could not parse flags %q: %w", line, err)
		}

		args = append(args, words...)
	}

	prefixed := []struct {
		prefix string
		key    string
	}{
		{"-D", CPPDEFINES},
		{"-I", CPPPATH},
		{"-L", LIBPATH},
		{"-l", LIBS},
	}

next:
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-Wl,") {
			parsed[LINKFLAGS] = append(parsed[LINKFLAGS], arg)
			continue
		}

		for _, p := range prefixed {
			value, ok := strings.CutPrefix(arg, p.prefix)
			if !ok {
				continue
			}

			if value == "" {
				if i+1 >= len(args) {
					return nil, fmt.Errorf("flag %s expects an argument", p.prefix)
				}

				i++
				value = args[i]
			}

			parsed[p.key] = append(parsed[p.key], value)
			continue next
		}

		parsed[CCFLAGS] = append(parsed[CCFLAGS], arg)
	}

	return parsed, nil
}

// MergeFlags appends parsed flags to the environment.
func (env *Environment) MergeFlags(parsed ParsedFlags) {
	for _, key := range []string{CPPDEFINES, CPPPATH, LIBPATH, LIBS, LINKFLAGS, CCFLAGS} {
		if values, ok := parsed[key]; ok {
			env.Append(key, values...)
		}
	}
}

// ProcessProjectFlags applies the project's `build_flags` option to the
// environment.  Lines of a multi-line value are parsed individually.
func (env *Environment) ProcessProjectFlags() error {
	raw := env.GetProjectOption("build_flags", "")
	if raw == "" {
		return nil
	}

	parsed, err := ParseFlags(strings.Split(raw, "\n")...)
	if err != nil {
		return errs.Config("invalid build_flags: %w", err)
	}

	env.MergeFlags(parsed)

	return nil
}
