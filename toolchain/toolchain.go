// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package toolchain composes GCC and binutils command lines from the
// construction variables of a build environment.
package toolchain

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cli/safeexec"
	"github.com/google/shlex"

	"tremokit.sh/buildenv"
	"tremokit.sh/exec"
	"tremokit.sh/internal/errs"
)

// Language is the dialect a source file is compiled as.
type Language string

const (
	LanguageC   = Language("c")
	LanguageCXX = Language("c++")
	// LanguageAsmCPP is assembly passed through the C preprocessor.
	LanguageAsmCPP = Language("assembler-with-cpp")
	LanguageAsm    = Language("assembler")
)

// LanguageOf returns the language of a source file from its extension.
// Upper case `.S` is preprocessed assembly, lower case `.s` is not.
func LanguageOf(source string) (Language, error) {
	switch filepath.Ext(source) {
	case ".c":
		return LanguageC, nil
	case ".cc", ".cpp", ".cxx":
		return LanguageCXX, nil
	case ".S", ".sx":
		return LanguageAsmCPP, nil
	case ".s", ".asm":
		return LanguageAsm, nil
	}

	return "", fmt.Errorf("%w: no compiler for source file %s", errs.ErrUnsupported, source)
}

// tool expands a tool variable and splits it into its argument vector so that
// wrappers such as `ccache arm-none-eabi-gcc` work.
func tool(env *buildenv.Environment, key string) ([]string, error) {
	argv, err := shlex.Split(env.Subst("$" + key))
	if err != nil {
		return nil, fmt.Errorf("could not split %s: %w", key, err)
	}

	if len(argv) == 0 {
		return nil, errs.Config("%s is not set", key)
	}

	return argv, nil
}

func prefixed(prefix string, values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, prefix+v)
	}

	return out
}

// Defines renders CPPDEFINES as `-D` arguments.  `NAME=value` entries are
// passed through as raw tokens.
func Defines(env *buildenv.Environment) []string {
	return prefixed("-D", env.SubstList(buildenv.CPPDEFINES))
}

// Includes renders CPPPATH as `-I` arguments.
func Includes(env *buildenv.Environment) []string {
	return prefixed("-I", env.SubstList(buildenv.CPPPATH))
}

// CompileCommand returns the argument vector which produces an object node
// from its source.
func CompileCommand(env *buildenv.Environment, obj *buildenv.Node) ([]string, error) {
	if obj == nil || obj.Kind != buildenv.KindObject {
		return nil, fmt.Errorf("%w: not an object node", errs.ErrInvalid)
	}

	lang, err := LanguageOf(obj.Source)
	if err != nil {
		return nil, err
	}

	var argv []string
	switch lang {
	case LanguageC:
		if argv, err = tool(env, buildenv.CC); err != nil {
			return nil, err
		}
		argv = append(argv, env.SubstList(buildenv.CCFLAGS)...)
		argv = append(argv, env.SubstList(buildenv.CFLAGS)...)
		argv = append(argv, Defines(env)...)
		argv = append(argv, Includes(env)...)

	case LanguageCXX:
		if argv, err = tool(env, buildenv.CXX); err != nil {
			return nil, err
		}
		argv = append(argv, env.SubstList(buildenv.CXXFLAGS)...)
		argv = append(argv, env.SubstList(buildenv.CCFLAGS)...)
		argv = append(argv, Defines(env)...)
		argv = append(argv, Includes(env)...)

	case LanguageAsmCPP:
		if argv, err = tool(env, buildenv.AS); err != nil {
			return nil, err
		}
		argv = append(argv, "-x", string(LanguageAsmCPP))
		argv = append(argv, env.SubstList(buildenv.ASFLAGS)...)
		argv = append(argv, Defines(env)...)
		argv = append(argv, Includes(env)...)

	case LanguageAsm:
		if argv, err = tool(env, buildenv.AS); err != nil {
			return nil, err
		}
		argv = append(argv, env.SubstList(buildenv.ASFLAGS)...)
	}

	return append(argv, "-c", "-o", obj.Path, obj.Source), nil
}

// LinkCommand returns the argument vector which links a program node.
// Libraries are wrapped in a group so that their order does not matter.
func LinkCommand(env *buildenv.Environment, program *buildenv.Node) ([]string, error) {
	if program == nil || program.Kind != buildenv.KindProgram {
		return nil, fmt.Errorf("%w: not a program node", errs.ErrInvalid)
	}

	argv, err := tool(env, buildenv.LINK)
	if err != nil {
		return nil, err
	}

	argv = append(argv, "-o", program.Path)
	argv = append(argv, env.SubstList(buildenv.LINKFLAGS)...)
	argv = append(argv, program.Inputs()...)
	argv = append(argv, prefixed("-L", env.SubstList(buildenv.LIBPATH))...)

	if libs := env.SubstList(buildenv.LIBS); len(libs) > 0 {
		argv = append(argv, "-Wl,--start-group")
		argv = append(argv, prefixed("-l", libs)...)
		argv = append(argv, "-Wl,--end-group")
	}

	return argv, nil
}

// ActionCommand expands an action template for a target and splits it into
// an argument vector with shell quoting rules.
func ActionCommand(env *buildenv.Environment, action buildenv.Action, sources []string, target string) ([]string, error) {
	cmdline := env.ExpandAction(action, sources, target)

	argv, err := shlex.Split(cmdline)
	if err != nil {
		return nil, fmt.Errorf("could not split command %q: %w", cmdline, err)
	}

	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: action %q expands to an empty command", errs.ErrInvalid, action.Command)
	}

	return argv, nil
}

// NodeCommand returns the argument vector producing any file node.
func NodeCommand(env *buildenv.Environment, n *buildenv.Node) ([]string, error) {
	switch n.Kind {
	case buildenv.KindObject:
		return CompileCommand(env, n)
	case buildenv.KindProgram:
		return LinkCommand(env, n)
	case buildenv.KindCommand:
		if n.Action == nil {
			return nil, fmt.Errorf("%w: command node %s has no action", errs.ErrInvalid, n.Path)
		}
		return ActionCommand(env, *n.Action, n.Inputs(), n.Path)
	}

	return nil, fmt.Errorf("%w: unknown node kind %s", errs.ErrInvalid, n.Kind)
}

// SizeFlags are the options of binutils' size tool.
type SizeFlags struct {
	Berkeley bool `flag:"-B"`
	Decimal  bool `flag:"-d"`
}

// SizeCommand returns the argument vector printing the Berkeley section sizes
// of an ELF image in decimal.
func SizeCommand(env *buildenv.Environment, elf string) ([]string, error) {
	argv, err := tool(env, buildenv.SIZE)
	if err != nil {
		return nil, err
	}

	args, err := exec.ParseInterfaceArgs(SizeFlags{Berkeley: true, Decimal: true}, argv[1:]...)
	if err != nil {
		return nil, err
	}

	return append(append(argv[:1:1], args...), elf), nil
}

// Verify checks that the pinned compiler and binutils can be found in PATH.
func Verify(env *buildenv.Environment, keys ...string) error {
	if len(keys) == 0 {
		keys = []string{buildenv.CC, buildenv.AS, buildenv.OBJCOPY}
	}

	var missing []error
	for _, key := range keys {
		argv, err := tool(env, key)
		if err != nil {
			missing = append(missing, err)
			continue
		}

		if _, err := safeexec.LookPath(argv[0]); err != nil {
			missing = append(missing, fmt.Errorf("%s (%s): %w", key, argv[0], errs.ErrNotFound))
		}
	}

	if len(missing) > 0 {
		return errs.Toolchain(fmt.Errorf("toolchain is not installed: %w", errors.Join(missing...)))
	}

	return nil
}

// Cmdline joins an argument vector for display, quoting arguments which
// contain whitespace.
func Cmdline(argv []string) string {
	out := make([]string, 0, len(argv))
	for _, arg := range argv {
		if arg == "" || strings.ContainsAny(arg, " \t\"'") {
			arg = `"` + strings.ReplaceAll(arg, `"`, `\"`) + `"`
		}
		out = append(out, arg)
	}

	return strings.Join(out, " ")
}
