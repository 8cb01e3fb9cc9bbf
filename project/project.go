// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package project reads the PlatformIO-style project configuration file
// (platformio.ini) and exposes the options of one build environment.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/ini.v1"

	"tremokit.sh/internal/errs"
)

const (
	// DefaultFileName is the name of the project configuration file.
	DefaultFileName = "platformio.ini"

	sectionPlatformIO = "platformio"
	sectionCommonEnv  = "env"
	envSectionPrefix  = "env:"

	// interpolationDepth bounds nested ${section.option} references.
	interpolationDepth = 10
)

var (
	// ErrNoProjectFile is returned when the project directory holds no
	// configuration file.
	ErrNoProjectFile = fmt.Errorf("%w: no %s in project directory", errs.ErrNotFound, DefaultFileName)

	interpolation = regexp.MustCompile(`\$\{([^.}]+)\.([^}]+)\}`)
)

// Project is a parsed project configuration file.
type Project struct {
	dir  string
	file *ini.File
}

// Load parses the platformio.ini found in dir.
func Load(dir string) (*Project, error) {
	path := filepath.Join(dir, DefaultFileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoProjectFile
	}

	return LoadFile(path)
}

// LoadFile parses the configuration file at path.  The project directory is
// the directory containing the file.
func LoadFile(path string) (*Project, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		AllowPythonMultilineValues: true,
		SpaceBeforeInlineComment:   true,
		Insensitive:                false,
	}, path)
	if err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", path, err)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}

	return &Project{
		dir:  dir,
		file: file,
	}, nil
}

// Dir returns the absolute project directory.
func (p *Project) Dir() string {
	return p.dir
}

func (p *Project) platformOption(key, def string) string {
	if !p.file.HasSection(sectionPlatformIO) {
		return def
	}

	k, err := p.file.Section(sectionPlatformIO).GetKey(key)
	if err != nil {
		return def
	}

	value := strings.TrimSpace(p.interpolate(k.String(), 0))
	if value == "" {
		return def
	}

	return value
}

func (p *Project) resolveDir(key, def string) string {
	dir := p.platformOption(key, def)
	if filepath.IsAbs(dir) {
		return dir
	}

	return filepath.Join(p.dir, dir)
}

// SrcDir returns the directory holding the project's own sources.
func (p *Project) SrcDir() string {
	return p.resolveDir("src_dir", "src")
}

// BuildDir returns the root of per-environment build directories.
func (p *Project) BuildDir() string {
	return p.resolveDir("build_dir", filepath.Join(".pio", "build"))
}

// BoardsDir returns the directory holding project-local board manifests.
func (p *Project) BoardsDir() string {
	return p.resolveDir("boards_dir", "boards")
}

// EnvNames returns the names of all declared environments in file order.
func (p *Project) EnvNames() []string {
	var names []string

	for _, section := range p.file.Sections() {
		if name, ok := strings.CutPrefix(section.Name(), envSectionPrefix); ok {
			names = append(names, name)
		}
	}

	return names
}

// DefaultEnvs returns the environments listed by `default_envs`, falling back
// to every declared environment.
func (p *Project) DefaultEnvs() []string {
	if envs := SplitList(p.platformOption("default_envs", "")); len(envs) > 0 {
		return envs
	}

	return p.EnvNames()
}

// Environment returns the options of the named environment.  An empty name
// selects the first default environment.
func (p *Project) Environment(name string) (*Environment, error) {
	if name == "" {
		defaults := p.DefaultEnvs()
		if len(defaults) == 0 {
			return nil, errs.Config("no [env:NAME] section declared in %s", DefaultFileName)
		}
		name = defaults[0]
	}

	if !p.file.HasSection(envSectionPrefix + name) {
		return nil, fmt.Errorf("%w: unknown environment %q", errs.ErrNotFound, name)
	}

	env := &Environment{
		Name:    name,
		options: map[string]string{},
	}

	// Options from the common [env] section are inherited and may be
	// overridden by the environment's own section.
	for _, sectionName := range []string{sectionCommonEnv, envSectionPrefix + name} {
		if !p.file.HasSection(sectionName) {
			continue
		}

		for _, key := range p.file.Section(sectionName).Keys() {
			env.options[key.Name()] = p.interpolate(key.String(), 0)
		}
	}

	return env, nil
}

func (p *Project) interpolate(value string, depth int) string {
	if depth >= interpolationDepth || !strings.Contains(value, "${") {
		return value
	}

	return interpolation.ReplaceAllStringFunc(value, func(ref string) string {
		match := interpolation.FindStringSubmatch(ref)
		section, option := match[1], match[2]

		if section == "sysenv" {
			return os.Getenv(option)
		}

		if !p.file.HasSection(section) {
			return ref
		}

		key, err := p.file.Section(section).GetKey(option)
		if err != nil {
			return ref
		}

		return p.interpolate(key.String(), depth+1)
	})
}

// Environment holds the options of one `[env:NAME]` section, merged over the
// common `[env]` section.  It is immutable once loaded.
type Environment struct {
	Name    string
	options map[string]string
}

// NewEnvironment returns an environment holding the given options.
func NewEnvironment(name string, options map[string]string) *Environment {
	env := &Environment{
		Name:    name,
		options: make(map[string]string, len(options)),
	}

	for k, v := range options {
		env.options[k] = v
	}

	return env
}

// Lookup returns the raw (trimmed) value of key and whether it was declared.
func (e *Environment) Lookup(key string) (string, bool) {
	if e == nil {
		return "", false
	}

	value, ok := e.options[key]
	return strings.TrimSpace(value), ok
}

// Get returns the value of key or def when the option is not declared.  A
// declared but empty option returns the empty string.
func (e *Environment) Get(key, def string) string {
	if value, ok := e.Lookup(key); ok {
		return value
	}

	return def
}

// Override returns a copy of the environment where the given options are
// declared with the given values.
func (e *Environment) Override(options map[string]string) *Environment {
	merged := NewEnvironment(e.Name, e.options)
	for k, v := range options {
		merged.options[k] = v
	}

	return merged
}

// Keys returns the declared option names sorted alphabetically.
func (e *Environment) Keys() []string {
	keys := make([]string, 0, len(e.options))
	for k := range e.options {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Frameworks returns the requested frameworks.
func (e *Environment) Frameworks() []string {
	return SplitList(e.Get("framework", ""))
}

// Board returns the board identifier.
func (e *Environment) Board() string {
	return e.Get("board", "")
}

// SplitList splits a multi-line, comma or whitespace separated option value.
func SplitList(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}
