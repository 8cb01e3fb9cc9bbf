// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package exec

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/google/shlex"
)

type Executable struct {
	bin  string
	args []string
}

// NewExecutable accepts an input argument bin which is the path or executable
// name to be ultimately executed.  If bin holds a full command line, it is
// split with shell quoting rules and the remainder is prepended to args.  An
// optional face can use the attribute annotation tags `flag:"--myarg"` to aid
// serialization of the executable's command-line arguments.
func NewExecutable(bin string, face interface{}, args ...string) (*Executable, error) {
	if len(strings.TrimSpace(bin)) == 0 {
		return nil, fmt.Errorf("binary argument cannot be empty")
	}

	e := &Executable{}

	if strings.ContainsAny(bin, " \t\"'") {
		fields, err := shlex.Split(bin)
		if err != nil {
			return nil, fmt.Errorf("could not split command line %q: %w", bin, err)
		}
		if len(fields) == 0 {
			return nil, fmt.Errorf("binary argument cannot be empty")
		}

		bin = fields[0]
		e.args = fields[1:]
	}

	e.bin = bin

	if face != nil {
		ifaceArgs, err := ParseInterfaceArgs(face)
		if err != nil {
			return nil, err
		}

		e.args = append(e.args, ifaceArgs...)
	}

	e.args = append(e.args, args...)

	return e, nil
}

// FromArgv prepares an executable from an already split argument vector.
// No further splitting is applied, so argv[0] may contain spaces.
func FromArgv(argv ...string) (*Executable, error) {
	if len(argv) == 0 || len(argv[0]) == 0 {
		return nil, fmt.Errorf("binary argument cannot be empty")
	}

	return &Executable{
		bin:  argv[0],
		args: append([]string{}, argv[1:]...),
	}, nil
}

// Bin returns the name or path of the binary.
func (e *Executable) Bin() string {
	return e.bin
}

// Args returns the arguments passed to the binary.
func (e *Executable) Args() []string {
	return e.args
}

type flag struct {
	flag        string
	omitvalueif string
}

func parseFlag(tag reflect.StructTag) (*flag, bool) {
	value, ok := tag.Lookup("flag")
	if !ok {
		return nil, false
	}

	parts := strings.Split(value, ",")
	f := &flag{flag: parts[0]}

	for _, part := range parts[1:] {
		if v, found := strings.CutPrefix(part, "omitvalueif="); found {
			f.omitvalueif = v
		}
	}

	return f, true
}

// ParseInterfaceArgs returns the array of arguments detected from an interface
// with tag annotations `flag`.  Booleans produce a bare flag, strings and
// string slices produce a flag followed by each value, and empty values are
// skipped.
func ParseInterfaceArgs(face interface{}, args ...string) ([]string, error) {
	v := reflect.ValueOf(face)
	if v.Kind() == reflect.Ptr {
		return nil, fmt.Errorf("cannot derive interface arguments from pointer: passed by reference")
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("cannot derive interface arguments from %s", v.Kind())
	}

	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		f, ok := parseFlag(t.Field(i).Tag)
		if !ok {
			// Recursively iterate through embedded structures
			if field.Kind() == reflect.Struct && field.CanInterface() {
				structArgs, err := ParseInterfaceArgs(field.Interface())
				if err != nil {
					return nil, err
				}
				args = append(args, structArgs...)
			}
			continue
		}

		switch field.Kind() {
		case reflect.Bool:
			if field.Bool() {
				args = append(args, f.flag)
			}

		case reflect.String:
			value := field.String()
			if len(value) == 0 {
				continue
			}
			if value == f.omitvalueif {
				args = append(args, f.flag)
				continue
			}
			args = append(args, f.flag, value)

		case reflect.Slice:
			for j := 0; j < field.Len(); j++ {
				var value string
				switch item := field.Index(j).Interface().(type) {
				case string:
					value = item
				case fmt.Stringer:
					value = item.String()
				}
				if len(value) == 0 {
					continue
				}
				args = append(args, f.flag, value)
			}

		case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64:
			value := fmt.Sprint(field.Interface())
			if value == "0" && f.omitvalueif == "" {
				continue
			}
			if value == f.omitvalueif {
				args = append(args, f.flag)
				continue
			}
			args = append(args, f.flag, value)

		default:
			if !field.CanInterface() {
				continue
			}
			if s, ok := field.Interface().(fmt.Stringer); ok && len(s.String()) > 0 {
				args = append(args, f.flag, s.String())
			}
		}
	}

	return args, nil
}
