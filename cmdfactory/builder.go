// SPDX-License-Identifier: Apache-2.0
// Copyright 2022 Acorn Labs, Inc; All rights reserved.
// Copyright 2022 Unikraft GmbH; All rights reserved.
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package cmdfactory builds cobra commands out of plain structs: exported
// fields become flags according to their struct tags and the struct's Run
// method becomes the command's action.
package cmdfactory

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unsafe"

	"github.com/spf13/cobra"

	"tremokit.sh/internal/errs"
	"tremokit.sh/log"
)

var caseRegexp = regexp.MustCompile("([a-z])([A-Z])")

type PersistentPreRunnable interface {
	PersistentPre(cmd *cobra.Command, args []string) error
}

type PreRunnable interface {
	PreRun(cmd *cobra.Command, args []string) error
}

type Runnable interface {
	Run(ctx context.Context, args []string) error
}

type fieldInfo struct {
	FieldType  reflect.StructField
	FieldValue reflect.Value
}

func fields(obj any) []fieldInfo {
	var objValue reflect.Value
	ptrValue := reflect.ValueOf(obj)
	if ptrValue.Kind() == reflect.Ptr {
		objValue = ptrValue.Elem()
	} else {
		objValue = ptrValue
	}

	var result []fieldInfo

	for i := 0; i < objValue.NumField(); i++ {
		fieldType := objValue.Type().Field(i)
		if fieldType.Anonymous && fieldType.Type.Kind() == reflect.Struct {
			result = append(result, fields(objValue.Field(i).Addr().Interface())...)
		} else if !fieldType.Anonymous {
			result = append(result, fieldInfo{
				FieldValue: objValue.Field(i),
				FieldType:  objValue.Type().Field(i),
			})
		}
	}

	return result
}

// Name derives a command name from the type of obj, e.g. `BuildCommand`
// becomes `build`.
func Name(obj any) string {
	ptrValue := reflect.ValueOf(obj)
	objValue := ptrValue.Elem()
	commandName := strings.Replace(objValue.Type().Name(), "Command", "", 1)
	commandName, _ = name(commandName, "", "")
	return commandName
}

// Main executes the given command and returns the process exit status.
// Errors are logged once here; commands only return them.
func Main(ctx context.Context, cmd *cobra.Command) int {
	if err := cmd.ExecuteContext(ctx); err != nil {
		log.G(ctx).Error(err)
		return errs.ExitCode(err)
	}

	return 0
}

// AttributeFlags associates a given struct with public attributes and a set of
// tags with the provided cobra command so as to enable dynamic population of
// CLI flags.
func AttributeFlags(c *cobra.Command, obj any, args ...string) error {
	var (
		slices    = map[string]reflect.Value{}
		optString = map[string]reflect.Value{}
		optBool   = map[string]reflect.Value{}
	)

	for _, info := range fields(obj) {
		fieldType := info.FieldType
		v := info.FieldValue

		if strings.ToUpper(fieldType.Name[0:1]) != fieldType.Name[0:1] {
			continue
		}

		// Any structure attribute which has the tag `noattribute:"true"` is skipped
		if fieldType.Tag.Get("noattribute") == "true" {
			continue
		}

		name, alias := name(fieldType.Name, fieldType.Tag.Get("long"), fieldType.Tag.Get("short"))
		usage := fieldType.Tag.Get("usage")
		envName := fieldType.Tag.Get("env")
		defValue := fieldType.Tag.Get("default")
		defInt, err := strconv.Atoi(defValue)
		if err != nil {
			defInt = 0
		}

		strValue := fmt.Sprint(v)

		// The environment takes precedence over the value already held by the
		// field, which would otherwise come from the configuration file.
		fromEnv := false
		if envName != "" {
			if envValue := os.Getenv(envName); envValue != "" {
				strValue = envValue
				fromEnv = true
			}
		}

		if strValue == "" && defValue != "" {
			strValue = defValue
		}

		flags := c.PersistentFlags()
		if fieldType.Tag.Get("local") == "true" {
			flags = c.Flags()
		}

		switch v.Interface().(type) {
		case time.Duration:
			flags.DurationVarP((*time.Duration)(unsafe.Pointer(v.Addr().Pointer())), name, alias, time.Duration(defInt), usage)
			if fromEnv {
				if err := flags.Set(name, strValue); err != nil {
					return fmt.Errorf("invalid value for %s: %w", envName, err)
				}
			}
			continue
		}

		switch fieldType.Type.Kind() {
		case reflect.Int, reflect.Int64:
			current := int(v.Int())
			flags.IntVarP((*int)(unsafe.Pointer(v.Addr().Pointer())), name, alias, defInt, usage)
			if fromEnv {
				if err := flags.Set(name, strValue); err != nil {
					return fmt.Errorf("invalid value for %s: %w", envName, err)
				}
			} else if current != 0 {
				if err := flags.Set(name, strconv.Itoa(current)); err != nil {
					return err
				}
			}
		case reflect.String:
			flags.StringVarP((*string)(unsafe.Pointer(v.Addr().Pointer())), name, alias, defValue, usage)
			if err := flags.Set(name, strValue); err != nil {
				return err
			}
		case reflect.Bool:
			flags.BoolVarP((*bool)(unsafe.Pointer(v.Addr().Pointer())), name, alias, false, usage)
			if err := flags.Set(name, strValue); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
		case reflect.Slice:
			slices[name] = v
			if ptr := (*[]string)(unsafe.Pointer(v.Addr().Pointer())); *ptr != nil {
				flags.StringSliceVarP(ptr, name, alias, *ptr, usage)
			} else {
				flags.StringSliceP(name, alias, nil, usage)
			}
		case reflect.Pointer:
			switch fieldType.Type.Elem().Kind() {
			case reflect.String:
				optString[name] = v
				flags.StringP(name, alias, defValue, usage)
			case reflect.Bool:
				optBool[name] = v
				flags.BoolP(name, alias, false, usage)
			}
		case reflect.Struct:
			if !v.CanAddr() {
				continue
			}

			// Recursively set nested structs
			if err := AttributeFlags(c, v.Addr().Interface()); err != nil {
				return err
			}
		default:
			continue
		}

		if fieldType.Tag.Get("hidden") == "true" {
			if err := flags.MarkHidden(name); err != nil {
				return err
			}
		}
	}

	c.PersistentPreRunE = bind(c.PersistentPreRunE, slices, optBool, optString)
	c.PreRunE = bind(c.PreRunE, slices, optBool, optString)
	c.RunE = bind(c.RunE, slices, optBool, optString)

	return nil
}

// New populates a cobra.Command object by extracting args from struct tags of the
// Runnable obj passed.  Also the Run method is assigned to the RunE of the command.
func New(obj Runnable, cmd cobra.Command) (*cobra.Command, error) {
	c := cmd
	if c.Use == "" {
		c.Use = fmt.Sprintf("%s [SUBCOMMAND] [FLAGS]", Name(obj))
	}

	if p, ok := obj.(PersistentPreRunnable); ok {
		c.PersistentPreRunE = p.PersistentPre
	}

	if p, ok := obj.(PreRunnable); ok {
		c.PreRunE = p.PreRun
	}

	c.SilenceErrors = true
	c.SilenceUsage = true
	c.DisableFlagsInUseLine = true
	c.InitDefaultHelpFlag()
	c.CompletionOptions.DisableDefaultCmd = true

	if obj != nil {
		c.RunE = func(cmd *cobra.Command, args []string) error {
			return obj.Run(cmd.Context(), args)
		}

		// Parse the attributes of this object into addressable flags for this command
		if err := AttributeFlags(&c, obj); err != nil {
			return nil, err
		}
	}

	c.SetHelpFunc(rootHelpFunc)
	c.SetUsageFunc(rootUsageFunc)
	c.SetFlagErrorFunc(rootFlagErrorFunc)

	return &c, nil
}

func assignOptBool(app *cobra.Command, maps map[string]reflect.Value) error {
	for k, v := range maps {
		if f := app.Flags().Lookup(k); f == nil || !f.Changed {
			continue
		}
		i, err := app.Flags().GetBool(k)
		if err != nil {
			return err
		}
		v.Set(reflect.ValueOf(&i))
	}
	return nil
}

func assignOptString(app *cobra.Command, maps map[string]reflect.Value) error {
	for k, v := range maps {
		if f := app.Flags().Lookup(k); f == nil || !f.Changed {
			continue
		}
		i, err := app.Flags().GetString(k)
		if err != nil {
			return err
		}
		v.Set(reflect.ValueOf(&i))
	}
	return nil
}

func assignSlices(app *cobra.Command, slices map[string]reflect.Value) error {
	for k, v := range slices {
		s, err := app.Flags().GetStringSlice(k)
		if err != nil {
			continue
		}
		if a := app.Flags().Lookup(k); a != nil && a.Changed && len(s) == 0 {
			s = []string{""}
		}
		if s != nil {
			v.Set(reflect.ValueOf(s[:]))
		}
	}
	return nil
}

// name turns a Go field name into a flag name, e.g. `DryRun` becomes
// `dry-run`.  Explicit `long` and `short` tags win.
func name(name, setName, short string) (string, string) {
	if setName != "" {
		return setName, short
	}
	parts := strings.Split(name, "_")
	i := len(parts) - 1
	name = caseRegexp.ReplaceAllString(parts[i], "$1-$2")
	name = strings.ToLower(name)
	result := append([]string{name}, parts[0:i]...)
	for i := 0; i < len(result); i++ {
		result[i] = strings.ToLower(result[i])
	}
	if short == "" && len(result) > 1 {
		short = result[1]
	}
	return result[0], short
}

func bind(next func(*cobra.Command, []string) error,
	slices map[string]reflect.Value,
	optBool map[string]reflect.Value,
	optString map[string]reflect.Value,
) func(*cobra.Command, []string) error {
	if next == nil {
		return nil
	}
	return func(cmd *cobra.Command, args []string) error {
		if err := assignSlices(cmd, slices); err != nil {
			return err
		}
		if err := assignOptBool(cmd, optBool); err != nil {
			return err
		}
		if err := assignOptString(cmd, optString); err != nil {
			return err
		}

		return next(cmd, args)
	}
}
