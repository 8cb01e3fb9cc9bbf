// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
)

// ConfigManager seeds the configuration with defaults and applies its
// feeders in order.
type ConfigManager struct {
	Config     *Config
	ConfigFile string
	Feeders    []Feeder
}

// ConfigManagerOption configures a ConfigManager.
type ConfigManagerOption func(cm *ConfigManager) error

// WithFeeder adds a feeder.
func WithFeeder(feeder Feeder) ConfigManagerOption {
	return func(cm *ConfigManager) error {
		cm.AddFeeder(feeder)
		return nil
	}
}

// WithFile feeds the configuration from file.  A missing file is written with
// the defaults when forceCreate is set and skipped otherwise.
func WithFile(file string, forceCreate bool) ConfigManagerOption {
	return func(cm *ConfigManager) error {
		switch strings.ToLower(filepath.Ext(file)) {
		case ".yaml", ".yml":
		case "":
			return fmt.Errorf("unknown file extension for config file: %s", file)
		default:
			return fmt.Errorf("unsupported file extension: %s", file)
		}

		yml := YamlFeeder{File: file}
		cm.ConfigFile = file

		if _, err := os.Stat(file); os.IsNotExist(err) {
			if !forceCreate {
				return nil
			}

			if err := yml.Write(cm.Config, false); err != nil {
				return fmt.Errorf("could not write initial config: %v", err)
			}
		}

		return WithFeeder(yml)(cm)
	}
}

// WithDefaultConfigFile feeds the configuration from the user's config file
// when it exists.
func WithDefaultConfigFile() ConfigManagerOption {
	return func(cm *ConfigManager) error {
		return WithFile(DefaultConfigFile(), false)(cm)
	}
}

// NewConfigManager returns a manager holding the defaults overlaid by every
// feeder.
func NewConfigManager(opts ...ConfigManagerOption) (*ConfigManager, error) {
	cm := &ConfigManager{}

	c, err := NewDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("could not seed default values for config: %s", err)
	}

	cm.Config = c

	for _, o := range opts {
		if err := o(cm); err != nil {
			return nil, fmt.Errorf("could not apply config manager option: %v", err)
		}
	}

	// Feed the config, pass the manager anyway if this fails, we still have
	// defaults
	if err := cm.Feed(); err != nil {
		return cm, fmt.Errorf("could not feed config: %v", err)
	}

	return cm, nil
}

// AddFeeder appends a feeder.
func (cm *ConfigManager) AddFeeder(f Feeder) *ConfigManager {
	cm.Feeders = append(cm.Feeders, f)
	return cm
}

// Feed applies every feeder in order.
func (cm *ConfigManager) Feed() error {
	for _, f := range cm.Feeders {
		if err := f.Feed(cm.Config); err != nil {
			return fmt.Errorf("failed to feed config: %v", err)
		}
	}

	return nil
}

// Write persists the configuration through every feeder.
func (cm *ConfigManager) Write(merge bool) error {
	for _, f := range cm.Feeders {
		if err := f.Write(cm.Config, merge); err != nil {
			return err
		}
	}

	return nil
}

// AllowedValues returns the values accepted for a key, if restricted.
func AllowedValues(key string) []string {
	for _, details := range ConfigDetails() {
		if details.Key == key {
			return details.AllowedValues
		}
	}

	return []string{}
}

// Default returns the default value of a dotted yaml key such as
// `log.level`.
func Default(key string) string {
	def, ok := findConfigDefault(strings.Split(key, "."), reflect.TypeOf(TremoKit{}))
	if !ok {
		return ""
	}

	return def
}

func findConfigDefault(path []string, t reflect.Type) (string, bool) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if name != path[0] {
			continue
		}

		if len(path) == 1 {
			return field.Tag.Get("default"), true
		}

		if field.Type.Kind() == reflect.Struct {
			return findConfigDefault(path[1:], field.Type)
		}
	}

	return "", false
}
