// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package board provides read-only access to board manifests, the static
// per-target hardware metadata (flash layout, MCU, upload defaults).
package board

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestExtension is the file extension of board manifests.
const ManifestExtension = ".json"

// Board is a read-only mapping of board metadata looked up by dotted key.
type Board struct {
	id     string
	values map[string]any
}

// New returns a board backed by the given metadata.
func New(id string, values map[string]any) *Board {
	if values == nil {
		values = map[string]any{}
	}

	return &Board{id: id, values: values}
}

// Parse decodes a manifest.  JSON manifests are valid YAML and decode as such.
func Parse(id string, data []byte) (*Board, error) {
	values := map[string]any{}

	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("could not decode board manifest %s: %w", id, err)
	}

	return New(id, values), nil
}

// Find looks for `<id>.json` in each directory in order and parses the first
// match.  A board without a manifest is empty, so every lookup returns its
// default.
func Find(id string, dirs ...string) (*Board, error) {
	if id == "" {
		return New(id, nil), nil
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, id+ManifestExtension))
		if errors.Is(err, os.ErrNotExist) {
			continue
		} else if err != nil {
			return nil, err
		}

		return Parse(id, data)
	}

	return New(id, nil), nil
}

// ID returns the board identifier.
func (b *Board) ID() string {
	return b.id
}

// Lookup resolves a dotted key such as `upload.offset_address` through nested
// mappings.
func (b *Board) Lookup(key string) (string, bool) {
	if b == nil {
		return "", false
	}

	var current any = b.values

	for _, part := range strings.Split(key, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return "", false
		}

		current, ok = m[part]
		if !ok {
			return "", false
		}
	}

	switch v := current.(type) {
	case nil, map[string]any, []any:
		return "", false
	case string:
		return v, true
	default:
		return fmt.Sprint(v), true
	}
}

// Get returns the value of key or def when it is not present.
func (b *Board) Get(key, def string) string {
	if value, ok := b.Lookup(key); ok {
		return value
	}

	return def
}

// Override returns a copy of the board where the given dotted keys are set.
func (b *Board) Override(values map[string]string) *Board {
	out := New(b.id, deepCopy(b.values))

	for key, value := range values {
		parts := strings.Split(key, ".")
		m := out.values
		for _, part := range parts[:len(parts)-1] {
			next, ok := m[part].(map[string]any)
			if !ok {
				next = map[string]any{}
				m[part] = next
			}
			m = next
		}
		m[parts[len(parts)-1]] = value
	}

	return out
}

func deepCopy(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if m, ok := v.(map[string]any); ok {
			v = deepCopy(m)
		}
		out[k] = v
	}

	return out
}
