// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// SignatureFile is the name of the file, below BUILD_DIR, recording the
// command line each target was last produced with.
const SignatureFile = ".tremokit.db"

// Signature hashes the argument vector producing a target.  Flags, defines
// and input paths all take part, so changing any of them changes the result.
func Signature(argv []string) string {
	sum := sha256.Sum256([]byte(strings.Join(argv, "\x00")))
	return hex.EncodeToString(sum[:])
}

// signatures maps target paths to the signature of their last successful
// build.
type signatures struct {
	mu      sync.Mutex
	path    string
	entries map[string]string
	dirty   bool
}

// loadSignatures reads the store at path.  A missing or empty path yields an
// empty store; an unreadable store is discarded, which only costs a rebuild.
func loadSignatures(path string) (*signatures, error) {
	s := &signatures{path: path, entries: map[string]string{}}
	if path == "" {
		return s, nil
	}

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	} else if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(b, &s.entries); err != nil || s.entries == nil {
		s.entries = map[string]string{}
		s.dirty = true
	}

	return s, nil
}

func (s *signatures) matches(target, sig string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.entries[target]
	return ok && stored == sig
}

func (s *signatures) record(target, sig string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entries[target] != sig {
		s.entries[target] = sig
		s.dirty = true
	}
}

func (s *signatures) forget(target string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[target]; ok {
		delete(s.entries, target)
		s.dirty = true
	}
}

// save writes the store back when it changed.
func (s *signatures) save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" || !s.dirty {
		return nil
	}

	b, err := yaml.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("could not encode signatures: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("could not create %s: %w", filepath.Dir(s.path), err)
	}

	if err := os.WriteFile(s.path, b, 0o644); err != nil {
		return fmt.Errorf("could not write %s: %w", s.path, err)
	}

	s.dirty = false

	return nil
}
