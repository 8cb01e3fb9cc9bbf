// SPDX-License-Identifier: MIT
//
// Copyright (c) 2019 GitHub Inc.
//               2022 Unikraft GmbH.
// Copyright (c) 2024, The TremoKit Authors.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/mitchellh/go-homedir"
)

const (
	TREMOKIT_CONFIG_DIR = "TREMOKIT_CONFIG_DIR"
	TREMOKIT_HOME       = "TREMOKIT_HOME"
	XDG_CONFIG_HOME     = "XDG_CONFIG_HOME"
)

func home() string {
	dir, err := homedir.Dir()
	if err != nil {
		return "."
	}

	return dir
}

// ConfigDir returns the directory holding config.yaml.
func ConfigDir() string {
	if a := os.Getenv(TREMOKIT_CONFIG_DIR); a != "" {
		return a
	} else if b := os.Getenv(XDG_CONFIG_HOME); b != "" {
		return filepath.Join(b, "tremokit")
	}

	return filepath.Join(home(), ".config", "tremokit")
}

// DataDir returns the directory holding installed platforms.
func DataDir() string {
	if a := os.Getenv(TREMOKIT_HOME); a != "" {
		return a
	}

	return filepath.Join(home(), ".tremokit")
}

// DefaultConfigFile returns the path of the user's configuration file.
func DefaultConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ExpandPath resolves a leading `~` to the user's home directory.
func ExpandPath(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("could not expand %s: %w", path, err)
	}

	return expanded, nil
}

func fileExists(path string) bool {
	f, err := os.Stat(path)
	return err == nil && !f.IsDir()
}

func pathError(err error) error {
	var pathError *os.PathError
	if errors.As(err, &pathError) && errors.Is(pathError.Err, syscall.ENOTDIR) {
		if p := findRegularFile(pathError.Path); p != "" {
			return fmt.Errorf("remove or rename regular file `%s` (must be a directory)", p)
		}
	}

	return err
}

func findRegularFile(p string) string {
	for {
		if s, err := os.Stat(p); err == nil && s.Mode().IsRegular() {
			return p
		}

		newPath := filepath.Dir(p)
		if newPath == p || newPath == string(filepath.Separator) || newPath == "." {
			break
		}

		p = newPath
	}

	return ""
}
