// SPDX-License-Identifier: BSD-3-Clause
//
// Authors: Alexander Jung <alex@unikraft.io>
//
// Copyright (c) 2022, Unikraft GmbH.  All rights reserved.
// Copyright (c) 2024, The TremoKit Authors.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the names of its
//    contributors may be used to endorse or promote products derived from
//    this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.
package errs

import (
	"errors"
	"fmt"
	"os/exec"
)

var (
	// ErrNotFound is returned when a file, target or option cannot be located
	ErrNotFound = errors.New("not found")

	// ErrInvalid is returned when a required configuration value is missing or
	// does not pass validation
	ErrInvalid = errors.New("invalid")

	// ErrUnsupported is returned when the project requests a framework which
	// is not supported
	ErrUnsupported = errors.New("unsupported")

	// ErrToolchain is returned when an external tool (compiler, linker,
	// object-copy, uploader) fails
	ErrToolchain = errors.New("toolchain")
)

// IsNotFoundError returns true if the unwrapped error is ErrNotFound
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidError returns true if the unwrapped error is ErrInvalid
func IsInvalidError(err error) bool {
	return errors.Is(err, ErrInvalid)
}

// IsUnsupportedError returns true if the unwrapped error is ErrUnsupported
func IsUnsupportedError(err error) bool {
	return errors.Is(err, ErrUnsupported)
}

// IsToolchainError returns true if the unwrapped error is ErrToolchain
func IsToolchainError(err error) bool {
	return errors.Is(err, ErrToolchain)
}

// IsConfigError returns true for the fatal configuration class of errors,
// i.e. a missing or invalid option or an unsupported framework.
func IsConfigError(err error) bool {
	return IsInvalidError(err) || IsUnsupportedError(err)
}

type wrapped struct {
	kind error
	err  error
}

func (w *wrapped) Error() string {
	return w.err.Error()
}

func (w *wrapped) Unwrap() []error {
	return []error{w.kind, w.err}
}

// Config returns a configuration error with the provided message.
func Config(format string, args ...any) error {
	return &wrapped{kind: ErrInvalid, err: fmt.Errorf(format, args...)}
}

// Unsupported returns an error classified as ErrUnsupported.
func Unsupported(format string, args ...any) error {
	return &wrapped{kind: ErrUnsupported, err: fmt.Errorf(format, args...)}
}

// Toolchain classifies err as a failure of an external tool while keeping
// the original error (and any *exec.ExitError) reachable.
func Toolchain(err error) error {
	if err == nil {
		return nil
	}

	return &wrapped{kind: ErrToolchain, err: err}
}

// ExitCode maps an error onto the process exit status.  Toolchain failures
// propagate the exit status of the failing child process unmodified.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if IsToolchainError(err) && errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code > 0 {
			return code
		}
	}

	return 1
}
