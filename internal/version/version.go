// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package version holds the build information set by the linker, e.g.
// `-ldflags "-X tremokit.sh/internal/version.version=v0.1.0"`.
package version

import (
	"fmt"
	"runtime"
)

var (
	version   = "No version provided"
	commit    = "No commit provided"
	buildTime = "No build timestamp provided"
)

// Version returns TremoKit's version string.
func Version() string {
	return version
}

// Commit returns TremoKit's HEAD Git commit SHA.
func Commit() string {
	return commit
}

// BuildTime returns the time in which the package or binary was built.
func BuildTime() string {
	return buildTime
}

// String returns all version information.
func String() string {
	return fmt.Sprintf("%s (%s) %s %s\n",
		version,
		commit,
		runtime.Version(),
		buildTime,
	)
}
