// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package engine

import "time"

// Report summarizes a build.
type Report struct {
	// Compiled counts objects compiled or assembled.
	Compiled int

	// Linked counts programs and command nodes produced.
	Linked int

	// Skipped counts file nodes found up to date.
	Skipped int

	// Artifacts lists the program and command nodes handled, in build order.
	Artifacts []string

	// Targets lists the custom targets run.
	Targets []string

	DryRun   bool
	Duration time.Duration
}

// UpToDate reports whether the build had nothing to do.
func (r *Report) UpToDate() bool {
	return r.Compiled == 0 && r.Linked == 0 && len(r.Targets) == 0
}
