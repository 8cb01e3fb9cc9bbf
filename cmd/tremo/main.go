// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package main

import (
	"os"

	"tremokit.sh/internal/cli/tremo"
)

func main() {
	os.Exit(tremo.Main(os.Args[1:]))
}
