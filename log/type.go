// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file expect in compliance with the License.
package log

import "strings"

// LoggerType controls how log statements are output
type LoggerType uint

// Logger types
const (
	QUIET LoggerType = iota
	BASIC
	FANCY
	JSON
)

var loggerTypeNames = map[LoggerType]string{
	QUIET: "quiet",
	BASIC: "basic",
	FANCY: "fancy",
	JSON:  "json",
}

// LoggerTypeFromString parses name, defaulting to BASIC.
func LoggerTypeFromString(name string) LoggerType {
	name = strings.ToLower(strings.TrimSpace(name))
	for t, n := range loggerTypeNames {
		if n == name {
			return t
		}
	}

	return BASIC
}

func (t LoggerType) String() string {
	if name, ok := loggerTypeNames[t]; ok {
		return name
	}

	return loggerTypeNames[BASIC]
}
